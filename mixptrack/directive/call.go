package directive

// Op names a sink operation.
type Op string

const (
	OpIdentify     Op = "identify"
	OpSetProfile   Op = "set_profile"
	OpTrackEvent   Op = "track_event"
	OpRegisterLink Op = "register_link"
	OpRegisterForm Op = "register_form"
)

// Call is one sink invocation, as recorded by journaling and serialising
// sinks.
type Call struct {
	Op        Op      `json:"op"`
	PageID    string  `json:"page_id,omitempty"`
	ID        string  `json:"id,omitempty"`       // identify only
	Selector  string  `json:"selector,omitempty"` // link/form registrations
	Name      string  `json:"name,omitempty"`
	Attrs     Payload `json:"attrs,omitempty"`
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
}
