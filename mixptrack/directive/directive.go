// Package directive defines the declarative attribute surface read by
// mixptrack and the payload type handed to analytics sinks. Consumers
// implementing a custom sink import this package.
package directive

import "context"

// Prefix namespaces every attribute mixptrack reads.
const Prefix = "mixp"

// Attribute names, bit-exact.
const (
	AttrIdentity = "data-" + Prefix + "-person-identity"
	AttrEvent    = "data-" + Prefix + "-event"
	AttrLink     = "data-" + Prefix + "-track-link"
	AttrForm     = "data-" + Prefix + "-track-form"
	AttrPayload  = "data-" + Prefix + "-attrs"
	AttrSend     = "data-" + Prefix + "-send"
)

// TrackedTimeKey is the payload field carrying the dispatch timestamp.
const TrackedTimeKey = "Tracked time"

// URLKey is the payload field injected by link and form bindings.
const URLKey = "url"

// Kind is the tracking action a directive requests.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindEvent    Kind = "event"
	KindLink     Kind = "link"
	KindForm     Kind = "form"
	KindSend     Kind = "send" // manual, never discovered by a scan
)

// Attr returns the attribute that declares k.
func (k Kind) Attr() string {
	switch k {
	case KindIdentity:
		return AttrIdentity
	case KindEvent:
		return AttrEvent
	case KindLink:
		return AttrLink
	case KindForm:
		return AttrForm
	case KindSend:
		return AttrSend
	}
	return ""
}

// Payload is the key/value mapping sent along with a tracking call. Values
// are JSON primitives or nested maps/slices.
type Payload map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every key of src into p, overriding collisions.
func (p Payload) Merge(src Payload) {
	for k, v := range src {
		p[k] = v
	}
}

type contextKey string

const pageIDKey contextKey = "mixp_page_id"

// WithPageID tags ctx with the page session a sink call belongs to.
func WithPageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, pageIDKey, id)
}

// PageID returns the page session id carried by ctx, or "".
func PageID(ctx context.Context) string {
	v, _ := ctx.Value(pageIDKey).(string)
	return v
}
