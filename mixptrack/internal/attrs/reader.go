// Package attrs builds tracking payloads: it parses an element's JSON
// payload attribute, stamps it, and overlays the session's common
// attributes.
package attrs

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
)

// timeLayout is ISO-8601 truncated before the fractional seconds, without
// a zone suffix (the layout Mixpanel expects for custom date properties).
const timeLayout = "2006-01-02T15:04:05"

// Reader assembles payloads. Precedence, lowest first: the element's own
// payload, the "Tracked time" stamp, the session's common attributes.
type Reader struct {
	session  *Session
	now      func() time.Time
	sanitize *Sanitizer
	logger   *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

// WithSanitizer strips markup from payload string values.
func WithSanitizer(s *Sanitizer) Option {
	return func(r *Reader) { r.sanitize = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// NewReader creates a Reader bound to a page session.
func NewReader(session *Session, opts ...Option) *Reader {
	r := &Reader{
		session: session,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Read builds the payload for el from attrName. includeCommon is false only
// for the identity binding, which runs before common attributes exist.
func (r *Reader) Read(el dom.Element, attrName string, includeCommon bool) directive.Payload {
	out := r.parse(el, attrName)
	if r.sanitize != nil {
		r.sanitize.Payload(out)
	}
	out.Merge(r.Timestamp())
	if includeCommon {
		out.Merge(r.session.Common())
	}
	return out
}

// Timestamp returns {"Tracked time": "<UTC date>T<time>"}.
func (r *Reader) Timestamp() directive.Payload {
	return directive.Payload{directive.TrackedTimeKey: FormatTime(r.now())}
}

// FormatTime renders t the way Timestamp does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Referrer returns {"referrer": ref}, or an empty payload when ref is empty.
func Referrer(ref string) directive.Payload {
	if ref == "" {
		return directive.Payload{}
	}
	return directive.Payload{"referrer": ref}
}

func (r *Reader) parse(el dom.Element, attrName string) directive.Payload {
	raw, ok := el.Attr(attrName)
	if !ok || raw == "" {
		return directive.Payload{}
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		r.logger.Warn("attrs: malformed payload, using empty payload",
			"element", el.Key(), "attr", attrName, "error", err)
		return directive.Payload{}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		r.logger.Warn("attrs: payload is not a JSON object, using empty payload",
			"element", el.Key(), "attr", attrName)
		return directive.Payload{}
	}
	return directive.Payload(obj)
}
