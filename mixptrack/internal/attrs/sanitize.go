package attrs

import (
	"html"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// Sanitizer strips markup from every string value of a payload, nested
// maps and slices included. Payloads come from page authors' attributes
// and end up rendered in analytics dashboards.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer using bluemonday's strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Payload sanitises p in place and returns it.
func (s *Sanitizer) Payload(p directive.Payload) directive.Payload {
	for k, v := range p {
		p[k] = s.value(v)
	}
	return p
}

func (s *Sanitizer) value(v any) any {
	switch t := v.(type) {
	case string:
		return s.text(t)
	case map[string]any:
		for k, inner := range t {
			t[k] = s.value(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = s.value(inner)
		}
		return t
	default:
		return v
	}
}

// maxRounds bounds how many layers of entity-encoded markup are peeled.
const maxRounds = 4

// text strips markup until the decoded value is stable, so entity-encoded
// tags cannot survive as live markup. Values that do not settle keep the
// policy's escaped output.
func (s *Sanitizer) text(v string) string {
	for range maxRounds {
		clean := s.policy.Sanitize(v)
		plain := html.UnescapeString(clean)
		if plain == v {
			return plain
		}
		v = plain
	}
	return s.policy.Sanitize(v)
}
