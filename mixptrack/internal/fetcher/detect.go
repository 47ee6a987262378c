package fetcher

import (
	"bytes"
	"strings"
)

// spaShells are mount points left empty until client-side rendering runs.
var spaShells = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	`<noscript>you need to enable javascript`,
	`<noscript>enable javascript`,
}

// IsSufficient reports whether the served HTML can be bound as is. An SPA
// shell is never sufficient: its directives are rendered by JavaScript.
// Otherwise markup carrying data-mixp- directives is sufficient, and so
// is a page with a reasonable share of visible text.
func IsSufficient(html []byte) bool {
	lower := bytes.ToLower(html)
	for _, ind := range spaShells {
		if bytes.Contains(lower, []byte(ind)) {
			return false
		}
	}
	if bytes.Contains(lower, []byte("data-mixp-")) {
		return true
	}
	if len(html) < 256 {
		return false
	}

	text, markup := textMarkupRatio(html)
	if text+markup == 0 || text < 200 {
		return false
	}
	return float64(text)/float64(text+markup) >= 0.10
}

// textMarkupRatio counts non-whitespace text bytes against markup bytes,
// treating script and style bodies as markup.
func textMarkupRatio(html []byte) (text, markup int) {
	s := string(html)
	inTag := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '<':
			rest := strings.ToLower(s[i:])
			for _, raw := range []string{"script", "style"} {
				if strings.HasPrefix(rest, "<"+raw) {
					end := strings.Index(rest, "</"+raw)
					if end == -1 {
						return text, markup + len(rest)
					}
					markup += end
					i += end
					break
				}
			}
			inTag = true
			markup++
		case ch == '>':
			inTag = false
			markup++
		case inTag:
			markup++
		case ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r':
			text++
		}
	}
	return text, markup
}
