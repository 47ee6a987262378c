package shield

import "net/http"

// HeaderConfig lists the headers set on every response. Empty values are
// skipped.
type HeaderConfig struct {
	ContentTypeOptions string
	FrameOptions       string
	CacheControl       string
	ReferrerPolicy     string
}

// APIHeaders is the configuration for JSON endpoints: nothing is
// sniffed, framed or cached.
func APIHeaders() HeaderConfig {
	return HeaderConfig{
		ContentTypeOptions: "nosniff",
		FrameOptions:       "DENY",
		CacheControl:       "no-store",
		ReferrerPolicy:     "no-referrer",
	}
}

// SecurityHeaders returns middleware setting cfg's headers.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if cfg.ContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", cfg.ContentTypeOptions)
			}
			if cfg.FrameOptions != "" {
				h.Set("X-Frame-Options", cfg.FrameOptions)
			}
			if cfg.CacheControl != "" {
				h.Set("Cache-Control", cfg.CacheControl)
			}
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
