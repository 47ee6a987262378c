// Package fetcher implements the static acquisition path: a single HTTP GET
// whose body is bound without a browser. No JavaScript runs, so only
// directives present in the served markup are seen.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/mixptrack/horosafe"
)

// MaxBody caps the size of a fetched document.
const MaxBody = 10 << 20

// Result is the outcome of an HTTP fetch.
type Result struct {
	URL        string // final URL after redirects
	HTML       []byte
	StatusCode int
	// Sufficient is true when the markup carries enough content, or
	// directives, that a browser would not reveal more.
	Sufficient bool
}

// MaxRedirects caps the redirect chain of a fetch.
const MaxRedirects = 5

// Fetcher performs HTTP GETs.
type Fetcher struct {
	client   *http.Client
	ua       string
	validate func(string) error
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client. Its CheckRedirect is replaced.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithURLValidator checks every redirect target before it is followed.
// Default: horosafe.ValidateURL. nil allows private addresses.
func WithURLValidator(fn func(string) error) Option {
	return func(f *Fetcher) { f.validate = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with SSRF protection on redirects.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		ua:       "Mozilla/5.0 (compatible; mixptrack/1.0)",
		validate: horosafe.ValidateURL,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	c := *f.client
	c.CheckRedirect = f.checkRedirect
	f.client = &c
	return f
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return fmt.Errorf("fetcher: too many redirects (%d)", len(via))
	}
	if f.validate != nil {
		if err := f.validate(req.URL.String()); err != nil {
			return fmt.Errorf("fetcher: redirect to %s blocked: %w", req.URL.Redacted(), err)
		}
	}
	return nil
}

// Fetch GETs a URL. Non-2xx answers are errors.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetcher: %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, MaxBody)
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	res := &Result{
		URL:        resp.Request.URL.String(),
		HTML:       body,
		StatusCode: resp.StatusCode,
		Sufficient: IsSufficient(body),
	}
	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "sufficient", res.Sufficient)
	return res, nil
}
