package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/mixptrack/horosafe"
)

const article = `<!DOCTYPE html>
<html>
<head><title>Test Page</title><style>body { color: red; }</style></head>
<body>
<main>
<article>
<h1>Article Title</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur.</p>
</article>
</main>
</body>
</html>`

func TestIsSufficient_StaticPage(t *testing.T) {
	if !IsSufficient([]byte(article)) {
		t.Error("expected sufficient for static page with content")
	}
}

func TestIsSufficient_SPAShell(t *testing.T) {
	html := `<!DOCTYPE html><html><head><title>App</title></head>
<body><div id="root"></div><script src="/static/js/main.chunk.js"></script></body></html>`
	if IsSufficient([]byte(html)) {
		t.Error("expected insufficient for SPA shell")
	}
}

func TestIsSufficient_ShortPageWithDirectives(t *testing.T) {
	html := `<html><body><div data-mixp-event="Page.home"></div></body></html>`
	if !IsSufficient([]byte(html)) {
		t.Error("expected sufficient for markup carrying directives")
	}
}

func TestIsSufficient_TooShort(t *testing.T) {
	if IsSufficient([]byte(`<html><body>hi</body></html>`)) {
		t.Error("expected insufficient for very short content")
	}
}

func TestTextMarkupRatio_ScriptIsMarkup(t *testing.T) {
	text, _ := textMarkupRatio([]byte(`<div>ab</div><script>var longidentifier = 1;</script>`))
	if text != 2 {
		t.Errorf("text: got %d, want 2", text)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "mixptrack") {
			t.Errorf("user agent: %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(article))
	}))
	defer srv.Close()

	f := New()
	res, err := f.Fetch(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != 200 || !res.Sufficient || res.URL != srv.URL+"/page" {
		t.Errorf("result: status=%d sufficient=%v url=%s", res.StatusCode, res.Sufficient, res.URL)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("404: want error")
	}
}

func redirectPair(t *testing.T) (front, target *httptest.Server) {
	t.Helper()
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>internal metadata</body></html>`))
	}))
	t.Cleanup(target.Close)
	front = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/latest/meta-data", http.StatusFound)
	}))
	t.Cleanup(front.Close)
	return front, target
}

func TestFetch_RedirectToPrivateBlocked(t *testing.T) {
	front, _ := redirectPair(t)
	f := New(WithClient(&http.Client{Timeout: 5 * time.Second}))

	res, err := f.Fetch(context.Background(), front.URL)
	if err == nil {
		t.Fatalf("redirect to loopback followed, got %q", res.HTML)
	}
	if !errors.Is(err, horosafe.ErrSSRF) {
		t.Errorf("err = %v, want ErrSSRF", err)
	}
}

func TestFetch_RedirectAllowedWithoutValidator(t *testing.T) {
	front, target := redirectPair(t)
	f := New(WithURLValidator(nil))

	res, err := f.Fetch(context.Background(), front.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.URL, target.URL) {
		t.Errorf("final URL %q, want %s prefix", res.URL, target.URL)
	}
}

func TestFetch_TooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	if _, err := New(WithURLValidator(nil)).Fetch(context.Background(), srv.URL+"/"); err == nil {
		t.Fatal("expected redirect loop error")
	}
}

func TestNew_CustomClientNotMutated(t *testing.T) {
	c := &http.Client{}
	New(WithClient(c))
	if c.CheckRedirect != nil {
		t.Error("caller's client was modified")
	}
}
