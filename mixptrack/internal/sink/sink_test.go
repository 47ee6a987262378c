package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

type failing struct{ *Callback }

func newFailing() failing {
	return failing{NewCallback(func(context.Context, directive.Call) error {
		return errors.New("boom")
	})}
}

type absent struct{ *Callback }

func (absent) Available(context.Context) bool { return false }

func TestCallback_FlattensCalls(t *testing.T) {
	var got []directive.Call
	cb := NewCallback(func(_ context.Context, c directive.Call) error {
		got = append(got, c)
		return nil
	})
	ctx := directive.WithPageID(context.Background(), "page-1")

	cb.Identify(ctx, "u1")
	cb.RegisterLinkTracking(ctx, ".data-mixp-track-link-id-0", "Click", directive.Payload{"url": "/a"})

	if len(got) != 2 {
		t.Fatalf("calls: got %d, want 2", len(got))
	}
	if got[0].Op != directive.OpIdentify || got[0].ID != "u1" || got[0].PageID != "page-1" {
		t.Errorf("identify call: %+v", got[0])
	}
	if got[1].Selector != ".data-mixp-track-link-id-0" || got[1].Attrs["url"] != "/a" {
		t.Errorf("link call: %+v", got[1])
	}
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	s.TrackEvent(context.Background(), "Page.home", directive.Payload{"a": 1})
	s.Identify(context.Background(), "u1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}
	var env struct {
		Type string         `json:"type"`
		Data directive.Call `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "track_event" || env.Data.Name != "Page.home" {
		t.Errorf("envelope: %+v", env)
	}
}

func TestRouter_PartialFailureSucceeds(t *testing.T) {
	var n int
	ok := NewCallback(func(context.Context, directive.Call) error { n++; return nil })
	r := NewRouter(nil, newFailing(), ok)

	if err := r.TrackEvent(context.Background(), "E", nil); err != nil {
		t.Errorf("TrackEvent: got %v, want nil with one sink accepting", err)
	}
	if n != 1 {
		t.Errorf("healthy sink calls: got %d, want 1", n)
	}
}

func TestRouter_AllFail(t *testing.T) {
	r := NewRouter(nil, newFailing(), newFailing())
	if err := r.Identify(context.Background(), "u"); err == nil {
		t.Error("Identify: want error when every sink fails")
	}
}

func TestRouter_Available(t *testing.T) {
	ctx := context.Background()
	if !Available(ctx, NewRouter(nil, NewCallback(nil))) {
		t.Error("router of plain sinks should be available")
	}
	if Available(ctx, NewRouter(nil, NewCallback(nil), absent{NewCallback(nil)})) {
		t.Error("router with an absent member should be unavailable")
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	var attempts int
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := w.RegisterFormTracking(context.Background(), ".data-x", "Submit", directive.Payload{"url": "/pay"}); err != nil {
		t.Fatalf("RegisterFormTracking: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts: got %d, want 2", attempts)
	}
	if !strings.Contains(string(body), `"register_form"`) || !strings.Contains(string(body), `"/pay"`) {
		t.Errorf("body: %s", body)
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if err := w.Identify(context.Background(), "u"); err == nil {
		t.Error("want error after retries are exhausted")
	}
}

func TestMixpanel_TrackAndEngage(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string][]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []map[string]any
		json.NewDecoder(r.Body).Decode(&batch)
		mu.Lock()
		bodies[r.URL.Path] = batch
		mu.Unlock()
		w.Write([]byte("1"))
	}))
	defer srv.Close()

	m := NewMixpanel("tok", WithMixpanelEndpoint(srv.URL+"/"), WithMixpanelClient(srv.Client()))
	ctx := directive.WithPageID(context.Background(), "p1")

	if err := m.Identify(ctx, "u42"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetProfile(ctx, directive.Payload{"$email": "a@b.c"}); err != nil {
		t.Fatal(err)
	}
	if err := m.TrackEvent(ctx, "Page.home", directive.Payload{"plan": "pro"}); err != nil {
		t.Fatal(err)
	}

	engage := bodies["/engage"]
	if len(engage) != 1 || engage[0]["$distinct_id"] != "u42" || engage[0]["$token"] != "tok" {
		t.Errorf("engage: %v", engage)
	}
	track := bodies["/track"]
	if len(track) != 1 || track[0]["event"] != "Page.home" {
		t.Fatalf("track: %v", track)
	}
	props := track[0]["properties"].(map[string]any)
	if props["distinct_id"] != "u42" || props["plan"] != "pro" || props["token"] != "tok" {
		t.Errorf("properties: %v", props)
	}
	if props["$insert_id"] == "" {
		t.Error("$insert_id missing")
	}
}

func TestMixpanel_ProfileRequiresIdentity(t *testing.T) {
	m := NewMixpanel("tok", WithMixpanelEndpoint("http://127.0.0.1:1"), WithMixpanelRetries(0))
	if err := m.SetProfile(context.Background(), directive.Payload{}); err == nil {
		t.Error("SetProfile before Identify: want error")
	}
}

func TestMixpanel_AvailableNeedsToken(t *testing.T) {
	if NewMixpanel("").Available(context.Background()) {
		t.Error("sink without token reported available")
	}
}
