package attrs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/htmldoc"
)

var fixed = time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.UTC)

func element(t *testing.T, markup string) dom.Element {
	t.Helper()
	d, err := htmldoc.Parse([]byte("<html><body>" + markup + "</body></html>"))
	if err != nil {
		t.Fatal(err)
	}
	el, err := dom.First(context.Background(), d, "data-mixp-event")
	if err != nil || el == nil {
		t.Fatalf("no element in %q", markup)
	}
	return el
}

func TestTimestamp_Format(t *testing.T) {
	r := NewReader(NewSession(), WithClock(func() time.Time { return fixed }))
	got := r.Timestamp()
	if got[directive.TrackedTimeKey] != "2024-03-09T14:05:07" {
		t.Errorf("Tracked time: got %v, want 2024-03-09T14:05:07", got[directive.TrackedTimeKey])
	}
	if len(got) != 1 {
		t.Errorf("Timestamp: got %d keys, want 1", len(got))
	}
}

func TestTimestamp_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	got := FormatTime(time.Date(2024, 3, 9, 1, 0, 0, 0, loc))
	if got != "2024-03-08T23:00:00" {
		t.Errorf("FormatTime: got %q", got)
	}
}

func TestRead_CommonOverridesElement(t *testing.T) {
	s := NewSession()
	s.Identify("u1", directive.Payload{"b": float64(9), "c": float64(3)})
	r := NewReader(s, WithClock(func() time.Time { return fixed }))

	el := element(t, `<div data-mixp-event="E" data-mixp-attrs='{"a":1,"b":2}'></div>`)
	got := r.Read(el, directive.AttrPayload, true)

	if got["b"] != float64(9) {
		t.Errorf("b: got %v, want 9", got["b"])
	}
	if got["a"] != float64(1) {
		t.Errorf("a: got %v, want 1", got["a"])
	}
	if got["c"] != float64(3) {
		t.Errorf("c: got %v, want 3", got["c"])
	}
	if _, ok := got[directive.TrackedTimeKey]; !ok {
		t.Error("Tracked time missing")
	}
}

func TestRead_CommonOverridesTimestamp(t *testing.T) {
	s := NewSession()
	s.Identify("u1", directive.Payload{directive.TrackedTimeKey: "frozen"})
	r := NewReader(s, WithClock(func() time.Time { return fixed }))

	got := r.Read(element(t, `<div data-mixp-event="E"></div>`), directive.AttrPayload, true)
	if got[directive.TrackedTimeKey] != "frozen" {
		t.Errorf("Tracked time: got %v, want frozen", got[directive.TrackedTimeKey])
	}
}

func TestRead_ElementTimestampIsOverridden(t *testing.T) {
	r := NewReader(NewSession(), WithClock(func() time.Time { return fixed }))
	got := r.Read(element(t, `<div data-mixp-event="E" data-mixp-attrs='{"Tracked time":"x"}'></div>`),
		directive.AttrPayload, true)
	if got[directive.TrackedTimeKey] != "2024-03-09T14:05:07" {
		t.Errorf("Tracked time: got %v", got[directive.TrackedTimeKey])
	}
}

func TestRead_WithoutCommon(t *testing.T) {
	s := NewSession()
	s.Identify("u1", directive.Payload{"c": 3})
	r := NewReader(s)

	got := r.Read(element(t, `<div data-mixp-event="E" data-mixp-attrs='{"a":1}'></div>`), directive.AttrPayload, false)
	if _, ok := got["c"]; ok {
		t.Error("common attribute merged with includeCommon=false")
	}
}

func TestRead_MissingAttribute(t *testing.T) {
	r := NewReader(NewSession())
	got := r.Read(element(t, `<div data-mixp-event="E"></div>`), directive.AttrPayload, true)
	if len(got) != 1 {
		t.Errorf("got %v, want only Tracked time", got)
	}
}

func TestRead_MalformedJSON(t *testing.T) {
	r := NewReader(NewSession())
	got := r.Read(element(t, `<div data-mixp-event="E" data-mixp-attrs='{"a":'></div>`), directive.AttrPayload, true)
	if len(got) != 1 {
		t.Errorf("got %v, want only Tracked time", got)
	}
}

func TestRead_NonObjectJSON(t *testing.T) {
	r := NewReader(NewSession())
	got := r.Read(element(t, `<div data-mixp-event="E" data-mixp-attrs='[1,2]'></div>`), directive.AttrPayload, true)
	if len(got) != 1 {
		t.Errorf("got %v, want only Tracked time", got)
	}
}

func TestRead_Sanitized(t *testing.T) {
	r := NewReader(NewSession(), WithSanitizer(NewSanitizer()))
	el := element(t, `<div data-mixp-event="E" data-mixp-attrs='{"title":"<b>Tom &amp; Jerry</b>","nested":{"x":"<script>alert(1)</script>ok"},"n":2}'></div>`)
	got := r.Read(el, directive.AttrPayload, true)

	if got["title"] != "Tom & Jerry" {
		t.Errorf("title: got %q", got["title"])
	}
	nested, _ := got["nested"].(map[string]any)
	if nested["x"] != "ok" {
		t.Errorf("nested.x: got %q", nested["x"])
	}
	if got["n"] != float64(2) {
		t.Errorf("n: got %v", got["n"])
	}
}

func TestRead_SanitizedEntityMarkup(t *testing.T) {
	r := NewReader(NewSession(), WithSanitizer(NewSanitizer()))
	el := element(t, `<div data-mixp-event="E" data-mixp-attrs='{"v":"&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;","b":"&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt;","cmp":"a &amp;lt; b"}'></div>`)
	got := r.Read(el, directive.AttrPayload, true)

	v, _ := got["v"].(string)
	if strings.ContainsAny(v, "<>") {
		t.Errorf("v: markup survived: %q", v)
	}
	if got["b"] != "bold" {
		t.Errorf("b: got %q", got["b"])
	}
	if got["cmp"] != "a < b" {
		t.Errorf("cmp: got %q", got["cmp"])
	}
}

func TestReferrer(t *testing.T) {
	if len(Referrer("")) != 0 {
		t.Error("empty referrer should yield empty payload")
	}
	if Referrer("https://a")["referrer"] != "https://a" {
		t.Error("referrer not set")
	}
}
