package ledger

import (
	"context"
	"testing"

	"github.com/hazyhaar/mixptrack/mixptrack/internal/htmldoc"
)

func TestSet_MarkAndQuery(t *testing.T) {
	d, err := htmldoc.Parse([]byte(`<html><body><a data-mixp-track-link="x"></a><a data-mixp-track-link="y"></a></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	els, _ := d.QueryAll(context.Background(), "data-mixp-track-link")

	s := NewSet()
	if s.IsBound(els[0]) {
		t.Fatal("fresh ledger reports element bound")
	}

	s.MarkBound(els[0])
	s.MarkBound(els[0])

	if !s.IsBound(els[0]) {
		t.Error("marked element not bound")
	}
	if s.IsBound(els[1]) {
		t.Error("unmarked sibling reported bound")
	}
	if s.Len() != 1 {
		t.Errorf("Len: got %d, want 1", s.Len())
	}

	// A fresh handle on the same node shares the key.
	again, _ := d.QueryAll(context.Background(), "data-mixp-track-link")
	if !s.IsBound(again[0]) {
		t.Error("re-queried element not recognised as bound")
	}
}
