// Package binder turns tracking directives found in a document into sink
// calls. A Binder owns one page session: its ledger, its common attributes
// and its correlation-tag counter.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/attrs"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/ledger"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/sink"
)

// Config for creating a Binder.
type Config struct {
	PageID   string
	Document dom.Document
	Sink     sink.Sink
	// Optional. Fresh ones are created when nil.
	Session *attrs.Session
	Ledger  ledger.Tracker
	Reader  *attrs.Reader
	// Referrer adds {"referrer": ...} under every payload when the
	// document implements dom.Referrer.
	Referrer bool
	Logger   *slog.Logger
}

// Binder binds directives to sink calls. Passes and manual sends are
// serialised: the ledger and session are never read and written
// concurrently.
type Binder struct {
	mu       sync.Mutex
	pageID   string
	doc      dom.Document
	sink     sink.Sink
	session  *attrs.Session
	ledger   ledger.Tracker
	reader   *attrs.Reader
	referrer bool
	logger   *slog.Logger

	tags   uint64 // correlation tags handed out, links and forms together
	passes uint64
}

// New creates a Binder.
func New(cfg Config) *Binder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Session == nil {
		cfg.Session = attrs.NewSession()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.NewSet()
	}
	if cfg.Reader == nil {
		cfg.Reader = attrs.NewReader(cfg.Session, attrs.WithLogger(cfg.Logger))
	}
	return &Binder{
		pageID:   cfg.PageID,
		doc:      cfg.Document,
		sink:     cfg.Sink,
		session:  cfg.Session,
		ledger:   cfg.Ledger,
		reader:   cfg.Reader,
		referrer: cfg.Referrer,
		logger:   cfg.Logger.With("page", cfg.PageID),
	}
}

// Pass runs one scan pass: identity, event, links, forms, in that order,
// so that common attributes are set before anything else is dispatched.
// A failing step is logged and the pass continues. It returns the number
// of elements bound by this pass.
func (b *Binder) Pass(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx = directive.WithPageID(ctx, b.pageID)
	b.passes++

	steps := []struct {
		kind directive.Kind
		fn   func(context.Context) (int, error)
	}{
		{directive.KindIdentity, b.bindIdentity},
		{directive.KindEvent, b.bindEvent},
		{directive.KindLink, b.bindLinks},
		{directive.KindForm, b.bindForms},
	}

	total := 0
	for _, s := range steps {
		if ctx.Err() != nil {
			break
		}
		n, err := s.fn(ctx)
		total += n
		if err != nil {
			b.logger.Warn("binder: step failed", "kind", s.kind, "error", err)
		}
	}
	if total > 0 {
		b.logger.Debug("binder: pass bound elements", "pass", b.passes, "bound", total)
	}
	return total
}

// BindIdentity binds the first identity element, if any.
func (b *Binder) BindIdentity(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.bindIdentity(directive.WithPageID(ctx, b.pageID))
	return n > 0, err
}

// BindEvent binds the first event element, if any.
func (b *Binder) BindEvent(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.bindEvent(directive.WithPageID(ctx, b.pageID))
	return n > 0, err
}

// BindLinks binds every unbound link element.
func (b *Binder) BindLinks(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindLinks(directive.WithPageID(ctx, b.pageID))
}

// BindForms binds every unbound form element.
func (b *Binder) BindForms(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindForms(directive.WithPageID(ctx, b.pageID))
}

// Send fires a one-off event for an element carrying data-mixp-send. It
// bypasses the ledger: every call sends.
func (b *Binder) Send(ctx context.Context, el dom.Element) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.send(directive.WithPageID(ctx, b.pageID), el)
}

// SendNamed calls Send on every element whose data-mixp-send equals name.
func (b *Binder) SendNamed(ctx context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx = directive.WithPageID(ctx, b.pageID)
	els, err := b.doc.QueryAll(ctx, directive.AttrSend)
	if err != nil {
		return 0, fmt.Errorf("binder: query %s: %w", directive.AttrSend, err)
	}
	sent := 0
	var errs []error
	for _, el := range els {
		if v, _ := el.Attr(directive.AttrSend); v != name {
			continue
		}
		ok, err := b.send(ctx, el)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

// Stats is a point-in-time view of the session.
type Stats struct {
	PageID   string `json:"page_id"`
	Identity string `json:"identity,omitempty"`
	Bound    int    `json:"bound"`
	Passes   uint64 `json:"passes"`
	Tags     uint64 `json:"tags"`
}

// Stats returns the session counters.
func (b *Binder) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		PageID:   b.pageID,
		Identity: b.session.Identity(),
		Bound:    b.ledger.Len(),
		Passes:   b.passes,
		Tags:     b.tags,
	}
}

func (b *Binder) send(ctx context.Context, el dom.Element) (bool, error) {
	name, _ := el.Attr(directive.AttrSend)
	if name == "" {
		return false, nil
	}
	if err := b.sink.TrackEvent(ctx, name, b.payload(el, true)); err != nil {
		return false, fmt.Errorf("binder: send %q: %w", name, err)
	}
	return true, nil
}

// payload builds the payload for el, with the referrer as lowest layer.
func (b *Binder) payload(el dom.Element, includeCommon bool) directive.Payload {
	p := b.reader.Read(el, directive.AttrPayload, includeCommon)
	if !b.referrer {
		return p
	}
	ref, ok := b.doc.(dom.Referrer)
	if !ok {
		return p
	}
	out := attrs.Referrer(ref.Referrer())
	out.Merge(p)
	return out
}
