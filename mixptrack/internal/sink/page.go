package sink

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// Page dispatches to the Mixpanel JavaScript library loaded in a live tab.
// It is the only sink able to honour link and form registrations: the
// library attaches the click and submit handlers itself.
type Page struct {
	page *rod.Page
}

// NewPage creates a sink bound to a rod page.
func NewPage(page *rod.Page) *Page {
	return &Page{page: page}
}

// Available reports whether window.mixpanel is loaded and usable.
func (p *Page) Available(ctx context.Context) bool {
	res, err := p.page.Context(ctx).Eval(`() => typeof window.mixpanel !== "undefined" &&
		typeof window.mixpanel.track === "function"`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (p *Page) Identify(ctx context.Context, id string) error {
	return p.eval(ctx, directive.OpIdentify, `(id) => window.mixpanel.identify(id)`, id)
}

func (p *Page) SetProfile(ctx context.Context, attrs directive.Payload) error {
	return p.eval(ctx, directive.OpSetProfile, `(a) => window.mixpanel.people.set(a)`, attrs)
}

func (p *Page) TrackEvent(ctx context.Context, name string, attrs directive.Payload) error {
	return p.eval(ctx, directive.OpTrackEvent, `(n, a) => window.mixpanel.track(n, a)`, name, attrs)
}

func (p *Page) RegisterLinkTracking(ctx context.Context, selector, name string, attrs directive.Payload) error {
	return p.eval(ctx, directive.OpRegisterLink,
		`(s, n, a) => window.mixpanel.track_links(s, n, a)`, selector, name, attrs)
}

func (p *Page) RegisterFormTracking(ctx context.Context, selector, name string, attrs directive.Payload) error {
	return p.eval(ctx, directive.OpRegisterForm,
		`(s, n, a) => window.mixpanel.track_forms(s, n, a)`, selector, name, attrs)
}

// Close is a no-op: the tab belongs to the caller.
func (p *Page) Close() error { return nil }

func (p *Page) eval(ctx context.Context, op directive.Op, js string, args ...any) error {
	if _, err := p.page.Context(ctx).Eval(js, args...); err != nil {
		return fmt.Errorf("page sink: %s: %w", op, err)
	}
	return nil
}
