// Package sink defines the analytics backends tracking calls are dispatched
// to: the in-page Mixpanel library, Mixpanel's HTTP ingestion API, webhooks,
// stdout, and in-process callbacks.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// ErrUnavailable is returned by sinks whose backend is missing.
var ErrUnavailable = errors.New("sink: analytics backend unavailable")

// Sink is the analytics capability the binders dispatch to. Link and form
// registrations install a persistent rule: the backend fires the event
// itself when the element matched by selector is clicked or submitted.
type Sink interface {
	Identify(ctx context.Context, id string) error
	SetProfile(ctx context.Context, attrs directive.Payload) error
	TrackEvent(ctx context.Context, name string, attrs directive.Payload) error
	RegisterLinkTracking(ctx context.Context, selector, name string, attrs directive.Payload) error
	RegisterFormTracking(ctx context.Context, selector, name string, attrs directive.Payload) error
	Close() error
}

// Prober is implemented by sinks that can be absent at runtime. A page
// session whose sink is unavailable is never started.
type Prober interface {
	Available(ctx context.Context) bool
}

// Available reports whether s can accept calls. Sinks that do not
// implement Prober are always available.
func Available(ctx context.Context, s Sink) bool {
	if p, ok := s.(Prober); ok {
		return p.Available(ctx)
	}
	return true
}

func newCall(ctx context.Context, op directive.Op) directive.Call {
	return directive.Call{
		Op:        op,
		PageID:    directive.PageID(ctx),
		Timestamp: time.Now().UnixMilli(),
	}
}
