package sink

import (
	"context"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// CallFunc receives one sink call.
type CallFunc func(ctx context.Context, call directive.Call) error

// Callback flattens the Sink operations into directive.Call values
// delivered to a Go function, with no serialisation. The journal and
// embedding applications sit behind it.
type Callback struct {
	fn CallFunc
}

// NewCallback creates a Callback sink. A nil fn discards every call.
func NewCallback(fn CallFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Identify(ctx context.Context, id string) error {
	call := newCall(ctx, directive.OpIdentify)
	call.ID = id
	return c.deliver(ctx, call)
}

func (c *Callback) SetProfile(ctx context.Context, attrs directive.Payload) error {
	call := newCall(ctx, directive.OpSetProfile)
	call.Attrs = attrs
	return c.deliver(ctx, call)
}

func (c *Callback) TrackEvent(ctx context.Context, name string, attrs directive.Payload) error {
	call := newCall(ctx, directive.OpTrackEvent)
	call.Name = name
	call.Attrs = attrs
	return c.deliver(ctx, call)
}

func (c *Callback) RegisterLinkTracking(ctx context.Context, selector, name string, attrs directive.Payload) error {
	call := newCall(ctx, directive.OpRegisterLink)
	call.Selector = selector
	call.Name = name
	call.Attrs = attrs
	return c.deliver(ctx, call)
}

func (c *Callback) RegisterFormTracking(ctx context.Context, selector, name string, attrs directive.Payload) error {
	call := newCall(ctx, directive.OpRegisterForm)
	call.Selector = selector
	call.Name = name
	call.Attrs = attrs
	return c.deliver(ctx, call)
}

func (c *Callback) Close() error { return nil }

func (c *Callback) deliver(ctx context.Context, call directive.Call) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, call)
}
