package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// Router fans calls out to every configured sink. A call succeeds when at
// least one sink accepted it: the binding ledger is written on success,
// and reporting a partial failure would make the next scan pass
// re-dispatch to the sinks that already accepted. Failures are logged.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Available is false as soon as one member sink reports unavailable.
func (r *Router) Available(ctx context.Context) bool {
	for _, s := range r.sinks {
		if !Available(ctx, s) {
			return false
		}
	}
	return true
}

func (r *Router) Identify(ctx context.Context, id string) error {
	return r.fanOut(directive.OpIdentify, func(s Sink) error { return s.Identify(ctx, id) })
}

func (r *Router) SetProfile(ctx context.Context, attrs directive.Payload) error {
	return r.fanOut(directive.OpSetProfile, func(s Sink) error { return s.SetProfile(ctx, attrs) })
}

func (r *Router) TrackEvent(ctx context.Context, name string, attrs directive.Payload) error {
	return r.fanOut(directive.OpTrackEvent, func(s Sink) error { return s.TrackEvent(ctx, name, attrs) })
}

func (r *Router) RegisterLinkTracking(ctx context.Context, selector, name string, attrs directive.Payload) error {
	return r.fanOut(directive.OpRegisterLink, func(s Sink) error {
		return s.RegisterLinkTracking(ctx, selector, name, attrs)
	})
}

func (r *Router) RegisterFormTracking(ctx context.Context, selector, name string, attrs directive.Payload) error {
	return r.fanOut(directive.OpRegisterForm, func(s Sink) error {
		return s.RegisterFormTracking(ctx, selector, name, attrs)
	})
}

func (r *Router) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) fanOut(op directive.Op, fn func(Sink) error) error {
	var errs []error
	for _, s := range r.sinks {
		if err := fn(s); err != nil {
			r.logger.Warn("sink: call failed", "op", op, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) == len(r.sinks) {
		return errors.Join(errs...)
	}
	return nil
}
