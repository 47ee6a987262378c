package binder

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
)

// bindIdentity identifies the visitor from the first identity element and
// records its profile as the session's common attributes. Only the first
// match is considered, even when several elements qualify.
func (b *Binder) bindIdentity(ctx context.Context) (int, error) {
	el, err := dom.First(ctx, b.doc, directive.AttrIdentity)
	if err != nil {
		return 0, fmt.Errorf("binder: query %s: %w", directive.AttrIdentity, err)
	}
	if el == nil || b.ledger.IsBound(el) {
		return 0, nil
	}
	id, _ := el.Attr(directive.AttrIdentity)
	if id == "" {
		return 0, nil
	}

	// Common attributes do not exist yet.
	profile := b.payload(el, false)

	if err := b.sink.Identify(ctx, id); err != nil {
		return 0, fmt.Errorf("binder: identify: %w", err)
	}
	if err := b.sink.SetProfile(ctx, profile); err != nil {
		return 0, fmt.Errorf("binder: set profile: %w", err)
	}

	b.session.Identify(id, profile)
	b.ledger.MarkBound(el)
	b.logger.Info("binder: visitor identified", "identity", id)
	return 1, nil
}

// bindEvent fires the first event element once. Like identity, later
// matches are ignored.
func (b *Binder) bindEvent(ctx context.Context) (int, error) {
	el, err := dom.First(ctx, b.doc, directive.AttrEvent)
	if err != nil {
		return 0, fmt.Errorf("binder: query %s: %w", directive.AttrEvent, err)
	}
	if el == nil || b.ledger.IsBound(el) {
		return 0, nil
	}
	name, _ := el.Attr(directive.AttrEvent)
	if name == "" {
		return 0, nil
	}

	if err := b.sink.TrackEvent(ctx, name, b.payload(el, true)); err != nil {
		return 0, fmt.Errorf("binder: track event %q: %w", name, err)
	}
	b.ledger.MarkBound(el)
	b.logger.Debug("binder: event tracked", "name", name)
	return 1, nil
}

func (b *Binder) bindLinks(ctx context.Context) (int, error) {
	return b.bindAll(ctx, directive.KindLink, "href", b.sink.RegisterLinkTracking)
}

func (b *Binder) bindForms(ctx context.Context) (int, error) {
	return b.bindAll(ctx, directive.KindForm, "action", b.sink.RegisterFormTracking)
}

type registerFunc func(ctx context.Context, selector, name string, attrs directive.Payload) error

// bindAll registers a persistent tracking rule for every unbound element of
// kind. Each element gets its own correlation tag so the sink's selector
// targets exactly that element. One failing element does not stop the
// others.
func (b *Binder) bindAll(ctx context.Context, kind directive.Kind, urlAttr string, register registerFunc) (int, error) {
	els, err := b.doc.QueryAll(ctx, kind.Attr())
	if err != nil {
		return 0, fmt.Errorf("binder: query %s: %w", kind.Attr(), err)
	}

	bound := 0
	var errs []error
	for _, el := range els {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if b.ledger.IsBound(el) {
			continue
		}
		name, _ := el.Attr(kind.Attr())
		if name == "" {
			continue
		}
		if err := b.bindOne(ctx, el, kind, name, urlAttr, register); err != nil {
			errs = append(errs, err)
			continue
		}
		bound++
	}
	return bound, errors.Join(errs...)
}

// bindOne tags el and registers its rule. An element whose registration
// failed keeps its tag, and the next pass retries under the same selector.
func (b *Binder) bindOne(ctx context.Context, el dom.Element, kind directive.Kind, name, urlAttr string, register registerFunc) error {
	tag, err := b.tagElement(el, kind, name)
	if err != nil {
		return err
	}
	class := "data-" + tag

	p := b.payload(el, true)
	if u, ok := el.Attr(urlAttr); ok {
		p[directive.URLKey] = u
	}

	if err := register(ctx, "."+class, name, p); err != nil {
		return fmt.Errorf("binder: register %s %q: %w", kind, name, err)
	}
	b.ledger.MarkBound(el)
	return nil
}

// tagKey holds the correlation tag already assigned to an element.
const tagKey = directive.Prefix + "-track-tag"

func (b *Binder) tagElement(el dom.Element, kind directive.Kind, name string) (string, error) {
	if tag, ok := el.Data(tagKey); ok && tag != "" {
		return tag, nil
	}
	tag := b.nextTag(kind)
	if err := el.SetData(tag, name); err != nil {
		return "", fmt.Errorf("binder: %s %q: set data: %w", kind, name, err)
	}
	if err := el.AddClass("data-" + tag); err != nil {
		return "", fmt.Errorf("binder: %s %q: add class: %w", kind, name, err)
	}
	if err := el.SetData(tagKey, tag); err != nil {
		return "", fmt.Errorf("binder: %s %q: set data: %w", kind, name, err)
	}
	return tag, nil
}

// nextTag returns "mixp-track-<kind>-id-<n>". The counter is shared by
// links and forms and never reused.
func (b *Binder) nextTag(kind directive.Kind) string {
	n := b.tags
	b.tags++
	return directive.Prefix + "-track-" + string(kind) + "-id-" + strconv.FormatUint(n, 10)
}
