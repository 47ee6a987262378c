package browser

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
)

// Document adapts a live rod page to dom.Document. Element keys are CDP
// backend node IDs, stable for the lifetime of the node. Element data
// lives in a JS property of the node, outside the markup.
type Document struct {
	page *rod.Page
}

// NewDocument wraps page.
func NewDocument(page *rod.Page) *Document {
	return &Document{page: page}
}

// QueryAll implements dom.Document. Attributes are read once per query
// through DOM.describeNode, along with the backend node ID.
func (d *Document) QueryAll(ctx context.Context, attr string) ([]dom.Element, error) {
	els, err := d.page.Context(ctx).Elements("[" + attr + "]")
	if err != nil {
		return nil, fmt.Errorf("browser: query [%s]: %w", attr, err)
	}

	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		node, err := el.Describe(0, false)
		if err != nil {
			// Detached between the query and the describe call.
			continue
		}
		attrs := make(map[string]string, len(node.Attributes)/2)
		for i := 0; i+1 < len(node.Attributes); i += 2 {
			attrs[node.Attributes[i]] = node.Attributes[i+1]
		}
		out = append(out, &element{
			el:    el,
			key:   strconv.Itoa(int(node.BackendNodeID)),
			attrs: attrs,
		})
	}
	return out, nil
}

// Referrer implements dom.Referrer.
func (d *Document) Referrer() string {
	res, err := d.page.Eval(`() => document.referrer`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

type element struct {
	el    *rod.Element
	key   string
	attrs map[string]string
}

func (e *element) Key() string { return e.key }

func (e *element) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *element) Data(key string) (string, bool) {
	res, err := e.el.Eval(`(k) => this.__mixp && k in this.__mixp ? String(this.__mixp[k]) : null`, key)
	if err != nil || res.Value.Nil() {
		return "", false
	}
	return res.Value.Str(), true
}

func (e *element) SetData(key, value string) error {
	_, err := e.el.Eval(`(k, v) => { this.__mixp = this.__mixp || {}; this.__mixp[k] = v; }`, key, value)
	if err != nil {
		return fmt.Errorf("browser: set data: %w", err)
	}
	return nil
}

func (e *element) AddClass(class string) error {
	res, err := e.el.Eval(`(c) => { this.classList.add(c); return this.className; }`, class)
	if err != nil {
		return fmt.Errorf("browser: add class: %w", err)
	}
	e.attrs["class"] = res.Value.Str()
	return nil
}
