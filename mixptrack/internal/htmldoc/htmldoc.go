// Package htmldoc implements dom.Document over a parsed HTML tree. It backs
// static pages (fetched once over HTTP) and tests, where elements can be
// inserted between scan passes.
package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
)

// Document is a mutable HTML tree with per-element auxiliary data.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	state    map[*html.Node]*nodeState
	nextKey  uint64
	referrer string
}

type nodeState struct {
	key  string
	data map[string]string
}

// Option configures a Document.
type Option func(*Document)

// WithReferrer records the URL the document was reached from.
func WithReferrer(ref string) Option {
	return func(d *Document) { d.referrer = ref }
}

// Parse builds a Document from raw HTML.
func Parse(raw []byte, opts ...Option) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	d := &Document{
		root:  root,
		state: make(map[*html.Node]*nodeState),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Referrer implements dom.Referrer.
func (d *Document) Referrer() string { return d.referrer }

// QueryAll implements dom.Document.
func (d *Document) QueryAll(_ context.Context, attr string) ([]dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []dom.Element
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := getAttr(n, attr); ok {
				out = append(out, &element{doc: d, node: n})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out, nil
}

// AppendHTML parses fragment and appends the resulting nodes to <body>.
func (d *Document) AppendHTML(fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := findBody(d.root)
	if body == nil {
		return fmt.Errorf("htmldoc: no body element")
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return fmt.Errorf("htmldoc: parse fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return nil
}

// Render serialises the current tree.
func (d *Document) Render() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return nil, fmt.Errorf("htmldoc: render: %w", err)
	}
	return buf.Bytes(), nil
}

// stateLocked returns the side-table entry for n, assigning a key on first use.
func (d *Document) stateLocked(n *html.Node) *nodeState {
	st, ok := d.state[n]
	if !ok {
		d.nextKey++
		st = &nodeState{key: "n" + strconv.FormatUint(d.nextKey, 10)}
		d.state[n] = st
	}
	return st
}

type element struct {
	doc  *Document
	node *html.Node
}

func (e *element) Key() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.stateLocked(e.node).key
}

func (e *element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return getAttr(e.node, name)
}

func (e *element) Data(key string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := e.doc.stateLocked(e.node).data[key]
	return v, ok
}

func (e *element) SetData(key, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	st := e.doc.stateLocked(e.node)
	if st.data == nil {
		st.data = make(map[string]string)
	}
	st.data[key] = value
	return nil
}

func (e *element) AddClass(class string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for i, a := range e.node.Attr {
		if a.Namespace != "" || a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return nil
			}
		}
		e.node.Attr[i].Val = strings.TrimSpace(a.Val + " " + class)
		return nil
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: "class", Val: class})
	return nil
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
