// Package dom is the document capability the binders work against. Two
// implementations exist: htmldoc (parsed HTML, static pages and tests) and
// browser.Document (a live Chrome tab).
package dom

import "context"

// Document selects elements by attribute presence.
type Document interface {
	// QueryAll returns every element carrying attr, in document order.
	QueryAll(ctx context.Context, attr string) ([]Element, error)
}

// Element is a handle on one element of a Document.
type Element interface {
	// Key is stable for the lifetime of the element in its document and
	// unique within it.
	Key() string
	// Attr returns the value of a DOM attribute.
	Attr(name string) (string, bool)
	// Data and SetData read and write auxiliary per-element values that
	// are not reflected in the markup.
	Data(key string) (string, bool)
	SetData(key, value string) error
	AddClass(class string) error
}

// Referrer is implemented by documents that know the URL they were
// navigated from.
type Referrer interface {
	Referrer() string
}

// First returns the first element carrying attr, or nil.
func First(ctx context.Context, doc Document, attr string) (Element, error) {
	els, err := doc.QueryAll(ctx, attr)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}
