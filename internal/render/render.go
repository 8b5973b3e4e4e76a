// Package render abstracts the page renderer behind a queryable document
// handle. Two implementations exist: a headless-browser renderer (chromedp)
// that executes JavaScript before the snapshot is taken, and a static
// renderer (colly) that fetches raw HTML only.
package render

import (
	"context"
	"errors"
	"fmt"
)

// ErrEvalUnsupported is returned by Evaluate on renderers without script support.
var ErrEvalUnsupported = errors.New("script evaluation is not supported by this renderer")

type Element interface {
	Text() string
	Attr(name string) (string, bool)
}

// Document is a rendered-page handle. It is owned by one crawl-loop
// iteration at a time and becomes invalid after the next Navigate call on
// the renderer that produced it.
type Document interface {
	// URL is the final document URL after redirects.
	URL() string
	Title() string
	// Query returns all elements matching the CSS selector in document
	// order. Invalid selectors and evaluation failures yield an empty
	// result, never an error.
	Query(selector string) []Element
	// Evaluate runs a script in the page and unmarshals the result into out.
	Evaluate(expr string, out any) error
	// ResolveURL resolves href against the document URL.
	ResolveURL(href string) (string, error)
}

type Renderer interface {
	Navigate(ctx context.Context, url string) (Document, error)
	Close()
}

// RenderError wraps any load/render failure. The scheduler skips the URL
// and continues the crawl.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
