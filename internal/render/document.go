package render

import (
	netUrl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EvalFunc runs a script in the live page. nil means no script support.
type EvalFunc func(expr string, out any) error

// HTMLDocument serves selector queries from a parsed HTML snapshot. The
// headless renderer attaches an EvalFunc bound to the live page; the static
// renderer leaves it nil.
type HTMLDocument struct {
	doc     *goquery.Document
	pageURL string
	base    *netUrl.URL
	eval    EvalFunc
}

// ParseDocument builds a document handle from rendered HTML.
func ParseDocument(pageURL, html string) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := netUrl.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &HTMLDocument{doc: doc, pageURL: pageURL, base: base}, nil
}

func (d *HTMLDocument) URL() string { return d.pageURL }

func (d *HTMLDocument) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Query swallows selector compile panics from the underlying engine so a
// malformed selector behaves like a selector that matches nothing.
func (d *HTMLDocument) Query(selector string) (elements []Element) {
	defer func() {
		if r := recover(); r != nil {
			elements = nil
		}
	}()
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &htmlElement{sel: s})
	})
	return elements
}

func (d *HTMLDocument) Evaluate(expr string, out any) error {
	if d.eval == nil {
		return ErrEvalUnsupported
	}
	return d.eval(expr, out)
}

func (d *HTMLDocument) ResolveURL(href string) (string, error) {
	ref, err := netUrl.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return d.base.ResolveReference(ref).String(), nil
}

// SetEvaluator attaches live-page script evaluation to the snapshot handle.
func (d *HTMLDocument) SetEvaluator(fn EvalFunc) { d.eval = fn }

type htmlElement struct {
	sel *goquery.Selection
}

func (e *htmlElement) Text() string {
	return e.sel.Text()
}

func (e *htmlElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}
