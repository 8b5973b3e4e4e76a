package render

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gocolly/colly"
)

// StaticRenderer fetches raw HTML without executing JavaScript. Documents
// it produces have no script-evaluation support, so computed-style
// strategies fall through to their static fallbacks.
type StaticRenderer struct {
	transport *http.Transport
	timeout   time.Duration
	userAgent string
}

func NewStaticRenderer(transport *http.Transport, timeout time.Duration, userAgent string) *StaticRenderer {
	return &StaticRenderer{
		transport: transport,
		timeout:   timeout,
		userAgent: userAgent,
	}
}

func (r *StaticRenderer) Navigate(_ context.Context, url string) (Document, error) {
	c := colly.NewCollector()
	c.WithTransport(r.transport)
	c.SetRequestTimeout(r.timeout)
	c.UserAgent = r.userAgent

	var body string
	finalURL := url
	c.OnResponse(func(resp *colly.Response) {
		body = string(resp.Body)
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
	})

	if err := c.Visit(url); err != nil {
		return nil, &RenderError{URL: url, Err: err}
	}
	if body == "" {
		return nil, &RenderError{URL: url, Err: errors.New("empty response body")}
	}

	doc, err := ParseDocument(finalURL, body)
	if err != nil {
		return nil, &RenderError{URL: url, Err: err}
	}
	return doc, nil
}

func (r *StaticRenderer) Close() {}
