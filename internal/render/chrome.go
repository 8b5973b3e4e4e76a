package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeRenderer drives one headless-browser tab per crawl job. Pages are
// navigated sequentially; a Navigate call invalidates the previous document
// handle.
type ChromeRenderer struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	timeout    time.Duration
	waitEvent  string
	userAgent  string
}

func NewChromeRenderer(timeout time.Duration, waitEvent, userAgent string) *ChromeRenderer {
	ctx, cancel := chromedp.NewContext(context.Background())
	return &ChromeRenderer{
		browserCtx: ctx,
		cancel:     cancel,
		timeout:    timeout,
		waitEvent:  waitEvent,
		userAgent:  userAgent,
	}
}

func (r *ChromeRenderer) Navigate(ctx context.Context, url string) (Document, error) {
	tCtx, cancelTCtx := context.WithTimeout(r.browserCtx, r.timeout)
	defer cancelTCtx()

	var html, location string
	err := chromedp.Run(tCtx,
		chromedp.Tasks{
			network.Enable(),
			network.SetExtraHTTPHeaders(map[string]interface{}{
				"User-Agent": r.userAgent,
			}),
			enableLifeCycleEvents(),
			navigateAndWaitFor(url, r.waitEvent),
		},
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			rootNode, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, &RenderError{URL: url, Err: err}
	}
	if location == "" {
		location = url
	}
	if location != url {
		slog.Info("redirected.", slog.String("url", location))
	}

	doc, err := ParseDocument(location, html)
	if err != nil {
		return nil, &RenderError{URL: url, Err: err}
	}
	doc.SetEvaluator(func(expr string, out any) error {
		eCtx, cancel := context.WithTimeout(r.browserCtx, r.timeout)
		defer cancel()
		return chromedp.Run(eCtx, chromedp.Evaluate(expr, out))
	})

	return doc, nil
}

func (r *ChromeRenderer) Close() {
	r.cancel()
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		return waitFor(ctx, eventName)
	}
}

func waitFor(ctx context.Context, eventName string) error {
	ch := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == eventName {
				cancel()
				close(ch)
			}
		}
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
