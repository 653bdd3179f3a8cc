package tools

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// pageRenderer drives a headless Chrome for pages that only produce
// content after script execution. The browser starts lazily on first
// use and stays warm until Close.
type pageRenderer struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func newPageRenderer() *pageRenderer {
	return &pageRenderer{}
}

func (r *pageRenderer) init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCtx != nil {
		select {
		case <-r.browserCtx.Done():
			r.teardown()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.browserCtx, r.browserCancel = chromedp.NewContext(r.allocCtx)

	return chromedp.Run(r.browserCtx)
}

// Render navigates to the URL and returns the document's outer HTML
// after the page settles.
func (r *pageRenderer) Render(ctx context.Context, url string) (string, error) {
	if err := r.init(); err != nil {
		return "", err
	}

	actionCtx, cancel := context.WithTimeout(r.browserCtx, 45*time.Second)
	defer cancel()

	var html string
	err := chromedp.Run(actionCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

func (r *pageRenderer) teardown() {
	if r.browserCancel != nil {
		r.browserCancel()
		r.browserCancel = nil
	}
	if r.allocCancel != nil {
		r.allocCancel()
		r.allocCancel = nil
	}
	r.browserCtx = nil
	r.allocCtx = nil
}

func (r *pageRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardown()
}
