// Package cdp implements the browser.Page and browser.Element interfaces on
// top of chromedp. One Page is one tab context derived from the shared
// allocator.
package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// ensure Page implements the interface
var _ browser.Page = (*Page)(nil)

// pollInterval is how often bounded element and location waits re-check.
const pollInterval = 50 * time.Millisecond

// Page manages a single, isolated browser tab via CDP.
type Page struct {
	logger *zap.Logger

	tabCtx    context.Context
	tabCancel context.CancelFunc

	isClosed bool
	mu       sync.Mutex
}

// NewPage creates a tab context on the given allocator and verifies it is
// alive. The signature matches browser.Manager's page constructor hook.
func NewPage(allocCtx context.Context, logger *zap.Logger) (browser.Page, error) {
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	// The target only materializes on the first action.
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	return &Page{
		logger:    logger.Named("page"),
		tabCtx:    tabCtx,
		tabCancel: cancel,
	}, nil
}

// run executes chromedp actions against the tab, bounded by timeout when
// timeout > 0. The caller's context is only checked up front; CDP actions
// are not cancellable mid-flight.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed := p.isClosed
	p.mu.Unlock()
	if closed {
		return browser.ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx := p.tabCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(p.tabCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL and waits for the document body to be ready.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", zap.String("url", url))
	return p.run(ctx, 0,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Location returns the current URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, 0, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// PageText returns the rendered text of the document body.
func (p *Page) PageText(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, 0, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// WaitLocationContains polls the current URL until it contains fragment.
func (p *Page) WaitLocationContains(ctx context.Context, fragment string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		url, err := p.Location(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(url, fragment) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("url %q: %w", url, browser.ErrWaitTimeout)
		}
		if err := p.Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// queryNodes fetches the current matches for q without waiting.
func (p *Page) queryNodes(ctx context.Context, q browser.Query) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	var action chromedp.Action
	if q.CSS != "" {
		action = chromedp.Nodes(q.CSS, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))
	} else {
		action = chromedp.Nodes(q.XPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))
	}
	if err := p.run(ctx, 5*time.Second, action); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Find polls for the first visible, enabled match of q. A miss after the
// timeout is ok=false, not an error; the cascade treats it as "try the
// next strategy".
func (p *Page) Find(ctx context.Context, q browser.Query, timeout time.Duration) (browser.Element, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		nodes, err := p.queryNodes(ctx, q)
		if err != nil {
			return nil, false, err
		}
		for _, n := range nodes {
			el := &element{page: p, node: n}
			visible, err := el.Visible(ctx)
			if err != nil || !visible {
				continue
			}
			enabled, err := el.Enabled(ctx)
			if err != nil || !enabled {
				continue
			}
			return el, true, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		if err := p.Sleep(ctx, pollInterval); err != nil {
			return nil, false, err
		}
	}
}

// FindAll returns all current matches for q without waiting.
func (p *Page) FindAll(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	nodes, err := p.queryNodes(ctx, q)
	if err != nil {
		return nil, err
	}
	elements := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &element{page: p, node: n})
	}
	return elements, nil
}

// Sleep waits for the settle delay, respecting caller cancellation.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.tabCtx.Done():
		return p.tabCtx.Err()
	}
}

// Close releases the tab. It is safe to call more than once.
func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.isClosed {
		p.mu.Unlock()
		return nil
	}
	p.isClosed = true
	p.mu.Unlock()

	p.tabCancel()

	// Wait for the tab to confirm termination, bounded by the caller's
	// deadline and a hard timeout.
	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWait()

	select {
	case <-p.tabCtx.Done():
		p.logger.Debug("Browser tab closed gracefully.")
	case <-waitCtx.Done():
		p.logger.Warn("Deadline exceeded waiting for browser tab to close.", zap.Error(waitCtx.Err()))
	}
	return nil
}
