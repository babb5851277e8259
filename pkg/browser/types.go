// Package browser owns the headless browser process and hands out page
// handles. The portal engine talks to pages exclusively through the
// interfaces defined here, which keeps the extraction logic testable
// without a real browser.
package browser

import (
	"context"
	"time"
)

// Query locates elements on a page. Exactly one of CSS or XPath is set.
type Query struct {
	CSS   string
	XPath string
}

// ByCSS builds a CSS selector query.
func ByCSS(sel string) Query { return Query{CSS: sel} }

// ByXPath builds an XPath query.
func ByXPath(expr string) Query { return Query{XPath: expr} }

// IsZero reports whether the query is empty.
func (q Query) IsZero() bool { return q.CSS == "" && q.XPath == "" }

// String returns the underlying selector text, for logging.
func (q Query) String() string {
	if q.CSS != "" {
		return q.CSS
	}
	return q.XPath
}

// Element is a handle to a located DOM element. Handles are snapshots; they
// go stale when the page navigates.
type Element interface {
	// Text returns the rendered text content of the element.
	Text(ctx context.Context) (string, error)
	// Attribute returns the value of the named attribute and whether it is set.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// TagName returns the lowercase tag name.
	TagName() string
	// Visible reports whether the element is rendered with a non-empty box.
	Visible(ctx context.Context) (bool, error)
	// Enabled reports whether the element carries no disabled attribute.
	Enabled(ctx context.Context) (bool, error)
	// Clear empties an input field.
	Clear(ctx context.Context) error
	// Type sends the given text to the element as keystrokes.
	Type(ctx context.Context, text string) error
	// PressEnter sends an Enter keystroke to the element.
	PressEnter(ctx context.Context) error
	// Click scrolls the element into view and clicks it.
	Click(ctx context.Context) error
	// Parent returns the element's direct parent, or ok=false at the root.
	Parent(ctx context.Context) (Element, bool, error)
	// FindAll locates descendant elements. Scoped lookups require XPath.
	FindAll(ctx context.Context, q Query) ([]Element, error)
}

// Page is a single browser tab. All operations are blocking with explicit
// bounded waits; there is no cooperative cancellation mid-wait.
type Page interface {
	// Navigate loads a URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// Location returns the current URL.
	Location(ctx context.Context) (string, error)
	// PageText returns the rendered text of the document body.
	PageText(ctx context.Context) (string, error)
	// WaitLocationContains polls until the URL contains fragment or the
	// timeout elapses.
	WaitLocationContains(ctx context.Context, fragment string, timeout time.Duration) error
	// Find returns the first visible, enabled match for q, polling up to
	// timeout. A miss is reported as ok=false, not an error.
	Find(ctx context.Context, q Query, timeout time.Duration) (Element, bool, error)
	// FindAll returns all current matches for q without waiting.
	FindAll(ctx context.Context, q Query) ([]Element, error)
	// Sleep waits for the given settle delay.
	Sleep(ctx context.Context, d time.Duration) error
	// Close releases the tab. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Factory creates page handles. Acquiring a page may fail when the driver
// or browser is unavailable, which is fatal to the engine.
type Factory interface {
	NewPage(ctx context.Context) (Page, error)
}
