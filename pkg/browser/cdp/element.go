package cdp

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

var _ browser.Element = (*element)(nil)

// element wraps a cdp.Node located on a page. Node handles go stale on
// navigation; callers re-query after any page transition.
type element struct {
	page *Page
	node *cdp.Node
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

// Text returns the rendered text content of the element.
func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.page.run(ctx, 0, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

// Attribute returns the current value of the named attribute.
func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var value string
	var ok bool
	if err := e.page.run(ctx, 0, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

// TagName returns the lowercase tag name from the node snapshot.
func (e *element) TagName() string {
	return strings.ToLower(e.node.NodeName)
}

// Visible checks computed style and the bounding box via the DOM, since the
// portal hides rows with display:none while keeping them in the tree.
func (e *element) Visible(ctx context.Context) (bool, error) {
	expr := fmt.Sprintf(`(function() {
		const el = document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) return false;
		const style = window.getComputedStyle(el);
		if (style.display === "none" || style.visibility === "hidden") return false;
		const box = el.getBoundingClientRect();
		return box.width > 0 && box.height > 0;
	})()`, e.node.FullXPath())

	var visible bool
	if err := e.page.run(ctx, 0, chromedp.Evaluate(expr, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

// Enabled reports whether the element carries no disabled attribute.
func (e *element) Enabled(ctx context.Context) (bool, error) {
	_, disabled, err := e.Attribute(ctx, "disabled")
	if err != nil {
		return false, err
	}
	return !disabled, nil
}

// Clear empties an input field.
func (e *element) Clear(ctx context.Context) error {
	return e.page.run(ctx, 0, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

// Type sends the given text to the element as keystrokes.
func (e *element) Type(ctx context.Context, text string) error {
	return e.page.run(ctx, 0, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

// PressEnter sends an Enter keystroke to the element.
func (e *element) PressEnter(ctx context.Context) error {
	return e.page.run(ctx, 0, chromedp.SendKeys(e.ids(), kb.Enter, chromedp.ByNodeID))
}

// Click scrolls the element into view and clicks it.
func (e *element) Click(ctx context.Context) error {
	return e.page.run(ctx, 0,
		chromedp.ScrollIntoView(e.ids(), chromedp.ByNodeID),
		chromedp.MouseClickNode(e.node),
	)
}

// Parent returns the element's direct parent, or ok=false at the root.
func (e *element) Parent(ctx context.Context) (browser.Element, bool, error) {
	parents, err := e.page.FindAll(ctx, browser.ByXPath(e.node.FullXPath()+"/.."))
	if err != nil {
		return nil, false, err
	}
	if len(parents) == 0 {
		return nil, false, nil
	}
	return parents[0], true, nil
}

// FindAll locates descendants of this element. Scoped lookups are expressed
// as XPath relative to the element ("./..." or ".//...").
func (e *element) FindAll(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	if q.XPath == "" {
		return nil, fmt.Errorf("scoped lookups require an xpath query, got %q", q.String())
	}
	return e.page.FindAll(ctx, browser.ByXPath(joinXPath(e.node.FullXPath(), q.XPath)))
}

// joinXPath anchors a relative XPath expression at an absolute one.
func joinXPath(base, rel string) string {
	rel = strings.TrimPrefix(rel, ".")
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return base + rel
}
