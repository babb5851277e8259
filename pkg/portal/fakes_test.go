package portal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// fakeElement is an in-memory browser.Element for engine tests. Child
// lookups are keyed by the query's selector text.
type fakeElement struct {
	tag     string
	text    string
	attrs   map[string]string
	hidden  bool
	disabl  bool
	parent  *fakeElement
	kids    map[string][]*fakeElement
	textErr error

	clicks  int
	typed   []string
	cleared int
	enters  int

	// onEnter runs after PressEnter, to let a test advance page state.
	onEnter func()
	// onClick runs after Click.
	onClick func()
}

func newFakeElement(tag, text string) *fakeElement {
	return &fakeElement{
		tag:   tag,
		text:  text,
		attrs: map[string]string{},
		kids:  map[string][]*fakeElement{},
	}
}

func (f *fakeElement) withAttr(name, value string) *fakeElement {
	f.attrs[name] = value
	return f
}

func (f *fakeElement) withChild(selector string, children ...*fakeElement) *fakeElement {
	f.kids[selector] = append(f.kids[selector], children...)
	return f
}

func (f *fakeElement) Text(ctx context.Context) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.text, nil
}

func (f *fakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := f.attrs[name]
	return v, ok, nil
}

func (f *fakeElement) TagName() string { return f.tag }

func (f *fakeElement) Visible(ctx context.Context) (bool, error) { return !f.hidden, nil }

func (f *fakeElement) Enabled(ctx context.Context) (bool, error) { return !f.disabl, nil }

func (f *fakeElement) Clear(ctx context.Context) error {
	f.cleared++
	return nil
}

func (f *fakeElement) Type(ctx context.Context, text string) error {
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeElement) PressEnter(ctx context.Context) error {
	f.enters++
	if f.onEnter != nil {
		f.onEnter()
	}
	return nil
}

func (f *fakeElement) Click(ctx context.Context) error {
	f.clicks++
	if f.onClick != nil {
		f.onClick()
	}
	return nil
}

func (f *fakeElement) Parent(ctx context.Context) (browser.Element, bool, error) {
	if f.parent == nil {
		return nil, false, nil
	}
	return f.parent, true, nil
}

func (f *fakeElement) FindAll(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	return asElements(f.kids[q.String()]), nil
}

// fakePage is an in-memory browser.Page. Element lookups are keyed by the
// query's selector text; navigation follows the redirects table.
type fakePage struct {
	url      string
	pageText string

	elements  map[string][]*fakeElement
	redirects map[string]string
	navErr    error

	navigated []string
	sleeps    []time.Duration
	closes    int
	closeErr  error
}

func newFakePage() *fakePage {
	return &fakePage{
		elements:  map[string][]*fakeElement{},
		redirects: map[string]string{},
	}
}

func (p *fakePage) addElement(selector string, elements ...*fakeElement) *fakePage {
	p.elements[selector] = append(p.elements[selector], elements...)
	return p
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	if p.navErr != nil {
		return p.navErr
	}
	if target, ok := p.redirects[url]; ok {
		p.url = target
	} else {
		p.url = url
	}
	return nil
}

func (p *fakePage) Location(ctx context.Context) (string, error) { return p.url, nil }

func (p *fakePage) PageText(ctx context.Context) (string, error) { return p.pageText, nil }

func (p *fakePage) WaitLocationContains(ctx context.Context, fragment string, timeout time.Duration) error {
	if strings.Contains(p.url, fragment) {
		return nil
	}
	return browser.ErrWaitTimeout
}

func (p *fakePage) Find(ctx context.Context, q browser.Query, timeout time.Duration) (browser.Element, bool, error) {
	for _, el := range p.elements[q.String()] {
		if !el.hidden && !el.disabl {
			return el, true, nil
		}
	}
	return nil, false, nil
}

func (p *fakePage) FindAll(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	return asElements(p.elements[q.String()]), nil
}

func (p *fakePage) Sleep(ctx context.Context, d time.Duration) error {
	p.sleeps = append(p.sleeps, d)
	return nil
}

func (p *fakePage) Close(ctx context.Context) error {
	p.closes++
	return p.closeErr
}

func asElements(fakes []*fakeElement) []browser.Element {
	out := make([]browser.Element, 0, len(fakes))
	for _, f := range fakes {
		out = append(out, f)
	}
	return out
}

// fakeFactory hands out a fixed page, or fails.
type fakeFactory struct {
	page  *fakePage
	err   error
	calls int
}

func (f *fakeFactory) NewPage(ctx context.Context) (browser.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		return nil, errors.New("no page configured")
	}
	return f.page, nil
}

// progressRecorder captures engine checkpoints for assertions.
type progressRecorder struct {
	steps    []string
	messages []string
	progress []int
}

func (r *progressRecorder) fn() ProgressFunc {
	return func(step, message string, progress int) {
		r.steps = append(r.steps, step)
		r.messages = append(r.messages, message)
		r.progress = append(r.progress, progress)
	}
}

func (r *progressRecorder) last() (string, int) {
	if len(r.steps) == 0 {
		return "", -1
	}
	return r.steps[len(r.steps)-1], r.progress[len(r.progress)-1]
}

// testConfig keeps all waits near zero so tests run fast.
func testConfig() Config {
	return Config{
		AuthURL:         "https://portal.example/authenticate",
		LoginHost:       "auth.idp.example",
		OverviewURL:     "https://portal.example/app/overview#/",
		TrackingURL:     "https://portal.example/tracking",
		ElementTimeout:  time.Millisecond,
		RedirectTimeout: time.Millisecond,
		SettleShort:     time.Millisecond,
		SettlePage:      time.Millisecond,
		SettleResults:   time.Millisecond,
		OverdueAfter:    7 * 24 * time.Hour,
		MaxParentHops:   5,
	}
}
