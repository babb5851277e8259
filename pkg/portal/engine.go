package portal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// Engine is the only entry point callers use. It sequences authentication,
// navigation and extraction over the one owned session, and guarantees
// teardown on every failing exit path.
//
// An Engine is not safe for concurrent use: the browser session is a
// single-threaded external resource. Callers needing parallel portal access
// use separate Engine instances.
type Engine struct {
	cfg      Config
	log      *zap.Logger
	session  *Session
	progress ProgressFunc

	// now is swapped in tests to pin the overdue rule.
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress installs the checkpoint sink. Without it checkpoints are
// dropped.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// NewEngine creates an engine against the given page factory.
func NewEngine(factory browser.Factory, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg.withDefaults(),
		log:     logger.Named("portal"),
		session: NewSession(factory, logger),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State exposes the session lifecycle state, mainly for callers that want
// to decide between retry and re-login.
func (e *Engine) State() State {
	return e.session.State()
}

// Quit releases the browser session. It is safe to call any number of
// times, in any state, and never fails; callers invoke it in a deferred
// cleanup block around every top-level operation.
func (e *Engine) Quit(ctx context.Context) {
	e.session.Close(ctx)
}

// report delivers a progress checkpoint to the configured sink.
func (e *Engine) report(step, message string, progress int) {
	if e.progress != nil {
		e.progress(step, message, progress)
	}
}

// fail reports the terminal error checkpoint and tears the session down.
// Every operation funnels its failure exit through here.
func (e *Engine) fail(ctx context.Context, message string) {
	e.report(StepFailed, message, 0)
	e.session.Close(ctx)
}
