package portal

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// State is the lifecycle position of the engine's single browser session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateAuthenticated
	StateNavigating
	StateSearching
	StateExtracting
	StateIdle
	StateFailed
	StateClosed
)

var stateNames = map[State]string{
	StateDisconnected:   "disconnected",
	StateConnecting:     "connecting",
	StateAuthenticating: "authenticating",
	StateAuthenticated:  "authenticated",
	StateNavigating:     "navigating",
	StateSearching:      "searching",
	StateExtracting:     "extracting",
	StateIdle:           "idle",
	StateFailed:         "failed",
	StateClosed:         "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// terminal reports whether no further work can happen in this state.
func (s State) terminal() bool { return s == StateClosed }

// authenticated reports whether the session holds a logged-in page.
func (s State) authenticated() bool {
	switch s {
	case StateAuthenticated, StateNavigating, StateSearching, StateExtracting, StateIdle:
		return true
	}
	return false
}

// Session owns the single live browser page and enforces the engine's
// lifecycle. At most one page exists at a time; opening a new one closes
// the old one first, and Close never propagates release errors.
type Session struct {
	factory browser.Factory
	log     *zap.Logger

	mu    sync.Mutex
	state State
	page  browser.Page
}

// NewSession creates a disconnected session backed by the given page factory.
func NewSession(factory browser.Factory, logger *zap.Logger) *Session {
	return &Session{
		factory: factory,
		log:     logger.Named("session"),
		state:   StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Page returns the live page, or ErrSessionUnavailable when there is none.
func (s *Session) Page() (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil || s.state.terminal() || s.state == StateFailed {
		return nil, ErrSessionUnavailable
	}
	return s.page, nil
}

// Open creates the browser page, discarding any previous one first. On
// factory failure the session fails terminally.
func (s *Session) Open(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	old := s.page
	s.page = nil
	s.state = StateConnecting
	s.mu.Unlock()

	if old != nil {
		s.log.Debug("closing previous browser page before reopening")
		s.closePage(ctx, old)
	}

	page, err := s.factory.NewPage(ctx)
	if err != nil {
		s.Fail(ctx)
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	s.log.Info("browser session opened")
	return page, nil
}

// To records a lifecycle transition. Transitions out of Closed are refused;
// everything else is permitted because the portal, not the engine, decides
// what happens next.
func (s *Session) To(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		s.log.Warn("ignoring transition on closed session", zap.Stringer("to", next))
		return
	}
	s.log.Debug("session transition", zap.Stringer("from", s.state), zap.Stringer("to", next))
	s.state = next
}

// Fail marks the session unusable after an unrecoverable error and releases
// the page. The session always ends Closed.
func (s *Session) Fail(ctx context.Context) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()
	s.log.Warn("session entered failed state")
	s.Close(ctx)
}

// Close is idempotent and valid from every state. It always releases the
// underlying page, swallowing (but logging) release errors so teardown
// never propagates past this boundary.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	page := s.page
	s.page = nil
	alreadyClosed := s.state.terminal()
	s.state = StateClosed
	s.mu.Unlock()

	if page != nil {
		s.closePage(ctx, page)
	}
	if !alreadyClosed {
		s.log.Info("browser session closed")
	}
}

func (s *Session) closePage(ctx context.Context, page browser.Page) {
	if err := page.Close(ctx); err != nil {
		s.log.Warn("error releasing browser page", zap.Error(err))
	}
}
