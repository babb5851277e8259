package portal

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. A rejected credential
// is not an error; Login reports it as false.
var (
	// ErrSessionUnavailable means the browser session could not be created
	// or was lost mid-operation. The caller must Quit and log in again.
	ErrSessionUnavailable = errors.New("browser session unavailable")

	// ErrControlNotFound means a required interactive element could not be
	// resolved by any cascade strategy. Fatal to the current operation only.
	ErrControlNotFound = errors.New("control not found")

	// ErrNavigationTimeout means a required page or element never appeared
	// within its bounded wait.
	ErrNavigationTimeout = errors.New("navigation timed out")

	// ErrNotAuthenticated means an operation that requires a logged-in
	// session was called without one.
	ErrNotAuthenticated = errors.New("session is not authenticated")
)

// StepError carries the name of the engine step that failed, for
// diagnostics across the operation boundary.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// stepErr wraps err with the failing step name.
func stepErr(step string, err error) error {
	return &StepError{Step: step, Err: err}
}
