package browser

import "errors"

// ErrWaitTimeout is returned when a bounded wait elapses before its
// condition is met.
var ErrWaitTimeout = errors.New("wait timed out")

// ErrPageClosed is returned by operations on a closed page.
var ErrPageClosed = errors.New("page is closed")
