package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched (errors.Is) by every bounded-wait failure,
// readiness waits and assertions alike.
var ErrTimeout = errors.New("timed out")

// LaunchError reports that the browser engine could not be started
type LaunchError struct {
	Engine string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s browser: %v", e.Engine, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError reports a failed page load (network, DNS, protocol or bad URL)
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// TimeoutError reports a readiness wait that did not complete in time
type TimeoutError struct {
	Locator   string
	Condition string
	Elapsed   time.Duration
	Err       error // last probe failure, if the final poll errored
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s to be %s", e.Elapsed.Round(time.Millisecond), e.Locator, e.Condition)
	if e.Err != nil {
		msg += " (last error: " + e.Err.Error() + ")"
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// AssertionTimeoutError reports an expectation that never held within its timeout.
// Last carries the final element state observed before giving up.
type AssertionTimeoutError struct {
	Locator  string
	Expected string
	Elapsed  time.Duration
	Last     ElementState
}

func (e *AssertionTimeoutError) Error() string {
	return fmt.Sprintf("expected %s to be %s within %s; last observed: %s",
		e.Locator, e.Expected, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *AssertionTimeoutError) Is(target error) bool { return target == ErrTimeout }

// ElementNotFoundError reports that a locator matched nothing when an action needed it
type ElementNotFoundError struct {
	Locator string
	Action  string
	Elapsed time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("%s: no element matches %s after %s", e.Action, e.Locator, e.Elapsed.Round(time.Millisecond))
}

// ElementNotInteractableError reports an element that exists but cannot receive the action
type ElementNotInteractableError struct {
	Locator string
	Action  string
	Reason  string
	Err     error
}

func (e *ElementNotInteractableError) Error() string {
	msg := fmt.Sprintf("%s: element %s is not interactable (%s)", e.Action, e.Locator, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ElementNotInteractableError) Unwrap() error { return e.Err }

// IOError reports an artifact that could not be written
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TeardownError reports a failed browser shutdown. It is logged, never returned as a run failure.
type TeardownError struct {
	SessionID string
	Err       error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("failed to release session %s: %v", e.SessionID, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// ErrorKind names the taxonomy entry of err, or "error" for anything unclassified
func ErrorKind(err error) string {
	var (
		launch      *LaunchError
		navigation  *NavigationError
		timeout     *TimeoutError
		assertion   *AssertionTimeoutError
		notFound    *ElementNotFoundError
		notInteract *ElementNotInteractableError
		ioErr       *IOError
		teardown    *TeardownError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &assertion):
		return "AssertionTimeoutError"
	case errors.As(err, &timeout):
		return "TimeoutError"
	case errors.As(err, &notFound):
		return "ElementNotFoundError"
	case errors.As(err, &notInteract):
		return "ElementNotInteractableError"
	case errors.As(err, &navigation):
		return "NavigationError"
	case errors.As(err, &launch):
		return "LaunchError"
	case errors.As(err, &ioErr):
		return "IOError"
	case errors.As(err, &teardown):
		return "TeardownError"
	}
	return "error"
}
