// Package actions drives the map editor's UI. Primitives locate their target
// lazily and wait until it can take the interaction; composites chain
// primitives into editor workflows and are not atomic.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/waiter"
)

// Options bounds how long actions wait
type Options struct {
	// Timeout bounds locating a target and waiting for it to become interactable
	Timeout time.Duration
	// SettleTimeout bounds animation settling after a map rotation
	SettleTimeout time.Duration
}

// Actions performs UI interactions on a page
type Actions struct {
	waiter *waiter.Waiter
	opts   Options
	logger arbor.ILogger
}

// New creates an action library
func New(w *waiter.Waiter, opts Options, logger arbor.ILogger) *Actions {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 2 * time.Second
	}
	return &Actions{waiter: w, opts: opts, logger: logger}
}

// Timeout returns the locate/interact bound
func (a *Actions) Timeout() time.Duration {
	return a.opts.Timeout
}

// readiness returns why an element cannot take an action yet, or "" when it can
type readiness func(models.ElementState) string

func clickReady(s models.ElementState) string {
	switch {
	case !s.Found():
		return "not found"
	case !s.Visible:
		return "not visible"
	case !s.Enabled:
		return "disabled"
	case s.Covered:
		return "covered by another element"
	}
	return ""
}

func fillReady(s models.ElementState) string {
	switch {
	case !s.Found():
		return "not found"
	case !s.Visible:
		return "not visible"
	case !s.Editable:
		return "not editable"
	}
	return ""
}

func selectReady(s models.ElementState) string {
	switch {
	case !s.Found():
		return "not found"
	case !s.Visible:
		return "not visible"
	case !s.Enabled:
		return "disabled"
	}
	return ""
}

func visibleReady(s models.ElementState) string {
	switch {
	case !s.Found():
		return "not found"
	case !s.Visible:
		return "not visible"
	}
	return ""
}

// perform waits until loc is ready for action and then runs do once.
// Element errors from do (the page changed between query and interaction)
// are retried within the timeout; any other error aborts immediately.
func (a *Actions) perform(ctx context.Context, page interfaces.Page, loc locator.Locator, action string, ready readiness, do func(ctx context.Context, state models.ElementState) error) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	startTime := time.Now()
	var (
		last   models.ElementState
		reason string
		actErr error
		fatal  error
	)
	err := a.waiter.WaitFor(ctx, loc.String(), "ready to "+action, a.opts.Timeout, func(ctx context.Context) (bool, error) {
		state, err := page.Query(ctx, loc)
		if err != nil {
			return false, err
		}
		last = state
		if reason = ready(state); reason != "" {
			return false, nil
		}
		if err := do(ctx, state); err != nil {
			if isElementError(err) {
				actErr = err
				return false, nil
			}
			fatal = err
			return true, nil
		}
		return true, nil
	})
	if fatal != nil {
		return fatal
	}
	if err == nil {
		a.logger.Debug().
			Str("action", action).
			Str("locator", loc.String()).
			Dur("elapsed", time.Since(startTime)).
			Msg("Action performed")
		return nil
	}

	var timeoutErr *models.TimeoutError
	if !errors.As(err, &timeoutErr) {
		return err
	}
	switch {
	case !last.Found() && timeoutErr.Err != nil:
		// the page never answered a query
		return timeoutErr
	case !last.Found():
		return &models.ElementNotFoundError{Locator: loc.String(), Action: action, Elapsed: timeoutErr.Elapsed}
	case reason == "" && actErr != nil:
		return actErr
	}
	return &models.ElementNotInteractableError{
		Locator: loc.String(),
		Action:  action,
		Reason:  fmt.Sprintf("%s after %s", reason, timeoutErr.Elapsed.Round(time.Millisecond)),
	}
}

func isElementError(err error) bool {
	var (
		notFound    *models.ElementNotFoundError
		notInteract *models.ElementNotInteractableError
	)
	return errors.As(err, &notFound) || errors.As(err, &notInteract)
}

// Click clicks the centre of the first visible match once it is visible, enabled and uncovered
func (a *Actions) Click(ctx context.Context, page interfaces.Page, loc locator.Locator) error {
	return a.perform(ctx, page, loc, "click", clickReady, func(ctx context.Context, _ models.ElementState) error {
		return page.Click(ctx, loc)
	})
}

// ClickAt clicks at offset from the element's top-left corner
func (a *Actions) ClickAt(ctx context.Context, page interfaces.Page, loc locator.Locator, offset models.Point) error {
	action := fmt.Sprintf("click at (%.0f,%.0f)", offset.X, offset.Y)
	return a.perform(ctx, page, loc, action, visibleReady, func(ctx context.Context, _ models.ElementState) error {
		return page.ClickAt(ctx, loc, offset)
	})
}

// Fill replaces the value of an input, textarea or rich-text editor
func (a *Actions) Fill(ctx context.Context, page interfaces.Page, loc locator.Locator, text string) error {
	return a.perform(ctx, page, loc, "fill", fillReady, func(ctx context.Context, _ models.ElementState) error {
		return page.Fill(ctx, loc, text)
	})
}

// SelectOption picks an option of a select element by value or label
func (a *Actions) SelectOption(ctx context.Context, page interfaces.Page, loc locator.Locator, value string) error {
	return a.perform(ctx, page, loc, "select option "+value, selectReady, func(ctx context.Context, _ models.ElementState) error {
		return page.SelectOption(ctx, loc, value)
	})
}

// Check ticks a checkbox. Already checked boxes are left alone.
func (a *Actions) Check(ctx context.Context, page interfaces.Page, loc locator.Locator) error {
	return a.setChecked(ctx, page, loc, true)
}

// Uncheck clears a checkbox. Already clear boxes are left alone.
func (a *Actions) Uncheck(ctx context.Context, page interfaces.Page, loc locator.Locator) error {
	return a.setChecked(ctx, page, loc, false)
}

func (a *Actions) setChecked(ctx context.Context, page interfaces.Page, loc locator.Locator, want bool) error {
	action := "check"
	if !want {
		action = "uncheck"
	}

	err := a.perform(ctx, page, loc, action, clickReady, func(ctx context.Context, state models.ElementState) error {
		if state.Checked == want {
			return nil
		}
		return page.Click(ctx, loc)
	})
	if err != nil {
		return err
	}

	last, err := a.waiter.Until(ctx, page, loc, action+"ed", a.opts.Timeout, func(s models.ElementState) bool {
		return s.Found() && s.Checked == want
	})
	if err != nil {
		var timeoutErr *models.TimeoutError
		if !errors.As(err, &timeoutErr) {
			return err
		}
		return &models.ElementNotInteractableError{
			Locator: loc.String(),
			Action:  action,
			Reason:  fmt.Sprintf("checked state stayed %t (%s)", last.Checked, last),
		}
	}
	return nil
}
