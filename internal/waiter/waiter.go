// Package waiter loads pages and blocks on DOM conditions with bounded polling.
// Nothing in the harness sleeps for a fixed duration; every wait polls a
// condition until it holds or its timeout elapses.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

const (
	DefaultPollInterval    = 50 * time.Millisecond
	DefaultSettleSamples   = 3
	DefaultNavigateTimeout = 30 * time.Second
)

// Waiter polls page state at a fixed interval
type Waiter struct {
	poll          time.Duration
	settleSamples int
	logger        arbor.ILogger
}

// New creates a waiter. Non-positive arguments fall back to the defaults.
func New(poll time.Duration, settleSamples int, logger arbor.ILogger) *Waiter {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if settleSamples < 2 {
		settleSamples = DefaultSettleSamples
	}
	return &Waiter{poll: poll, settleSamples: settleSamples, logger: logger}
}

// PollInterval returns the interval between condition checks
func (w *Waiter) PollInterval() time.Duration {
	return w.poll
}

// Goto loads url in the page. Malformed URLs and load failures are *models.NavigationError.
func (w *Waiter) Goto(ctx context.Context, page interfaces.Page, rawURL string, timeout time.Duration) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &models.NavigationError{URL: rawURL, Err: err}
	}
	switch u.Scheme {
	case "http", "https", "file", "about":
	default:
		return &models.NavigationError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	if timeout <= 0 {
		timeout = DefaultNavigateTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	if err := page.Navigate(navCtx, rawURL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &models.NavigationError{URL: rawURL, Err: err}
	}

	w.logger.Debug().Str("url", rawURL).Dur("elapsed", time.Since(startTime)).Msg("Page loaded")
	return nil
}

// WaitFor calls cond until it reports true or timeout elapses. Each call gets
// a context bounded by the overall deadline, so a hung probe cannot stretch
// the wait. Probe errors count as "not yet"; the last one is attached to the
// resulting *models.TimeoutError.
func (w *Waiter) WaitFor(ctx context.Context, desc, condition string, timeout time.Duration, cond func(ctx context.Context) (bool, error)) error {
	startTime := time.Now()
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(deadlineCtx)
		if err == nil && ok {
			return nil
		}
		lastErr = err

		select {
		case <-deadlineCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(lastErr, context.DeadlineExceeded) {
				lastErr = nil
			}
			return &models.TimeoutError{Locator: desc, Condition: condition, Elapsed: time.Since(startTime), Err: lastErr}
		case <-ticker.C:
		}
	}
}

// Until polls the locator's state until pred holds. It returns the last
// observed state together with any *models.TimeoutError.
func (w *Waiter) Until(ctx context.Context, page interfaces.Page, loc locator.Locator, condition string, timeout time.Duration, pred func(models.ElementState) bool) (models.ElementState, error) {
	var last models.ElementState
	err := w.WaitFor(ctx, loc.String(), condition, timeout, func(ctx context.Context) (bool, error) {
		state, err := page.Query(ctx, loc)
		if err != nil {
			return false, err
		}
		last = state
		return pred(state), nil
	})
	return last, err
}

// WaitVisible blocks until the locator has a visible match
func (w *Waiter) WaitVisible(ctx context.Context, page interfaces.Page, loc locator.Locator, timeout time.Duration) error {
	startTime := time.Now()
	if _, err := w.Until(ctx, page, loc, "visible", timeout, IsVisible); err != nil {
		return err
	}
	w.logger.Debug().Str("locator", loc.String()).Dur("elapsed", time.Since(startTime)).Msg("Element visible")
	return nil
}

// WaitHidden blocks until no match of the locator is visible (including no match at all)
func (w *Waiter) WaitHidden(ctx context.Context, page interfaces.Page, loc locator.Locator, timeout time.Duration) error {
	_, err := w.Until(ctx, page, loc, "hidden", timeout, IsHidden)
	return err
}

// WaitStable evaluates probe until it returns the same value on
// settleSamples consecutive polls. Used to let animations finish.
func (w *Waiter) WaitStable(ctx context.Context, page interfaces.Page, desc, probe string, timeout time.Duration) error {
	var (
		last    string
		matches int
	)
	startTime := time.Now()
	err := w.WaitFor(ctx, desc, "stable", timeout, func(ctx context.Context) (bool, error) {
		var current string
		if err := page.Evaluate(ctx, probe, &current); err != nil {
			matches = 0
			return false, err
		}
		if matches > 0 && current == last {
			matches++
		} else {
			last = current
			matches = 1
		}
		return matches >= w.settleSamples, nil
	})
	if err == nil {
		w.logger.Trace().Str("probe", desc).Dur("elapsed", time.Since(startTime)).Msg("Page settled")
	}
	return err
}

// IsVisible reports a visible match
func IsVisible(s models.ElementState) bool { return s.Found() && s.Visible }

// IsHidden reports no visible match
func IsHidden(s models.ElementState) bool { return !s.Found() || !s.Visible }
