// Package assertions checks observable page state with auto-retry.
// Each expectation polls until it holds or its timeout elapses, then fails
// with *models.AssertionTimeoutError carrying the last state it saw.
package assertions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/waiter"
)

// Assertions evaluates expectations against a page
type Assertions struct {
	waiter  *waiter.Waiter
	timeout time.Duration
	logger  arbor.ILogger
}

// New creates an assertion set. timeout is used when an expectation passes zero.
func New(w *waiter.Waiter, timeout time.Duration, logger arbor.ILogger) *Assertions {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Assertions{waiter: w, timeout: timeout, logger: logger}
}

// ExpectVisible passes once any match of loc is visible
func (a *Assertions) ExpectVisible(ctx context.Context, page interfaces.Page, loc locator.Locator, timeout time.Duration) error {
	return a.expect(ctx, page, loc, "visible", timeout, waiter.IsVisible)
}

// ExpectHidden passes once no match of loc is visible. A detached element counts as hidden.
func (a *Assertions) ExpectHidden(ctx context.Context, page interfaces.Page, loc locator.Locator, timeout time.Duration) error {
	return a.expect(ctx, page, loc, "hidden", timeout, waiter.IsHidden)
}

// ExpectText passes once loc is visible and its text contains text. The match is
// case-sensitive; runs of whitespace on both sides compare as one space.
func (a *Assertions) ExpectText(ctx context.Context, page interfaces.Page, loc locator.Locator, text string, timeout time.Duration) error {
	want := normalizeSpace(text)
	return a.expect(ctx, page, loc, fmt.Sprintf("visible with text %q", want), timeout, func(s models.ElementState) bool {
		return waiter.IsVisible(s) && strings.Contains(normalizeSpace(s.Text), want)
	})
}

// ExpectCount passes once loc matches exactly n elements
func (a *Assertions) ExpectCount(ctx context.Context, page interfaces.Page, loc locator.Locator, n int, timeout time.Duration) error {
	return a.expect(ctx, page, loc, fmt.Sprintf("matched %d times", n), timeout, func(s models.ElementState) bool {
		return s.Count == n
	})
}

func (a *Assertions) expect(ctx context.Context, page interfaces.Page, loc locator.Locator, expected string, timeout time.Duration, pred func(models.ElementState) bool) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = a.timeout
	}

	last, err := a.waiter.Until(ctx, page, loc, expected, timeout, pred)
	if err == nil {
		a.logger.Debug().Str("locator", loc.String()).Str("expected", expected).Msg("Expectation met")
		return nil
	}

	var timeoutErr *models.TimeoutError
	if !errors.As(err, &timeoutErr) {
		return err
	}
	return &models.AssertionTimeoutError{
		Locator:  loc.String(),
		Expected: expected,
		Elapsed:  timeoutErr.Elapsed,
		Last:     last,
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
