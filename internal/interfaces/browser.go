package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

// LaunchOptions shapes a browser launch
type LaunchOptions struct {
	Headless bool
	Width    int
	Height   int
	ExecPath string        // optional browser binary
	Timeout  time.Duration // bound on launch plus first page
}

// Engine starts browsers through one automation backend (chromedp, rod, playwright)
type Engine interface {
	Name() string
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser process
type Browser interface {
	// NewPage opens a tab. onConsole receives browser console messages and may be nil.
	NewPage(ctx context.Context, onConsole func(models.ConsoleMessage)) (Page, error)
	Close() error
}

// Page is one live tab. Every locator argument is resolved at call time.
// Query never fails for a missing element: it reports Count == 0.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Query(ctx context.Context, loc locator.Locator) (models.ElementState, error)
	Click(ctx context.Context, loc locator.Locator) error
	// ClickAt clicks at offset from the top-left corner of the element's box
	ClickAt(ctx context.Context, loc locator.Locator, offset models.Point) error
	Fill(ctx context.Context, loc locator.Locator, value string) error
	SelectOption(ctx context.Context, loc locator.Locator, value string) error
	Evaluate(ctx context.Context, expression string, out interface{}) error
	// Screenshot returns a full-page PNG
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
