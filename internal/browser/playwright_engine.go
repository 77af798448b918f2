package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// PlaywrightEngine drives Chromium through the playwright driver.
// The driver and browsers must be installed (playwright install chromium).
type PlaywrightEngine struct {
	logger arbor.ILogger
}

var _ interfaces.Engine = (*PlaywrightEngine)(nil)

func NewPlaywrightEngine(logger arbor.ILogger) *PlaywrightEngine {
	return &PlaywrightEngine{logger: logger}
}

func (e *PlaywrightEngine) Name() string { return EnginePlaywright }

func (e *PlaywrightEngine) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Timeout:  playwright.Float(float64(opts.Timeout.Milliseconds())),
		Args:     []string{"--disable-dev-shm-usage"},
	}
	if opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecPath)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	e.logger.Debug().Str("version", browser.Version()).Msg("Playwright Chromium launched")

	return &playwrightBrowser{pw: pw, browser: browser, width: opts.Width, height: opts.Height}, nil
}

type playwrightBrowser struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	width   int
	height  int
}

func (b *playwrightBrowser) NewPage(ctx context.Context, onConsole func(models.ConsoleMessage)) (interfaces.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil, fmt.Errorf("browser closed")
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.width,
			Height: b.height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if onConsole != nil {
		page.OnConsole(func(msg playwright.ConsoleMessage) {
			onConsole(models.ConsoleMessage{Type: msg.Type(), Text: msg.Text(), Time: time.Now()})
		})
		page.OnPageError(func(err error) {
			onConsole(models.ConsoleMessage{Type: "pageerror", Text: err.Error(), Time: time.Now()})
		})
	}

	return &domPage{b: &playwrightBackend{page: page, context: bctx}}, nil
}

func (b *playwrightBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}

	var errs []string
	if err := b.browser.Close(); err != nil && !isClosedError(err) {
		errs = append(errs, "close browser: "+err.Error())
	}
	b.browser = nil
	if err := b.pw.Stop(); err != nil {
		errs = append(errs, "stop playwright: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func isClosedError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "closed") || strings.Contains(msg, "target closed")
}

type playwrightBackend struct {
	page    playwright.Page
	context playwright.BrowserContext
}

// timeoutMs converts the caller's deadline into a playwright timeout (0 disables it)
func timeoutMs(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(0)
	}
	ms := time.Until(deadline).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(float64(ms))
}

func (b *playwrightBackend) navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutMs(ctx),
	})
	return err
}

func (b *playwrightBackend) evaluate(ctx context.Context, expression string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := b.page.Evaluate(expression)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode eval result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (b *playwrightBackend) mouseClick(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.page.Mouse().Click(x, y)
}

func (b *playwrightBackend) screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  timeoutMs(ctx),
	})
}

func (b *playwrightBackend) close() error {
	if err := b.page.Close(); err != nil && !isClosedError(err) {
		return err
	}
	if err := b.context.Close(); err != nil && !isClosedError(err) {
		return err
	}
	return nil
}
