package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// ChromedpEngine launches Chrome through chromedp's exec allocator
type ChromedpEngine struct {
	logger arbor.ILogger
}

var _ interfaces.Engine = (*ChromedpEngine)(nil)

// NewChromedpEngine creates the default engine
func NewChromedpEngine(logger arbor.ILogger) *ChromedpEngine {
	return &ChromedpEngine{logger: logger}
}

func (e *ChromedpEngine) Name() string { return EngineChromedp }

// Launch starts the browser process and verifies it answers before returning
func (e *ChromedpEngine) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", false),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The allocator outlives ctx: only Close may end the browser
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// The first Run allocates the process; it must run on browserCtx itself,
	// a derived timeout context would tie the browser's lifetime to it
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx, chromedp.Navigate("about:blank"))
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocatorCancel()
			return nil, fmt.Errorf("browser failed startup test: %w", err)
		}
	case <-timer.C:
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser did not start within %s", opts.Timeout)
	case <-ctx.Done():
		browserCancel()
		allocatorCancel()
		return nil, ctx.Err()
	}

	return &chromedpBrowser{
		ctx:             browserCtx,
		cancel:          browserCancel,
		allocatorCancel: allocatorCancel,
		logger:          e.logger,
	}, nil
}

type chromedpBrowser struct {
	mu              sync.Mutex
	ctx             context.Context
	cancel          context.CancelFunc
	allocatorCancel context.CancelFunc
	mainTabUsed     bool
	logger          arbor.ILogger
}

func (b *chromedpBrowser) NewPage(ctx context.Context, onConsole func(models.ConsoleMessage)) (interfaces.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The startup tab becomes the first page; later pages get their own target
	tabCtx, tabCancel := b.ctx, context.CancelFunc(nil)
	if b.mainTabUsed {
		tabCtx, tabCancel = chromedp.NewContext(b.ctx)
		if err := chromedp.Run(tabCtx); err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to open tab: %w", err)
		}
	}
	b.mainTabUsed = true

	if onConsole != nil {
		chromedp.ListenTarget(tabCtx, func(ev interface{}) {
			switch ev := ev.(type) {
			case *runtime.EventConsoleAPICalled:
				onConsole(models.ConsoleMessage{Type: string(ev.Type), Text: chromedpConsoleText(ev.Args), Time: time.Now()})
			case *runtime.EventExceptionThrown:
				if ev.ExceptionDetails == nil {
					return
				}
				text := ev.ExceptionDetails.Text
				if ev.ExceptionDetails.Exception != nil && ev.ExceptionDetails.Exception.Description != "" {
					text = ev.ExceptionDetails.Exception.Description
				}
				onConsole(models.ConsoleMessage{Type: "pageerror", Text: text, Time: time.Now()})
			}
		})
	}

	return &domPage{b: &chromedpBackend{ctx: tabCtx, cancel: tabCancel}}, nil
}

// Close cancels the browser context, which asks Chrome to exit, then tears down the allocator
func (b *chromedpBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel == nil {
		return nil
	}

	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocatorCancel()
	b.cancel = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	b.logger.Trace().Msg("Chromedp browser closed")
	return nil
}

func chromedpConsoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if len(arg.Value) > 0 {
			raw := string(arg.Value)
			if s, err := strconv.Unquote(raw); err == nil {
				raw = s
			}
			parts = append(parts, raw)
			continue
		}
		parts = append(parts, arg.Description)
	}
	return strings.Join(parts, " ")
}

type chromedpBackend struct {
	ctx    context.Context
	cancel context.CancelFunc // nil for the startup tab
}

// run executes actions on the tab while honouring the caller's cancellation and deadline
func (b *chromedpBackend) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (b *chromedpBackend) navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *chromedpBackend) evaluate(ctx context.Context, expression string, out interface{}) error {
	return b.run(ctx, chromedp.Evaluate(expression, out))
}

func (b *chromedpBackend) mouseClick(ctx context.Context, x, y float64) error {
	return b.run(ctx, chromedp.MouseClickXY(x, y))
}

func (b *chromedpBackend) screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 selects PNG encoding
	if err := b.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *chromedpBackend) close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
