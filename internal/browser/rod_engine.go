package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// RodEngine launches Chrome through go-rod's launcher
type RodEngine struct {
	logger arbor.ILogger
}

var _ interfaces.Engine = (*RodEngine)(nil)

func NewRodEngine(logger arbor.ILogger) *RodEngine {
	return &RodEngine{logger: logger}
}

func (e *RodEngine) Name() string { return EngineRod }

func (e *RodEngine) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", opts.Width, opts.Height)).
		Set(flags.Flag("disable-dev-shm-usage"))
	if opts.ExecPath != "" {
		l = l.Bin(opts.ExecPath)
	}

	type launched struct {
		url string
		err error
	}
	started := make(chan launched, 1)
	go func() {
		u, err := l.Launch()
		started <- launched{url: u, err: err}
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	var controlURL string
	select {
	case res := <-started:
		if res.err != nil {
			return nil, fmt.Errorf("launch chrome: %w", res.err)
		}
		controlURL = res.url
	case <-timer.C:
		l.Kill()
		return nil, fmt.Errorf("chrome did not start within %s", opts.Timeout)
	case <-ctx.Done():
		l.Kill()
		return nil, ctx.Err()
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	e.logger.Debug().Str("control_url", controlURL).Msg("Rod browser connected")

	return &rodBrowser{browser: browser, launcher: l, width: opts.Width, height: opts.Height}, nil
}

type rodBrowser struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	width    int
	height   int
}

func (b *rodBrowser) NewPage(ctx context.Context, onConsole func(models.ConsoleMessage)) (interfaces.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil, fmt.Errorf("browser not connected")
	}

	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Detach from the creation context; per-call contexts are applied in rodBackend
	page = page.Context(context.Background())

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             b.width,
		Height:            b.height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	if onConsole != nil {
		wait := page.Context(eventsCtx).EachEvent(
			func(ev *proto.RuntimeConsoleAPICalled) {
				onConsole(models.ConsoleMessage{Type: string(ev.Type), Text: rodConsoleText(ev.Args), Time: time.Now()})
			},
			func(ev *proto.RuntimeExceptionThrown) {
				if ev.ExceptionDetails == nil {
					return
				}
				onConsole(models.ConsoleMessage{Type: "pageerror", Text: ev.ExceptionDetails.Text, Time: time.Now()})
			},
		)
		go wait()
	}

	return &domPage{b: &rodBackend{page: page, stopEvents: stopEvents}}, nil
}

func (b *rodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

func rodConsoleText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if s := arg.Value.String(); s != "" && s != "null" {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, arg.Description)
	}
	return strings.Join(parts, " ")
}

type rodBackend struct {
	page       *rod.Page
	stopEvents context.CancelFunc
}

func (b *rodBackend) navigate(ctx context.Context, url string) error {
	p := b.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (b *rodBackend) evaluate(ctx context.Context, expression string, out interface{}) error {
	res, err := b.page.Context(ctx).Eval("() => (" + expression + ")")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode eval result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

// mouseClick dispatches the input events on a page bound to ctx. page.Mouse
// keeps the page's original context, so it would ignore the caller's deadline.
func (b *rodBackend) mouseClick(ctx context.Context, x, y float64) error {
	p := b.page.Context(ctx)
	events := []proto.InputDispatchMouseEvent{
		{Type: proto.InputDispatchMouseEventTypeMouseMoved, X: x, Y: y},
		{Type: proto.InputDispatchMouseEventTypeMousePressed, X: x, Y: y, Button: proto.InputMouseButtonLeft, ClickCount: 1},
		{Type: proto.InputDispatchMouseEventTypeMouseReleased, X: x, Y: y, Button: proto.InputMouseButtonLeft, ClickCount: 1},
	}
	for _, ev := range events {
		if err := ev.Call(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *rodBackend) screenshot(ctx context.Context) ([]byte, error) {
	return b.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (b *rodBackend) close() error {
	b.stopEvents()
	return b.page.Close()
}
