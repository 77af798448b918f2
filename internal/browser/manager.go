package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

const (
	EngineChromedp   = "chromedp"
	EngineRod        = "rod"
	EnginePlaywright = "playwright"

	// maxConsoleMessages bounds the per-session console buffer
	maxConsoleMessages = 1000
	teardownTimeout    = 15 * time.Second
)

// NewEngine returns the engine registered under name
func NewEngine(name string, logger arbor.ILogger) (interfaces.Engine, error) {
	switch name {
	case EngineChromedp, "":
		return NewChromedpEngine(logger), nil
	case EngineRod:
		return NewRodEngine(logger), nil
	case EnginePlaywright:
		return NewPlaywrightEngine(logger), nil
	}
	return nil, fmt.Errorf("unknown browser engine %q (want %s, %s or %s)", name, EngineChromedp, EngineRod, EnginePlaywright)
}

// LaunchOptionsFromConfig maps the [browser] section onto engine launch options
func LaunchOptionsFromConfig(cfg common.BrowserConfig) interfaces.LaunchOptions {
	return interfaces.LaunchOptions{
		Headless: cfg.Headless,
		Width:    cfg.Width,
		Height:   cfg.Height,
		ExecPath: cfg.ExecPath,
		Timeout:  cfg.Launch(),
	}
}

// Session is one browser plus one page, owned by a single scenario run
type Session struct {
	ID        string
	Engine    string
	StartedAt time.Time

	page    interfaces.Page
	browser interfaces.Browser

	consoleMu sync.Mutex
	console   []models.ConsoleMessage
	dropped   int

	releaseOnce sync.Once
	releaseErr  error
}

// Page returns the session's only page
func (s *Session) Page() interfaces.Page {
	return s.page
}

// Console returns a copy of the console messages captured so far
func (s *Session) Console() []models.ConsoleMessage {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	out := make([]models.ConsoleMessage, len(s.console))
	copy(out, s.console)
	return out
}

func (s *Session) recordConsole(msg models.ConsoleMessage) {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	if len(s.console) >= maxConsoleMessages {
		s.dropped++
		return
	}
	s.console = append(s.console, msg)
}

// Manager acquires and releases sessions. It keeps no reference to the
// sessions it hands out, so concurrent runs never share browser state.
type Manager struct {
	engine interfaces.Engine
	opts   interfaces.LaunchOptions
	logger arbor.ILogger
}

// NewManager creates a session manager for one engine
func NewManager(engine interfaces.Engine, opts interfaces.LaunchOptions, logger arbor.ILogger) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Manager{engine: engine, opts: opts, logger: logger}
}

// EngineName returns the backing engine's name
func (m *Manager) EngineName() string {
	return m.engine.Name()
}

// Acquire launches a browser and opens its page. Any failure is a *models.LaunchError
// and leaves no process behind.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	startTime := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		Engine:    m.engine.Name(),
		StartedAt: startTime,
	}

	m.logger.Debug().
		Str("session_id", s.ID).
		Str("engine", s.Engine).
		Bool("headless", m.opts.Headless).
		Msg("Launching browser")

	browser, err := m.engine.Launch(ctx, m.opts)
	if err != nil {
		return nil, &models.LaunchError{Engine: s.Engine, Err: err}
	}

	page, err := browser.NewPage(ctx, func(msg models.ConsoleMessage) {
		s.recordConsole(msg)
		m.logger.Debug().Str("session_id", s.ID).Str("type", msg.Type).Msgf("Browser Console: %s", msg.Text)
	})
	if err != nil {
		_ = browser.Close()
		return nil, &models.LaunchError{Engine: s.Engine, Err: err}
	}

	// Startup probe: the page must answer before it is handed out
	probeCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	if err := page.Navigate(probeCtx, "about:blank"); err != nil {
		_ = page.Close()
		_ = browser.Close()
		return nil, &models.LaunchError{Engine: s.Engine, Err: fmt.Errorf("page failed startup test: %w", err)}
	}

	s.browser = browser
	s.page = page

	m.logger.Info().
		Str("session_id", s.ID).
		Str("engine", s.Engine).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session acquired")

	return s, nil
}

// Release closes the session's page and browser. Only the first call does
// anything; later calls return the first call's result. A failure is logged
// and returned as *models.TeardownError so callers can report it without
// letting it replace the run's own outcome.
func (m *Manager) Release(s *Session) error {
	if s == nil {
		return nil
	}
	s.releaseOnce.Do(func() {
		s.releaseErr = m.release(s)
	})
	return s.releaseErr
}

func (m *Manager) release(s *Session) error {
	startTime := time.Now()

	done := make(chan error, 1)
	go func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		done <- errors.Join(errs...)
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(teardownTimeout):
		err = fmt.Errorf("browser shutdown timed out after %s", teardownTimeout)
	}

	if err != nil {
		teardownErr := &models.TeardownError{SessionID: s.ID, Err: err}
		m.logger.Warn().
			Str("session_id", s.ID).
			Err(err).
			Msg("Browser teardown failed")
		return teardownErr
	}

	s.consoleMu.Lock()
	dropped := s.dropped
	s.consoleMu.Unlock()

	m.logger.Debug().
		Str("session_id", s.ID).
		Int("console_dropped", dropped).
		Dur("shutdown_time", time.Since(startTime)).
		Msg("Browser session released")
	return nil
}
