// Package scenario models map editor workflows as ordered steps and runs
// them against one browser session at a time.
package scenario

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/actions"
	"github.com/ternarybob/mapcheck/internal/artifacts"
	"github.com/ternarybob/mapcheck/internal/assertions"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/waiter"
)

// StepFunc performs one step against the run's environment
type StepFunc func(ctx context.Context, env *Env) error

// Step is one ordered unit of a scenario
type Step struct {
	Name string
	Run  StepFunc
	// Checkpoint, when set, captures a screenshot under this name after the step succeeds
	Checkpoint string
}

// Scenario is an ordered list of steps representing one user workflow
type Scenario struct {
	Name        string
	Description string
	// Path is opened relative to the base URL before the first step
	Path  string
	Steps []Step
	// Source is the definition file, empty for built-in scenarios
	Source string
}

// Validate checks the scenario can be run
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s has no steps", s.Name)
	}
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("scenario %s: step %d has no name", s.Name, i+1)
		}
		if step.Run == nil {
			return fmt.Errorf("scenario %s: step %q has no action", s.Name, step.Name)
		}
	}
	return nil
}

// Timeouts are the default bounds applied by Env helpers
type Timeouts struct {
	Navigate time.Duration
	Ready    time.Duration
	Assert   time.Duration
}

// Env is everything a step can touch during one run. It is built per run
// and never shared between runs.
type Env struct {
	Page     interfaces.Page
	BaseURL  string
	Waiter   *waiter.Waiter
	Actions  *actions.Actions
	Expect   *assertions.Assertions
	Recorder *artifacts.Recorder
	Timeouts Timeouts
	Logger   arbor.ILogger
}

// Goto opens path (relative to the base URL, or absolute)
func (e *Env) Goto(ctx context.Context, path string) error {
	target, err := ResolveURL(e.BaseURL, path)
	if err != nil {
		return &models.NavigationError{URL: path, Err: err}
	}
	return e.Waiter.Goto(ctx, e.Page, target, e.Timeouts.Navigate)
}

// WaitMapReady blocks until the map pane is visible
func (e *Env) WaitMapReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = e.Timeouts.Ready
	}
	return e.Waiter.WaitVisible(ctx, e.Page, locator.MapPane, timeout)
}

// Checkpoint captures a numbered screenshot in the run directory
func (e *Env) Checkpoint(ctx context.Context, name string) (models.Checkpoint, error) {
	return e.Recorder.Checkpoint(ctx, e.Page, name)
}

// ResolveURL joins path onto base. Absolute URLs are returned unchanged.
func ResolveURL(base, path string) (string, error) {
	if path == "" {
		return base, nil
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if b.Scheme == "" || b.Host == "" {
		return "", fmt.Errorf("base URL %q is not absolute", base)
	}
	return b.ResolveReference(ref).String(), nil
}
