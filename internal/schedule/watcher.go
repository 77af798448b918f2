// Package schedule re-runs scenarios on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/common"
)

// RunFunc performs one scheduled pass
type RunFunc func(ctx context.Context) error

// Status describes the watcher's progress
type Status struct {
	Schedule  string
	Runs      int
	Failures  int
	Skipped   int
	Running   bool
	LastRun   time.Time
	LastError string
	NextRun   time.Time
}

// Watcher triggers RunFunc on a cron schedule. A tick that arrives while
// the previous pass is still running is skipped, never queued.
type Watcher struct {
	cron    *cron.Cron
	run     RunFunc
	logger  arbor.ILogger
	entryID cron.EntryID

	mu       sync.Mutex
	schedule string
	started  bool
	busy     bool
	runs     int
	failures int
	skipped  int
	lastRun  time.Time
	lastErr  string
}

// NewWatcher creates a watcher for run
func NewWatcher(run RunFunc, logger arbor.ILogger) *Watcher {
	return &Watcher{
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		run:    run,
		logger: logger,
	}
}

// Start schedules runs on expr (standard 5-field or a descriptor such as
// "@every 10m"). ctx is handed to every pass; cancelling it aborts the pass
// in flight but does not stop the schedule.
func (w *Watcher) Start(ctx context.Context, expr string) error {
	if err := common.ValidateSchedule(expr); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return fmt.Errorf("watcher already running")
	}

	id, err := w.cron.AddFunc(expr, func() { w.Trigger(ctx) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	w.entryID = id
	w.schedule = expr
	w.started = true
	w.cron.Start()

	w.logger.Info().
		Str("schedule", expr).
		Str("next_run", w.cron.Entry(id).Next.Format(time.RFC3339)).
		Msg("Scenario watch started")
	return nil
}

// Stop halts the schedule and waits for a pass in flight to finish
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	<-w.cron.Stop().Done()
	w.logger.Info().Msg("Scenario watch stopped")
}

// Trigger runs one pass now unless a pass is already running. It reports
// whether the pass ran.
func (w *Watcher) Trigger(ctx context.Context) bool {
	w.mu.Lock()
	if w.busy {
		w.skipped++
		w.mu.Unlock()
		w.logger.Warn().Msg("Previous scenario pass still running, skipping this tick")
		return false
	}
	w.busy = true
	w.mu.Unlock()

	startTime := time.Now()
	err := w.runSafely(ctx)

	w.mu.Lock()
	w.busy = false
	w.runs++
	w.lastRun = startTime
	w.lastErr = ""
	if err != nil {
		w.failures++
		w.lastErr = err.Error()
	}
	runs := w.runs
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn().Err(err).Int("pass", runs).Dur("duration", time.Since(startTime)).Msg("Scheduled scenario pass failed")
	} else {
		w.logger.Info().Int("pass", runs).Dur("duration", time.Since(startTime)).Msg("Scheduled scenario pass completed")
	}
	return true
}

func (w *Watcher) runSafely(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("stack", common.GetStackTrace()).Msgf("Panic in scheduled pass: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.run(ctx)
}

// Status returns a snapshot of the watcher's counters
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Schedule:  w.schedule,
		Runs:      w.runs,
		Failures:  w.failures,
		Skipped:   w.skipped,
		Running:   w.busy,
		LastRun:   w.lastRun,
		LastError: w.lastErr,
	}
	if w.started {
		st.NextRun = w.cron.Entry(w.entryID).Next
	}
	return st
}
