package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/actions"
	"github.com/ternarybob/mapcheck/internal/artifacts"
	"github.com/ternarybob/mapcheck/internal/assertions"
	"github.com/ternarybob/mapcheck/internal/browser"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/waiter"
)

const failureCaptureTimeout = 10 * time.Second

// Sessions hands out browser sessions; *browser.Manager implements it
type Sessions interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(s *browser.Session) error
	EngineName() string
}

// Config shapes every run a Runner performs
type Config struct {
	BaseURL       string
	ResultsDir    string
	PollInterval  time.Duration
	SettleSamples int
	ActionTimeout time.Duration
	SettleTimeout time.Duration
	Timeouts      Timeouts
}

// ConfigFrom maps the application config onto runner settings
func ConfigFrom(cfg *common.Config) Config {
	return Config{
		BaseURL:       cfg.Target.BaseURL,
		ResultsDir:    cfg.Output.ResultsDir,
		PollInterval:  cfg.Wait.PollEvery(),
		SettleSamples: cfg.Wait.SettleSamples,
		ActionTimeout: cfg.Actions.LocateTimeout(),
		SettleTimeout: cfg.Wait.Settle(),
		Timeouts: Timeouts{
			Navigate: cfg.Wait.Navigate(),
			Ready:    cfg.Wait.Ready(),
			Assert:   cfg.Wait.Assert(),
		},
	}
}

// StepError names the step that ended a run
type StepError struct {
	Scenario string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("scenario %s failed at step %q: %v", e.Scenario, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes scenarios one step at a time, one session per run
type Runner struct {
	sessions Sessions
	store    interfaces.RunStorage
	cfg      Config
	logger   arbor.ILogger
}

// NewRunner creates a runner. store may be nil to skip run history.
func NewRunner(sessions Sessions, store interfaces.RunStorage, cfg Config, logger arbor.ILogger) *Runner {
	return &Runner{sessions: sessions, store: store, cfg: cfg, logger: logger}
}

// Run executes sc in a fresh session. Steps run strictly in order and the
// first failure skips the rest. The session is released exactly once on
// every path. The returned record is never nil; the error is a *StepError
// when a step failed.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*models.RunRecord, error) {
	record := &models.RunRecord{
		ID:        uuid.New().String(),
		Scenario:  sc.Name,
		Engine:    r.sessions.EngineName(),
		BaseURL:   r.cfg.BaseURL,
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	logger := common.ForRun(r.logger, record.ID)
	defer common.MarkScenarioActive(sc.Name)()

	if err := sc.Validate(); err != nil {
		return r.finish(ctx, record, logger, "validate scenario", err)
	}

	recorder, err := artifacts.NewRecorder(r.cfg.ResultsDir, logger)
	if err != nil {
		return r.finish(ctx, record, logger, "prepare results directory", err)
	}
	record.ResultsDir = recorder.Dir()

	logger.Info().
		Str("scenario", sc.Name).
		Str("engine", record.Engine).
		Str("base_url", record.BaseURL).
		Str("results_dir", record.ResultsDir).
		Msg("Scenario starting")

	session, err := r.sessions.Acquire(ctx)
	if err != nil {
		return r.finish(ctx, record, logger, "acquire session", err)
	}
	// Release is idempotent; the deferred call only matters if the code below panics
	defer func() { _ = r.sessions.Release(session) }()

	env := r.newEnv(session.Page(), recorder, logger)
	failedStep, runErr := r.execute(ctx, sc, env, record)

	record.Checkpoints = recorder.Checkpoints()
	record.Console = session.Console()

	if relErr := r.sessions.Release(session); relErr != nil {
		// reported, never allowed to replace the run's own outcome
		logger.Warn().Err(relErr).Str("error_kind", models.ErrorKind(relErr)).Msg("Session teardown failed")
	}

	return r.finish(ctx, record, logger, failedStep, runErr)
}

// RunAll runs each scenario in its own session, continuing past failures
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*models.RunRecord, error) {
	var (
		records []*models.RunRecord
		errs    []error
	)
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		record, err := r.Run(ctx, sc)
		records = append(records, record)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return records, errors.Join(errs...)
}

func (r *Runner) newEnv(page interfaces.Page, recorder *artifacts.Recorder, logger arbor.ILogger) *Env {
	w := waiter.New(r.cfg.PollInterval, r.cfg.SettleSamples, logger)
	return &Env{
		Page:     page,
		BaseURL:  r.cfg.BaseURL,
		Waiter:   w,
		Actions:  actions.New(w, actions.Options{Timeout: r.cfg.ActionTimeout, SettleTimeout: r.cfg.SettleTimeout}, logger),
		Expect:   assertions.New(w, r.cfg.Timeouts.Assert, logger),
		Recorder: recorder,
		Timeouts: r.cfg.Timeouts,
		Logger:   logger,
	}
}

// execute runs the navigation step and every scenario step, recording results.
// It returns the failing step's name and error, or "" and nil.
func (r *Runner) execute(ctx context.Context, sc *Scenario, env *Env, record *models.RunRecord) (string, error) {
	steps := make([]Step, 0, len(sc.Steps)+1)
	steps = append(steps, Step{
		Name: "open " + pathOrRoot(sc.Path),
		Run:  func(ctx context.Context, env *Env) error { return env.Goto(ctx, sc.Path) },
	})
	steps = append(steps, sc.Steps...)

	for i, step := range steps {
		result := models.StepResult{Index: i, Name: step.Name}
		startTime := time.Now()

		err := ctx.Err()
		if err == nil {
			err = r.runStep(ctx, env, step)
		}
		if err == nil && step.Checkpoint != "" {
			var cp models.Checkpoint
			if cp, err = env.Checkpoint(ctx, step.Checkpoint); err == nil {
				result.Checkpoint = cp.Path
			}
		}
		result.Duration = time.Since(startTime)

		if err == nil {
			result.Passed = true
			record.Steps = append(record.Steps, result)
			env.Logger.Debug().Int("step", i).Str("name", step.Name).Dur("duration", result.Duration).Msg("Step passed")
			continue
		}

		result.ErrorKind = models.ErrorKind(err)
		result.Error = err.Error()
		record.Steps = append(record.Steps, result)
		for j, skipped := range steps[i+1:] {
			record.Steps = append(record.Steps, models.StepResult{Index: i + 1 + j, Name: skipped.Name, Skipped: true})
		}

		env.Logger.Error().
			Int("step", i).
			Str("name", step.Name).
			Str("error_kind", result.ErrorKind).
			Err(err).
			Msg("Step failed")

		r.captureFailure(ctx, env, step.Name)
		return step.Name, err
	}
	return "", nil
}

func (r *Runner) runStep(ctx context.Context, env *Env, step Step) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			env.Logger.Error().
				Str("step", step.Name).
				Str("stack", common.GetStackTrace()).
				Msgf("Panic in step: %v", rec)
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return step.Run(ctx, env)
}

// captureFailure takes a best-effort screenshot of the page as the failing step left it
func (r *Runner) captureFailure(ctx context.Context, env *Env, stepName string) {
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureCaptureTimeout)
	defer cancel()
	if _, err := env.Checkpoint(captureCtx, "failure_"+stepName); err != nil {
		env.Logger.Warn().Err(err).Msg("Failure screenshot not captured")
	}
}

func (r *Runner) finish(ctx context.Context, record *models.RunRecord, logger arbor.ILogger, failedStep string, runErr error) (*models.RunRecord, error) {
	record.FinishedAt = time.Now()
	if runErr == nil {
		record.Status = models.RunStatusPassed
	} else {
		record.Status = models.RunStatusFailed
		record.FailedStep = failedStep
		record.ErrorKind = models.ErrorKind(runErr)
		record.Error = runErr.Error()
	}

	if r.store != nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.store.SaveRun(storeCtx, record); err != nil {
			logger.Warn().Err(err).Str("run_id", record.ID).Msg("Failed to store run record")
		}
	}

	if runErr != nil {
		logger.Error().
			Str("scenario", record.Scenario).
			Str("failed_step", failedStep).
			Str("error_kind", record.ErrorKind).
			Dur("duration", record.Duration()).
			Msg("Scenario failed")
	} else {
		logger.Info().
			Str("scenario", record.Scenario).
			Int("checkpoints", len(record.Checkpoints)).
			Dur("duration", record.Duration()).
			Msg("Scenario passed")
	}

	if runErr != nil {
		return record, &StepError{Scenario: record.Scenario, Step: failedStep, Err: runErr}
	}
	return record, nil
}

func pathOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
