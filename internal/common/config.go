package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"oneof=development production"`
	Browser     BrowserConfig   `toml:"browser"`
	Target      TargetConfig    `toml:"target"`
	Wait        WaitConfig      `toml:"wait"`
	Actions     ActionsConfig   `toml:"actions"`
	Output      OutputConfig    `toml:"output"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scenarios   ScenariosConfig `toml:"scenarios"`
	Schedule    ScheduleConfig  `toml:"schedule"`
}

// BrowserConfig selects and shapes the automation engine
type BrowserConfig struct {
	Engine        string `toml:"engine" validate:"oneof=chromedp rod playwright"`
	Headless      bool   `toml:"headless"`
	Width         int    `toml:"width" validate:"min=320"`
	Height        int    `toml:"height" validate:"min=240"`
	LaunchTimeout string `toml:"launch_timeout" validate:"duration"` // e.g. "30s"
	ExecPath      string `toml:"exec_path"`                          // Optional Chrome binary override
}

type TargetConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
}

// WaitConfig controls readiness polling
type WaitConfig struct {
	PollInterval    string `toml:"poll_interval" validate:"duration"`    // e.g. "50ms"
	SettleSamples   int    `toml:"settle_samples" validate:"min=2"`      // consecutive equal samples for WaitStable
	ReadyTimeout    string `toml:"ready_timeout" validate:"duration"`    // map pane readiness
	AssertTimeout   string `toml:"assert_timeout" validate:"duration"`   // default for expect_* steps
	SettleTimeout   string `toml:"settle_timeout" validate:"duration"`   // animation settle bound
	NavigateTimeout string `toml:"navigate_timeout" validate:"duration"` // page load bound
}

type ActionsConfig struct {
	Timeout string `toml:"timeout" validate:"duration"` // locate bound for click/fill/select
}

type OutputConfig struct {
	ResultsDir string   `toml:"results_dir" validate:"required"`
	Reports    []string `toml:"reports" validate:"dive,oneof=markdown html pdf"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

type ScenariosConfig struct {
	Dir string `toml:"dir"` // Directory of *.toml scenario definitions (optional)
}

type ScheduleConfig struct {
	Cron      string   `toml:"cron" validate:"omitempty,cron"`
	Scenarios []string `toml:"scenarios"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Browser: BrowserConfig{
			Engine:        "chromedp",
			Headless:      true,
			Width:         1920,
			Height:        1080,
			LaunchTimeout: "30s",
		},
		Target: TargetConfig{
			BaseURL: "http://localhost:8080",
		},
		Wait: WaitConfig{
			PollInterval:    "50ms",
			SettleSamples:   3,
			ReadyTimeout:    "5s",
			AssertTimeout:   "5s",
			SettleTimeout:   "2s",
			NavigateTimeout: "30s",
		},
		Actions: ActionsConfig{
			Timeout: "5s",
		},
		Output: OutputConfig{
			ResultsDir: "./results",
			Reports:    []string{"markdown"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFile loads configuration from a single file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> files (in order) -> .env -> environment.
// Later files override earlier files. Empty paths are skipped.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env is optional; values already in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies MAPCHECK_* environment variables to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MAPCHECK_ENV"); env != "" {
		config.Environment = env
	}

	// Browser configuration
	if engine := os.Getenv("MAPCHECK_BROWSER_ENGINE"); engine != "" {
		config.Browser.Engine = engine
	}
	if headless := os.Getenv("MAPCHECK_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if width := os.Getenv("MAPCHECK_BROWSER_WIDTH"); width != "" {
		if w, err := strconv.Atoi(width); err == nil {
			config.Browser.Width = w
		}
	}
	if height := os.Getenv("MAPCHECK_BROWSER_HEIGHT"); height != "" {
		if h, err := strconv.Atoi(height); err == nil {
			config.Browser.Height = h
		}
	}
	if execPath := os.Getenv("MAPCHECK_BROWSER_EXEC_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}

	// Target
	if baseURL := os.Getenv("MAPCHECK_BASE_URL"); baseURL != "" {
		config.Target.BaseURL = baseURL
	}

	// Waits
	if poll := os.Getenv("MAPCHECK_WAIT_POLL_INTERVAL"); poll != "" {
		config.Wait.PollInterval = poll
	}
	if timeout := os.Getenv("MAPCHECK_ACTIONS_TIMEOUT"); timeout != "" {
		config.Actions.Timeout = timeout
	}

	// Output and storage
	if dir := os.Getenv("MAPCHECK_RESULTS_DIR"); dir != "" {
		config.Output.ResultsDir = dir
	}
	if badgerPath := os.Getenv("MAPCHECK_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("MAPCHECK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MAPCHECK_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if dir := os.Getenv("MAPCHECK_SCENARIOS_DIR"); dir != "" {
		config.Scenarios.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// Empty values leave the loaded configuration untouched.
func ApplyFlagOverrides(config *Config, baseURL, engine string, headed bool) {
	if baseURL != "" {
		config.Target.BaseURL = baseURL
	}
	if engine != "" {
		config.Browser.Engine = engine
	}
	if headed {
		config.Browser.Headless = false
	}
}

var configValidator = NewValidator()

// NewValidator returns a validator with the "duration" and "cron" tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		return ValidateSchedule(fl.Field().String()) == nil
	})
	return v
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateSchedule validates a cron schedule (standard 5-field or descriptors like @every 10m)
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// PollEvery returns the parsed wait poll interval
func (w WaitConfig) PollEvery() time.Duration { return mustDuration(w.PollInterval, 50*time.Millisecond) }

// Ready returns the map readiness timeout
func (w WaitConfig) Ready() time.Duration { return mustDuration(w.ReadyTimeout, 5*time.Second) }

func (w WaitConfig) Assert() time.Duration { return mustDuration(w.AssertTimeout, 5*time.Second) }

func (w WaitConfig) Settle() time.Duration { return mustDuration(w.SettleTimeout, 2*time.Second) }

func (w WaitConfig) Navigate() time.Duration { return mustDuration(w.NavigateTimeout, 30*time.Second) }

func (a ActionsConfig) LocateTimeout() time.Duration { return mustDuration(a.Timeout, 5*time.Second) }

func (b BrowserConfig) Launch() time.Duration { return mustDuration(b.LaunchTimeout, 30*time.Second) }
