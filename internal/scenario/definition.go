package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/actions"
	"github.com/ternarybob/mapcheck/internal/artifacts"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

// DefinitionFile is the TOML form of a scenario
type DefinitionFile struct {
	Name        string           `toml:"name" validate:"required"`
	Description string           `toml:"description"`
	Path        string           `toml:"path"`
	Steps       []StepDefinition `toml:"steps" validate:"required,min=1,dive"`
}

// StepDefinition is one [[steps]] entry
type StepDefinition struct {
	Title  string `toml:"title"`
	Action string `toml:"action" validate:"required,oneof=goto wait_visible wait_hidden click fill select check uncheck draw expect_visible expect_hidden expect_text capture add_category save_feature add_observation rotate"`

	// Target element
	Selector string `toml:"selector"`
	Role     string `toml:"role"`
	Name     string `toml:"name"`
	HasText  string `toml:"has_text"`
	Scope    string `toml:"scope"`
	Index    int    `toml:"index" validate:"min=0"`

	Value       string         `toml:"value"`
	Text        string         `toml:"text"`
	Description string         `toml:"description"`
	Category    string         `toml:"category"`
	Shape       string         `toml:"shape"`
	Points      []models.Point `toml:"points"`
	Times       int            `toml:"times" validate:"min=0"`
	Path        string         `toml:"path"`
	Timeout     string         `toml:"timeout" validate:"omitempty,duration"`
	Checkpoint  string         `toml:"checkpoint"`
}

func (d StepDefinition) locator() (locator.Locator, error) {
	loc := locator.Locator{
		Selector: d.Selector,
		Role:     d.Role,
		Name:     d.Name,
		HasText:  d.HasText,
		Scope:    d.Scope,
		Index:    d.Index,
	}
	if err := loc.Validate(); err != nil {
		return loc, err
	}
	return loc, nil
}

func (d StepDefinition) timeout() time.Duration {
	if d.Timeout == "" {
		return 0
	}
	t, _ := time.ParseDuration(d.Timeout)
	return t
}

func (d StepDefinition) title(i int) string {
	if d.Title != "" {
		return d.Title
	}
	switch {
	case d.Selector != "" || d.Role != "":
		loc, _ := d.locator()
		return fmt.Sprintf("%s %s", d.Action, loc)
	case d.Value != "":
		return fmt.Sprintf("%s %s", d.Action, d.Value)
	default:
		return fmt.Sprintf("step %d: %s", i+1, d.Action)
	}
}

// ParseDefinition decodes and validates a TOML scenario definition
func ParseDefinition(data []byte) (*DefinitionFile, error) {
	var def DefinitionFile
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse scenario TOML: %w", err)
	}
	if err := common.NewValidator().Struct(&def); err != nil {
		return nil, fmt.Errorf("invalid scenario definition: %w", err)
	}
	return &def, nil
}

// Compile turns a definition into a runnable scenario
func Compile(def *DefinitionFile) (*Scenario, error) {
	sc := &Scenario{
		Name:        def.Name,
		Description: def.Description,
		Path:        def.Path,
	}
	for i, sd := range def.Steps {
		run, err := compileStep(sd)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, sd.Action, err)
		}
		sc.Steps = append(sc.Steps, Step{Name: sd.title(i), Run: run, Checkpoint: sd.Checkpoint})
	}
	return sc, nil
}

func compileStep(sd StepDefinition) (StepFunc, error) {
	timeout := sd.timeout()

	switch sd.Action {
	case "goto":
		return func(ctx context.Context, env *Env) error {
			return env.Goto(ctx, sd.Value)
		}, nil

	case "capture":
		if sd.Path == "" && sd.Value == "" {
			return nil, fmt.Errorf("capture needs a path or a checkpoint name in value")
		}
		return func(ctx context.Context, env *Env) error {
			if sd.Path != "" {
				_, err := artifacts.Capture(ctx, env.Page, sd.Path)
				return err
			}
			_, err := env.Checkpoint(ctx, sd.Value)
			return err
		}, nil

	case "draw":
		kind, err := actions.ParseShapeKind(sd.Shape)
		if err != nil {
			return nil, err
		}
		if _, err := actions.ClickSequence(kind, sd.Points); err != nil {
			return nil, err
		}
		return func(ctx context.Context, env *Env) error {
			return env.Actions.DrawShape(ctx, env.Page, kind, sd.Points)
		}, nil

	case "add_category":
		if strings.TrimSpace(sd.Value) == "" {
			return nil, fmt.Errorf("add_category needs the category name in value")
		}
		return func(ctx context.Context, env *Env) error {
			return env.Actions.AddCategory(ctx, env.Page, sd.Value)
		}, nil

	case "save_feature":
		if strings.TrimSpace(sd.Value) == "" {
			return nil, fmt.Errorf("save_feature needs the feature name in value")
		}
		fields := actions.FeatureFields{Name: sd.Value, Description: sd.Description, Category: sd.Category}
		return func(ctx context.Context, env *Env) error {
			return env.Actions.SaveFeature(ctx, env.Page, fields)
		}, nil

	case "add_observation":
		return func(ctx context.Context, env *Env) error {
			return env.Actions.AddObservation(ctx, env.Page, sd.Value, sd.Text)
		}, nil

	case "rotate":
		times := sd.Times
		if times == 0 {
			times = 1
		}
		return func(ctx context.Context, env *Env) error {
			return env.Actions.RotateMap(ctx, env.Page, times)
		}, nil
	}

	// everything below acts on a single element
	loc, err := sd.locator()
	if err != nil {
		return nil, err
	}

	switch sd.Action {
	case "wait_visible":
		return func(ctx context.Context, env *Env) error {
			return env.Waiter.WaitVisible(ctx, env.Page, loc, orDefault(timeout, env.Timeouts.Ready))
		}, nil
	case "wait_hidden":
		return func(ctx context.Context, env *Env) error {
			return env.Waiter.WaitHidden(ctx, env.Page, loc, orDefault(timeout, env.Timeouts.Ready))
		}, nil
	case "click":
		return func(ctx context.Context, env *Env) error {
			return env.Actions.Click(ctx, env.Page, loc)
		}, nil
	case "fill":
		return func(ctx context.Context, env *Env) error {
			return env.Actions.Fill(ctx, env.Page, loc, sd.Value)
		}, nil
	case "select":
		return func(ctx context.Context, env *Env) error {
			return env.Actions.SelectOption(ctx, env.Page, loc, sd.Value)
		}, nil
	case "check":
		return func(ctx context.Context, env *Env) error {
			return env.Actions.Check(ctx, env.Page, loc)
		}, nil
	case "uncheck":
		return func(ctx context.Context, env *Env) error {
			return env.Actions.Uncheck(ctx, env.Page, loc)
		}, nil
	case "expect_visible":
		return func(ctx context.Context, env *Env) error {
			return env.Expect.ExpectVisible(ctx, env.Page, loc, timeout)
		}, nil
	case "expect_hidden":
		return func(ctx context.Context, env *Env) error {
			return env.Expect.ExpectHidden(ctx, env.Page, loc, timeout)
		}, nil
	case "expect_text":
		if sd.Text == "" {
			return nil, fmt.Errorf("expect_text needs text")
		}
		return func(ctx context.Context, env *Env) error {
			return env.Expect.ExpectText(ctx, env.Page, loc, sd.Text, timeout)
		}, nil
	}
	return nil, fmt.Errorf("unknown action %q", sd.Action)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// LoadDefinitions compiles every *.toml scenario in dir. A missing
// directory yields no scenarios. Files that cannot be read, parsed or
// compiled are logged and skipped.
func LoadDefinitions(dir string, logger arbor.ILogger) ([]*Scenario, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug().Str("dir", dir).Msg("Scenario definitions directory does not exist, skipping")
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario definitions directory: %w", err)
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		filePath := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read scenario definition file")
			continue
		}
		def, err := ParseDefinition(data)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to load scenario definition")
			continue
		}
		sc, err := Compile(def)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to compile scenario definition")
			continue
		}
		sc.Source = filePath
		scenarios = append(scenarios, sc)
	}

	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	logger.Info().Str("dir", dir).Int("count", len(scenarios)).Msg("Scenario definitions loaded")
	return scenarios, nil
}
