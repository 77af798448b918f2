package scenarios

import (
	"context"
	"time"

	"github.com/ternarybob/mapcheck/internal/actions"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/scenario"
)

const (
	mapReadyTimeout   = 5 * time.Second
	legendTimeout     = 5 * time.Second
	visibilityTimeout = 2 * time.Second
)

// Map offsets are relative to the top-left corner of #map
var (
	testSquare   = []models.Point{{X: 400, Y: 200}, {X: 500, Y: 200}, {X: 500, Y: 300}, {X: 400, Y: 300}}
	baseTriangle = []models.Point{{X: 300, Y: 250}, {X: 400, Y: 250}, {X: 350, Y: 350}}
	rotatedLine  = []models.Point{{X: 500, Y: 200}, {X: 600, Y: 300}}
)

// Builtins returns fresh copies of the built-in scenarios
func Builtins() []*scenario.Scenario {
	return []*scenario.Scenario{
		MinimalMap(),
		PolygonWorkflow(),
		ObservationFilter(),
		Rotation(),
		Contributors(),
	}
}

// MinimalMap opens the scratch page and checks the map renders
func MinimalMap() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "minimal-map",
		Description: "Scratch page renders a Leaflet map",
		Path:        "/jules-scratch/test.html",
		Steps: []scenario.Step{
			{Name: "map pane visible", Run: mapReady, Checkpoint: "minimal_test"},
		},
	}
}

// PolygonWorkflow creates a category, draws a square and saves it as a feature in that category
func PolygonWorkflow() *scenario.Scenario {
	steps := polygonSteps()
	steps[len(steps)-1].Checkpoint = "polygon_workflow"
	return &scenario.Scenario{
		Name:        "polygon-workflow",
		Description: "Category, polygon drawing and feature save",
		Steps:       steps,
	}
}

// ObservationFilter attaches an observation to a saved polygon, then hides and
// shows its category through the legend toggle
func ObservationFilter() *scenario.Scenario {
	legendEntry := locator.LegendItem.WithText("Test Polygon")

	steps := polygonSteps()
	steps = append(steps,
		scenario.Step{Name: "open feature editor", Run: func(ctx context.Context, env *scenario.Env) error {
			return env.Actions.OpenFeatureEditor(ctx, env.Page, "Test Polygon")
		}},
		scenario.Step{Name: "add High observation", Run: func(ctx context.Context, env *scenario.Env) error {
			return env.Actions.AddObservation(ctx, env.Page, "High", "High severity observation.")
		}},
		scenario.Step{Name: "close feature editor", Run: func(ctx context.Context, env *scenario.Env) error {
			return env.Actions.CloseModal(ctx, env.Page)
		}},
		scenario.Step{Name: "observation icon visible", Run: func(ctx context.Context, env *scenario.Env) error {
			return env.Expect.ExpectVisible(ctx, env.Page, locator.ObservationIcon, legendTimeout)
		}},
		scenario.Step{Name: "hide category", Run: func(ctx context.Context, env *scenario.Env) error {
			if err := env.Actions.ToggleCategoryVisibility(ctx, env.Page, false); err != nil {
				return err
			}
			return env.Expect.ExpectHidden(ctx, env.Page, legendEntry, visibilityTimeout)
		}},
		scenario.Step{Name: "show category", Checkpoint: "verification", Run: func(ctx context.Context, env *scenario.Env) error {
			if err := env.Actions.ToggleCategoryVisibility(ctx, env.Page, true); err != nil {
				return err
			}
			return env.Expect.ExpectVisible(ctx, env.Page, legendEntry, visibilityTimeout)
		}},
	)

	return &scenario.Scenario{
		Name:        "observation-filter",
		Description: "Observation attachment and category visibility filter",
		Steps:       steps,
	}
}

// Rotation draws a line on a rotated map and checks the feature modal still opens
func Rotation() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "rotation",
		Description: "Drawing on a rotated map",
		Steps: []scenario.Step{
			{Name: "map pane visible", Run: mapReady},
			{Name: "rotate control visible", Run: func(ctx context.Context, env *scenario.Env) error {
				return env.Expect.ExpectVisible(ctx, env.Page, locator.RotateControl, mapReadyTimeout)
			}},
			{Name: "add category Rotation Test", Run: func(ctx context.Context, env *scenario.Env) error {
				return env.Actions.AddCategory(ctx, env.Page, "Rotation Test")
			}},
			{Name: "draw base polygon", Run: drawAndExpectModal(actions.ShapePolygon, baseTriangle)},
			{Name: "save Base Polygon", Run: saveAndExpectLegend(actions.FeatureFields{Name: "Base Polygon"})},
			{Name: "rotate map 4 times", Checkpoint: "rotation_step1", Run: func(ctx context.Context, env *scenario.Env) error {
				return env.Actions.RotateMap(ctx, env.Page, 4)
			}},
			{Name: "draw line while rotated", Run: drawAndExpectModal(actions.ShapeLine, rotatedLine)},
			{Name: "save Rotated Line", Checkpoint: "rotation_step2", Run: func(ctx context.Context, env *scenario.Env) error {
				return env.Actions.SaveFeature(ctx, env.Page, actions.FeatureFields{Name: "Rotated Line"})
			}},
		},
	}
}

// Contributors adds a project contributor and checks it is listed
func Contributors() *scenario.Scenario {
	const name = "Field Surveyor"
	return &scenario.Scenario{
		Name:        "contributors",
		Description: "Contributor manager add and list",
		Steps: []scenario.Step{
			{Name: "map pane visible", Run: mapReady},
			{Name: "add contributor", Run: func(ctx context.Context, env *scenario.Env) error {
				return env.Actions.AddContributor(ctx, env.Page, name, "Surveyor")
			}},
			{Name: "contributor listed", Checkpoint: "contributors", Run: func(ctx context.Context, env *scenario.Env) error {
				return env.Expect.ExpectText(ctx, env.Page, locator.ContributorItemName.WithText(name), name, 0)
			}},
			{Name: "close contributor manager", Run: func(ctx context.Context, env *scenario.Env) error {
				return env.Actions.CloseContributorManager(ctx, env.Page)
			}},
		},
	}
}

func polygonSteps() []scenario.Step {
	return []scenario.Step{
		{Name: "map pane visible", Run: mapReady},
		{Name: "add category Test Category", Run: func(ctx context.Context, env *scenario.Env) error {
			return env.Actions.AddCategory(ctx, env.Page, "Test Category")
		}},
		{Name: "draw polygon", Run: drawAndExpectModal(actions.ShapePolygon, testSquare)},
		// selecting the category proves it is offered by the save form
		{Name: "save Test Polygon", Run: saveAndExpectLegend(actions.FeatureFields{
			Name:        "Test Polygon",
			Description: "This is a test polygon.",
			Category:    "Test Category",
		})},
	}
}

func mapReady(ctx context.Context, env *scenario.Env) error {
	return env.WaitMapReady(ctx, mapReadyTimeout)
}

// drawAndExpectModal draws one shape and requires exactly one new-feature modal
func drawAndExpectModal(kind actions.ShapeKind, points []models.Point) scenario.StepFunc {
	return func(ctx context.Context, env *scenario.Env) error {
		if err := env.Actions.DrawShape(ctx, env.Page, kind, points); err != nil {
			return err
		}
		if err := env.Expect.ExpectVisible(ctx, env.Page, locator.NewFeatureTitle, 0); err != nil {
			return err
		}
		return env.Expect.ExpectCount(ctx, env.Page, locator.ModalTitle, 1, 0)
	}
}

func saveAndExpectLegend(fields actions.FeatureFields) scenario.StepFunc {
	return func(ctx context.Context, env *scenario.Env) error {
		if err := env.Actions.SaveFeature(ctx, env.Page, fields); err != nil {
			return err
		}
		return env.Expect.ExpectVisible(ctx, env.Page, locator.LegendItem.WithText(fields.Name), legendTimeout)
	}
}
