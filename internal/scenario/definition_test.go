package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/mapcheck/internal/browser/fake"
	"github.com/ternarybob/mapcheck/internal/models"
)

const polygonDefinition = `
name = "toml-polygon"
description = "Draw and save a polygon from a definition file"
path = "/index.html"

[[steps]]
action = "wait_visible"
selector = "#map .leaflet-pane-map-pane"

[[steps]]
title = "create category"
action = "add_category"
value = "Test Category"

[[steps]]
action = "draw"
shape = "polygon"
points = [{x = 100, y = 100}, {x = 200, y = 100}, {x = 150, y = 200}]

[[steps]]
action = "expect_text"
selector = "#modal-title"
text = "New Feature Details"

[[steps]]
action = "save_feature"
value = "Test Polygon"
description = "This is a test polygon."
category = "Test Category"
checkpoint = "polygon_saved"

[[steps]]
action = "expect_visible"
selector = ".legend-item"
has_text = "Test Polygon"
timeout = "2s"
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(polygonDefinition))
	require.NoError(t, err)

	assert.Equal(t, "toml-polygon", def.Name)
	require.Len(t, def.Steps, 6)
	assert.Equal(t, []models.Point{{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 150, Y: 200}}, def.Steps[2].Points)
	assert.Equal(t, "2s", def.Steps[5].Timeout)
}

func TestParseDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"syntax", `name = `},
		{"no name", "[[steps]]\naction = \"click\"\nselector = \"#a\""},
		{"no steps", `name = "x"`},
		{"unknown action", "name = \"x\"\n[[steps]]\naction = \"hover\"\nselector = \"#a\""},
		{"bad timeout", "name = \"x\"\n[[steps]]\naction = \"click\"\nselector = \"#a\"\ntimeout = \"soon\""},
		{"negative index", "name = \"x\"\n[[steps]]\naction = \"click\"\nselector = \"#a\"\nindex = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestCompile_StepNames(t *testing.T) {
	def, err := ParseDefinition([]byte(polygonDefinition))
	require.NoError(t, err)
	sc, err := Compile(def)
	require.NoError(t, err)

	require.Len(t, sc.Steps, 6)
	assert.Equal(t, `wait_visible css=#map .leaflet-pane-map-pane`, sc.Steps[0].Name)
	assert.Equal(t, "create category", sc.Steps[1].Name)
	assert.Equal(t, "step 3: draw", sc.Steps[2].Name)
	assert.Equal(t, "polygon_saved", sc.Steps[4].Checkpoint)
	assert.NoError(t, sc.Validate())
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		step StepDefinition
	}{
		{"click without target", StepDefinition{Action: "click"}},
		{"polygon with two points", StepDefinition{Action: "draw", Shape: "polygon", Points: []models.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}}},
		{"unknown shape", StepDefinition{Action: "draw", Shape: "circle"}},
		{"category without name", StepDefinition{Action: "add_category"}},
		{"feature without name", StepDefinition{Action: "save_feature"}},
		{"expect_text without text", StepDefinition{Action: "expect_text", Selector: "#a"}},
		{"capture without target", StepDefinition{Action: "capture"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&DefinitionFile{Name: "x", Steps: []StepDefinition{tt.step}})
			assert.Error(t, err)
		})
	}
}

func TestDefinition_RunsAgainstEditor(t *testing.T) {
	def, err := ParseDefinition([]byte(polygonDefinition))
	require.NoError(t, err)
	sc, err := Compile(def)
	require.NoError(t, err)

	page := fake.NewPage()
	editor := fake.NewEditor(page)
	engine := fake.NewEngine(page)

	record, err := newTestRunner(t, engine, nil).Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPassed, record.Status)
	assert.Equal(t, []string{"Test Category"}, editor.Categories())
	assert.Equal(t, []string{"Test Polygon"}, editor.Features())
	require.Len(t, record.Checkpoints, 1)
	assert.Equal(t, "polygon_saved", record.Checkpoints[0].Name)
}

func TestDefinition_CaptureExactPath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "verification.png")
	sc, err := Compile(&DefinitionFile{Name: "capture", Steps: []StepDefinition{
		{Action: "capture", Path: target},
	}})
	require.NoError(t, err)

	_, err = newTestRunner(t, fake.NewEngine(fake.NewPage()), nil).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.FileExists(t, target)
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "polygon.toml"), []byte(polygonDefinition), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("name = "), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-points.toml"), []byte("name = \"x\"\n[[steps]]\naction = \"draw\"\nshape = \"line\"\npoints = [{x = 1, y = 1}]"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.toml"), 0755))

	scenarios, err := LoadDefinitions(dir, testLogger)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "toml-polygon", scenarios[0].Name)
	assert.Equal(t, filepath.Join(dir, "polygon.toml"), scenarios[0].Source)
}

func TestLoadDefinitions_MissingDir(t *testing.T) {
	scenarios, err := LoadDefinitions(filepath.Join(t.TempDir(), "absent"), testLogger)
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}

func TestLoadDefinitions_DeploymentSamples(t *testing.T) {
	scenarios, err := LoadDefinitions(filepath.Join("..", "..", "deployments", "local", "scenarios"), testLogger)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	sc := scenarios[0]
	assert.Equal(t, "export-dialog", sc.Name)
	require.Len(t, sc.Steps, 5)
	assert.Equal(t, "open export dialog", sc.Steps[1].Name)
	assert.Equal(t, "export_dialog", sc.Steps[2].Checkpoint)
}
