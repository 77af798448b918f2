package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/mapcheck/internal/browser"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/fixture"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// writeConfig writes a config that keeps every output under a temp dir
func writeConfig(t *testing.T, extra string) (path string, root string) {
	t.Helper()
	root = t.TempDir()
	path = filepath.Join(root, "mapcheck.toml")
	content := fmt.Sprintf(`
[output]
results_dir = %q
reports = ["markdown"]

[storage.badger]
path = %q

[logging]
level = "warn"

[scenarios]
dir = %q
%s
`, filepath.Join(root, "results"), filepath.Join(root, "data"), filepath.Join(root, "scenarios"), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, root
}

func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	root.SetErr(&out)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "MapCheck version "+common.GetVersion())
}

func TestList(t *testing.T) {
	cfg, root := writeConfig(t, "")
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smoke.toml"), []byte(`
name = "custom-smoke"
description = "Map pane renders"

[[steps]]
action = "wait_visible"
selector = "#map .leaflet-pane-map-pane"
`), 0644))

	out, err := execute(context.Background(), "list", "--config", cfg)
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "polygon-workflow")
	assert.Contains(t, out, "rotation")
	assert.Contains(t, out, "custom-smoke")
	assert.Contains(t, out, "smoke.toml")
	assert.Contains(t, out, "built-in")
}

func TestRun_UnknownScenario(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	_, err := execute(context.Background(), "run", "does-not-exist", "--config", cfg)
	assert.Error(t, err)

	var exitErr *exitError
	assert.False(t, errors.As(err, &exitErr), "lookup errors are not scenario failures")
}

func TestRun_LaunchFailureIsRecorded(t *testing.T) {
	cfg, root := writeConfig(t, `
[browser]
exec_path = "/nonexistent/chrome"
launch_timeout = "5s"
`)
	ctx := context.Background()

	out, err := execute(ctx, "run", "minimal-map", "--config", cfg, "--skip-preflight")
	require.Error(t, err)
	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.code)
	assert.Contains(t, out, "FAIL  minimal-map")

	out, err = execute(ctx, "history", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "minimal-map")
	assert.Contains(t, out, "failed")

	reportDir := filepath.Join(root, "reports")
	require.NoError(t, os.MkdirAll(reportDir, 0755))
	out, err = execute(ctx, "report", "--config", cfg, "--scenario", "minimal-map", "--format", "markdown,html", "--dir", reportDir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(reportDir, "report.md"))

	md, err := os.ReadFile(filepath.Join(reportDir, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Scenario run: minimal-map")
	assert.Contains(t, string(md), "LaunchError")
	assert.FileExists(t, filepath.Join(reportDir, "report.html"))

	out, err = execute(ctx, "history", "--config", cfg, "--keep", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 run(s)")
	assert.Contains(t, out, "No runs recorded")
}

func TestRun_PreflightFailure(t *testing.T) {
	cfg, root := writeConfig(t, "")

	_, err := execute(context.Background(), "run", "minimal-map", "--config", cfg, "--base-url", "http://127.0.0.1:1")

	var navErr *models.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.NoDirExists(t, filepath.Join(root, "data"), "no browser or history is touched")
}

func TestHistory_Empty(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	out, err := execute(context.Background(), "history", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}

func TestReport_UnknownRun(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	_, err := execute(context.Background(), "report", "missing-run", "--config", cfg)
	assert.Error(t, err)
}

func TestWatch_RequiresSchedule(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	_, err := execute(context.Background(), "watch", "--config", cfg)
	assert.ErrorContains(t, err, "no schedule")
}

func TestWatch_StopsOnCancel(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := execute(ctx, "watch", "minimal-map", "--schedule", "@every 1h", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Watching 1 scenario(s) on "@every 1h"`)
}

func TestFixtureCommand(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := execute(ctx, "fixture", "--addr", "127.0.0.1:0", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Fixture editor at http://127.0.0.1:")
}

func TestInvalidConfig(t *testing.T) {
	cfg, _ := writeConfig(t, `
[browser]
engine = "selenium"
`)
	_, err := execute(context.Background(), "list", "--config", cfg)
	assert.Error(t, err)

	_, err = execute(context.Background(), "list", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func chromeBinary() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// playwrightAvailable reports whether the playwright driver can start a browser
func playwrightAvailable(t *testing.T, chrome string) bool {
	engine, err := browser.NewEngine(browser.EnginePlaywright, common.GetLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	b, err := engine.Launch(ctx, interfaces.LaunchOptions{Headless: true, Width: 800, Height: 600, ExecPath: chrome, Timeout: 20 * time.Second})
	if err != nil {
		t.Logf("playwright unavailable: %v", err)
		return false
	}
	_ = b.Close()
	return true
}

// TestRun_AgainstFixture drives every built-in scenario through the stub
// editor on each engine
func TestRun_AgainstFixture(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	chrome := chromeBinary()
	if chrome == "" {
		t.Skip("no Chrome or Chromium found")
	}

	server := fixture.New("127.0.0.1:0", common.GetLogger())
	require.NoError(t, server.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	builtins := []string{"minimal-map", "polygon-workflow", "observation-filter", "rotation", "contributors"}

	for _, engine := range []string{browser.EngineChromedp, browser.EngineRod, browser.EnginePlaywright} {
		t.Run(engine, func(t *testing.T) {
			if engine == browser.EnginePlaywright && !playwrightAvailable(t, chrome) {
				t.Skip("playwright driver not installed")
			}

			cfg, root := writeConfig(t, fmt.Sprintf(`
[browser]
exec_path = %q
`, chrome))

			args := append([]string{"run"}, builtins...)
			args = append(args, "--config", cfg, "--engine", engine, "--base-url", server.URL(), "--report", "markdown,pdf")
			out, err := execute(context.Background(), args...)
			require.NoError(t, err, out)
			assert.Equal(t, len(builtins), strings.Count(out, "PASS"), out)

			for _, checkpoint := range []string{"minimal_test", "polygon_workflow", "verification", "rotation_step1", "rotation_step2", "contributors"} {
				shots, err := filepath.Glob(filepath.Join(root, "results", "*", "*_"+checkpoint+".png"))
				require.NoError(t, err)
				assert.NotEmpty(t, shots, "checkpoint %s", checkpoint)
			}
		})
	}
}
