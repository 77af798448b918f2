package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func testRun(id, scenario string, status models.RunStatus, createdAt time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:         id,
		Scenario:   scenario,
		Engine:     "chromedp",
		Status:     status,
		CreatedAt:  createdAt,
		FinishedAt: createdAt.Add(3 * time.Second),
		Steps: []models.StepResult{
			{Index: 0, Name: "open /", Passed: true, Duration: time.Second},
		},
	}
}

func TestRunStorage_SaveAndGet(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	ctx := context.Background()

	run := testRun("run-1", "rotation", models.RunStatusFailed, time.Now())
	run.FailedStep = "rotate map 4 times"
	run.ErrorKind = "TimeoutError"
	run.Checkpoints = []models.Checkpoint{{Seq: 1, Name: "failure_rotate", Path: "/tmp/01.png", Size: 42}}
	run.Console = []models.ConsoleMessage{{Type: "log", Text: "map ready", Time: time.Now()}}
	require.NoError(t, storage.SaveRun(ctx, run))

	got, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "rotation", got.Scenario)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "rotate map 4 times", got.FailedStep)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, time.Second, got.Steps[0].Duration)
	require.Len(t, got.Checkpoints, 1)
	assert.Equal(t, int64(42), got.Checkpoints[0].Size)
	require.Len(t, got.Console, 1)
	assert.Equal(t, 3*time.Second, got.Duration())
}

func TestRunStorage_SaveOverwrites(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	ctx := context.Background()

	run := testRun("run-1", "rotation", models.RunStatusRunning, time.Now())
	require.NoError(t, storage.SaveRun(ctx, run))
	run.Status = models.RunStatusPassed
	require.NoError(t, storage.SaveRun(ctx, run))

	got, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPassed, got.Status)

	all, err := storage.ListRuns(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunStorage_SaveRequiresID(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	assert.Error(t, storage.SaveRun(context.Background(), &models.RunRecord{Scenario: "x"}))
	assert.Error(t, storage.SaveRun(context.Background(), nil))
}

func TestRunStorage_ListRuns(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, storage.SaveRun(ctx, testRun("a", "rotation", models.RunStatusPassed, base)))
	require.NoError(t, storage.SaveRun(ctx, testRun("b", "polygon-workflow", models.RunStatusFailed, base.Add(time.Minute))))
	require.NoError(t, storage.SaveRun(ctx, testRun("c", "rotation", models.RunStatusFailed, base.Add(2*time.Minute))))

	ids := func(runs []*models.RunRecord) []string {
		out := []string{}
		for _, r := range runs {
			out = append(out, r.ID)
		}
		return out
	}

	all, err := storage.ListRuns(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all), "newest first")

	rotation, err := storage.ListRuns(ctx, &interfaces.RunListOptions{Scenario: "rotation"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(rotation))

	failed, err := storage.ListRuns(ctx, &interfaces.RunListOptions{Status: models.RunStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(failed))

	limited, err := storage.ListRuns(ctx, &interfaces.RunListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(limited))
}

func TestRunStorage_LatestRun(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, storage.SaveRun(ctx, testRun("old", "rotation", models.RunStatusPassed, base.Add(-time.Hour))))
	require.NoError(t, storage.SaveRun(ctx, testRun("new", "rotation", models.RunStatusFailed, base)))

	latest, err := storage.LatestRun(ctx, "rotation")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	_, err = storage.LatestRun(ctx, "contributors")
	assert.ErrorIs(t, err, interfaces.ErrRunNotFound)
}

func TestRunStorage_Delete(t *testing.T) {
	storage := newTestManager(t).RunStorage()
	ctx := context.Background()

	require.NoError(t, storage.SaveRun(ctx, testRun("gone", "rotation", models.RunStatusPassed, time.Now())))
	require.NoError(t, storage.DeleteRun(ctx, "gone"))

	_, err := storage.GetRun(ctx, "gone")
	assert.ErrorIs(t, err, interfaces.ErrRunNotFound)
	assert.ErrorIs(t, storage.DeleteRun(ctx, "gone"), interfaces.ErrRunNotFound)
}

func TestNewBadgerDB_ResetOnStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	first, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.RunStorage().SaveRun(ctx, testRun("kept", "rotation", models.RunStatusPassed, time.Now())))
	require.NoError(t, first.Close())

	second, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: path, ResetOnStartup: true})
	require.NoError(t, err)
	defer second.Close()

	runs, err := second.RunStorage().ListRuns(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewBadgerDB_RequiresPath(t *testing.T) {
	_, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{})
	assert.Error(t, err)
}

func TestManager_Prune(t *testing.T) {
	manager := newTestManager(t)
	storage := manager.RunStorage()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"r1", "r2", "r3", "r4"} {
		require.NoError(t, storage.SaveRun(ctx, testRun(id, "rotation", models.RunStatusPassed, base.Add(time.Duration(i)*time.Minute))))
	}

	deleted, err := manager.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	runs, err := storage.ListRuns(ctx, nil)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r4", runs[0].ID)
	assert.Equal(t, "r3", runs[1].ID)

	deleted, err = manager.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = manager.Prune(ctx, -1)
	assert.Error(t, err)
}

func TestBadgerDB_CompactEmpty(t *testing.T) {
	manager := newTestManager(t)
	assert.NoError(t, manager.db.Compact(), "nothing to rewrite is not an error")
}
