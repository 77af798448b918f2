package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"go.uber.org/goleak"
)

var testLogger arbor.ILogger

func TestMain(m *testing.M) {
	testLogger = arbor.NewLogger()
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

func TestWatcher_RunsOnSchedule(t *testing.T) {
	var calls atomic.Int32
	w := NewWatcher(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, testLogger)

	require.NoError(t, w.Start(context.Background(), "@every 1s"))
	defer w.Stop()

	st := w.Status()
	assert.Equal(t, "@every 1s", st.Schedule)
	assert.False(t, st.NextRun.IsZero())

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_InvalidSchedule(t *testing.T) {
	w := NewWatcher(func(context.Context) error { return nil }, testLogger)
	assert.Error(t, w.Start(context.Background(), "every tuesday"))
	w.Stop()
}

func TestWatcher_StartTwice(t *testing.T) {
	w := NewWatcher(func(context.Context) error { return nil }, testLogger)
	require.NoError(t, w.Start(context.Background(), "@every 1h"))
	defer w.Stop()
	assert.Error(t, w.Start(context.Background(), "@every 1h"))
}

func TestWatcher_SkipsOverlappingPasses(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	w := NewWatcher(func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}, testLogger)

	done := make(chan bool)
	go func() { done <- w.Trigger(context.Background()) }()
	<-entered

	assert.False(t, w.Trigger(context.Background()), "second pass must be skipped while the first runs")
	assert.True(t, w.Status().Running)

	close(release)
	assert.True(t, <-done)

	st := w.Status()
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, 1, st.Skipped)
	assert.False(t, st.Running)
}

func TestWatcher_RecordsFailures(t *testing.T) {
	fail := true
	w := NewWatcher(func(context.Context) error {
		if fail {
			return errors.New("scenario rotation failed")
		}
		return nil
	}, testLogger)

	w.Trigger(context.Background())
	st := w.Status()
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, "scenario rotation failed", st.LastError)

	fail = false
	w.Trigger(context.Background())
	st = w.Status()
	assert.Equal(t, 2, st.Runs)
	assert.Equal(t, 1, st.Failures)
	assert.Empty(t, st.LastError)
}

func TestWatcher_RecoversPanics(t *testing.T) {
	w := NewWatcher(func(context.Context) error { panic("browser vanished") }, testLogger)

	assert.True(t, w.Trigger(context.Background()))
	assert.Contains(t, w.Status().LastError, "browser vanished")
	assert.False(t, w.Status().Running)
}
