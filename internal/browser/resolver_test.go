package browser

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/waiter"
)

// stalledBackend answers resolver calls with state, or hangs until release
// is closed when the matching stall flag is set.
type stalledBackend struct {
	release    chan struct{}
	state      models.ElementState
	stallEval  bool
	stallClick bool
	stallShot  bool
}

func newStalledBackend(t *testing.T) *stalledBackend {
	b := &stalledBackend{release: make(chan struct{})}
	t.Cleanup(func() { close(b.release) })
	return b
}

func (b *stalledBackend) hang() error {
	<-b.release
	return errors.New("page closed")
}

func (b *stalledBackend) navigate(ctx context.Context, url string) error {
	return b.hang()
}

func (b *stalledBackend) evaluate(ctx context.Context, expression string, out interface{}) error {
	if b.stallEval {
		return b.hang()
	}
	raw, err := json.Marshal(resolveResult{State: b.state})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (b *stalledBackend) mouseClick(ctx context.Context, x, y float64) error {
	if b.stallClick {
		return b.hang()
	}
	return nil
}

func (b *stalledBackend) screenshot(ctx context.Context) ([]byte, error) {
	if b.stallShot {
		return nil, b.hang()
	}
	return []byte("png"), nil
}

func (b *stalledBackend) close() error { return nil }

func visibleButton() models.ElementState {
	return models.ElementState{Count: 1, Visible: true, Enabled: true, Box: models.Rect{X: 10, Y: 10, Width: 80, Height: 20}}
}

func TestDomPage_WaitVisibleWithHungEvaluate(t *testing.T) {
	b := newStalledBackend(t)
	b.stallEval = true
	page := &domPage{b: b}
	w := waiter.New(10*time.Millisecond, 2, testLogger)

	start := time.Now()
	err := w.WaitVisible(context.Background(), page, locator.CSS("#map"), 150*time.Millisecond)
	elapsed := time.Since(start)

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, elapsed, time.Second, "a hung page must not stretch the wait")
}

func TestDomPage_ClickWithHungMouse(t *testing.T) {
	b := newStalledBackend(t)
	b.state = visibleButton()
	b.stallClick = true
	page := &domPage{b: b}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := page.Click(ctx, locator.Button("Save"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDomPage_ScreenshotAndNavigateHonourDeadline(t *testing.T) {
	b := newStalledBackend(t)
	b.stallShot = true
	page := &domPage{b: b}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	data, err := page.Screenshot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, data)

	assert.ErrorIs(t, page.Navigate(ctx, "http://127.0.0.1:1/"), context.DeadlineExceeded)
}

func TestDomPage_Query(t *testing.T) {
	b := newStalledBackend(t)
	b.state = visibleButton()
	page := &domPage{b: b}

	state, err := page.Query(context.Background(), locator.Button("Save"))
	require.NoError(t, err)
	assert.True(t, state.Visible)
	assert.Equal(t, 80.0, state.Box.Width)

	require.NoError(t, page.Click(context.Background(), locator.Button("Save")))

	data, err := page.Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestDomPage_CancelledBeforeCall(t *testing.T) {
	b := newStalledBackend(t)
	b.state = visibleButton()
	page := &domPage{b: b}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := page.Query(ctx, locator.Button("Save"))
	assert.ErrorIs(t, err, context.Canceled)
}
