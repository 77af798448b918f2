package waiter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"go.uber.org/goleak"

	"github.com/ternarybob/mapcheck/internal/browser/fake"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

var testLogger arbor.ILogger

func TestMain(m *testing.M) {
	testLogger = arbor.NewLogger()
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

func newWaiter() *Waiter {
	return New(10*time.Millisecond, 3, testLogger)
}

func TestGoto(t *testing.T) {
	page := fake.NewPage()
	w := newWaiter()

	require.NoError(t, w.Goto(context.Background(), page, "http://localhost:8080/", time.Second))
	assert.Equal(t, "http://localhost:8080/", page.URL)
}

func TestGoto_NavigationError(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		loadErr error
	}{
		{name: "unreachable host", url: "http://unreachable.invalid/", loadErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
		{name: "unsupported scheme", url: "ftp://localhost/"},
		{name: "malformed", url: "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := fake.NewPage()
			page.NavigateErr = tt.loadErr

			err := newWaiter().Goto(context.Background(), page, tt.url, time.Second)

			var navErr *models.NavigationError
			require.ErrorAs(t, err, &navErr)
			assert.Equal(t, tt.url, navErr.URL)
			if tt.loadErr != nil {
				assert.ErrorIs(t, err, tt.loadErr)
			}
		})
	}
}

func TestWaitVisible_AlreadyVisible(t *testing.T) {
	page := fake.NewPage()
	pane := locator.CSS("#map .leaflet-pane")
	page.Show(pane)

	start := time.Now()
	require.NoError(t, newWaiter().WaitVisible(context.Background(), page, pane, time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitVisible_AppearsLater(t *testing.T) {
	page := fake.NewPage()
	pane := locator.CSS("#map .leaflet-pane")
	timer := page.After(40*time.Millisecond, func() { page.Show(pane) })
	defer timer.Stop()

	require.NoError(t, newWaiter().WaitVisible(context.Background(), page, pane, 2*time.Second))
}

func TestWaitVisible_Timeout(t *testing.T) {
	page := fake.NewPage()
	pane := locator.CSS("#map .leaflet-pane")
	page.Set(pane, models.ElementState{Count: 1, Visible: false})

	start := time.Now()
	err := newWaiter().WaitVisible(context.Background(), page, pane, 80*time.Millisecond)
	elapsed := time.Since(start)

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Equal(t, pane.String(), timeoutErr.Locator)
	assert.Equal(t, "visible", timeoutErr.Condition)
	assert.GreaterOrEqual(t, timeoutErr.Elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Contains(t, err.Error(), "#map .leaflet-pane")
}

func TestWaitVisible_KeepsLastProbeError(t *testing.T) {
	page := fake.NewPage()
	page.QueryErr = errors.New("execution context was destroyed")

	err := newWaiter().WaitVisible(context.Background(), page, locator.CSS("#map"), 50*time.Millisecond)

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Error(t, timeoutErr.Err)
	assert.Contains(t, err.Error(), "execution context was destroyed")
}

func TestWaitVisible_ParentCancelled(t *testing.T) {
	page := fake.NewPage()
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(30*time.Millisecond, cancel)
	defer timer.Stop()

	err := newWaiter().WaitVisible(ctx, page, locator.CSS("#map"), 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, models.ErrTimeout)
}

func TestWaitHidden(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *fake.Page, loc locator.Locator)
	}{
		{name: "never attached", setup: func(p *fake.Page, loc locator.Locator) {}},
		{name: "hidden", setup: func(p *fake.Page, loc locator.Locator) {
			p.Show(loc)
			p.Hide(loc)
		}},
		{name: "detached later", setup: func(p *fake.Page, loc locator.Locator) {
			p.Show(loc)
			p.After(30*time.Millisecond, func() { p.Remove(loc) })
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := fake.NewPage()
			item := locator.CSS(".legend-item").WithText("Test Polygon")
			tt.setup(page, item)

			require.NoError(t, newWaiter().WaitHidden(context.Background(), page, item, time.Second))
		})
	}
}

func TestWaitHidden_Timeout(t *testing.T) {
	page := fake.NewPage()
	item := locator.CSS(".legend-item")
	page.Show(item)

	err := newWaiter().WaitHidden(context.Background(), page, item, 50*time.Millisecond)

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "hidden", timeoutErr.Condition)
}

func TestUntil_ReturnsLastState(t *testing.T) {
	page := fake.NewPage()
	title := locator.CSS("#modal-title")
	page.Show(title)
	page.SetText(title, "Edit Feature")

	last, err := newWaiter().Until(context.Background(), page, title, "text", 50*time.Millisecond, func(s models.ElementState) bool {
		return s.Text == "New Feature Details"
	})

	require.Error(t, err)
	assert.Equal(t, "Edit Feature", last.Text)
}

func TestWaitStable(t *testing.T) {
	page := fake.NewPage()
	var calls int
	page.EvalFunc = func(expression string) (interface{}, error) {
		calls++
		if calls < 4 {
			return fmt.Sprintf("rotate(%ddeg)", calls*15), nil
		}
		return "rotate(60deg)", nil
	}

	require.NoError(t, newWaiter().WaitStable(context.Background(), page, "map rotation", "probe()", time.Second))
	// three changing samples, then three equal ones
	assert.GreaterOrEqual(t, calls, 6)
}

func TestWaitStable_NeverSettles(t *testing.T) {
	page := fake.NewPage()
	var calls int
	page.EvalFunc = func(expression string) (interface{}, error) {
		calls++
		return fmt.Sprint(calls), nil
	}

	err := newWaiter().WaitStable(context.Background(), page, "map rotation", "probe()", 60*time.Millisecond)

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "stable", timeoutErr.Condition)
	assert.Equal(t, "map rotation", timeoutErr.Locator)
}

func TestNew_Defaults(t *testing.T) {
	w := New(0, 0, testLogger)
	assert.Equal(t, DefaultPollInterval, w.PollInterval())
	assert.Equal(t, DefaultSettleSamples, w.settleSamples)
}
