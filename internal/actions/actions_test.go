package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"go.uber.org/goleak"

	"github.com/ternarybob/mapcheck/internal/browser/fake"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/waiter"
)

var testLogger arbor.ILogger

func TestMain(m *testing.M) {
	testLogger = arbor.NewLogger()
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

func newActions(timeout time.Duration) *Actions {
	return New(waiter.New(5*time.Millisecond, 3, testLogger), Options{Timeout: timeout, SettleTimeout: time.Second}, testLogger)
}

func TestClick(t *testing.T) {
	page := fake.NewPage()
	save := locator.Button("Save")
	page.Show(save)

	require.NoError(t, newActions(time.Second).Click(context.Background(), page, save))
	assert.Equal(t, 1, page.Clicks(save))
}

func TestClick_WaitsForElement(t *testing.T) {
	page := fake.NewPage()
	save := locator.Button("Save")
	timer := page.After(30*time.Millisecond, func() { page.Show(save) })
	defer timer.Stop()

	require.NoError(t, newActions(time.Second).Click(context.Background(), page, save))
	assert.Equal(t, 1, page.Clicks(save))
}

func TestClick_ElementNotFound(t *testing.T) {
	page := fake.NewPage()
	save := locator.Button("Save")

	err := newActions(50*time.Millisecond).Click(context.Background(), page, save)

	var notFound *models.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, save.String(), notFound.Locator)
	assert.Equal(t, "click", notFound.Action)
	assert.GreaterOrEqual(t, notFound.Elapsed, 50*time.Millisecond)
	assert.Equal(t, "ElementNotFoundError", models.ErrorKind(err))
	assert.Zero(t, page.Clicks(save))
}

func TestClick_NotInteractable(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(p *fake.Page, loc locator.Locator)
		reason string
	}{
		{name: "hidden", setup: func(p *fake.Page, loc locator.Locator) { p.Show(loc); p.Hide(loc) }, reason: "not visible"},
		{name: "disabled", setup: func(p *fake.Page, loc locator.Locator) { p.Show(loc); p.Disable(loc) }, reason: "disabled"},
		{name: "covered", setup: func(p *fake.Page, loc locator.Locator) { p.Show(loc); p.Cover(loc, true) }, reason: "covered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := fake.NewPage()
			save := locator.Button("Save")
			tt.setup(page, save)

			err := newActions(40*time.Millisecond).Click(context.Background(), page, save)

			var notInteractable *models.ElementNotInteractableError
			require.ErrorAs(t, err, &notInteractable)
			assert.Contains(t, notInteractable.Reason, tt.reason)
			assert.Equal(t, "ElementNotInteractableError", models.ErrorKind(err))
			assert.Zero(t, page.Clicks(save))
		})
	}
}

func TestClick_UncoveredInTime(t *testing.T) {
	page := fake.NewPage()
	save := locator.Button("Save")
	page.Show(save)
	page.Cover(save, true)
	timer := page.After(30*time.Millisecond, func() { page.Cover(save, false) })
	defer timer.Stop()

	require.NoError(t, newActions(time.Second).Click(context.Background(), page, save))
}

func TestClick_QueryFailureSurfacesInTimeout(t *testing.T) {
	page := fake.NewPage()
	page.QueryErr = errors.New("target closed")

	err := newActions(30*time.Millisecond).Click(context.Background(), page, locator.CSS("#map"))

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Contains(t, err.Error(), "target closed")
}

func TestFill(t *testing.T) {
	page := fake.NewPage()
	name := locator.CSS("#Name")
	page.Show(name)

	require.NoError(t, newActions(time.Second).Fill(context.Background(), page, name, "Test Polygon"))
	assert.Equal(t, "Test Polygon", page.State(name).Value)
}

func TestFill_NotEditable(t *testing.T) {
	page := fake.NewPage()
	name := locator.CSS("#Name")
	page.Set(name, models.ElementState{Count: 1, Visible: true, Enabled: true, Editable: false})

	err := newActions(30*time.Millisecond).Fill(context.Background(), page, name, "x")

	var notInteractable *models.ElementNotInteractableError
	require.ErrorAs(t, err, &notInteractable)
	assert.Contains(t, notInteractable.Reason, "not editable")
}

func TestSelectOption(t *testing.T) {
	page := fake.NewPage()
	severity := locator.ObservationSeverity
	page.Select(severity, "Low", "Medium", "High", "Critical")

	a := newActions(40 * time.Millisecond)
	require.NoError(t, a.SelectOption(context.Background(), page, severity, "High"))
	assert.Equal(t, "High", page.State(severity).Value)

	err := a.SelectOption(context.Background(), page, severity, "Catastrophic")
	var notInteractable *models.ElementNotInteractableError
	require.ErrorAs(t, err, &notInteractable)
	assert.Equal(t, "no such option", notInteractable.Reason)
}

func TestCheckUncheck(t *testing.T) {
	page := fake.NewPage()
	toggle := locator.CategoryVisibility
	page.Checkbox(toggle, true)
	a := newActions(time.Second)

	require.NoError(t, a.Check(context.Background(), page, toggle))
	assert.Zero(t, page.Clicks(toggle), "already checked box must not be clicked")

	require.NoError(t, a.Uncheck(context.Background(), page, toggle))
	assert.False(t, page.State(toggle).Checked)
	assert.Equal(t, 1, page.Clicks(toggle))

	require.NoError(t, a.Check(context.Background(), page, toggle))
	assert.True(t, page.State(toggle).Checked)
	assert.Equal(t, 2, page.Clicks(toggle))
}

func TestCheck_StateNeverChanges(t *testing.T) {
	page := fake.NewPage()
	toggle := locator.CategoryVisibility
	// a plain element: clicks land but nothing toggles
	page.Show(toggle)

	err := newActions(40*time.Millisecond).Check(context.Background(), page, toggle)

	var notInteractable *models.ElementNotInteractableError
	require.ErrorAs(t, err, &notInteractable)
	assert.Equal(t, "check", notInteractable.Action)
}

func TestClickAt(t *testing.T) {
	page := fake.NewPage()
	page.ShowAt(locator.MapContainer, fake.MapBox)

	a := newActions(40 * time.Millisecond)
	require.NoError(t, a.ClickAt(context.Background(), page, locator.MapContainer, models.Point{X: 400, Y: 200}))
	assert.Contains(t, page.Actions(), "clickAt css=#map (400,200)")

	err := a.ClickAt(context.Background(), page, locator.MapContainer, models.Point{X: 5000, Y: 200})
	var notInteractable *models.ElementNotInteractableError
	require.ErrorAs(t, err, &notInteractable)
}

func TestAction_InvalidLocator(t *testing.T) {
	err := newActions(time.Second).Click(context.Background(), fake.NewPage(), locator.Locator{})
	assert.ErrorIs(t, err, locator.ErrEmpty)
}

func TestAction_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newActions(time.Second).Click(ctx, fake.NewPage(), locator.CSS("#map"))
	assert.ErrorIs(t, err, context.Canceled)
}
