package fake

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

// MapBox is the map container's box in the simulated editor
var MapBox = models.Rect{X: 0, Y: 64, Width: 1200, Height: 800}

// Editor scripts a Page to behave like the map editor: panels open on
// click, drawing completes on the editor's gestures, saved features show
// up in the legend and the legend filter hides them again.
type Editor struct {
	Page *Page

	mu            sync.Mutex
	categories    []string
	features      []string
	drawing       string
	clicks        []models.Point
	form          string // which form the shared Save button submits
	rotation      int
	rotating      int
	contributors  []string
	observations  int
	featuresDrawn int

	// UpdateDelay postpones DOM changes caused by clicks, like an animated UI
	UpdateDelay time.Duration
	// LegendBroken stops saved features from reaching the legend
	LegendBroken bool
}

// NewEditor loads the editor into page
func NewEditor(page *Page) *Editor {
	e := &Editor{Page: page}

	page.ShowAt(locator.MapContainer, MapBox)
	page.ShowAt(locator.MapPane, MapBox)
	for _, loc := range []locator.Locator{
		locator.ManageCategoriesButton,
		locator.DrawPolygonTool,
		locator.DrawPolylineTool,
		locator.DrawMarkerTool,
		locator.RotateControl,
		locator.RotateToggle,
		locator.ManageContributorsButton,
		locator.ExportButton,
	} {
		page.Show(loc)
	}
	page.Checkbox(locator.ObservationsOnly, false)
	page.SetEvalFunc(e.evaluate)

	page.OnClick(locator.ManageCategoriesButton, func() {
		e.later(func() {
			page.Show(locator.CategoryManagerPanel)
			page.Show(locator.CategoryManagerOpen)
			page.Show(locator.AddCategoryButton)
			page.Show(locator.CloseCategoryManager)
		})
	})
	page.OnClick(locator.AddCategoryButton, func() {
		e.setForm("category")
		page.Show(locator.CategoryNameInput)
		page.Show(locator.SaveButton)
	})
	page.OnClick(locator.CloseCategoryManager, func() {
		e.later(func() {
			page.Remove(locator.CategoryManagerOpen)
			page.Hide(locator.CategoryManagerPanel)
			page.Hide(locator.AddCategoryButton)
			page.Hide(locator.CloseCategoryManager)
		})
	})
	page.OnClick(locator.SaveButton, e.save)

	for kind, tool := range map[string]locator.Locator{
		"polygon": locator.DrawPolygonTool,
		"line":    locator.DrawPolylineTool,
		"marker":  locator.DrawMarkerTool,
	} {
		kind := kind
		page.OnClick(tool, func() {
			e.mu.Lock()
			e.drawing = kind
			e.clicks = nil
			e.mu.Unlock()
		})
	}
	page.OnClickAt(locator.MapContainer, e.mapClick)

	page.OnClick(locator.EditPropsButton, func() {
		page.Hide(locator.PopupContent)
		e.openModal("Edit Feature")
		page.Show(locator.AddObservationButton)
	})
	page.OnClick(locator.AddObservationButton, func() {
		page.Show(locator.ObservationTitle)
		page.SetText(locator.ObservationTitle, "Add Observation")
		page.Select(locator.ObservationSeverity, "Low", "Medium", "High", "Critical")
		page.Show(locator.ObservationEditor)
		page.Show(locator.ObservationSave)
	})
	page.OnClick(locator.ObservationSave, func() {
		e.mu.Lock()
		e.observations++
		e.mu.Unlock()
		page.Remove(locator.ObservationTitle)
		page.Hide(locator.ObservationSeverity)
		page.Hide(locator.ObservationEditor)
		page.Hide(locator.ObservationSave)
		page.Show(locator.ObservationIcon)
	})
	page.OnClick(locator.CloseButton, e.closeModal)

	page.OnClick(locator.CategoryVisibility, func() {
		checked := page.State(locator.CategoryVisibility).Checked
		e.later(func() { e.setLegendVisible(checked) })
	})

	page.OnClick(locator.RotateToggle, func() {
		e.mu.Lock()
		e.rotation++
		e.rotating = 3
		e.mu.Unlock()
	})

	page.OnClick(locator.ManageContributorsButton, func() {
		e.later(func() {
			page.Show(locator.ContributorPanel)
			page.Show(locator.ContributorPanelOpen)
			page.Show(locator.ContributorNameInput)
			page.Show(locator.ContributorRoleInput)
			page.Show(locator.AddContributorButton)
			page.Show(locator.CloseContributorManager)
			page.Show(locator.ContributorList)
		})
	})
	page.OnClick(locator.AddContributorButton, func() {
		name := page.State(locator.ContributorNameInput).Value
		if strings.TrimSpace(name) == "" {
			return
		}
		e.mu.Lock()
		e.contributors = append(e.contributors, name)
		count := len(e.contributors)
		e.mu.Unlock()
		page.Show(locator.ContributorItemName.WithText(name))
		page.SetText(locator.ContributorItemName.WithText(name), name)
		page.Set(locator.ContributorItemName, models.ElementState{Count: count, Visible: true, Enabled: true, Text: name, Box: DefaultBox})
	})
	page.OnClick(locator.CloseContributorManager, func() {
		e.later(func() {
			page.Remove(locator.ContributorPanelOpen)
			page.Hide(locator.ContributorPanel)
		})
	})

	page.OnClick(locator.ExportButton, func() {
		page.Show(locator.ExportGeoJSONButton)
		page.Show(locator.ExportCancelButton)
	})
	page.OnClick(locator.ExportCancelButton, func() {
		page.Hide(locator.ExportGeoJSONButton)
		page.Hide(locator.ExportCancelButton)
	})

	return e
}

// Categories returns the categories created so far
func (e *Editor) Categories() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.categories...)
}

// Features returns the names of saved features
func (e *Editor) Features() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.features...)
}

// FeaturesDrawn counts completed drawings, saved or not
func (e *Editor) FeaturesDrawn() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.featuresDrawn
}

// Observations counts saved observations
func (e *Editor) Observations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observations
}

// Rotation counts rotate clicks
func (e *Editor) Rotation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rotation
}

func (e *Editor) later(fn func()) {
	e.mu.Lock()
	delay := e.UpdateDelay
	e.mu.Unlock()
	if delay <= 0 {
		fn()
		return
	}
	e.Page.After(delay, fn)
}

func (e *Editor) setForm(form string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form = form
}

func (e *Editor) save() {
	e.mu.Lock()
	form := e.form
	e.form = ""
	e.mu.Unlock()

	switch form {
	case "category":
		name := e.Page.State(locator.CategoryNameInput).Value
		e.mu.Lock()
		e.categories = append(e.categories, name)
		e.mu.Unlock()
		e.Page.Hide(locator.CategoryNameInput)
		e.Page.Hide(locator.SaveButton)
		if !e.Page.State(locator.CategoryVisibility).Found() {
			e.Page.Checkbox(locator.CategoryVisibility, true)
		}
	case "feature":
		name := e.Page.State(locator.FeatureNameInput).Value
		e.mu.Lock()
		e.features = append(e.features, name)
		broken := e.LegendBroken
		e.mu.Unlock()
		e.closeModal()
		if broken {
			return
		}
		item := locator.LegendItem.WithText(name)
		e.later(func() {
			e.Page.Show(item)
			e.Page.SetText(item, name)
		})
		e.Page.OnClick(item, func() {
			e.Page.Show(locator.PopupContent)
			e.Page.Show(locator.EditPropsButton)
		})
	}
}

func (e *Editor) mapClick(p models.Point) {
	e.mu.Lock()
	if e.drawing == "" {
		e.mu.Unlock()
		return
	}
	e.clicks = append(e.clicks, p)
	n := len(e.clicks)
	done := false
	switch e.drawing {
	case "polygon":
		done = n >= 4 && e.clicks[n-1] == e.clicks[0]
	case "line":
		done = n >= 3 && e.clicks[n-1] == e.clicks[n-2]
	case "marker":
		done = true
	}
	if done {
		e.drawing = ""
		e.clicks = nil
		e.featuresDrawn++
	}
	e.mu.Unlock()

	if done {
		e.later(func() { e.openModal("New Feature Details") })
	}
}

func (e *Editor) openModal(title string) {
	e.setForm("feature")
	page := e.Page
	page.Show(locator.ModalTitle)
	page.SetText(locator.ModalTitle, title)
	switch title {
	case "New Feature Details":
		page.Remove(locator.EditFeatureTitle)
		page.Show(locator.NewFeatureTitle)
		page.SetText(locator.NewFeatureTitle, title)
	case "Edit Feature":
		page.Remove(locator.NewFeatureTitle)
		page.Show(locator.EditFeatureTitle)
		page.SetText(locator.EditFeatureTitle, title)
	}
	page.Show(locator.FeatureNameInput)
	page.Show(locator.DescriptionEditor)
	page.Select(locator.FeatureCategory, e.Categories()...)
	page.Show(locator.SaveButton)
	page.Show(locator.CloseButton)
}

func (e *Editor) closeModal() {
	e.setForm("")
	page := e.Page
	for _, loc := range []locator.Locator{
		locator.ModalTitle,
		locator.NewFeatureTitle,
		locator.EditFeatureTitle,
		locator.FeatureNameInput,
		locator.DescriptionEditor,
		locator.FeatureCategory,
		locator.SaveButton,
		locator.CloseButton,
		locator.AddObservationButton,
	} {
		page.Hide(loc)
	}
}

func (e *Editor) setLegendVisible(visible bool) {
	for _, name := range e.Features() {
		item := locator.LegendItem.WithText(name)
		if visible {
			e.Page.Show(item)
		} else {
			e.Page.Hide(item)
		}
	}
}

// evaluate answers the rotation probe: the transform keeps changing for a
// few samples after each rotate click, then holds still
func (e *Editor) evaluate(expression string) (interface{}, error) {
	if !strings.Contains(expression, "transform") {
		return nil, fmt.Errorf("fake editor: unsupported expression")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rotating > 0 {
		e.rotating--
		return fmt.Sprintf("matrix(animating-%d-%d)", e.rotation, e.rotating), nil
	}
	return fmt.Sprintf("rotate(%ddeg)", e.rotation*15), nil
}
