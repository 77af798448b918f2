package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/locator"
)

// Severities accepted by the observation form
var Severities = []string{"Low", "Medium", "High", "Critical"}

// rotationProbe reports the map's current rotation transform; it stops
// changing once the rotate animation has finished
const rotationProbe = `(() => {
	const el = document.querySelector('#map .leaflet-rotate-pane') ||
		document.querySelector('#map .leaflet-map-pane') ||
		document.querySelector('#map');
	if (!el) return '';
	return getComputedStyle(el).transform + '|' + (el.style.transform || '');
})()`

// FeatureFields are the editable properties of a feature in the details modal
type FeatureFields struct {
	Name        string
	Description string
	// Category is selected by label; empty keeps the modal's default
	Category string
}

// AddCategory creates a category through the category manager and closes it.
// A failure partway leaves the manager open.
func (a *Actions) AddCategory(ctx context.Context, page interfaces.Page, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("category name is required")
	}

	steps := []struct {
		desc string
		run  func() error
	}{
		{"open category manager", func() error { return a.Click(ctx, page, locator.ManageCategoriesButton) }},
		{"open new category form", func() error { return a.Click(ctx, page, locator.AddCategoryButton) }},
		{"enter category name", func() error { return a.Fill(ctx, page, locator.CategoryNameInput, name) }},
		{"save category", func() error { return a.Click(ctx, page, locator.SaveButton) }},
		{"close category manager", func() error { return a.Click(ctx, page, locator.CloseCategoryManager) }},
		{"wait for category manager to close", func() error {
			return a.waiter.WaitHidden(ctx, page, locator.CategoryManagerOpen, a.opts.Timeout)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("add category %q: %s: %w", name, step.desc, err)
		}
	}

	a.logger.Debug().Str("category", name).Msg("Category added")
	return nil
}

// SaveFeature fills the open feature details modal and saves it
func (a *Actions) SaveFeature(ctx context.Context, page interfaces.Page, fields FeatureFields) error {
	if strings.TrimSpace(fields.Name) == "" {
		return fmt.Errorf("feature name is required")
	}

	if err := a.waiter.WaitVisible(ctx, page, locator.ModalTitle, a.opts.Timeout); err != nil {
		return fmt.Errorf("save feature %q: wait for details modal: %w", fields.Name, err)
	}
	if err := a.Fill(ctx, page, locator.FeatureNameInput, fields.Name); err != nil {
		return fmt.Errorf("save feature %q: enter name: %w", fields.Name, err)
	}
	if fields.Description != "" {
		if err := a.Fill(ctx, page, locator.DescriptionEditor, fields.Description); err != nil {
			return fmt.Errorf("save feature %q: enter description: %w", fields.Name, err)
		}
	}
	if fields.Category != "" {
		if err := a.SelectOption(ctx, page, locator.FeatureCategory, fields.Category); err != nil {
			return fmt.Errorf("save feature %q: choose category: %w", fields.Name, err)
		}
	}
	if err := a.Click(ctx, page, locator.SaveButton); err != nil {
		return fmt.Errorf("save feature %q: %w", fields.Name, err)
	}
	if err := a.waiter.WaitHidden(ctx, page, locator.FeatureNameInput, a.opts.Timeout); err != nil {
		return fmt.Errorf("save feature %q: wait for modal to close: %w", fields.Name, err)
	}

	a.logger.Debug().Str("feature", fields.Name).Str("category", fields.Category).Msg("Feature saved")
	return nil
}

// AddObservation attaches an observation to the feature whose edit modal is open
func (a *Actions) AddObservation(ctx context.Context, page interfaces.Page, severity, text string) error {
	if !validSeverity(severity) {
		return fmt.Errorf("unknown severity %q (want one of %s)", severity, strings.Join(Severities, ", "))
	}

	if err := a.Click(ctx, page, locator.AddObservationButton); err != nil {
		return fmt.Errorf("add observation: %w", err)
	}
	if err := a.waiter.WaitVisible(ctx, page, locator.ObservationTitle, a.opts.Timeout); err != nil {
		return fmt.Errorf("add observation: wait for form: %w", err)
	}
	if err := a.SelectOption(ctx, page, locator.ObservationSeverity, severity); err != nil {
		return fmt.Errorf("add observation: choose severity: %w", err)
	}
	if err := a.Fill(ctx, page, locator.ObservationEditor, text); err != nil {
		return fmt.Errorf("add observation: enter text: %w", err)
	}
	if err := a.Click(ctx, page, locator.ObservationSave); err != nil {
		return fmt.Errorf("add observation: save: %w", err)
	}
	if err := a.waiter.WaitHidden(ctx, page, locator.ObservationTitle, a.opts.Timeout); err != nil {
		return fmt.Errorf("add observation: wait for form to close: %w", err)
	}

	a.logger.Debug().Str("severity", severity).Msg("Observation added")
	return nil
}

func validSeverity(s string) bool {
	for _, v := range Severities {
		if v == s {
			return true
		}
	}
	return false
}

// OpenFeatureEditor opens the edit modal of a feature through its legend entry and popup
func (a *Actions) OpenFeatureEditor(ctx context.Context, page interfaces.Page, name string) error {
	if err := a.Click(ctx, page, locator.LegendItem.WithText(name)); err != nil {
		return fmt.Errorf("open feature %q: %w", name, err)
	}
	if err := a.waiter.WaitVisible(ctx, page, locator.PopupContent, a.opts.Timeout); err != nil {
		return fmt.Errorf("open feature %q: wait for popup: %w", name, err)
	}
	if err := a.Click(ctx, page, locator.EditPropsButton); err != nil {
		return fmt.Errorf("open feature %q: %w", name, err)
	}
	if err := a.waiter.WaitVisible(ctx, page, locator.EditFeatureTitle, a.opts.Timeout); err != nil {
		return fmt.Errorf("open feature %q: wait for edit modal: %w", name, err)
	}
	return nil
}

// CloseModal dismisses the feature modal without saving
func (a *Actions) CloseModal(ctx context.Context, page interfaces.Page) error {
	if err := a.Click(ctx, page, locator.CloseButton); err != nil {
		return fmt.Errorf("close modal: %w", err)
	}
	if err := a.waiter.WaitHidden(ctx, page, locator.ModalTitle, a.opts.Timeout); err != nil {
		return fmt.Errorf("close modal: %w", err)
	}
	return nil
}

// ToggleCategoryVisibility sets the legend's category visibility checkbox
func (a *Actions) ToggleCategoryVisibility(ctx context.Context, page interfaces.Page, visible bool) error {
	if visible {
		return a.Check(ctx, page, locator.CategoryVisibility)
	}
	return a.Uncheck(ctx, page, locator.CategoryVisibility)
}

// ShowOnlyWithObservations sets the legend filter for features with observations
func (a *Actions) ShowOnlyWithObservations(ctx context.Context, page interfaces.Page, on bool) error {
	if on {
		return a.Check(ctx, page, locator.ObservationsOnly)
	}
	return a.Uncheck(ctx, page, locator.ObservationsOnly)
}

// RotateMap clicks the rotate toggle times, waiting for the rotation to settle after each click
func (a *Actions) RotateMap(ctx context.Context, page interfaces.Page, times int) error {
	if times < 1 {
		return fmt.Errorf("rotate count must be positive, got %d", times)
	}
	for i := 1; i <= times; i++ {
		if err := a.Click(ctx, page, locator.RotateToggle); err != nil {
			return fmt.Errorf("rotate %d of %d: %w", i, times, err)
		}
		if err := a.waiter.WaitStable(ctx, page, "map rotation", rotationProbe, a.opts.SettleTimeout); err != nil {
			return fmt.Errorf("rotate %d of %d: %w", i, times, err)
		}
	}
	a.logger.Debug().Int("times", times).Msg("Map rotated")
	return nil
}

// AddContributor opens the contributor manager and adds a contributor.
// The manager is left open so the caller can inspect the list.
func (a *Actions) AddContributor(ctx context.Context, page interfaces.Page, name, role string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("contributor name is required")
	}
	if err := a.Click(ctx, page, locator.ManageContributorsButton); err != nil {
		return fmt.Errorf("add contributor %q: %w", name, err)
	}
	if err := a.waiter.WaitVisible(ctx, page, locator.ContributorPanelOpen, a.opts.Timeout); err != nil {
		return fmt.Errorf("add contributor %q: wait for manager: %w", name, err)
	}
	if err := a.Fill(ctx, page, locator.ContributorNameInput, name); err != nil {
		return fmt.Errorf("add contributor %q: %w", name, err)
	}
	if role != "" {
		if err := a.Fill(ctx, page, locator.ContributorRoleInput, role); err != nil {
			return fmt.Errorf("add contributor %q: %w", name, err)
		}
	}
	if err := a.Click(ctx, page, locator.AddContributorButton); err != nil {
		return fmt.Errorf("add contributor %q: %w", name, err)
	}
	return nil
}

// CloseContributorManager closes the contributor panel
func (a *Actions) CloseContributorManager(ctx context.Context, page interfaces.Page) error {
	if err := a.Click(ctx, page, locator.CloseContributorManager); err != nil {
		return fmt.Errorf("close contributor manager: %w", err)
	}
	return a.waiter.WaitHidden(ctx, page, locator.ContributorPanelOpen, a.opts.Timeout)
}

// OpenExportDialog opens the export modal
func (a *Actions) OpenExportDialog(ctx context.Context, page interfaces.Page) error {
	if err := a.Click(ctx, page, locator.ExportButton); err != nil {
		return fmt.Errorf("open export dialog: %w", err)
	}
	return a.waiter.WaitVisible(ctx, page, locator.ExportGeoJSONButton, a.opts.Timeout)
}

// CancelExportDialog closes the export modal without exporting
func (a *Actions) CancelExportDialog(ctx context.Context, page interfaces.Page) error {
	if err := a.Click(ctx, page, locator.ExportCancelButton); err != nil {
		return fmt.Errorf("cancel export dialog: %w", err)
	}
	return a.waiter.WaitHidden(ctx, page, locator.ExportGeoJSONButton, a.opts.Timeout)
}
