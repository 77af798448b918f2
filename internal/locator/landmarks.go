package locator

// Landmarks of the map editor's DOM contract. A rename in the editor breaks
// the matching entry here and nowhere else.
var (
	MapContainer = CSS("#map")
	MapPane      = CSS("#map .leaflet-pane-map-pane")

	// Category manager
	ManageCategoriesButton = Button("Manage Categories")
	AddCategoryButton      = Button("Add New Category")
	CategoryNameInput      = CSS("#modal-body input[type='text']")
	CategoryManagerPanel   = CSS("#category-manager-panel")
	CategoryManagerOpen    = CSS("#category-manager-panel.open")
	CloseCategoryManager   = Button("×")
	SaveButton             = Button("Save")
	CloseButton            = Button("Close")

	// Drawing toolbar
	DrawPolygonTool  = CSS(".leaflet-draw-draw-polygon")
	DrawPolylineTool = CSS(".leaflet-draw-draw-polyline")
	DrawMarkerTool   = CSS(".leaflet-draw-draw-marker")

	// Feature details modal
	ModalTitle        = CSS("#modal-title")
	NewFeatureTitle   = ModalTitle.WithText("New Feature Details")
	EditFeatureTitle  = ModalTitle.WithText("Edit Feature")
	FeatureNameInput  = CSS("#Name")
	FeatureCategory   = CSS("#modal-body #category")
	DescriptionEditor = CSS(".ql-editor")

	// Legend and popups
	LegendItem         = CSS(".legend-item")
	ObservationIcon    = CSS(".legend-item .observation-icon")
	CategoryVisibility = CSS(".category-visibility-toggle")
	PopupContent       = CSS(".leaflet-popup-content-wrapper")
	EditPropsButton    = Button("Edit Props")
	ObservationsOnly   = CSS("#show-only-with-observations-toggle")

	// Observations
	AddObservationButton = Button("Add Observation")
	ObservationTitle     = CSS("#observation-modal-title")
	ObservationSeverity  = CSS("#observation-modal #severity")
	ObservationEditor    = CSS("#observation-modal .ql-editor")
	ObservationSave      = CSS("#observation-modal button").WithText("Save")

	// Rotation
	RotateControl = CSS(".leaflet-control-rotate")
	RotateToggle  = CSS("a.leaflet-control-rotate-toggle")

	// Contributors
	ManageContributorsButton = CSS("#manage-contributors-btn")
	ContributorPanel         = CSS("#contributor-manager-panel")
	ContributorPanelOpen     = CSS("#contributor-manager-panel.open")
	AddContributorButton     = CSS("#add-contributor-btn")
	ContributorNameInput     = CSS("#new-contributor-name")
	ContributorRoleInput     = CSS("#new-contributor-role")
	ContributorList          = CSS("#contributor-list")
	ContributorItemName      = CSS("#contributor-list .contributor-item-name")
	CloseContributorManager  = CSS("#close-contributor-manager-btn")

	// Export dialog
	ExportButton        = CSS("#export-project-btn")
	ExportGeoJSONButton = CSS("#modal-export-geojson")
	ExportCancelButton  = CSS("#modal-cancel-btn")
)
