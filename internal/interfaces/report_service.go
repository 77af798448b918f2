package interfaces

import "github.com/ternarybob/mapcheck/internal/models"

// ReportService renders run records for humans
type ReportService interface {
	// Markdown renders the run summary
	Markdown(run *models.RunRecord) string
	// HTML converts the markdown summary to a standalone HTML page
	HTML(run *models.RunRecord) ([]byte, error)
	// PDF renders the summary with checkpoint screenshots embedded
	PDF(run *models.RunRecord) ([]byte, error)
}
