// Package report renders stored scenario runs as Markdown, HTML and PDF.
package report

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// Report formats accepted by WriteAll
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

// Service implements interfaces.ReportService
type Service struct {
	logger arbor.ILogger
	md     goldmark.Markdown
}

// Compile-time assertion
var _ interfaces.ReportService = (*Service)(nil)

// NewService creates a new report service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
		md:     goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
pre { background: #f5f5f5; padding: 8px; white-space: pre-wrap; }
</style>
</head>
<body>
%s</body>
</html>
`

// HTML converts the markdown summary to a standalone HTML page
func (s *Service) HTML(run *models.RunRecord) ([]byte, error) {
	var body bytes.Buffer
	if err := s.md.Convert([]byte(s.Markdown(run)), &body); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}
	title := html.EscapeString("Scenario run: " + run.Scenario)
	return []byte(fmt.Sprintf(htmlTemplate, title, body.String())), nil
}

// WriteAll renders each format into dir (the run's results directory when
// dir is empty) and returns the written paths.
func (s *Service) WriteAll(run *models.RunRecord, formats []string, dir string) ([]string, error) {
	if dir == "" {
		dir = run.ResultsDir
	}
	if dir == "" {
		return nil, fmt.Errorf("run %s has no results directory", run.ID)
	}

	var paths []string
	for _, format := range formats {
		var (
			name string
			data []byte
			err  error
		)
		switch format {
		case FormatMarkdown:
			name, data = "report.md", []byte(s.Markdown(run))
		case FormatHTML:
			name = "report.html"
			data, err = s.HTML(run)
		case FormatPDF:
			name = "report.pdf"
			data, err = s.PDF(run)
		default:
			return paths, fmt.Errorf("unknown report format %q", format)
		}
		if err != nil {
			return paths, err
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, &models.IOError{Op: "write", Path: path, Err: err}
		}
		if format == FormatPDF {
			if pages, err := PageCount(data); err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("Written PDF could not be read back")
			} else {
				s.logger.Debug().Int("pages", pages).Str("path", path).Msg("PDF report pages")
			}
		}
		s.logger.Debug().Str("format", format).Str("path", path).Int("size", len(data)).Msg("Report written")
		paths = append(paths, path)
	}
	return paths, nil
}
