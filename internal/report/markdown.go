package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/mapcheck/internal/models"
)

// Markdown renders the run summary
func (s *Service) Markdown(run *models.RunRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Scenario run: %s\n\n", run.Scenario)

	b.WriteString("| Field | Value |\n")
	b.WriteString("|-------|-------|\n")
	fmt.Fprintf(&b, "| Run ID | %s |\n", cell(run.ID))
	fmt.Fprintf(&b, "| Status | %s |\n", statusLabel(run.Status))
	fmt.Fprintf(&b, "| Engine | %s |\n", cell(run.Engine))
	fmt.Fprintf(&b, "| Base URL | %s |\n", cell(run.BaseURL))
	fmt.Fprintf(&b, "| Started | %s |\n", run.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "| Duration | %s |\n", formatDuration(run.Duration()))
	if run.ResultsDir != "" {
		fmt.Fprintf(&b, "| Results | %s |\n", cell(run.ResultsDir))
	}

	if run.Status == models.RunStatusFailed {
		b.WriteString("\n## Failure\n\n")
		kind := run.ErrorKind
		if kind == "" {
			kind = "error"
		}
		fmt.Fprintf(&b, "Step **%s** failed with `%s`:\n\n", run.FailedStep, kind)
		b.WriteString("```\n")
		b.WriteString(strings.TrimRight(run.Error, "\n"))
		b.WriteString("\n```\n")
	}

	if len(run.Steps) > 0 {
		b.WriteString("\n## Steps\n\n")
		b.WriteString("| # | Step | Result | Duration |\n")
		b.WriteString("|---|------|--------|----------|\n")
		for _, step := range run.Steps {
			duration := ""
			if !step.Skipped {
				duration = formatDuration(step.Duration)
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", step.Index+1, cell(step.Name), stepLabel(step), duration)
		}
	}

	if len(run.Checkpoints) > 0 {
		b.WriteString("\n## Checkpoints\n\n")
		for _, cp := range run.Checkpoints {
			fmt.Fprintf(&b, "- `%s` %s (%d bytes)\n", filepath.Base(cp.Path), cp.Name, cp.Size)
		}
	}

	if len(run.Console) > 0 {
		b.WriteString("\n## Browser console\n\n")
		for _, msg := range run.Console {
			fmt.Fprintf(&b, "- [%s] %s\n", msg.Type, strings.TrimSpace(msg.Text))
		}
	}

	return b.String()
}

func statusLabel(status models.RunStatus) string {
	switch status {
	case models.RunStatusPassed:
		return "PASSED"
	case models.RunStatusFailed:
		return "FAILED"
	default:
		return strings.ToUpper(string(status))
	}
}

func stepLabel(step models.StepResult) string {
	switch {
	case step.Skipped:
		return "skipped"
	case step.Passed:
		return "passed"
	case step.ErrorKind != "":
		return fmt.Sprintf("FAILED (%s)", step.ErrorKind)
	default:
		return "FAILED"
	}
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// cell keeps a value from breaking a markdown table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
