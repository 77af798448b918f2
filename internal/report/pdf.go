package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/mapcheck/internal/models"
)

const (
	pageWidth  = 190.0 // A4 minus 10mm margins
	pageBottom = 297.0 - 10.0
)

// PDF renders the summary and embeds every checkpoint screenshot that is still on disk
func (s *Service) PDF(run *models.RunRecord) ([]byte, error) {
	markdown := s.Markdown(run)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Scenario run: "+run.Scenario, true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	source := []byte(markdown)
	doc := s.md.Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		source: source,
		logger: s.logger,
		size:   9,
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	r.embedCheckpoints(run.Checkpoints)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Str("run_id", run.ID).Msg("PDF report generated")
	return buf.Bytes(), nil
}

// PageCount reads a rendered report back and returns its number of pages
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	return pdfCtx.PageCount, nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	source    []byte
	logger    arbor.ILogger
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont("Arial", style, r.size)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			size := 10.0
			switch node.Level {
			case 1:
				size = 14
			case 2:
				size = 12
			}
			r.pdf.SetFont("Arial", "B", size)
		} else {
			r.pdf.Ln(7)
			r.updateFont()
		}
	case *ast.Paragraph:
		if !entering && r.listLevel == 0 {
			r.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, r.tr(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() {
				r.pdf.Write(5, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", r.size)
			r.pdf.Write(5, r.tr(string(node.Text(r.source))))
			r.updateFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			r.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			r.pdf.Ln(6)
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(10 + float64(r.listLevel)*5)
			r.pdf.Write(5, "- ")
		}
	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) codeBlock(lines *text.Segments) {
	r.pdf.SetFont("Courier", "", 8)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		r.pdf.MultiCell(0, 4, r.tr(strings.TrimRight(string(line.Value(r.source)), "\n")), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.updateFont()
	r.pdf.Ln(3)
}

func (r *pdfRenderer) table(n *extast.Table) {
	var rows [][]string
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for c := row.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, r.tr(strings.ReplaceAll(string(c.Text(r.source)), "\\|", "|")))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const fontSize, lineHeight = 8.0, 5.0
	widths := r.columnWidths(rows, fontSize)

	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont("Arial", "B", fontSize)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont("Arial", "", fontSize)
		}
		if r.pdf.GetY()+lineHeight > pageBottom {
			r.pdf.AddPage()
		}
		for j, value := range row {
			if j >= len(widths) {
				break
			}
			// truncate instead of wrapping; every cell is one line high
			for len(value) > 1 && r.pdf.GetStringWidth(value) > widths[j]-2 {
				value = value[:len(value)-1]
			}
			r.pdf.CellFormat(widths[j], lineHeight, value, "1", 0, "L", i == 0, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(3)
	r.updateFont()
}

// columnWidths sizes columns to their widest cell, scaled down to fit the page
func (r *pdfRenderer) columnWidths(rows [][]string, fontSize float64) []float64 {
	widths := make([]float64, len(rows[0]))
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont("Arial", style, fontSize)
		for j, value := range row {
			if j < len(widths) {
				if w := r.pdf.GetStringWidth(value) + 4; w > widths[j] {
					widths[j] = w
				}
			}
		}
	}

	total := 0.0
	for j := range widths {
		if widths[j] < 12 {
			widths[j] = 12
		}
		total += widths[j]
	}
	if total > pageWidth {
		scale := pageWidth / total
		for j := range widths {
			widths[j] *= scale
		}
	}
	return widths
}

// embedCheckpoints adds one screenshot per page section. Missing files are
// noted in the document rather than failing the report.
func (r *pdfRenderer) embedCheckpoints(checkpoints []models.Checkpoint) {
	for _, cp := range checkpoints {
		r.pdf.AddPage()
		r.pdf.SetFont("Arial", "B", 11)
		r.pdf.Write(6, r.tr(fmt.Sprintf("Checkpoint %02d: %s", cp.Seq, cp.Name)))
		r.pdf.Ln(8)
		r.updateFont()

		data, err := os.ReadFile(cp.Path)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", cp.Path).Msg("Checkpoint screenshot unavailable for PDF")
			r.pdf.Write(5, r.tr("Screenshot unavailable: "+cp.Path))
			r.pdf.Ln(6)
			continue
		}

		name := fmt.Sprintf("checkpoint-%d", cp.Seq)
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if err := r.pdf.Error(); err != nil {
			// a bad image poisons the document; report it and drop the image
			r.logger.Warn().Err(err).Str("path", cp.Path).Msg("Checkpoint screenshot could not be embedded")
			r.pdf.ClearError()
			r.pdf.Write(5, r.tr("Screenshot could not be embedded: "+cp.Path))
			r.pdf.Ln(6)
			continue
		}
		r.pdf.ImageOptions(name, 10, r.pdf.GetY(), pageWidth, 0, true, opts, 0, "")
	}
}
