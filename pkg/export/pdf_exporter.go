package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into tabular PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	return e.RenderSheets([]Sheet{{Title: title, Data: data}})
}

// RenderSheets writes each sheet on its own landscape page run, repeating
// the header row whenever a table breaks across pages.
func (e *PDFExporter) RenderSheets(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("pdf requires at least one sheet")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(false, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, pageHeight := pdf.GetPageSize()
	usable := pageWidth - 20
	bottom := pageHeight - 12

	for _, sheet := range sheets {
		if len(sheet.Data.Headers) == 0 {
			return nil, fmt.Errorf("pdf requires at least one header")
		}
		pdf.AddPage()
		title := sheet.Title
		if title == "" {
			title = sheet.Name
		}
		if title != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
			pdf.Ln(3)
		}

		colWidth := usable / float64(len(sheet.Data.Headers))
		header := func() {
			pdf.SetFont("Arial", "B", 8)
			pdf.SetFillColor(230, 230, 230)
			for _, h := range sheet.Data.Headers {
				pdf.CellFormat(colWidth, 7, tr(fit(pdf, h, colWidth)), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Arial", "", 8)
		}
		header()
		for _, row := range sheet.Data.Rows {
			if pdf.GetY()+6 > bottom {
				pdf.AddPage()
				header()
			}
			for _, h := range sheet.Data.Headers {
				pdf.CellFormat(colWidth, 6, tr(fit(pdf, row[h], colWidth)), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fit shortens text with an ellipsis until it fits the cell width.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
