package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// ContentTypePDF is the media type of WritePDF output.
const ContentTypePDF = "application/pdf"

// Field is one labelled value in a document section.
type Field struct {
	Label string
	Value string
}

// Section groups fields under a heading.
type Section struct {
	Title  string
	Fields []Field
}

// Document is a single-record report.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

const (
	labelWidth = 55.0
	lineHeight = 6.0
)

// WritePDF renders doc on A4 pages. Empty sections are skipped.
func WritePDF(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	valueWidth := pageWidth - left - right - labelWidth

	for _, s := range doc.Sections {
		if len(s.Fields) == 0 {
			continue
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(0x4F, 0x81, 0xBD)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(0, 8, tr(s.Title), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(1)

		for _, f := range s.Fields {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(labelWidth, lineHeight, tr(f.Label), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(valueWidth, lineHeight, tr(f.Value), "", "L", false)
		}
		pdf.Ln(3)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("export: render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export: write pdf: %w", err)
	}
	return nil
}
