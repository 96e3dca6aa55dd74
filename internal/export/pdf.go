package export

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/gaiinsights/newswatch/internal/report"
)

// writePDF renders a minimal one-article-per-block PDF. This is intentionally
// simple: headline, source line, takeaway, and a clickable link.
func writePDF(p report.Payload, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "AI News Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d articles", len(p.Rows)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for i, r := range p.Rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, r.Title), "", "L", false)

		pdf.SetFont("Helvetica", "", 9)
		meta := r.Source
		if r.PublishedAt != "" {
			meta += " - " + r.PublishedAt
		}
		meta += fmt.Sprintf(" - relevance %.2f", r.Score)
		pdf.CellFormat(0, 5, meta, "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, r.Takeaway, "", "L", false)

		pdf.SetFont("Helvetica", "U", 9)
		pdf.SetTextColor(0, 0, 200)
		pdf.WriteLinkString(5, r.URL, r.URL)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(8)
	}

	return pdf.OutputFileAndClose(path)
}
