package bill

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

// Renderer turns a document into a file and returns its path.
type Renderer interface {
	Render(doc Document) (string, error)
}

// PDFRenderer writes A4 bills into Dir.
type PDFRenderer struct {
	Dir string
}

func (r PDFRenderer) Render(doc Document) (string, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create bill dir: %w", err)
	}
	path := filepath.Join(r.Dir, doc.FileName())

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, doc.Store, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Date: "+doc.IssuedAt.Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Customer: "+doc.Customer, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Phone: "+doc.Phone, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{70, 25, 35, 40}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range []string{"Item", "Qty", "Rate", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, it := range doc.Items {
		pdf.CellFormat(widths[0], 7, it.Item, "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, it.Rate.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, it.Total.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	s := doc.Summary
	pdf.CellFormat(0, 7, "Subtotal: "+s.Subtotal.StringFixed(2), "T", 1, "R", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("GST (%d%%): %s", s.TaxPct, s.Tax.StringFixed(2)), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Discount (%d%%): -%s", s.DiscountPct, s.Discount.StringFixed(2)), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, "TOTAL: "+s.Total.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, "Thank you for shopping!", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}
