// invoice_pdf.go - A4 tax invoice rendered with gofpdf

package pdf

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/bosocmputer/voicebill/internal/processor"
	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
)

const (
	logoName      = "business-logo"
	logoMaxPixels = 240
	pageWidth     = 190.0 // A4 minus 10mm margins
)

type Config struct {
	CompanyName    string
	CompanyAddress []string
	// LogoPath is an optional image drawn top-left; any format imaging can decode
	LogoPath string
}

// Renderer turns a stored invoice into a PDF document
type Renderer struct {
	cfg  Config
	logo []byte // PNG, already downscaled
	log  *logger.Logger
}

func NewRenderer(log *logger.Logger, cfg Config) *Renderer {
	if cfg.CompanyName == "" {
		cfg.CompanyName = "VoiceBill Solutions Pvt. Ltd."
	}
	r := &Renderer{cfg: cfg, log: log.With("service", "PDFRenderer")}
	if cfg.LogoPath != "" {
		logo, err := loadLogo(cfg.LogoPath)
		if err != nil {
			r.log.Warn("logo not loaded, rendering without it", "path", cfg.LogoPath, "error", err)
		} else {
			r.logo = logo
		}
	}
	return r
}

// loadLogo decodes the image, fits it into logoMaxPixels and re-encodes it as PNG
func loadLogo(path string) ([]byte, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open logo: %w", err)
	}
	return encodeLogo(img)
}

func encodeLogo(img image.Image) ([]byte, error) {
	fitted := imaging.Fit(img, logoMaxPixels, logoMaxPixels, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode logo: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Bytes(inv *storage.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, inv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Render(w io.Writer, inv *storage.Invoice) error {
	if inv == nil {
		return fmt.Errorf("invoice required")
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(10, 12, 10)
	doc.SetAutoPageBreak(true, 12)
	doc.SetTitle("Invoice "+inv.InvoiceNumber, true)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	// Step 1: header
	if len(r.logo) > 0 {
		doc.RegisterImageOptionsReader(logoName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(r.logo))
		doc.ImageOptions(logoName, 10, 10, 0, 18, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		doc.SetX(32)
	}
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(95, 8, tr(r.cfg.CompanyName), "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(0, 137, 123)
	doc.CellFormat(0, 8, "TAX INVOICE", "", 1, "R", false, 0, "")
	doc.SetTextColor(128, 128, 128)
	doc.SetFont("Helvetica", "", 9)
	if len(r.logo) > 0 {
		doc.Ln(8)
	}
	for _, line := range r.cfg.CompanyAddress {
		doc.CellFormat(0, 4.5, tr(line), "", 1, "L", false, 0, "")
	}
	doc.Ln(3)
	doc.SetDrawColor(0, 137, 123)
	doc.SetLineWidth(0.7)
	doc.Line(10, doc.GetY(), 10+pageWidth, doc.GetY())
	doc.Ln(5)

	// Step 2: invoice info
	doc.SetTextColor(0, 0, 0)
	doc.SetDrawColor(160, 160, 160)
	doc.SetLineWidth(0.2)
	for _, row := range infoRows(inv) {
		doc.SetFont("Helvetica", "B", 10)
		doc.SetFillColor(224, 242, 241)
		doc.CellFormat(50, 8, row[0], "1", 0, "R", true, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(100, 8, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	doc.Ln(6)

	// Step 3: items table
	doc.SetFont("Helvetica", "B", 13)
	doc.SetTextColor(0, 105, 92)
	doc.CellFormat(0, 8, "ITEMS", "", 1, "L", false, 0, "")
	doc.SetTextColor(255, 255, 255)
	doc.SetFillColor(0, 137, 123)
	doc.SetFont("Helvetica", "B", 11)
	widths := []float64{80, 35, 35, 40}
	for i, h := range []string{"Item", "Quantity", "Price", "Total"} {
		doc.CellFormat(widths[i], 9, h, "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetTextColor(0, 0, 0)
	doc.SetFont("Helvetica", "", 10)
	for i, item := range inv.Items {
		fill := i%2 == 1
		doc.SetFillColor(245, 245, 245)
		doc.CellFormat(widths[0], 8, tr(item.Name), "1", 0, "L", fill, 0, "")
		doc.CellFormat(widths[1], 8, processor.FormatQuantity(item.Quantity), "1", 0, "C", fill, 0, "")
		doc.CellFormat(widths[2], 8, rupees(item.Price), "1", 0, "C", fill, 0, "")
		doc.CellFormat(widths[3], 8, rupees(item.Total), "1", 1, "C", fill, 0, "")
	}
	doc.Ln(5)

	// Step 4: totals
	doc.SetFont("Helvetica", "", 10)
	summaryRow(doc, "Subtotal:", rupees(inv.Subtotal))
	summaryRow(doc, fmt.Sprintf("GST (%s%%):", processor.FormatPercent(inv.TaxRate)), rupees(inv.Tax))
	if inv.AmountPaid > 0 {
		summaryRow(doc, "Amount Paid:", rupees(inv.AmountPaid))
		summaryRow(doc, "Amount Due:", rupees(inv.AmountDue))
	}
	doc.SetDrawColor(0, 137, 123)
	doc.SetLineWidth(0.7)
	doc.Line(110, doc.GetY()+1, 10+pageWidth, doc.GetY()+1)
	doc.Ln(3)
	doc.SetFont("Helvetica", "B", 14)
	doc.SetTextColor(0, 137, 123)
	summaryRow(doc, "TOTAL:", rupees(inv.Total))
	doc.Ln(5)

	// Step 5: payment box and terms
	if inv.PaymentLink != "" {
		doc.SetFillColor(224, 242, 241)
		doc.SetTextColor(0, 0, 0)
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(0, 9, "Click the link to pay via UPI/Cards/Net Banking", "LTR", 1, "C", true, 0, "")
		doc.SetFont("Helvetica", "", 8)
		doc.SetTextColor(0, 137, 123)
		doc.CellFormat(0, 8, inv.PaymentLink, "LBR", 1, "C", true, 0, inv.PaymentLink)
		doc.Ln(5)
	}
	doc.SetTextColor(128, 128, 128)
	doc.SetFont("Helvetica", "", 8)
	doc.MultiCell(0, 4, "Terms & Conditions: Payment due on delivery. Goods once sold will not be taken back.\n"+
		"Payment Methods: Cash, UPI, Cards, Net Banking\nThank you for your business!", "", "C", false)

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render pdf %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

func infoRows(inv *storage.Invoice) [][2]string {
	customer := inv.CustomerName
	if customer == "" {
		customer = "Walk-in Customer"
	}
	rows := [][2]string{
		{"Invoice Number:", inv.InvoiceNumber},
		{"Date:", inv.Date.Format("02 January 2006")},
		{"Customer:", customer},
	}
	if inv.CustomerPhone != "" {
		rows = append(rows, [2]string{"Phone:", inv.CustomerPhone})
	}
	if inv.CustomerEmail != "" {
		rows = append(rows, [2]string{"Email:", inv.CustomerEmail})
	}
	if inv.CustomerAddress != "" {
		rows = append(rows, [2]string{"Address:", inv.CustomerAddress})
	}
	status := inv.Status
	if status == "" {
		status = storage.StatusUnpaid
	}
	return append(rows, [2]string{"Status:", strings.ToUpper(status)})
}

func summaryRow(doc *gofpdf.Fpdf, label, value string) {
	doc.CellFormat(140, 7, label, "", 0, "R", false, 0, "")
	doc.CellFormat(50, 7, value, "", 1, "R", false, 0, "")
}

// core PDF fonts have no rupee glyph
func rupees(v float64) string {
	return fmt.Sprintf("Rs. %.2f", v)
}
