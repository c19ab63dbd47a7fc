// Package pdf renders carbon credit certificates.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Color represents an RGB color
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Options configures certificate rendering
type Options struct {
	PageSize    string `json:"page_size"`   // A4, Letter
	Orientation string `json:"orientation"` // portrait, landscape
	Issuer      string `json:"issuer"`
	DateFormat  string `json:"date_format"`
	FontFamily  string `json:"font_family"`
	AccentColor Color  `json:"accent_color"`
	RowColor    Color  `json:"row_color"`
}

// DefaultOptions returns default certificate options
func DefaultOptions() Options {
	return Options{
		PageSize:    "A4",
		Orientation: "landscape",
		Issuer:      "CarbonScribe Credit Registry",
		DateFormat:  "2 January 2006",
		FontFamily:  "Arial",
		AccentColor: Color{R: 34, G: 120, B: 74},
		RowColor:    Color{R: 240, G: 247, B: 242},
	}
}

// Certificate holds the values printed on a certificate.
type Certificate struct {
	CertificateNumber string
	SerialNumber      string
	ProjectName       string
	ProjectCategory   string
	Country           string
	CreditsAmount     float64
	Methodology       string
	Vintage           string
	Status            string
	IssuedAt          time.Time
	Beneficiary       string
	VerifyURL         string
}

// CertificateRenderer draws certificates with a fixed set of options.
type CertificateRenderer struct {
	options Options
}

func NewCertificateRenderer(options Options) *CertificateRenderer {
	return &CertificateRenderer{options: options}
}

// Render returns the certificate as a single-page PDF.
func (r *CertificateRenderer) Render(c Certificate) ([]byte, error) {
	orientation := "P"
	if r.options.Orientation == "landscape" {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", r.options.PageSize, "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Carbon Credit Certificate "+c.CertificateNumber, true)
	pdf.SetAuthor(r.options.Issuer, true)
	pdf.AddPage()

	r.drawBorder(pdf)
	r.drawHeading(pdf, c)
	r.drawDetails(pdf, c)
	r.drawFooter(pdf, c)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *CertificateRenderer) drawBorder(pdf *gofpdf.Fpdf) {
	w, h := pdf.GetPageSize()
	accent := r.options.AccentColor
	pdf.SetDrawColor(accent.R, accent.G, accent.B)
	pdf.SetLineWidth(1.5)
	pdf.Rect(8, 8, w-16, h-16, "D")
	pdf.SetLineWidth(0.3)
	pdf.Rect(11, 11, w-22, h-22, "D")
}

func (r *CertificateRenderer) drawHeading(pdf *gofpdf.Fpdf, c Certificate) {
	accent := r.options.AccentColor
	pdf.SetY(24)
	pdf.SetFont(r.options.FontFamily, "B", 24)
	pdf.SetTextColor(accent.R, accent.G, accent.B)
	pdf.CellFormat(0, 12, "Certificate of Carbon Credit Issuance", "", 1, "C", false, 0, "")

	pdf.SetFont(r.options.FontFamily, "", 12)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 8, r.options.Issuer, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(r.options.FontFamily, "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, fmt.Sprintf("%s tCO2e", formatAmount(c.CreditsAmount)), "", 1, "C", false, 0, "")
	pdf.SetFont(r.options.FontFamily, "", 11)
	pdf.CellFormat(0, 7, "issued to project "+c.ProjectName, "", 1, "C", false, 0, "")
	pdf.Ln(6)
}

func (r *CertificateRenderer) drawDetails(pdf *gofpdf.Fpdf, c Certificate) {
	rows := [][2]string{
		{"Certificate number", c.CertificateNumber},
		{"Serial number", c.SerialNumber},
		{"Project category", c.ProjectCategory},
		{"Country", c.Country},
		{"Methodology", c.Methodology},
		{"Vintage", c.Vintage},
		{"Status", c.Status},
		{"Issued", c.IssuedAt.Format(r.options.DateFormat)},
	}
	if c.Beneficiary != "" {
		rows = append(rows, [2]string{"Retired on behalf of", c.Beneficiary})
	}

	w, _ := pdf.GetPageSize()
	labelWidth, valueWidth := 60.0, 110.0
	left := (w - labelWidth - valueWidth) / 2
	fill := r.options.RowColor

	for i, row := range rows {
		pdf.SetX(left)
		if i%2 == 0 {
			pdf.SetFillColor(fill.R, fill.G, fill.B)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetFont(r.options.FontFamily, "B", 10)
		pdf.CellFormat(labelWidth, 7, row[0], "", 0, "L", true, 0, "")
		pdf.SetFont(r.options.FontFamily, "", 10)
		pdf.CellFormat(valueWidth, 7, row[1], "", 1, "L", true, 0, "")
	}
}

func (r *CertificateRenderer) drawFooter(pdf *gofpdf.Fpdf, c Certificate) {
	_, h := pdf.GetPageSize()
	pdf.SetY(h - 30)
	pdf.SetFont(r.options.FontFamily, "", 8)
	pdf.SetTextColor(128, 128, 128)
	if c.VerifyURL != "" {
		pdf.CellFormat(0, 5, "Verify this certificate at "+c.VerifyURL, "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 5, "Generated: "+time.Now().UTC().Format(time.RFC3339), "", 1, "C", false, 0, "")
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
