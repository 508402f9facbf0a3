package reporting

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

// PDFExporter renders threat landscape reports to PDF format
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportThreatReport generates a PDF document from a threat landscape report
func (e *PDFExporter) ExportThreatReport(report *domain.ThreatReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addSeverityOverview(pdf, report)
	e.addTopRisks(pdf, report)
	e.addCategories(pdf, report)
	e.addFooter(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// addHeader adds the report title, generation date and covered period
func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report *domain.ThreatReport) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, report.Metadata.Title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	dateStr := fmt.Sprintf("Generated: %s", report.Metadata.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, dateStr, "", 1, "L", false, 0, "")

	if !report.Metadata.Period.Start.IsZero() {
		periodStr := fmt.Sprintf("Period: %s to %s",
			report.Metadata.Period.Start.Format("2006-01-02"),
			report.Metadata.Period.End.Format("2006-01-02"))
		pdf.CellFormat(0, 6, periodStr, "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addSeverityOverview adds the severity breakdown grid
func (e *PDFExporter) addSeverityOverview(pdf *gofpdf.Fpdf, report *domain.ThreatReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Threat Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	stats := []struct {
		label string
		value string
		color []int
	}{
		{"Total Threats", fmt.Sprintf("%d", report.TotalThreats), []int{0, 102, 204}},
		{"Analyzed", fmt.Sprintf("%d", report.AnalyzedCount), []int{0, 102, 204}},
		{"Critical", fmt.Sprintf("%d", report.Severity.Critical), []int{220, 53, 69}},
		{"High", fmt.Sprintf("%d", report.Severity.High), []int{255, 149, 0}},
		{"Medium", fmt.Sprintf("%d", report.Severity.Medium), []int{255, 204, 0}},
		{"Low", fmt.Sprintf("%d", report.Severity.Low), []int{52, 199, 89}},
		{"Unknown", fmt.Sprintf("%d", report.Severity.Unknown), []int{150, 150, 150}},
		{"Trending Now", fmt.Sprintf("%d", len(report.Trending)), []int{0, 102, 204}},
	}

	// Display in 2 columns
	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}

		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(stat.color[0], stat.color[1], stat.color[2])
		pdf.CellFormat(colWidth-50, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}

	pdf.Ln(10)
}

// addTopRisks adds the top risks table
func (e *PDFExporter) addTopRisks(pdf *gofpdf.Fpdf, report *domain.ThreatReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Top Risks", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.TopRisks) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No analyzed threats to rank", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	// Table header
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(15, 8, "Rank", "1", 0, "C", true, 0, "")
	pdf.CellFormat(45, 8, "CVE", "1", 0, "L", true, 0, "")
	pdf.CellFormat(65, 8, "Title", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Risk", "1", 1, "C", true, 0, "")

	// Table rows
	pdf.SetFont("Arial", "", 9)
	for _, risk := range report.TopRisks {
		r, g, b := e.severityColor(risk.Severity)

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", risk.Rank), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 7, risk.CVEID, "1", 0, "L", false, 0, "")

		title := risk.Title
		if len(title) > 38 {
			title = title[:35] + "..."
		}
		pdf.CellFormat(65, 7, title, "1", 0, "L", false, 0, "")

		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(25, 7, risk.Severity, "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(20, 7, fmt.Sprintf("%.1f", risk.RiskScore), "1", 1, "C", false, 0, "")
	}

	pdf.Ln(8)
}

// addCategories adds the category distribution rows
func (e *PDFExporter) addCategories(pdf *gofpdf.Fpdf, report *domain.ThreatReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Category Distribution", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.Categories) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No categorized threats", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	labels := make([]string, 0, len(report.Categories))
	for label := range report.Categories {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(60, 7, label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 102, 204)
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", report.Categories[label]), "", 1, "R", false, 0, "")
	}

	pdf.Ln(8)
}

// severityColor returns RGB color based on severity label
func (e *PDFExporter) severityColor(severity string) (r, g, b int) {
	switch severity {
	case domain.SeverityCritical:
		return 220, 53, 69 // Red
	case domain.SeverityHigh:
		return 255, 149, 0 // Orange
	case domain.SeverityMedium:
		return 255, 204, 0 // Yellow
	case domain.SeverityLow:
		return 52, 199, 89 // Green
	default:
		return 150, 150, 150 // Gray
	}
}

// addFooter adds the report footer
func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, report *domain.ThreatReport) {
	pdf.SetY(-20)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	id := report.Metadata.ID
	if len(id) > 8 {
		id = id[:8]
	}

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	footerText := fmt.Sprintf("Generated by %s | Report ID: %s", report.Metadata.GeneratedBy, id)
	pdf.CellFormat(0, 5, footerText, "", 1, "C", false, 0, "")
}
