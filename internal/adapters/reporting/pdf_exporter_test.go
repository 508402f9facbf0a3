package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

func sampleReport() *domain.ThreatReport {
	return &domain.ThreatReport{
		Metadata: domain.ReportMetadata{
			ID:          "0f8fad5b-d9cb-469f-a165-70867728950e",
			Type:        domain.ReportTypeLandscape,
			Format:      domain.FormatPDF,
			Title:       "Threat Landscape Report",
			GeneratedAt: time.Now(),
			GeneratedBy: "CyberScope",
			Period: domain.DateRange{
				Start: time.Now().AddDate(0, 0, -30),
				End:   time.Now(),
			},
		},
		TotalThreats:  42,
		AnalyzedCount: 30,
		Severity: domain.SeverityCounts{
			Critical: 5,
			High:     12,
			Medium:   15,
			Low:      8,
			Unknown:  2,
			Total:    42,
		},
		TopRisks: []domain.ReportRisk{
			{Rank: 1, CVEID: "CVE-2024-12345", Title: "Remote code execution in reverse proxy", Severity: domain.SeverityCritical, RiskScore: 9.6},
			{Rank: 2, CVEID: "CVE-2024-22222", Title: "Authentication bypass", Severity: domain.SeverityHigh, RiskScore: 8.1},
			{Rank: 3, CVEID: "CVE-2024-33333", Title: "A very long vulnerability title that should be truncated in the risk table", Severity: domain.SeverityMedium, RiskScore: 5.4},
		},
		Categories: map[string]int{
			domain.CategoryWeb:     18,
			domain.CategoryCloud:   9,
			domain.CategoryNetwork: 7,
			domain.CategoryOther:   8,
		},
		Trending: []string{"CVE-2024-12345", "CVE-2024-22222"},
	}
}

func TestExportThreatReport(t *testing.T) {
	exporter := NewPDFExporter()

	pdfData, err := exporter.ExportThreatReport(sampleReport())
	if err != nil {
		t.Fatalf("ExportThreatReport() error = %v", err)
	}

	if len(pdfData) == 0 {
		t.Fatal("PDF data is empty")
	}

	// PDF files start with %PDF-
	if !bytes.HasPrefix(pdfData, []byte("%PDF-")) {
		t.Error("Generated data does not have PDF header")
	}

	if len(pdfData) < 1000 {
		t.Errorf("PDF file size %d bytes seems too small", len(pdfData))
	}

	if len(pdfData) > 1000000 {
		t.Errorf("PDF file size %d bytes seems too large", len(pdfData))
	}

	t.Logf("Generated PDF size: %d bytes", len(pdfData))
}

func TestExportThreatReportMinimal(t *testing.T) {
	exporter := NewPDFExporter()

	report := &domain.ThreatReport{
		Metadata: domain.ReportMetadata{
			ID:          "r-1",
			Title:       "Threat Landscape Report",
			GeneratedAt: time.Now(),
			GeneratedBy: "CyberScope",
		},
	}

	pdfData, err := exporter.ExportThreatReport(report)
	if err != nil {
		t.Fatalf("ExportThreatReport() with minimal data error = %v", err)
	}

	if !bytes.HasPrefix(pdfData, []byte("%PDF-")) {
		t.Error("Minimal report does not have PDF header")
	}
}

func TestExportThreatReportManyCategories(t *testing.T) {
	exporter := NewPDFExporter()

	report := sampleReport()
	report.Categories = map[string]int{}
	for _, label := range []string{
		domain.CategoryWeb, domain.CategoryCloud, domain.CategoryMobile,
		domain.CategoryNetwork, domain.CategoryIoT, domain.CategoryEndpoint,
		domain.CategoryOther,
	} {
		report.Categories[label] = 3
	}

	pdfData, err := exporter.ExportThreatReport(report)
	if err != nil {
		t.Fatalf("ExportThreatReport() error = %v", err)
	}

	if !bytes.HasPrefix(pdfData, []byte("%PDF-")) {
		t.Error("Report does not have PDF header")
	}
}

func TestSeverityColor(t *testing.T) {
	exporter := &PDFExporter{}

	tests := []struct {
		severity string
		wantR    int
	}{
		{domain.SeverityCritical, 220},
		{domain.SeverityHigh, 255},
		{domain.SeverityMedium, 255},
		{domain.SeverityLow, 52},
		{domain.SeverityUnknown, 150},
		{"", 150},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			r, g, b := exporter.severityColor(tt.severity)

			if r != tt.wantR {
				t.Errorf("severityColor(%q) red = %d, want %d", tt.severity, r, tt.wantR)
			}
			for _, v := range []int{r, g, b} {
				if v < 0 || v > 255 {
					t.Errorf("severityColor(%q) component %d out of range [0, 255]", tt.severity, v)
				}
			}
		})
	}
}

func BenchmarkExportThreatReport(b *testing.B) {
	exporter := NewPDFExporter()
	report := sampleReport()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exporter.ExportThreatReport(report); err != nil {
			b.Fatal(err)
		}
	}
}
