package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cyberscope/cyberscope/internal/adapters/reporting"
	"github.com/cyberscope/cyberscope/internal/core/domain"
	reportingService "github.com/cyberscope/cyberscope/internal/core/services/reporting"
)

// reportPeriodDays is the window stamped on downloaded reports.
const reportPeriodDays = 30

// ReportHandler serves the downloadable threat landscape report
type ReportHandler struct {
	Generator *reportingService.ThreatReportGenerator
	Exporter  *reporting.PDFExporter
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(generator *reportingService.ThreatReportGenerator, exporter *reporting.PDFExporter) *ReportHandler {
	return &ReportHandler{
		Generator: generator,
		Exporter:  exporter,
	}
}

// HandleDownloadReport generates the landscape report and serves it as a
// PDF attachment
func (h *ReportHandler) HandleDownloadReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	period := domain.DateRange{
		Start: now.AddDate(0, 0, -reportPeriodDays),
		End:   now,
	}

	report, err := h.Generator.Generate(r.Context(), period)
	if err != nil {
		log.Printf("Failed to generate report: %v", err)
		http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		return
	}

	pdfData, err := h.Exporter.ExportThreatReport(report)
	if err != nil {
		log.Printf("Failed to render report PDF: %v", err)
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("cyberscope_report_%s.pdf", now.Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(pdfData)
}
