package domain

import "time"

// Report type and format identifiers.
const (
	ReportTypeLandscape = "threat_landscape"
	FormatPDF           = "pdf"
)

// ReportMetadata identifies a generated report.
type ReportMetadata struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Format      string    `json:"format"`
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	GeneratedBy string    `json:"generated_by"`
	Period      DateRange `json:"period"`
}

// DateRange bounds the data included in a report. Zero values mean
// unbounded.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SeverityCounts breaks the threat population down by severity label.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unknown  int `json:"unknown"`
	Total    int `json:"total"`
}

// ReportRisk is one row of the top-risks table.
type ReportRisk struct {
	Rank      int     `json:"rank"`
	CVEID     string  `json:"cve_id"`
	Title     string  `json:"title"`
	Severity  string  `json:"severity"`
	RiskScore float64 `json:"risk_score"`
}

// ThreatReport is the aggregate threat landscape summary rendered to PDF.
type ThreatReport struct {
	Metadata      ReportMetadata `json:"metadata"`
	TotalThreats  int            `json:"total_threats"`
	AnalyzedCount int            `json:"analyzed_count"`
	Severity      SeverityCounts `json:"severity"`
	TopRisks      []ReportRisk   `json:"top_risks"`
	Categories    map[string]int `json:"categories"`
	Trending      []string       `json:"trending"`
}
