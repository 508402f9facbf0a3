package domain

import "time"

// Severity labels carried by upstream feed records.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
	SeverityUnknown  = "UNKNOWN"
)

// Attack vector labels as reported by CVSS v3 metrics.
const (
	VectorNetwork         = "NETWORK"
	VectorAdjacentNetwork = "ADJACENT_NETWORK"
	VectorLocal           = "LOCAL"
	VectorPhysical        = "PHYSICAL"
)

// Category labels produced by the risk engine. Categorization is total:
// every threat maps to exactly one of these.
const (
	CategoryWeb      = "Web"
	CategoryCloud    = "Cloud"
	CategoryMobile   = "Mobile"
	CategoryNetwork  = "Network"
	CategoryIoT      = "IoT"
	CategoryEndpoint = "Endpoint"
	CategoryOther    = "Other"
)

// MetricThreatSnapshot is the metric name written after every collection run.
const MetricThreatSnapshot = "threat_snapshot"

// Threat is one tracked vulnerability keyed by its CVE identifier.
// Rows are created on first sighting and updated in place on later
// sightings; the pipeline never deletes them.
type Threat struct {
	ID          uint   `json:"-"`
	CVEID       string `json:"cve_id"` // e.g., "CVE-2024-0001"
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	CVSSScore *float64 `json:"cvss_score,omitempty"` // 0-10, nil when the feed had no metric
	Severity  string   `json:"severity"`

	PublishedDate *time.Time `json:"published_date,omitempty"`
	ModifiedDate  *time.Time `json:"modified_date,omitempty"`

	AffectedProducts map[string]any `json:"affected_products,omitempty"`
	AttackVector     string         `json:"attack_vector,omitempty"`
	Source           string         `json:"source,omitempty"` // e.g., "NVD"

	Analysis   *ThreatAnalysis  `json:"analysis,omitempty"`
	Categories []ThreatCategory `json:"categories,omitempty"`
}

// ThreatAnalysis is the derived narrative attached to a threat. Created at
// most once per threat; later collection runs only backfill a nil risk
// score and never overwrite the narrative fields.
type ThreatAnalysis struct {
	ID               uint      `json:"-"`
	ThreatID         uint      `json:"-"`
	Summary          string    `json:"summary,omitempty"`
	BusinessImpact   string    `json:"business_impact,omitempty"`
	MitigationAdvice string    `json:"mitigation_advice,omitempty"`
	RiskScore        *float64  `json:"risk_score,omitempty"` // 0-10
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// ThreatCategory labels a threat with a topic. A threat carries at most one
// row per label; re-categorization is idempotent, not additive.
type ThreatCategory struct {
	ID         uint    `json:"-"`
	ThreatID   uint    `json:"-"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"` // 0.0-1.0
}

// DashboardMetric is a single named aggregate snapshot. Exactly one row
// exists per metric name; each collection run replaces the payload
// wholesale, it is never appended to.
type DashboardMetric struct {
	ID         uint           `json:"-"`
	MetricName string         `json:"metric_name"`
	Value      map[string]any `json:"metric_value"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RiskFactors are the inputs to the risk score computation.
type RiskFactors struct {
	CVSSScore        *float64
	IsKnownExploited bool
	AttackVector     string
	AffectedProducts map[string]any
}

// TrendPoint is a per-day published-threat count served by the trends
// endpoint.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// ThreatFilter narrows dashboard threat listings.
type ThreatFilter struct {
	Severity string // exact severity label, empty for all
	Days     int    // only threats published in the last N days, 0 for all
	Limit    int    // max rows returned, 0 for the store default
}
