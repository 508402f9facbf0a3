package domain

import "time"

// FetchedThreat is a normalized feed record before it is merged into
// storage. Field values are last-write-wins against an existing Threat
// with the same identifier.
type FetchedThreat struct {
	CVEID            string         `json:"cve_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	CVSSScore        *float64       `json:"cvss_score,omitempty"`
	Severity         string         `json:"severity"`
	PublishedDate    *time.Time     `json:"published_date,omitempty"`
	ModifiedDate     *time.Time     `json:"modified_date,omitempty"`
	AffectedProducts map[string]any `json:"affected_products,omitempty"`
	AttackVector     string         `json:"attack_vector,omitempty"`
	Source           string         `json:"source"`
}

// ThreatSummary is the compact threat shape broadcast to live dashboard
// clients.
type ThreatSummary struct {
	CVEID     string   `json:"cve_id"`
	Title     string   `json:"title"`
	Severity  string   `json:"severity"`
	RiskScore *float64 `json:"risk_score,omitempty"`
}

// CollectionEvent describes one finished collection run.
type CollectionEvent struct {
	RunID       string          `json:"run_id"`
	Stored      int             `json:"stored"`
	Threats     []ThreatSummary `json:"threats"`
	CompletedAt time.Time       `json:"completed_at"`
}
