package storage

import "time"

// ThreatModel is the GORM model for threats.
type ThreatModel struct {
	ID               uint       `gorm:"primaryKey"`
	CVEID            string     `gorm:"column:cve_id;uniqueIndex"`
	Title            string     `gorm:"size:512"`
	Description      string     `gorm:"type:text"`
	CVSSScore        *float64   `gorm:"column:cvss_score"`
	Severity         string     `gorm:"size:16;index"`
	PublishedDate    *time.Time `gorm:"index"`
	ModifiedDate     *time.Time
	AffectedProducts string `gorm:"type:text"` // JSON encoded map
	AttackVector     string `gorm:"size:128"`
	Source           string `gorm:"size:64"`

	Analysis   *AnalysisModel  `gorm:"foreignKey:ThreatID;constraint:OnDelete:CASCADE"`
	Categories []CategoryModel `gorm:"foreignKey:ThreatID;constraint:OnDelete:CASCADE"`
}

// AnalysisModel stores the single derived analysis of a threat.
type AnalysisModel struct {
	ID               uint   `gorm:"primaryKey"`
	ThreatID         uint   `gorm:"uniqueIndex"`
	Summary          string `gorm:"type:text"`
	BusinessImpact   string `gorm:"type:text"`
	MitigationAdvice string `gorm:"type:text"`
	RiskScore        *float64
	AnalyzedAt       time.Time
}

// CategoryModel stores topic labels for a threat. The composite unique
// index keeps each label to one row per threat.
type CategoryModel struct {
	ID         uint   `gorm:"primaryKey"`
	ThreatID   uint   `gorm:"uniqueIndex:idx_label_per_threat"`
	Category   string `gorm:"size:64;uniqueIndex:idx_label_per_threat"`
	Confidence float64
}

// MetricModel stores one aggregate snapshot per metric name.
type MetricModel struct {
	ID          uint      `gorm:"primaryKey"`
	MetricName  string    `gorm:"column:metric_name;size:128;uniqueIndex"`
	MetricValue string    `gorm:"type:text"` // JSON encoded payload
	UpdatedAt   time.Time `gorm:"index"`
}
