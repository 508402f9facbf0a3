package storage

import (
	"encoding/json"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

// toDomain converts a database model to a domain entity.
func toDomain(m ThreatModel) *domain.Threat {
	var products map[string]any
	if m.AffectedProducts != "" {
		_ = json.Unmarshal([]byte(m.AffectedProducts), &products)
	}

	t := &domain.Threat{
		ID:               m.ID,
		CVEID:            m.CVEID,
		Title:            m.Title,
		Description:      m.Description,
		CVSSScore:        m.CVSSScore,
		Severity:         m.Severity,
		PublishedDate:    m.PublishedDate,
		ModifiedDate:     m.ModifiedDate,
		AffectedProducts: products,
		AttackVector:     m.AttackVector,
		Source:           m.Source,
	}

	if m.Analysis != nil {
		t.Analysis = &domain.ThreatAnalysis{
			ID:               m.Analysis.ID,
			ThreatID:         m.Analysis.ThreatID,
			Summary:          m.Analysis.Summary,
			BusinessImpact:   m.Analysis.BusinessImpact,
			MitigationAdvice: m.Analysis.MitigationAdvice,
			RiskScore:        m.Analysis.RiskScore,
			AnalyzedAt:       m.Analysis.AnalyzedAt,
		}
	}

	for _, c := range m.Categories {
		t.Categories = append(t.Categories, domain.ThreatCategory{
			ID:         c.ID,
			ThreatID:   c.ThreatID,
			Category:   c.Category,
			Confidence: c.Confidence,
		})
	}

	return t
}

// toModel converts a domain entity to a database model. Child rows are
// converted separately because their persistence rules differ from the
// parent's.
func toModel(t *domain.Threat) ThreatModel {
	var products string
	if t.AffectedProducts != nil {
		raw, _ := json.Marshal(t.AffectedProducts)
		products = string(raw)
	}

	return ThreatModel{
		ID:               t.ID,
		CVEID:            t.CVEID,
		Title:            t.Title,
		Description:      t.Description,
		CVSSScore:        t.CVSSScore,
		Severity:         t.Severity,
		PublishedDate:    t.PublishedDate,
		ModifiedDate:     t.ModifiedDate,
		AffectedProducts: products,
		AttackVector:     t.AttackVector,
		Source:           t.Source,
	}
}

func toAnalysisModel(a *domain.ThreatAnalysis, threatID uint) AnalysisModel {
	return AnalysisModel{
		ID:               a.ID,
		ThreatID:         threatID,
		Summary:          a.Summary,
		BusinessImpact:   a.BusinessImpact,
		MitigationAdvice: a.MitigationAdvice,
		RiskScore:        a.RiskScore,
		AnalyzedAt:       a.AnalyzedAt,
	}
}

func toCategoryModel(c domain.ThreatCategory, threatID uint) CategoryModel {
	return CategoryModel{
		ID:         c.ID,
		ThreatID:   threatID,
		Category:   c.Category,
		Confidence: c.Confidence,
	}
}

// metricToDomain decodes a metric row back into its domain shape.
func metricToDomain(m MetricModel) *domain.DashboardMetric {
	var value map[string]any
	if m.MetricValue != "" {
		_ = json.Unmarshal([]byte(m.MetricValue), &value)
	}
	return &domain.DashboardMetric{
		ID:         m.ID,
		MetricName: m.MetricName,
		Value:      value,
		UpdatedAt:  m.UpdatedAt,
	}
}
