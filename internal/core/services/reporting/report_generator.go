package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyberscope/cyberscope/internal/core/domain"
	"github.com/cyberscope/cyberscope/internal/core/ports"
	"github.com/cyberscope/cyberscope/internal/core/services/risk"
)

const (
	topRiskCount = 5
	recentWindow = 50
	trendingDays = 7
)

// ThreatReportGenerator assembles the threat landscape summary that the
// PDF exporter renders.
type ThreatReportGenerator struct {
	store ports.ThreatStore
	risk  *risk.Engine
	now   func() time.Time
}

// NewThreatReportGenerator creates a report generator backed by the given
// threat store.
func NewThreatReportGenerator(store ports.ThreatStore) *ThreatReportGenerator {
	return &ThreatReportGenerator{
		store: store,
		risk:  risk.NewEngine(),
		now:   time.Now,
	}
}

// Generate builds a threat landscape report covering the stored threat
// population. The period only labels the report; the aggregates always
// reflect the full store.
func (g *ThreatReportGenerator) Generate(ctx context.Context, period domain.DateRange) (*domain.ThreatReport, error) {
	counts, err := g.store.SeverityCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching severity counts: %w", err)
	}

	analyzed, err := g.store.AnalysisCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting analyzed threats: %w", err)
	}

	top, err := g.store.TopByRiskScore(ctx, topRiskCount)
	if err != nil {
		return nil, fmt.Errorf("fetching top risks: %w", err)
	}

	recent, err := g.store.RecentThreats(ctx, recentWindow)
	if err != nil {
		return nil, fmt.Errorf("fetching recent threats: %w", err)
	}

	severity := severityBreakdown(counts)

	report := &domain.ThreatReport{
		Metadata: domain.ReportMetadata{
			ID:          uuid.New().String(),
			Type:        domain.ReportTypeLandscape,
			Format:      domain.FormatPDF,
			Title:       "Threat Landscape Report",
			GeneratedAt: g.now().UTC(),
			GeneratedBy: "CyberScope",
			Period:      period,
		},
		TotalThreats:  severity.Total,
		AnalyzedCount: int(analyzed),
		Severity:      severity,
		TopRisks:      rankTopRisks(top),
		Categories:    g.risk.Distribution(recent),
		Trending:      g.risk.IdentifyTrending(recent, trendingDays),
	}

	return report, nil
}

// severityBreakdown folds the per-label counts into the report structure.
// Labels outside the known set are counted as unknown.
func severityBreakdown(counts map[string]int64) domain.SeverityCounts {
	var out domain.SeverityCounts
	for severity, n := range counts {
		c := int(n)
		out.Total += c
		switch severity {
		case domain.SeverityCritical:
			out.Critical += c
		case domain.SeverityHigh:
			out.High += c
		case domain.SeverityMedium:
			out.Medium += c
		case domain.SeverityLow:
			out.Low += c
		default:
			out.Unknown += c
		}
	}
	return out
}

// rankTopRisks turns the highest scored threats into report rows. Threats
// without a persisted score keep rank order but report zero.
func rankTopRisks(threats []*domain.Threat) []domain.ReportRisk {
	risks := make([]domain.ReportRisk, 0, len(threats))
	for i, t := range threats {
		score := 0.0
		if t.Analysis != nil && t.Analysis.RiskScore != nil {
			score = *t.Analysis.RiskScore
		}
		risks = append(risks, domain.ReportRisk{
			Rank:      i + 1,
			CVEID:     t.CVEID,
			Title:     t.Title,
			Severity:  t.Severity,
			RiskScore: score,
		})
	}
	return risks
}
