// Package collector orchestrates threat feed collection: pulling the
// external sources, merging records into storage and refreshing the
// dashboard snapshot.
package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/cyberscope/cyberscope/internal/core/domain"
	"github.com/cyberscope/cyberscope/internal/core/ports"
	"github.com/cyberscope/cyberscope/internal/core/services/analysis"
	"github.com/cyberscope/cyberscope/internal/core/services/risk"
	"github.com/cyberscope/cyberscope/internal/telemetry"
)

// Analyzer produces the narrative analysis attached to newly stored
// threats.
type Analyzer interface {
	AnalyzeThreat(ctx context.Context, t *domain.Threat) analysis.Payload
}

// Collector manages the collection pipeline.
type Collector struct {
	store      ports.ThreatStore
	feed       ports.ThreatFeed
	catalog    ports.ExploitCatalog
	advisories ports.AdvisorySource
	analyzer   Analyzer
	risk       *risk.Engine
	publisher  ports.CollectionPublisher
	schedule   cron.Schedule
	now        func() time.Time
}

// New creates a collector. The schedule spec uses standard five-field
// cron syntax and is validated here so a bad spec fails at startup, not
// at the first tick.
func New(
	store ports.ThreatStore,
	feed ports.ThreatFeed,
	catalog ports.ExploitCatalog,
	advisories ports.AdvisorySource,
	analyzer Analyzer,
	engine *risk.Engine,
	scheduleSpec string,
) (*Collector, error) {
	schedule, err := cron.ParseStandard(scheduleSpec)
	if err != nil {
		return nil, err
	}
	return &Collector{
		store:      store,
		feed:       feed,
		catalog:    catalog,
		advisories: advisories,
		analyzer:   analyzer,
		risk:       engine,
		schedule:   schedule,
		now:        time.Now,
	}, nil
}

// SetPublisher sets the sink for collection completion events.
func (c *Collector) SetPublisher(p ports.CollectionPublisher) {
	c.publisher = p
}

// RunCollection executes one full collection pass: the vulnerability feed
// and the exploit catalog are fetched concurrently, advisories after,
// and the merged records stored. A feed failure degrades that source to
// empty instead of failing the run.
func (c *Collector) RunCollection(ctx context.Context) ([]*domain.Threat, error) {
	ctx, span := otel.Tracer("collector-service").Start(ctx, "RunCollection")
	defer span.End()

	runID := uuid.New().String()
	span.SetAttributes(attribute.String("run.id", runID))

	slog.Info("starting threat data collection run", "run_id", runID)

	var (
		fetched   []domain.FetchedThreat
		exploited map[string]struct{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if fetched, err = c.feed.FetchRecent(gctx); err != nil {
			slog.Warn("NVD collection error", "error", err)
			telemetry.FeedErrors.WithLabelValues("nvd").Inc()
			fetched = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if exploited, err = c.catalog.FetchExploited(gctx); err != nil {
			slog.Warn("failed to fetch CISA KEV list", "error", err)
			telemetry.FeedErrors.WithLabelValues("kev").Inc()
			exploited = nil
		}
		return nil
	})
	_ = g.Wait() // the closures degrade to empty instead of failing

	advisories, err := c.advisories.FetchAdvisories(ctx)
	if err != nil {
		slog.Warn("failed to fetch GitHub advisories", "error", err)
		telemetry.FeedErrors.WithLabelValues("github").Inc()
		advisories = nil
	}
	merged := append(fetched, advisories...)

	stored, err := c.StoreThreats(ctx, merged, exploited)
	if err != nil {
		telemetry.CollectionRuns.WithLabelValues("failure").Inc()
		return nil, err
	}

	if len(stored) > 0 {
		if err := c.UpdateMetrics(ctx, stored); err != nil {
			telemetry.CollectionRuns.WithLabelValues("failure").Inc()
			return nil, err
		}
	}

	telemetry.CollectionRuns.WithLabelValues("success").Inc()
	telemetry.ThreatsCollected.Add(float64(len(stored)))
	c.publish(runID, stored)

	slog.Info("threat collection completed", "run_id", runID, "stored", len(stored))
	return stored, nil
}

// StoreThreats merges fetched records into storage by CVE identifier.
// Existing threats keep their analysis; a label is appended only when the
// threat does not already carry it.
func (c *Collector) StoreThreats(ctx context.Context, items []domain.FetchedThreat, exploited map[string]struct{}) ([]*domain.Threat, error) {
	stored := make([]*domain.Threat, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.CVEID == "" {
			continue
		}

		threat, err := c.store.FindByCVE(ctx, item.CVEID)
		if err != nil {
			return nil, err
		}
		if threat == nil {
			threat = &domain.Threat{CVEID: item.CVEID}
		}
		applyFetched(threat, item)

		_, isExploited := exploited[threat.CVEID]
		riskScore := c.risk.ComputeRisk(domain.RiskFactors{
			CVSSScore:        threat.CVSSScore,
			IsKnownExploited: isExploited,
			AttackVector:     threat.AttackVector,
			AffectedProducts: threat.AffectedProducts,
		})

		if threat.Analysis == nil {
			payload := c.analyzer.AnalyzeThreat(ctx, threat)
			score := riskScore
			if payload.RiskScore != nil {
				score = *payload.RiskScore
			}
			threat.Analysis = &domain.ThreatAnalysis{
				Summary:          payload.Summary,
				BusinessImpact:   payload.BusinessImpact,
				MitigationAdvice: payload.MitigationAdvice,
				RiskScore:        &score,
				AnalyzedAt:       c.now().UTC(),
			}
		} else if threat.Analysis.RiskScore == nil {
			threat.Analysis.RiskScore = &riskScore
		}

		label, confidence := c.risk.Categorize(threat)
		if !hasCategory(threat.Categories, label) {
			threat.Categories = append(threat.Categories, domain.ThreatCategory{
				Category:   label,
				Confidence: confidence,
			})
		}

		stored = append(stored, threat)
	}

	if err := c.store.SaveBatch(ctx, stored); err != nil {
		slog.Error("failed to store threats", "error", err)
		return nil, err
	}
	return stored, nil
}

// UpdateMetrics writes the dashboard snapshot derived from the stored
// batch.
func (c *Collector) UpdateMetrics(ctx context.Context, threats []*domain.Threat) error {
	payload := map[string]any{
		"total_collected": len(threats),
		"trending":        c.risk.IdentifyTrending(threats, 7),
		"categories":      c.risk.Distribution(threats),
	}
	return c.store.UpsertMetric(ctx, domain.MetricThreatSnapshot, payload)
}

// ScheduleCollection runs collections on the cron schedule until the
// context is cancelled. A failed run is logged and the loop continues
// with the next tick.
func (c *Collector) ScheduleCollection(ctx context.Context) {
	for {
		next := c.schedule.Next(c.now())
		timer := time.NewTimer(next.Sub(c.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := c.RunCollection(ctx); err != nil {
			slog.Error("scheduled collection failed", "error", err)
		}
	}
}

func (c *Collector) publish(runID string, stored []*domain.Threat) {
	if c.publisher == nil {
		return
	}

	summaries := make([]domain.ThreatSummary, 0, len(stored))
	for _, t := range stored {
		s := domain.ThreatSummary{CVEID: t.CVEID, Title: t.Title, Severity: t.Severity}
		if t.Analysis != nil {
			s.RiskScore = t.Analysis.RiskScore
		}
		summaries = append(summaries, s)
	}
	c.publisher.PublishCollection(domain.CollectionEvent{
		RunID:       runID,
		Stored:      len(stored),
		Threats:     summaries,
		CompletedAt: c.now().UTC(),
	})
}

func applyFetched(t *domain.Threat, item *domain.FetchedThreat) {
	t.Title = item.Title
	t.Description = item.Description
	t.CVSSScore = item.CVSSScore
	t.Severity = item.Severity
	t.PublishedDate = item.PublishedDate
	t.ModifiedDate = item.ModifiedDate
	t.AffectedProducts = item.AffectedProducts
	t.AttackVector = item.AttackVector
	if t.ID == 0 {
		t.Source = item.Source
	}
}

func hasCategory(categories []domain.ThreatCategory, label string) bool {
	for _, c := range categories {
		if c.Category == label {
			return true
		}
	}
	return false
}
