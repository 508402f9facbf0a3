package ports

import (
	"context"
	"time"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

// ThreatStore defines the behavior for threat persistence.
type ThreatStore interface {
	// FindByCVE returns the threat with the given identifier, children
	// preloaded, or nil when no such row exists.
	FindByCVE(ctx context.Context, cveID string) (*domain.Threat, error)

	// SaveBatch persists the batch in a single transaction. New threats are
	// inserted with their children, existing ones updated in place. Any
	// failure rolls back the whole batch.
	SaveBatch(ctx context.Context, threats []*domain.Threat) error

	// Dashboard queries
	ListThreats(ctx context.Context, filter domain.ThreatFilter) ([]*domain.Threat, int64, error)
	RecentThreats(ctx context.Context, limit int) ([]*domain.Threat, error)
	SeverityCounts(ctx context.Context) (map[string]int64, error)
	AnalysisCount(ctx context.Context) (int64, error)
	TopByRiskScore(ctx context.Context, limit int) ([]*domain.Threat, error)
	TrendPoints(ctx context.Context, since time.Time) ([]domain.TrendPoint, error)

	// Metric snapshot upsert: exactly one row per metric name.
	UpsertMetric(ctx context.Context, name string, value map[string]any) error
	LatestMetric(ctx context.Context) (*domain.DashboardMetric, error)

	// Close closes the storage connection.
	Close() error
}
