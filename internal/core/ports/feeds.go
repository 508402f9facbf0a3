package ports

import (
	"context"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

// ThreatFeed fetches recent vulnerability records from an external source.
type ThreatFeed interface {
	// FetchRecent returns recent high-severity records. A non-nil error
	// means the source produced nothing usable this cycle; callers treat
	// that as an empty result, never as fatal.
	FetchRecent(ctx context.Context) ([]domain.FetchedThreat, error)
}

// ExploitCatalog reports which identifiers are known to be actively
// exploited. Used only as a scoring input, never merged into storage.
type ExploitCatalog interface {
	FetchExploited(ctx context.Context) (map[string]struct{}, error)
}

// AdvisorySource fetches vendor advisories to merge alongside the primary
// feed.
type AdvisorySource interface {
	FetchAdvisories(ctx context.Context) ([]domain.FetchedThreat, error)
}
