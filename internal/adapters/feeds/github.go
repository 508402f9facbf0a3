package feeds

import (
	"context"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

// GitHubAdvisories implements ports.AdvisorySource against the GitHub
// Security Advisory GraphQL API. The query itself is not wired up yet; an
// API token is required before the endpoint returns anything useful, so
// the client currently reports no advisories.
type GitHubAdvisories struct {
	endpoint string
	token    string
}

// NewGitHubAdvisories creates an advisory source for the given GraphQL
// endpoint. The token may be empty.
func NewGitHubAdvisories(endpoint, token string) *GitHubAdvisories {
	return &GitHubAdvisories{endpoint: endpoint, token: token}
}

// FetchAdvisories returns advisories published through GitHub.
func (c *GitHubAdvisories) FetchAdvisories(ctx context.Context) ([]domain.FetchedThreat, error) {
	return nil, nil
}
