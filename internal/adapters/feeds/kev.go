package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// KEVClient implements ports.ExploitCatalog against the CISA Known
// Exploited Vulnerabilities feed.
type KEVClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewKEVClient creates a client for the given KEV feed endpoint.
func NewKEVClient(endpoint string) *KEVClient {
	return &KEVClient{
		endpoint:   endpoint,
		httpClient: newHTTPClient(),
	}
}

// FetchExploited returns the set of CVE identifiers with known active
// exploitation.
func (c *KEVClient) FetchExploited(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting KEV feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("KEV feed returned status %d", resp.StatusCode)
	}

	var payload kevResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding KEV response: %w", err)
	}

	exploited := make(map[string]struct{}, len(payload.Vulnerabilities))
	for _, v := range payload.Vulnerabilities {
		if v.CVEID != "" {
			exploited[v.CVEID] = struct{}{}
		}
	}
	return exploited, nil
}

type kevResponse struct {
	Vulnerabilities []kevVulnerability `json:"vulnerabilities"`
}

type kevVulnerability struct {
	CVEID string `json:"cveID"`
}
