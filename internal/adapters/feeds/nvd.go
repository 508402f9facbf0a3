// Package feeds contains clients for the external threat intelligence
// sources the collector pulls from.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

const (
	userAgent     = "CyberScope/1.0"
	nvdTimeFormat = "2006-01-02T15:04:05.000"

	nvdMaxAttempts = 5
	nvdWindow      = 30 * 24 * time.Hour
	nvdPageSize    = 200
)

// newHTTPClient builds the client shared by the feed adapters. The header
// timeout bounds the wait for first byte, the overall timeout the full read.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// NVDClient implements ports.ThreatFeed against the NIST NVD 2.0 API.
type NVDClient struct {
	endpoint   string
	httpClient *http.Client

	// backoffBase scales the retry sleeps so tests do not wait seconds.
	backoffBase time.Duration
	now         func() time.Time
}

// NewNVDClient creates a client for the given NVD endpoint.
func NewNVDClient(endpoint string) *NVDClient {
	return &NVDClient{
		endpoint:    endpoint,
		httpClient:  newHTTPClient(),
		backoffBase: time.Second,
		now:         time.Now,
	}
}

// FetchRecent returns high and critical severity vulnerabilities published
// in the last thirty days. Failed requests are retried with exponential
// backoff; rate limiting responses count as failed attempts.
func (c *NVDClient) FetchRecent(ctx context.Context) ([]domain.FetchedThreat, error) {
	params := url.Values{}
	params.Set("pubStartDate", c.now().UTC().Add(-nvdWindow).Format(nvdTimeFormat))
	params.Set("cvssV3Severity", "HIGH,CRITICAL")
	params.Set("resultsPerPage", strconv.Itoa(nvdPageSize))
	endpoint := c.endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < nvdMaxAttempts; attempt++ {
		threats, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			return threats, nil
		}
		lastErr = err
		if attempt == nvdMaxAttempts-1 {
			break
		}
		slog.Warn("NVD collection error", "attempt", attempt+1, "error", err)
		if !sleepContext(ctx, c.backoffBase<<attempt) {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("fetching NVD feed: %w", lastErr)
}

func (c *NVDClient) fetchOnce(ctx context.Context, endpoint string) ([]domain.FetchedThreat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting NVD feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("NVD rate limited the request")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NVD returned status %d", resp.StatusCode)
	}

	threats, err := DecodeNVDFeed(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding NVD response: %w", err)
	}
	return threats, nil
}

// DecodeNVDFeed parses an NVD 2.0 vulnerability document into fetched
// threats. It is shared by the live client and the offline loader.
func DecodeNVDFeed(r io.Reader) ([]domain.FetchedThreat, error) {
	var payload nvdResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, err
	}

	threats := make([]domain.FetchedThreat, 0, len(payload.Vulnerabilities))
	for _, item := range payload.Vulnerabilities {
		threats = append(threats, convertNVD(item.CVE))
	}
	return threats, nil
}

func convertNVD(cve nvdCVE) domain.FetchedThreat {
	var title string
	if len(cve.Descriptions) > 0 {
		title = cve.Descriptions[0].Value
	}
	description := extractDescription(cve.Descriptions)

	var score *float64
	severity := domain.SeverityUnknown
	var vector string
	metrics := cve.Metrics.CVSSMetricV31
	if len(metrics) == 0 {
		metrics = cve.Metrics.CVSSMetricV30
	}
	if len(metrics) > 0 {
		data := metrics[0].CVSSData
		s := data.BaseScore
		score = &s
		if data.BaseSeverity != "" {
			severity = data.BaseSeverity
		}
		vector = data.AttackVector
	}

	references := make([]any, 0, len(cve.References))
	for _, ref := range cve.References {
		references = append(references, map[string]any{
			"url":    ref.URL,
			"source": ref.Source,
		})
	}

	return domain.FetchedThreat{
		CVEID:       cve.ID,
		Title:       title,
		Description: description,
		CVSSScore:   score,
		Severity:    severity,
		AffectedProducts: map[string]any{
			"vendors":    []any{},
			"references": references,
		},
		AttackVector:  vector,
		PublishedDate: parseNVDTime(cve.Published),
		ModifiedDate:  parseNVDTime(cve.LastModified),
		Source:        "NVD",
	}
}

// extractDescription prefers the English description and falls back to the
// first one present.
func extractDescription(descriptions []nvdDescription) string {
	if len(descriptions) == 0 {
		return ""
	}
	for _, d := range descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	return descriptions[0].Value
}

// parseNVDTime parses the timestamp formats NVD emits, returning nil for
// anything unparseable rather than failing the whole document.
func parseNVDTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	layouts := []string{
		nvdTimeFormat,
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// sleepContext waits for d or until the context is cancelled. Returns
// false on cancellation.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type nvdResponse struct {
	Vulnerabilities []nvdVulnerability `json:"vulnerabilities"`
}

type nvdVulnerability struct {
	CVE nvdCVE `json:"cve"`
}

type nvdCVE struct {
	ID           string           `json:"id"`
	Published    string           `json:"published"`
	LastModified string           `json:"lastModified"`
	Descriptions []nvdDescription `json:"descriptions"`
	Metrics      nvdMetrics       `json:"metrics"`
	References   []nvdReference   `json:"references"`
}

type nvdDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type nvdMetrics struct {
	CVSSMetricV31 []nvdMetric `json:"cvssMetricV31"`
	CVSSMetricV30 []nvdMetric `json:"cvssMetricV30"`
}

type nvdMetric struct {
	CVSSData nvdCVSSData `json:"cvssData"`
}

type nvdCVSSData struct {
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
	AttackVector string  `json:"attackVector"`
}

type nvdReference struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}
