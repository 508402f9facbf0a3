package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

const nvdSample = `{
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2024-1234",
        "published": "2024-06-01T10:30:00.000",
        "lastModified": "2024-06-02T08:00:00.000",
        "descriptions": [
          {"lang": "es", "value": "Descripción en español"},
          {"lang": "en", "value": "Buffer overflow in the HTTP parser."}
        ],
        "metrics": {
          "cvssMetricV31": [
            {"cvssData": {"baseScore": 9.8, "baseSeverity": "CRITICAL", "attackVector": "NETWORK"}}
          ]
        },
        "references": [
          {"url": "https://example.com/advisory", "source": "vendor"}
        ]
      }
    },
    {
      "cve": {
        "id": "CVE-2024-5678",
        "descriptions": [
          {"lang": "en", "value": "Privilege escalation in the agent."}
        ],
        "metrics": {
          "cvssMetricV30": [
            {"cvssData": {"baseScore": 7.8, "baseSeverity": "HIGH", "attackVector": "LOCAL"}}
          ]
        }
      }
    }
  ]
}`

func newTestNVDClient(url string) *NVDClient {
	c := NewNVDClient(url)
	c.backoffBase = time.Millisecond
	return c
}

func TestFetchRecentParsesResponse(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(nvdSample))
	}))
	defer server.Close()

	client := newTestNVDClient(server.URL)
	threats, err := client.FetchRecent(context.Background())
	require.NoError(t, err)
	require.Len(t, threats, 2)

	query := gotQuery.Load().(url.Values)
	assert.Equal(t, "HIGH,CRITICAL", query.Get("cvssV3Severity"))
	assert.Equal(t, "200", query.Get("resultsPerPage"))
	require.NotEmpty(t, query.Get("pubStartDate"))
	_, perr := time.Parse(nvdTimeFormat, query.Get("pubStartDate"))
	assert.NoError(t, perr)

	first := threats[0]
	assert.Equal(t, "CVE-2024-1234", first.CVEID)
	assert.Equal(t, "Descripción en español", first.Title)
	assert.Equal(t, "Buffer overflow in the HTTP parser.", first.Description)
	require.NotNil(t, first.CVSSScore)
	assert.InDelta(t, 9.8, *first.CVSSScore, 0.001)
	assert.Equal(t, domain.SeverityCritical, first.Severity)
	assert.Equal(t, domain.VectorNetwork, first.AttackVector)
	assert.Equal(t, "NVD", first.Source)
	require.NotNil(t, first.PublishedDate)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), first.PublishedDate.UTC())

	refs, ok := first.AffectedProducts["references"].([]any)
	require.True(t, ok)
	require.Len(t, refs, 1)
	ref := refs[0].(map[string]any)
	assert.Equal(t, "https://example.com/advisory", ref["url"])

	second := threats[1]
	assert.Equal(t, domain.SeverityHigh, second.Severity)
	assert.Equal(t, "Privilege escalation in the agent.", second.Title)
	assert.Nil(t, second.PublishedDate)
}

func TestFetchRecentRetriesAfterRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(nvdSample))
	}))
	defer server.Close()

	client := newTestNVDClient(server.URL)
	threats, err := client.FetchRecent(context.Background())
	require.NoError(t, err)
	assert.Len(t, threats, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchRecentRetriesAfterMalformedResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte("not json"))
			return
		}
		w.Write([]byte(nvdSample))
	}))
	defer server.Close()

	client := newTestNVDClient(server.URL)
	threats, err := client.FetchRecent(context.Background())
	require.NoError(t, err)
	assert.Len(t, threats, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchRecentGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestNVDClient(server.URL)
	_, err := client.FetchRecent(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(nvdMaxAttempts), atomic.LoadInt32(&calls))
}

func TestFetchRecentStopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewNVDClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchRecent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeNVDFeedDefaults(t *testing.T) {
	doc := `{"vulnerabilities":[{"cve":{"id":"CVE-2024-0000","published":"garbage"}}]}`

	threats, err := DecodeNVDFeed(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, threats, 1)

	got := threats[0]
	assert.Equal(t, "CVE-2024-0000", got.CVEID)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.Description)
	assert.Nil(t, got.CVSSScore)
	assert.Equal(t, domain.SeverityUnknown, got.Severity)
	assert.Nil(t, got.PublishedDate)
	assert.Nil(t, got.ModifiedDate)
}

func TestParseNVDTimeLayouts(t *testing.T) {
	tests := []struct {
		value string
		want  *time.Time
	}{
		{"2024-06-01T10:30:00.000", timePtr(time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC))},
		{"2024-06-01T10:30:00Z", timePtr(time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC))},
		{"2024-06-01T10:30:00", timePtr(time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC))},
		{"", nil},
		{"June 1st", nil},
	}

	for _, tt := range tests {
		got := parseNVDTime(tt.value)
		if tt.want == nil {
			assert.Nil(t, got, "value %q", tt.value)
			continue
		}
		require.NotNil(t, got, "value %q", tt.value)
		assert.True(t, got.Equal(*tt.want), "value %q parsed to %v", tt.value, got)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
