package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchExploitedBuildsSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"vulnerabilities": [
				{"cveID": "CVE-2023-1111"},
				{"cveID": "CVE-2023-2222"},
				{"cveID": "CVE-2023-1111"},
				{"cveID": ""}
			]
		}`))
	}))
	defer server.Close()

	client := NewKEVClient(server.URL)
	exploited, err := client.FetchExploited(context.Background())
	require.NoError(t, err)

	assert.Len(t, exploited, 2)
	_, ok := exploited["CVE-2023-1111"]
	assert.True(t, ok)
	_, ok = exploited["CVE-2023-2222"]
	assert.True(t, ok)
}

func TestFetchExploitedStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewKEVClient(server.URL)
	_, err := client.FetchExploited(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestFetchExploitedMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	client := NewKEVClient(server.URL)
	_, err := client.FetchExploited(context.Background())
	require.Error(t, err)
}

func TestGitHubAdvisoriesReportsNothing(t *testing.T) {
	client := NewGitHubAdvisories("https://api.github.com/graphql", "")
	advisories, err := client.FetchAdvisories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, advisories)
}
