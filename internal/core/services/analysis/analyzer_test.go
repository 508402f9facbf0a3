package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberscope/cyberscope/internal/core/domain"
	"github.com/cyberscope/cyberscope/internal/core/ports"
)

type fakeModel struct {
	resp  ports.ModelResponse
	err   error
	calls int
	last  string
}

func (f *fakeModel) Complete(_ context.Context, prompt string) (ports.ModelResponse, error) {
	f.calls++
	f.last = prompt
	if f.err != nil {
		return ports.ModelResponse{}, f.err
	}
	return f.resp, nil
}

func floatPtr(v float64) *float64 { return &v }

func newTestAnalyzer(client ports.ModelClient, budget int) *Analyzer {
	// High request rate keeps the inter-call delay negligible in tests.
	return New(client, budget, 1000)
}

func TestAnalyzeThreatWithoutClient(t *testing.T) {
	a := newTestAnalyzer(nil, 1000)

	threat := &domain.Threat{
		CVEID:       "CVE-2024-0001",
		Title:       "Remote code execution",
		Description: "A crafted packet triggers remote code execution.",
		CVSSScore:   floatPtr(9.1),
		Severity:    domain.SeverityCritical,
	}

	p := a.AnalyzeThreat(context.Background(), threat)

	assert.Equal(t, threat.Description, p.Summary)
	assert.Equal(t, "Potential impact inferred from severity level.", p.BusinessImpact)
	assert.Equal(t, "Apply vendor patches and review compensating controls.", p.MitigationAdvice)
	require.NotNil(t, p.RiskScore)
	assert.InDelta(t, 10.0, *p.RiskScore, 0.001)
}

func TestFallbackContent(t *testing.T) {
	a := newTestAnalyzer(nil, 1000)

	tests := []struct {
		name           string
		threat         *domain.Threat
		wantMitigation string
		wantScore      float64
	}{
		{
			name: "critical adds two and clamps",
			threat: &domain.Threat{
				CVSSScore: floatPtr(9.8),
				Severity:  domain.SeverityCritical,
			},
			wantMitigation: "Apply vendor patches and review compensating controls.",
			wantScore:      10.0,
		},
		{
			name: "high gets patch advice",
			threat: &domain.Threat{
				CVSSScore: floatPtr(7.5),
				Severity:  domain.SeverityHigh,
			},
			wantMitigation: "Apply vendor patches and review compensating controls.",
			wantScore:      8.5,
		},
		{
			name: "medium gets monitor advice",
			threat: &domain.Threat{
				CVSSScore: floatPtr(5.0),
				Severity:  domain.SeverityMedium,
			},
			wantMitigation: "Monitor vendor advisories and strengthen monitoring.",
			wantScore:      6.0,
		},
		{
			name:           "missing score defaults to five",
			threat:         &domain.Threat{Severity: domain.SeverityHigh},
			wantMitigation: "Apply vendor patches and review compensating controls.",
			wantScore:      6.0,
		},
		{
			name:           "lowercase severity is normalized",
			threat:         &domain.Threat{CVSSScore: floatPtr(9.0), Severity: "critical"},
			wantMitigation: "Apply vendor patches and review compensating controls.",
			wantScore:      10.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := a.fallback(tt.threat)
			assert.Equal(t, tt.wantMitigation, p.MitigationAdvice)
			require.NotNil(t, p.RiskScore)
			assert.InDelta(t, tt.wantScore, *p.RiskScore, 0.001)
		})
	}
}

func TestFallbackTruncatesLongDescriptions(t *testing.T) {
	a := newTestAnalyzer(nil, 1000)

	threat := &domain.Threat{
		Title:       "Short title",
		Description: strings.Repeat("é", 600),
		Severity:    domain.SeverityLow,
	}

	p := a.fallback(threat)
	assert.Equal(t, 500, len([]rune(p.Summary)))
}

func TestFallbackUsesTitleWhenDescriptionEmpty(t *testing.T) {
	a := newTestAnalyzer(nil, 1000)

	p := a.fallback(&domain.Threat{Title: "Title only", Severity: domain.SeverityLow})
	assert.Equal(t, "Title only", p.Summary)
}

func TestAnalyzeThreatParsesModelResponse(t *testing.T) {
	client := &fakeModel{
		resp: ports.ModelResponse{
			Content:     `{"summary":"s","business_impact":"b","mitigation_advice":"m","risk_score":7.2}`,
			TotalTokens: 321,
		},
	}
	a := newTestAnalyzer(client, 1000)

	p := a.AnalyzeThreat(context.Background(), &domain.Threat{CVEID: "CVE-2024-0002"})

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "s", p.Summary)
	assert.Equal(t, "b", p.BusinessImpact)
	assert.Equal(t, "m", p.MitigationAdvice)
	require.NotNil(t, p.RiskScore)
	assert.InDelta(t, 7.2, *p.RiskScore, 0.001)
	assert.Equal(t, 321, a.tokensUsed)
}

func TestAnalyzeThreatFallsBackOnError(t *testing.T) {
	client := &fakeModel{err: errors.New("upstream unavailable")}
	a := newTestAnalyzer(client, 1000)

	p := a.AnalyzeThreat(context.Background(), &domain.Threat{
		CVEID:    "CVE-2024-0003",
		Title:    "Broken call",
		Severity: domain.SeverityMedium,
	})

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "Monitor vendor advisories and strengthen monitoring.", p.MitigationAdvice)
	assert.Zero(t, a.tokensUsed)
}

func TestAnalyzeThreatFallsBackOnMalformedJSON(t *testing.T) {
	client := &fakeModel{resp: ports.ModelResponse{Content: "not json", TotalTokens: 40}}
	a := newTestAnalyzer(client, 1000)

	p := a.AnalyzeThreat(context.Background(), &domain.Threat{
		Title:    "Garbled",
		Severity: domain.SeverityLow,
	})

	assert.Equal(t, "Garbled", p.Summary)
	// The call still happened, so its tokens still count.
	assert.Equal(t, 40, a.tokensUsed)
}

func TestTokensEstimatedWhenUsageMissing(t *testing.T) {
	client := &fakeModel{
		resp: ports.ModelResponse{Content: `{"summary":"s"}`},
	}
	a := newTestAnalyzer(client, 100000)

	a.AnalyzeThreat(context.Background(), &domain.Threat{CVEID: "CVE-2024-0004"})

	assert.Equal(t, len(client.last)/4, a.tokensUsed)
}

func TestBudgetExhaustionSkipsModelCall(t *testing.T) {
	client := &fakeModel{
		resp: ports.ModelResponse{Content: `{"summary":"s"}`, TotalTokens: 10},
	}
	a := newTestAnalyzer(client, 100)
	a.tokensUsed = 100

	p := a.AnalyzeThreat(context.Background(), &domain.Threat{
		Title:    "Over budget",
		Severity: domain.SeverityHigh,
	})

	assert.Zero(t, client.calls)
	assert.Equal(t, "Apply vendor patches and review compensating controls.", p.MitigationAdvice)
}

func TestBudgetWindowResetsAfterOneDay(t *testing.T) {
	client := &fakeModel{
		resp: ports.ModelResponse{Content: `{"summary":"fresh"}`, TotalTokens: 10},
	}
	a := newTestAnalyzer(client, 100)
	a.tokensUsed = 100

	base := time.Now()
	a.windowStart = base.Add(-25 * time.Hour)
	a.now = func() time.Time { return base }

	p := a.AnalyzeThreat(context.Background(), &domain.Threat{CVEID: "CVE-2024-0005"})

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "fresh", p.Summary)
	assert.Equal(t, 10, a.tokensUsed)
	assert.Equal(t, base, a.windowStart)
}

func TestBudgetWindowHoldsWithinOneDay(t *testing.T) {
	client := &fakeModel{resp: ports.ModelResponse{Content: `{"summary":"s"}`}}
	a := newTestAnalyzer(client, 100)
	a.tokensUsed = 100

	base := time.Now()
	a.windowStart = base.Add(-23 * time.Hour)
	a.now = func() time.Time { return base }

	a.AnalyzeThreat(context.Background(), &domain.Threat{Title: "Still capped"})

	assert.Zero(t, client.calls)
}

func TestBatchAnalyzeStopsWhenBudgetReached(t *testing.T) {
	client := &fakeModel{
		resp: ports.ModelResponse{Content: `{"summary":"s"}`, TotalTokens: 60},
	}
	a := newTestAnalyzer(client, 100)

	threats := []*domain.Threat{
		{CVEID: "CVE-2024-0006"},
		{CVEID: "CVE-2024-0007"},
		{CVEID: "CVE-2024-0008"},
	}

	results := a.BatchAnalyze(context.Background(), threats)

	// 60 tokens per call against a budget of 100: the second call tips the
	// window over and the third never runs.
	assert.Len(t, results, 2)
	assert.Equal(t, 2, client.calls)
}

func TestBatchAnalyzePreservesOrder(t *testing.T) {
	client := &fakeModel{
		resp: ports.ModelResponse{Content: `{"summary":"s"}`, TotalTokens: 1},
	}
	a := newTestAnalyzer(client, 100000)

	threats := []*domain.Threat{
		{CVEID: "CVE-2024-0009"},
		{CVEID: "CVE-2024-0010"},
	}

	results := a.BatchAnalyze(context.Background(), threats)
	require.Len(t, results, 2)
	assert.Equal(t, 2, client.calls)
}

func TestPromptEmbedsThreatFields(t *testing.T) {
	published := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	threat := &domain.Threat{
		CVEID:         "CVE-2024-0011",
		Title:         "Prompt check",
		Description:   "desc",
		CVSSScore:     floatPtr(8.8),
		Severity:      domain.SeverityHigh,
		PublishedDate: &published,
		AttackVector:  domain.VectorNetwork,
		AffectedProducts: map[string]any{
			"deployment": "cloud",
		},
	}

	prompt, err := buildPrompt(threat)
	require.NoError(t, err)

	assert.Contains(t, prompt, `"cve_id":"CVE-2024-0011"`)
	assert.Contains(t, prompt, `"cvss_score":8.8`)
	assert.Contains(t, prompt, `"published":"2024-05-02T10:00:00Z"`)
	assert.Contains(t, prompt, `"risk_score"`)
	assert.Contains(t, prompt, "float 0-10")
	assert.Contains(t, prompt, "cybersecurity analyst")
}

func TestDelayRespectsContextCancellation(t *testing.T) {
	client := &fakeModel{resp: ports.ModelResponse{Content: `{"summary":"s"}`}}
	a := New(client, 1000, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := a.AnalyzeThreat(ctx, &domain.Threat{Title: "Cancelled", Severity: domain.SeverityLow})

	assert.Zero(t, client.calls)
	assert.Equal(t, "Cancelled", p.Summary)
}
