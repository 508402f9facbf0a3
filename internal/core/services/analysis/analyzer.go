package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cyberscope/cyberscope/internal/core/domain"
	"github.com/cyberscope/cyberscope/internal/core/ports"
	"github.com/cyberscope/cyberscope/internal/telemetry"
)

// Fallback reasons. Every analysis resolves to exactly one outcome: a
// model payload or a fallback tagged with one of these.
const (
	reasonNoClient    = "no_client"
	reasonBudget      = "budget_exhausted"
	reasonCallFailed  = "call_failed"
	reasonBadResponse = "bad_response"
)

// Payload is the analysis produced for one threat. RiskScore is nil when
// the model omitted it.
type Payload struct {
	Summary          string   `json:"summary"`
	BusinessImpact   string   `json:"business_impact"`
	MitigationAdvice string   `json:"mitigation_advice"`
	RiskScore        *float64 `json:"risk_score"`
}

// Analyzer produces narrative analyses within a rolling one-day token
// budget. All model calls are serialized through a single-slot lock that
// also covers the budget check and the inter-call delay.
type Analyzer struct {
	client   ports.ModelClient
	budget   int
	minDelay time.Duration

	mu          sync.Mutex
	windowStart time.Time
	tokensUsed  int

	now func() time.Time
}

// New creates an analyzer. A nil client disables model calls entirely:
// every analysis then takes the deterministic fallback path.
func New(client ports.ModelClient, dailyTokenBudget, requestsPerSecond int) *Analyzer {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &Analyzer{
		client:      client,
		budget:      dailyTokenBudget,
		minDelay:    time.Second / time.Duration(requestsPerSecond),
		windowStart: time.Now(),
		now:         time.Now,
	}
}

// AnalyzeThreat returns an analysis payload for the threat. It never
// fails: model errors, budget exhaustion and decode problems all degrade
// to the fallback payload.
func (a *Analyzer) AnalyzeThreat(ctx context.Context, t *domain.Threat) Payload {
	if a.client == nil {
		telemetry.LLMFallbacks.WithLabelValues(reasonNoClient).Inc()
		return a.fallback(t)
	}

	prompt, err := buildPrompt(t)
	if err != nil {
		slog.Error("failed to build analysis prompt", "cve_id", t.CVEID, "error", err)
		telemetry.LLMFallbacks.WithLabelValues(reasonBadResponse).Inc()
		return a.fallback(t)
	}

	content, ok := a.invoke(ctx, prompt)
	if !ok {
		return a.fallback(t)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		slog.Error("failed to decode model response", "cve_id", t.CVEID, "content", content)
		telemetry.LLMFallbacks.WithLabelValues(reasonBadResponse).Inc()
		return a.fallback(t)
	}
	return payload
}

// BatchAnalyze analyzes threats in input order, stopping early once the
// token budget is exhausted mid-batch. Partial results are returned.
func (a *Analyzer) BatchAnalyze(ctx context.Context, threats []*domain.Threat) []Payload {
	results := make([]Payload, 0, len(threats))
	for _, t := range threats {
		results = append(results, a.AnalyzeThreat(ctx, t))
		if a.budgetExhausted() {
			slog.Warn("daily token budget reached during batch analysis")
			break
		}
	}
	return results
}

// invoke performs one model call under the single-slot lock: window
// reset, budget check, rate delay, the call itself and the token
// accounting happen as one critical section process-wide.
func (a *Analyzer) invoke(ctx context.Context, prompt string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetWindowLocked()
	if a.tokensUsed >= a.budget {
		slog.Warn("token budget exceeded, using fallback analysis",
			"tokens_used", a.tokensUsed, "budget", a.budget)
		telemetry.LLMFallbacks.WithLabelValues(reasonBudget).Inc()
		return "", false
	}

	if !a.delay(ctx) {
		telemetry.LLMFallbacks.WithLabelValues(reasonCallFailed).Inc()
		return "", false
	}

	resp, err := a.client.Complete(ctx, prompt)
	if err != nil {
		slog.Error("model analysis failed", "error", err)
		telemetry.LLMFallbacks.WithLabelValues(reasonCallFailed).Inc()
		return "", false
	}

	tokens := resp.TotalTokens
	if tokens <= 0 {
		tokens = len(prompt) / 4
	}
	a.tokensUsed += tokens
	telemetry.LLMTokensUsed.Add(float64(tokens))

	return resp.Content, true
}

// resetWindowLocked zeroes the token counter once the one-day window has
// elapsed. Callers must hold the lock.
func (a *Analyzer) resetWindowLocked() {
	if a.now().Sub(a.windowStart) > 24*time.Hour {
		a.windowStart = a.now()
		a.tokensUsed = 0
	}
}

func (a *Analyzer) budgetExhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokensUsed >= a.budget
}

// delay enforces the minimum inter-call spacing. Returns false when the
// context is cancelled while waiting.
func (a *Analyzer) delay(ctx context.Context) bool {
	timer := time.NewTimer(a.minDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// fallback builds the deterministic analysis used when the model backend
// is unavailable, over budget, or failed.
func (a *Analyzer) fallback(t *domain.Threat) Payload {
	severity := strings.ToUpper(t.Severity)
	if severity == "" {
		severity = domain.SeverityUnknown
	}

	mitigation := "Monitor vendor advisories and strengthen monitoring."
	if severity == domain.SeverityCritical || severity == domain.SeverityHigh {
		mitigation = "Apply vendor patches and review compensating controls."
	}

	summary := t.Title
	if t.Description != "" {
		summary = t.Description
		if runes := []rune(summary); len(runes) > 500 {
			summary = string(runes[:500])
		}
	}

	base := 5.0
	if t.CVSSScore != nil {
		base = *t.CVSSScore
	}
	bump := 1.0
	if severity == domain.SeverityCritical {
		bump = 2.0
	}
	score := math.Min(10, base+bump)

	return Payload{
		Summary:          summary,
		BusinessImpact:   "Potential impact inferred from severity level.",
		MitigationAdvice: mitigation,
		RiskScore:        &score,
	}
}

type promptThreat struct {
	CVEID            string         `json:"cve_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	CVSSScore        *float64       `json:"cvss_score"`
	Severity         string         `json:"severity"`
	Published        *string        `json:"published"`
	AttackVector     string         `json:"attack_vector"`
	AffectedProducts map[string]any `json:"affected_products"`
}

type promptSchema struct {
	Summary          string `json:"summary"`
	BusinessImpact   string `json:"business_impact"`
	MitigationAdvice string `json:"mitigation_advice"`
	RiskScore        string `json:"risk_score"`
}

type promptRequest struct {
	Instructions   string       `json:"instructions"`
	Threat         promptThreat `json:"threat"`
	ResponseSchema promptSchema `json:"response_schema"`
}

// buildPrompt embeds the threat and the expected response shape in a JSON
// document the model is asked to answer in kind.
func buildPrompt(t *domain.Threat) (string, error) {
	var published *string
	if t.PublishedDate != nil {
		v := t.PublishedDate.Format(time.RFC3339)
		published = &v
	}

	req := promptRequest{
		Instructions: "You are a cybersecurity analyst. Provide concise analysis in JSON.",
		Threat: promptThreat{
			CVEID:            t.CVEID,
			Title:            t.Title,
			Description:      t.Description,
			CVSSScore:        t.CVSSScore,
			Severity:         t.Severity,
			Published:        published,
			AttackVector:     t.AttackVector,
			AffectedProducts: t.AffectedProducts,
		},
		ResponseSchema: promptSchema{
			Summary:          "<string>",
			BusinessImpact:   "<string>",
			MitigationAdvice: "<string>",
			RiskScore:        "<float 0-10>",
		},
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
