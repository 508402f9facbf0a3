package risk

import (
	"math"
	"strings"
	"time"

	"github.com/cyberscope/cyberscope/internal/core/domain"
)

// Engine scores threats on a 0-10 scale and assigns topical categories.
// Stateless apart from its fixed weight and rule tables.
type Engine struct {
	vectorWeights map[string]float64
	rules         []categoryRule
	now           func() time.Time
}

// categoryRule is one entry of the ordered dispatch: rules are evaluated
// in sequence and the first match wins.
type categoryRule struct {
	match      func(description, title string) bool
	label      string
	confidence float64
}

// NewEngine creates a risk engine with the standard weight tables.
func NewEngine() *Engine {
	return &Engine{
		vectorWeights: map[string]float64{
			domain.VectorNetwork:         1.0,
			domain.VectorAdjacentNetwork: 0.8,
			domain.VectorLocal:           0.6,
			domain.VectorPhysical:        0.3,
		},
		rules: []categoryRule{
			{descContains("web", "http", "browser"), domain.CategoryWeb, 0.75},
			{descContains("cloud", "kubernetes", "aws", "azure"), domain.CategoryCloud, 0.70},
			{descContains("mobile", "android", "ios", "iphone"), domain.CategoryMobile, 0.70},
			{descContains("router", "network", "switch"), domain.CategoryNetwork, 0.65},
			{descContains("firmware", "iot"), domain.CategoryIoT, 0.60},
			{titleContains("windows", "linux"), domain.CategoryEndpoint, 0.55},
		},
		now: time.Now,
	}
}

// ComputeRisk combines severity, attack vector, deployment surface and
// active exploitation into a 0-10 score. The exploitation bonus is added
// before the [0,1] clamp, so the maximum is exactly 10.
func (e *Engine) ComputeRisk(f domain.RiskFactors) float64 {
	base := 0.0
	if f.CVSSScore != nil {
		base = *f.CVSSScore / 10
	}

	vector := 0.5
	if w, ok := e.vectorWeights[strings.ToUpper(f.AttackVector)]; ok {
		vector = w
	}

	score := base*0.6 + vector*0.2 + deploymentWeight(f.AffectedProducts)*0.2
	if f.IsKnownExploited {
		score += 0.2
	}
	return math.Max(0, math.Min(1, score)) * 10
}

// deploymentWeight derives a weight from the affected-products payload's
// deployment field. Absent payload or field falls back to 0.5.
func deploymentWeight(products map[string]any) float64 {
	if len(products) == 0 {
		return 0.5
	}
	deployment, _ := products["deployment"].(string)
	deployment = strings.ToLower(deployment)
	switch {
	case containsAny(deployment, "cloud", "saas"):
		return 1.0
	case containsAny(deployment, "server", "enterprise"):
		return 0.8
	case containsAny(deployment, "desktop", "client"):
		return 0.6
	}
	return 0.5
}

// Categorize assigns exactly one category label plus a confidence to the
// threat. Deterministic and total: unmatched threats land in Other.
func (e *Engine) Categorize(t *domain.Threat) (string, float64) {
	description := strings.ToLower(t.Description)
	title := strings.ToLower(t.Title)
	for _, rule := range e.rules {
		if rule.match(description, title) {
			return rule.label, rule.confidence
		}
	}
	return domain.CategoryOther, 0.40
}

// IdentifyTrending returns the identifiers of threats published within the
// last N days. No ranking beyond the recency cutoff.
func (e *Engine) IdentifyTrending(threats []*domain.Threat, days int) []string {
	cutoff := e.now().UTC().AddDate(0, 0, -days)
	var trending []string
	for _, t := range threats {
		if t.PublishedDate != nil && !t.PublishedDate.Before(cutoff) {
			trending = append(trending, t.CVEID)
		}
	}
	return trending
}

// Distribution counts threats per category label.
func (e *Engine) Distribution(threats []*domain.Threat) map[string]int {
	counts := make(map[string]int)
	for _, t := range threats {
		label, _ := e.Categorize(t)
		counts[label]++
	}
	return counts
}

func descContains(keywords ...string) func(description, title string) bool {
	return func(description, _ string) bool {
		return containsAny(description, keywords...)
	}
}

func titleContains(keywords ...string) func(description, title string) bool {
	return func(_, title string) bool {
		return containsAny(title, keywords...)
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
