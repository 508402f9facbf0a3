package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cyberscope/cyberscope/internal/adapters/web"
	"github.com/cyberscope/cyberscope/internal/core/domain"
	"github.com/cyberscope/cyberscope/internal/core/ports"
	"github.com/cyberscope/cyberscope/internal/core/services/risk"
)

const (
	summaryCacheKey = "summary"
	metricsCacheKey = "metrics"

	defaultListLimit    = 20
	maxListLimit        = 100
	maxListDays         = 90
	summaryRecentWindow = 50
	summaryTrendingDays = 7
)

var (
	severityPattern = regexp.MustCompile(`^(critical|high|medium|low)$`)
	periodPattern   = regexp.MustCompile(`^\d+[dDwWmM]$`)
)

type threatAnalysisResponse struct {
	Summary          string     `json:"summary"`
	BusinessImpact   string     `json:"business_impact"`
	MitigationAdvice string     `json:"mitigation_advice"`
	RiskScore        *float64   `json:"risk_score"`
	AnalyzedAt       *time.Time `json:"analyzed_at"`
}

type threatResponse struct {
	CVEID            string                  `json:"cve_id"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
	Severity         string                  `json:"severity"`
	CVSSScore        *float64                `json:"cvss_score"`
	PublishedDate    *time.Time              `json:"published_date"`
	ModifiedDate     *time.Time              `json:"modified_date"`
	AttackVector     string                  `json:"attack_vector"`
	AffectedProducts map[string]any          `json:"affected_products"`
	Analysis         *threatAnalysisResponse `json:"analysis"`
	Categories       []string                `json:"categories"`
}

type summaryResponse struct {
	Critical      int        `json:"critical"`
	High          int        `json:"high"`
	Medium        int        `json:"medium"`
	Trending      int        `json:"trending"`
	TotalAnalyzed int        `json:"total_analyzed"`
	LastUpdate    *time.Time `json:"last_update"`
}

type threatListResponse struct {
	Items []threatResponse `json:"items"`
	Total int64            `json:"total"`
}

type threatDetailResponse struct {
	Threat threatResponse `json:"threat"`
}

type trendResponse struct {
	Points []domain.TrendPoint `json:"points"`
}

type metricsResponse struct {
	Metrics   map[string]any `json:"metrics"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DashboardHandler serves the dashboard read API
type DashboardHandler struct {
	Store           ports.ThreatStore
	Cache           *web.ResponseCache
	MetricsCacheTTL time.Duration

	engine *risk.Engine
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(store ports.ThreatStore, cache *web.ResponseCache, metricsCacheTTL time.Duration) *DashboardHandler {
	return &DashboardHandler{
		Store:           store,
		Cache:           cache,
		MetricsCacheTTL: metricsCacheTTL,
		engine:          risk.NewEngine(),
	}
}

// HandleSummary returns the headline dashboard counters
func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if payload, ok := h.Cache.Get(summaryCacheKey); ok {
		writeCached(w, payload)
		return
	}

	counts, err := h.Store.SeverityCounts(r.Context())
	if err != nil {
		log.Printf("Failed to fetch severity counts: %v", err)
		http.Error(w, "Failed to fetch summary", http.StatusInternalServerError)
		return
	}

	analyzed, err := h.Store.AnalysisCount(r.Context())
	if err != nil {
		log.Printf("Failed to count analyzed threats: %v", err)
		http.Error(w, "Failed to fetch summary", http.StatusInternalServerError)
		return
	}

	recent, err := h.Store.RecentThreats(r.Context(), summaryRecentWindow)
	if err != nil {
		log.Printf("Failed to fetch recent threats: %v", err)
		http.Error(w, "Failed to fetch summary", http.StatusInternalServerError)
		return
	}

	trending := h.engine.IdentifyTrending(recent, summaryTrendingDays)

	var lastUpdate *time.Time
	for _, t := range recent {
		for _, candidate := range []*time.Time{t.ModifiedDate, t.PublishedDate} {
			if candidate != nil && (lastUpdate == nil || candidate.After(*lastUpdate)) {
				lastUpdate = candidate
			}
		}
	}

	resp := summaryResponse{
		Critical:      int(counts[domain.SeverityCritical]),
		High:          int(counts[domain.SeverityHigh]),
		Medium:        int(counts[domain.SeverityMedium]),
		Trending:      len(trending),
		TotalAnalyzed: int(analyzed),
		LastUpdate:    lastUpdate,
	}
	h.writeAndCache(w, summaryCacheKey, resp, 0)
}

// HandleThreats returns a filtered threat listing
func (h *DashboardHandler) HandleThreats(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeDetail(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	severity := r.URL.Query().Get("severity")
	if severity != "" && !severityPattern.MatchString(severity) {
		writeDetail(w, http.StatusBadRequest, "severity must be one of critical, high, medium, low")
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListDays {
			writeDetail(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = n
	}

	filter := domain.ThreatFilter{
		Severity: strings.ToUpper(severity),
		Days:     days,
		Limit:    limit,
	}

	threats, total, err := h.Store.ListThreats(r.Context(), filter)
	if err != nil {
		log.Printf("Failed to list threats: %v", err)
		http.Error(w, "Failed to list threats", http.StatusInternalServerError)
		return
	}

	resp := threatListResponse{
		Items: make([]threatResponse, 0, len(threats)),
		Total: total,
	}
	for _, t := range threats {
		resp.Items = append(resp.Items, serializeThreat(t))
	}
	writeJSON(w, resp)
}

// HandleThreatDetail returns a single threat looked up by CVE identifier
func (h *DashboardHandler) HandleThreatDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cveID := vars["cveID"]

	threat, err := h.Store.FindByCVE(r.Context(), cveID)
	if err != nil {
		log.Printf("Failed to fetch threat %s: %v", cveID, err)
		http.Error(w, "Failed to fetch threat", http.StatusInternalServerError)
		return
	}
	if threat == nil {
		writeDetail(w, http.StatusNotFound, "Threat not found")
		return
	}

	writeJSON(w, threatDetailResponse{Threat: serializeThreat(threat)})
}

// HandleTrends returns per-day published counts over the requested period
func (h *DashboardHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "30d"
	}
	if !periodPattern.MatchString(period) {
		writeDetail(w, http.StatusBadRequest, "period must look like 30d, 12w or 3m")
		return
	}

	cacheKey := "trends:" + period
	if payload, ok := h.Cache.Get(cacheKey); ok {
		writeCached(w, payload)
		return
	}

	amount, err := strconv.Atoi(period[:len(period)-1])
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "period out of range")
		return
	}
	unit := strings.ToLower(period[len(period)-1:])

	now := time.Now().UTC()
	var since time.Time
	switch unit {
	case "d":
		since = now.AddDate(0, 0, -amount)
	case "w":
		since = now.AddDate(0, 0, -7*amount)
	default:
		since = now.AddDate(0, 0, -30*amount)
	}

	points, err := h.Store.TrendPoints(r.Context(), since)
	if err != nil {
		log.Printf("Failed to fetch trend points: %v", err)
		http.Error(w, "Failed to fetch trends", http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []domain.TrendPoint{}
	}

	h.writeAndCache(w, cacheKey, trendResponse{Points: points}, 0)
}

// HandleMetrics returns the newest stored dashboard snapshot
func (h *DashboardHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if payload, ok := h.Cache.Get(metricsCacheKey); ok {
		writeCached(w, payload)
		return
	}

	metric, err := h.Store.LatestMetric(r.Context())
	if err != nil {
		log.Printf("Failed to fetch dashboard metrics: %v", err)
		http.Error(w, "Failed to fetch metrics", http.StatusInternalServerError)
		return
	}
	if metric == nil {
		writeDetail(w, http.StatusNotFound, "Metrics not found")
		return
	}

	resp := metricsResponse{
		Metrics:   metric.Value,
		UpdatedAt: metric.UpdatedAt,
	}
	h.writeAndCache(w, metricsCacheKey, resp, h.MetricsCacheTTL)
}

func serializeThreat(t *domain.Threat) threatResponse {
	categories := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		categories = append(categories, c.Category)
	}

	resp := threatResponse{
		CVEID:            t.CVEID,
		Title:            t.Title,
		Description:      t.Description,
		Severity:         t.Severity,
		CVSSScore:        t.CVSSScore,
		PublishedDate:    t.PublishedDate,
		ModifiedDate:     t.ModifiedDate,
		AttackVector:     t.AttackVector,
		AffectedProducts: t.AffectedProducts,
		Categories:       categories,
	}

	if t.Analysis != nil {
		analyzedAt := t.Analysis.AnalyzedAt
		resp.Analysis = &threatAnalysisResponse{
			Summary:          t.Analysis.Summary,
			BusinessImpact:   t.Analysis.BusinessImpact,
			MitigationAdvice: t.Analysis.MitigationAdvice,
			RiskScore:        t.Analysis.RiskScore,
			AnalyzedAt:       &analyzedAt,
		}
	}
	return resp
}

// writeAndCache stores the marshaled response under key before writing it.
// A zero ttl uses the cache default.
func (h *DashboardHandler) writeAndCache(w http.ResponseWriter, key string, resp any, ttl time.Duration) {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	if ttl > 0 {
		h.Cache.SetWithTTL(key, payload, ttl)
	} else {
		h.Cache.Set(key, payload)
	}
	writeCached(w, payload)
}

func writeCached(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func writeJSON(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
