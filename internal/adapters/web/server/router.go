package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberscope/cyberscope/internal/telemetry"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	api := r.PathPrefix("/api/dashboard").Subrouter()
	api.HandleFunc("/summary", s.DashboardHandler.HandleSummary).Methods(http.MethodGet)
	api.HandleFunc("/threats", s.DashboardHandler.HandleThreats).Methods(http.MethodGet)
	api.HandleFunc("/threat/{cveID}", s.DashboardHandler.HandleThreatDetail).Methods(http.MethodGet)
	api.HandleFunc("/trends", s.DashboardHandler.HandleTrends).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.DashboardHandler.HandleMetrics).Methods(http.MethodGet)
	api.HandleFunc("/report", s.ReportHandler.HandleDownloadReport).Methods(http.MethodGet)

	// Live updates for the dashboard frontend
	api.HandleFunc("/live", s.WSManager.HandleWebSocket).Methods(http.MethodGet)

	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return corsMiddleware(s.AllowedOrigin)(r)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// corsMiddleware allows the configured frontend origin and answers
// preflight requests before they reach the router.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware counts requests per route template, method and status.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		telemetry.HTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
