package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cyberscope/cyberscope/internal/adapters/reporting"
	"github.com/cyberscope/cyberscope/internal/adapters/web"
	"github.com/cyberscope/cyberscope/internal/adapters/web/handlers"
	"github.com/cyberscope/cyberscope/internal/core/ports"
	reportingService "github.com/cyberscope/cyberscope/internal/core/services/reporting"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr             string
	AllowedOrigin    string
	WSManager        *web.WSManager
	DashboardHandler *handlers.DashboardHandler
	ReportHandler    *handlers.ReportHandler
	srv              *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, store ports.ThreatStore, generator *reportingService.ThreatReportGenerator, pdfExporter *reporting.PDFExporter, cache *web.ResponseCache, metricsCacheTTL time.Duration, allowedOrigin string) *Server {
	return &Server{
		Addr:             addr,
		AllowedOrigin:    allowedOrigin,
		WSManager:        web.NewWSManager(allowedOrigin),
		DashboardHandler: handlers.NewDashboardHandler(store, cache, metricsCacheTTL),
		ReportHandler:    handlers.NewReportHandler(generator, pdfExporter),
	}
}

// Run starts the server and the websocket hub.
func (s *Server) Run(ctx context.Context) error {
	s.WSManager.Start(ctx)

	handler := SetupRoutes(s)

	// Instrument with OpenTelemetry
	// "cyberscope-server" is the name of the operation (span)
	instrumentedHandler := otelhttp.NewHandler(handler, "cyberscope-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown implementation
	go func() {
		<-ctx.Done()
		log.Println("Web server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web server shutdown error: %v", err)
		}
	}()

	log.Printf("Web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
