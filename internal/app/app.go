package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cyberscope/cyberscope/internal/adapters/feeds"
	"github.com/cyberscope/cyberscope/internal/adapters/llm"
	"github.com/cyberscope/cyberscope/internal/adapters/reporting"
	"github.com/cyberscope/cyberscope/internal/adapters/storage"
	"github.com/cyberscope/cyberscope/internal/adapters/web"
	webserver "github.com/cyberscope/cyberscope/internal/adapters/web/server"
	"github.com/cyberscope/cyberscope/internal/config"
	"github.com/cyberscope/cyberscope/internal/core/ports"
	"github.com/cyberscope/cyberscope/internal/core/services/analysis"
	"github.com/cyberscope/cyberscope/internal/core/services/collector"
	reportingService "github.com/cyberscope/cyberscope/internal/core/services/reporting"
	"github.com/cyberscope/cyberscope/internal/core/services/risk"
	"github.com/cyberscope/cyberscope/internal/telemetry"
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config    *config.Config
	Store     *storage.SQLiteAdapter
	Collector *collector.Collector
	WebServer *webserver.Server
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Store = store

	// 2. Domain Services
	analyzer := app.initAnalyzer()

	if err := app.initCollector(analyzer); err != nil {
		return err
	}

	// 3. Servers & Integration
	app.initServers()

	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if dir := filepath.Dir(app.Config.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init threat storage: %w", err)
	}
	return store, nil
}

// initAnalyzer builds the model-backed analyzer. Without an API key the
// analyzer runs entirely on its heuristic fallbacks.
func (app *Application) initAnalyzer() *analysis.Analyzer {
	var client ports.ModelClient
	if c := llm.NewOpenAIClient(app.Config.OpenAIKey); c != nil {
		client = c
	} else {
		slog.Warn("OPENAI_API_KEY not set, model analysis disabled")
	}
	return analysis.New(client, app.Config.TokenBudget, app.Config.RequestsPerSecond)
}

func (app *Application) initCollector(analyzer *analysis.Analyzer) error {
	nvd := feeds.NewNVDClient(app.Config.NVDEndpoint)
	kev := feeds.NewKEVClient(app.Config.KEVEndpoint)
	advisories := feeds.NewGitHubAdvisories(app.Config.GitHubEndpoint, app.Config.GitHubToken)

	c, err := collector.New(app.Store, nvd, kev, advisories, analyzer, risk.NewEngine(), app.Config.Schedule)
	if err != nil {
		return fmt.Errorf("failed to init collector: %w", err)
	}
	app.Collector = c
	return nil
}

func (app *Application) initServers() {
	generator := reportingService.NewThreatReportGenerator(app.Store)
	exporter := reporting.NewPDFExporter()
	cache := web.NewResponseCache(app.Config.CacheTTL)

	app.WebServer = webserver.NewServer(
		app.Config.Addr,
		app.Store,
		generator,
		exporter,
		cache,
		app.Config.MetricsCacheTTL,
		app.Config.FrontendOrigin,
	)

	// Completed collection runs are pushed to dashboard clients over the
	// websocket hub.
	app.Collector.SetPublisher(app.WebServer.WSManager)
}

// Run starts the application components and manages their execution lifecycle.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting CyberScope components...")

	// 1. Startup Collection
	// Runs before the server accepts requests so the dashboard never
	// serves an empty database on first boot. A failed run is logged,
	// not fatal.
	if app.Config.CollectOnStart {
		if _, err := app.Collector.RunCollection(ctx); err != nil {
			slog.Error("startup collection failed", "error", err)
		}
	}

	// 2. Scheduler & Server
	errChan := make(chan error, 1)

	go app.Collector.ScheduleCollection(ctx)

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	slog.Info("CyberScope ready. Press Ctrl+C to terminate.")

	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case err := <-errChan:
		return err
	}

	return app.cleanup()
}

func (app *Application) cleanup() error {
	slog.Info("Cleaning up resources...")

	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			return fmt.Errorf("closing storage: %w", err)
		}
	}
	return nil
}
