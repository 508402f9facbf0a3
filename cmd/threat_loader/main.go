package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/cyberscope/cyberscope/internal/adapters/feeds"
	"github.com/cyberscope/cyberscope/internal/adapters/storage"
	"github.com/cyberscope/cyberscope/internal/core/services/analysis"
	"github.com/cyberscope/cyberscope/internal/core/services/collector"
	"github.com/cyberscope/cyberscope/internal/core/services/risk"
)

func main() {
	feedFile := flag.String("feed-file", "./data/nvd_feed.json", "Path to an NVD 2.0 vulnerability JSON document")
	dbPath := flag.String("db", "./data/cyberscope.db", "Path to SQLite database")
	flag.Parse()

	log.Println("=== Threat Feed Loader ===")
	log.Printf("Feed file: %s", *feedFile)
	log.Printf("Database: %s", *dbPath)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := storage.NewSQLiteAdapter(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	f, err := os.Open(*feedFile)
	if err != nil {
		log.Fatalf("Failed to open feed file: %v", err)
	}
	defer f.Close()

	threats, err := feeds.DecodeNVDFeed(f)
	if err != nil {
		log.Fatalf("Failed to decode feed: %v", err)
	}
	log.Printf("Decoded %d threats from feed", len(threats))

	// Offline loads take the heuristic analysis path, never the model.
	analyzer := analysis.New(nil, 0, 1)
	c, err := collector.New(store, nil, nil, nil, analyzer, risk.NewEngine(), "0 6 * * *")
	if err != nil {
		log.Fatalf("Failed to build collector: %v", err)
	}

	ctx := context.Background()
	stored, err := c.StoreThreats(ctx, threats, nil)
	if err != nil {
		log.Fatalf("Failed to store threats: %v", err)
	}

	if err := c.UpdateMetrics(ctx, stored); err != nil {
		log.Fatalf("Failed to update dashboard snapshot: %v", err)
	}

	log.Printf("✓ Stored %d threats", len(stored))
}
