package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Addr              string
	DBPath            string
	NVDEndpoint       string
	KEVEndpoint       string
	GitHubEndpoint    string
	GitHubToken       string
	OpenAIKey         string
	Schedule          string
	TokenBudget       int
	RequestsPerSecond int
	CacheTTL          time.Duration
	MetricsCacheTTL   time.Duration
	FrontendOrigin    string
	CollectOnStart    bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.Addr = getEnv("CYBERSCOPE_ADDR", ":8080")
	cfg.DBPath = getEnv("CYBERSCOPE_DATABASE_PATH", filepath.Join("data", "cyberscope.db"))
	cfg.NVDEndpoint = getEnv("CYBERSCOPE_NVD_ENDPOINT", "https://services.nvd.nist.gov/rest/json/cves/2.0")
	cfg.KEVEndpoint = getEnv("CYBERSCOPE_KEV_ENDPOINT", "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json")
	cfg.GitHubEndpoint = getEnv("CYBERSCOPE_GITHUB_ENDPOINT", "https://api.github.com/graphql")
	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Schedule = getEnv("CYBERSCOPE_SCHEDULE", "0 6 * * *")
	cfg.TokenBudget = getEnvInt("CYBERSCOPE_TOKEN_BUDGET", 50000)
	cfg.RequestsPerSecond = getEnvInt("CYBERSCOPE_RPS", 1)
	cfg.CacheTTL = getEnvDuration("CYBERSCOPE_CACHE_TTL", 6*time.Hour)
	cfg.MetricsCacheTTL = getEnvDuration("CYBERSCOPE_METRICS_CACHE_TTL", time.Hour)
	cfg.FrontendOrigin = getEnv("FRONTEND_ORIGIN", "http://localhost:5173")
	cfg.CollectOnStart = getEnvBool("CYBERSCOPE_COLLECT_ON_START", true)

	// Command Line Flags (Override Env)
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.StringVar(&cfg.NVDEndpoint, "nvd-endpoint", cfg.NVDEndpoint, "NVD vulnerability API endpoint")
	flag.StringVar(&cfg.KEVEndpoint, "kev-endpoint", cfg.KEVEndpoint, "CISA known exploited vulnerabilities catalog URL")
	flag.StringVar(&cfg.GitHubEndpoint, "github-endpoint", cfg.GitHubEndpoint, "GitHub GraphQL API endpoint")
	flag.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "Collection schedule (five-field cron expression)")
	flag.IntVar(&cfg.TokenBudget, "token-budget", cfg.TokenBudget, "Daily LLM token budget")
	flag.IntVar(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "LLM requests per second")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Dashboard response cache TTL")
	flag.DurationVar(&cfg.MetricsCacheTTL, "metrics-cache-ttl", cfg.MetricsCacheTTL, "Metrics response cache TTL")
	flag.StringVar(&cfg.FrontendOrigin, "frontend-origin", cfg.FrontendOrigin, "Allowed CORS origin for the dashboard frontend")
	flag.BoolVar(&cfg.CollectOnStart, "collect-on-start", cfg.CollectOnStart, "Run a collection immediately on startup")

	flag.Parse()

	ensureDBDir(cfg.DBPath)

	return cfg
}

// ensureDBDir creates the database directory so a first run with the
// default path works out of the box.
func ensureDBDir(path string) {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create database directory %s: %v", dir, err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
