// Package main provides the importer command that fetches upcoming civic
// events, normalizes them, and writes the CSV and storage upserts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"civicimport/internal/config"
	"civicimport/internal/enrich"
	"civicimport/internal/logger"
	"civicimport/internal/metrics"
	"civicimport/internal/mobilize"
	"civicimport/internal/normalize"
	"civicimport/internal/safety"
	"civicimport/internal/sink"
	"civicimport/pkg/report"
)

// stringList collects repeated flag values.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)

	return nil
}

func main() {
	// 1. Define Command-Line Flags
	// ----------------------------
	configPath := flag.String("config", "", "Path to YAML configuration file (optional)")
	limit := flag.Int("limit", 0, "Maximum rows to produce")
	days := flag.Int("days", 0, "Size of the upcoming-events window in days")
	outPath := flag.String("out", "", "CSV output path")
	perPage := flag.Int("per-page", 0, "Upstream page size")
	includeVirtual := flag.Bool("include-virtual", false, "Include virtual events")
	enrichFlag := flag.Bool("enrich", false, "Enable source-page enrichment")
	enrichMax := flag.Int("enrich-max", 0, "Maximum enrichment calls per run")
	upsert := flag.Bool("upsert", false, "Upsert rows into storage")
	table := flag.String("table", "", "Storage table name")
	onConflict := flag.String("on-conflict", "", "Comma-separated upsert conflict columns")
	dbFields := flag.String("db-fields", "", "Comma-separated column allowlist")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	jsonLogs := flag.Bool("json-logs", false, "Emit JSON logs")
	metricsAddr := flag.String("metrics", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	pgDSN := flag.String("pg-dsn", os.Getenv("PG_DSN"), "Postgres DSN for direct upserts. Env: PG_DSN")

	var eventTypes stringList
	flag.Var(&eventTypes, "event-type", "Event category filter (repeatable)")

	flag.Parse()

	// 2. Load Configuration
	// ---------------------
	cfg := config.Default()

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "limit":
			cfg.Fetch.Limit = *limit
		case "days":
			cfg.Fetch.Days = *days
		case "out":
			cfg.Output.Path = *outPath
		case "per-page":
			cfg.Fetch.PerPage = *perPage
		case "include-virtual":
			cfg.Fetch.IncludeVirtual = *includeVirtual
		case "event-type":
			cfg.Fetch.EventTypes = eventTypes
		case "enrich":
			cfg.Enrichment.Enabled = *enrichFlag
		case "enrich-max":
			cfg.Enrichment.MaxCalls = *enrichMax
		case "upsert":
			cfg.Upsert.Enabled = *upsert
		case "table":
			cfg.Upsert.Table = *table
		case "on-conflict":
			cfg.Upsert.OnConflict = *onConflict
		case "db-fields":
			cfg.Output.Fields = config.ParseFields(*dbFields)
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "json-logs":
			cfg.Logging.JSON = *jsonLogs
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(cfg.Logging.Level, cfg.Logging.JSON, os.Stderr)
	met := metrics.New()

	if *metricsAddr != "" {
		met.Serve(*metricsAddr)
		log.Info("metrics endpoint listening", "addr", *metricsAddr)
	}

	ctx := context.Background()
	startTime := time.Now()

	log.Info("🚀 Starting civic events import", "config", cfg.String())

	// 3. Ingestion (Fetch)
	// --------------------
	log.Info("Phase 1: Fetching upcoming events...")

	now := time.Now().UTC()

	client := mobilize.NewClient(cfg.Fetch.BaseURL, &cfg.Retry, cfg.Fetch.MaxPages, log, met)

	events, fetchStats, err := client.FetchEvents(ctx, mobilize.Query{
		StartUnix:      now.Unix(),
		EndUnix:        now.Add(time.Duration(cfg.Fetch.Days) * 24 * time.Hour).Unix(),
		PerPage:        cfg.Fetch.PerPage,
		IncludeVirtual: cfg.Fetch.IncludeVirtual,
		EventTypes:     cfg.Fetch.EventTypes,
	})
	if err != nil {
		log.Error("❌ Fetch failed", "error", err)
		os.Exit(1)
	}

	log.Info("✅ Fetched events", "events", len(events), "pages", fetchStats.Pages, "duration", time.Since(startTime).Round(time.Millisecond))

	if len(events) == 0 {
		if fetchStats.RateLimited {
			// Rate limiting is an upstream condition, not a data
			// regression. Leave a valid empty artifact and succeed.
			log.Warn("⚠️  Zero events while rate limited, treating as soft success")

			if err := sink.WriteCSV(cfg.Output.Path, nil, cfg.Output.Fields); err != nil {
				log.Error("❌ CSV write failed", "error", err)
				os.Exit(1)
			}

			os.Exit(0)
		}

		log.Error("❌ Zero events fetched")
		os.Exit(1)
	}

	// 4. Processing (Normalize)
	// -------------------------
	log.Info("Phase 2: Normalizing and screening...")

	var enricher normalize.Enricher
	if cfg.Enrichment.Enabled {
		enricher = enrich.NewEnricher(cfg.Enrichment.GetTimeout(), log, met)
	}

	normalizer := normalize.New(cfg, safety.NewFilter(cfg.Safety.BannedTerms), enricher, log, met)

	rows, normStats := normalizer.Normalize(ctx, events)

	log.Info("✅ Normalized rows", "rows", len(rows), "rejected", normStats.Rejected, "enrich_calls", normStats.EnrichCalls)

	// 5. Persistence (CSV + Upsert)
	// -----------------------------
	log.Info("Phase 3: Writing output...")

	if err := sink.WriteCSV(cfg.Output.Path, rows, cfg.Output.Fields); err != nil {
		log.Error("❌ CSV write failed", "error", err)
		os.Exit(1)
	}

	log.Info("✅ Wrote CSV", "path", cfg.Output.Path, "rows", len(rows))

	if len(rows) == 0 {
		// Nonzero raw events reduced to nothing points at a filtering
		// or parsing regression, not an upstream outage.
		log.Error("❌ Zero rows produced from fetched events")
		os.Exit(1)
	}

	if cfg.Upsert.Enabled {
		upserter, err := buildUpserter(ctx, cfg, *pgDSN, log, met)
		if err != nil {
			log.Error("❌ Upsert setup failed", "error", err)
			os.Exit(1)
		}

		if err := upserter.Upsert(ctx, rows); err != nil {
			log.Error("❌ Upsert failed", "error", err)
			os.Exit(1)
		}

		log.Info("✅ Upserted rows", "rows", len(rows), "table", cfg.Upsert.Table)
	}

	// 6. Final Report
	// ---------------
	log.Info("✨ Import complete", "duration", time.Since(startTime).Round(time.Millisecond))

	var summary report.Summary
	summary.Add("pages fetched", fetchStats.Pages)
	summary.Add("events fetched", len(events))
	summary.Add("rows written", len(rows))
	summary.Add("rows rejected", normStats.Rejected)
	summary.Add("enrichment calls", normStats.EnrichCalls)
	summary.Add("duration", time.Since(startTime).Round(time.Millisecond))
	fmt.Print(summary.String())
}

// buildUpserter picks the storage path: direct Postgres when a DSN is
// supplied, the REST endpoint otherwise.
func buildUpserter(ctx context.Context, cfg *config.Config, pgDSN string, log *logger.Logger, met *metrics.Metrics) (sink.Upserter, error) {
	if pgDSN != "" {
		return sink.NewPostgresClient(ctx, pgDSN, cfg.Upsert.Table, cfg.Upsert.OnConflict, cfg.Output.Fields, cfg.Upsert.BatchSize, log)
	}

	baseURL := os.Getenv("SUPABASE_URL")
	apiKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")

	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("upsert requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY, or a Postgres DSN")
	}

	return sink.NewSupabaseClient(baseURL, apiKey, cfg.Upsert.Table, cfg.Upsert.OnConflict, cfg.Output.Fields, cfg.Upsert.BatchSize, log, met), nil
}
