// Command ingest loads a JSON batch of raw incidents into the store,
// embedding each new record's description. One-shot counterpart of the
// server's /ingest endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/incidenthq/triage/internal/config"
	"github.com/incidenthq/triage/internal/core"
	"github.com/incidenthq/triage/internal/llm"
	"github.com/incidenthq/triage/internal/logging"
	"github.com/incidenthq/triage/internal/source"
	"github.com/incidenthq/triage/internal/store"
	"github.com/incidenthq/triage/internal/store/memgraph"
	"github.com/incidenthq/triage/internal/store/sqlite"
)

func main() {
	batchPath := flag.String("batch", "", "path to a JSON file containing an array of raw incidents")
	auditDir := flag.String("audit-dir", "", "optional directory for per-record audit JSON files")
	configPath := flag.String("config", "config/config.toml", "path to the TOML config file")
	flag.Parse()

	if *batchPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var incidents store.IncidentStore
	switch cfg.Database.Backend {
	case "memgraph":
		incidents, err = memgraph.Open(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
	default:
		incidents, err = sqlite.Open(cfg.Database.Path)
	}
	if err != nil {
		logger.Fatal("failed to open incident store", zap.Error(err))
	}
	defer incidents.Close(ctx)

	if !cfg.HasLLM() {
		logger.Fatal("no llm provider configured; set llm.provider or LLM_PROVIDER")
	}
	_, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to initialize llm client", zap.Error(err))
	}
	if embedder == nil {
		logger.Fatal("configured llm provider has no embedding support")
	}

	batch, err := source.ReadBatch(*batchPath)
	if err != nil {
		logger.Fatal("failed to read batch", zap.Error(err))
	}

	pipeline := core.NewPipeline(incidents, embedder, logger).
		WithChunkSize(cfg.Analysis.IngestChunkSize)
	if *auditDir != "" {
		audit, err := source.NewAuditDir(*auditDir)
		if err != nil {
			logger.Fatal("failed to create audit dir", zap.Error(err))
		}
		pipeline = pipeline.WithAuditWriter(audit)
	}

	report, err := pipeline.Ingest(ctx, batch)
	if err != nil {
		logger.Error("ingest aborted", zap.Error(err))
	}

	fmt.Printf("run %s: %d candidates, %d inserted, %d already present, %d duplicate in batch, %d failed\n",
		report.RunID, report.TotalCandidates, report.Inserted,
		report.SkippedExisting, report.SkippedDuplicateInBatch, len(report.Failed))
	for id, reason := range report.Failed {
		fmt.Printf("  failed %s: %s\n", id, reason)
	}
	if err != nil {
		os.Exit(1)
	}
}
