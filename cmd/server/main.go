package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/incidenthq/triage/internal/config"
	"github.com/incidenthq/triage/internal/core"
	"github.com/incidenthq/triage/internal/jira"
	"github.com/incidenthq/triage/internal/llm"
	"github.com/incidenthq/triage/internal/logging"
	"github.com/incidenthq/triage/internal/server"
	"github.com/incidenthq/triage/internal/store"
	"github.com/incidenthq/triage/internal/store/memgraph"
	"github.com/incidenthq/triage/internal/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
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
	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to initialize llm client", zap.Error(err))
	}
	if embedder == nil {
		logger.Fatal("configured llm provider has no embedding support; ingestion and search need one")
	}

	var jiraClient *jira.Client
	var tracker core.IssueTracker
	if err := cfg.ValidateJira(); err != nil {
		logger.Warn("jira not configured, issue processing endpoints will fail", zap.Error(err))
	} else {
		jiraClient = jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.APIToken)
		tracker = jiraClient
	}

	ranker := core.NewRanker(incidents)
	analyzer := core.NewAnalyzer(llmClient, cfg.Analysis.MinIncidentsForAnalysis, logger)
	triage := core.NewTriage(tracker, embedder, ranker, analyzer,
		cfg.Analysis.SimilarityThreshold, cfg.Analysis.MaxSimilarIncidents, logger)
	pipeline := core.NewPipeline(incidents, embedder, logger).
		WithChunkSize(cfg.Analysis.IngestChunkSize)

	srv := server.New(cfg, triage, pipeline, jiraClient, logger)
	r := srv.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("starting server", zap.String("port", port), zap.String("backend", cfg.Database.Backend))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
