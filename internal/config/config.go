package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type DatabaseConfig struct {
	// Backend selects the store implementation: "sqlite" (default) or
	// "memgraph".
	Backend string `toml:"backend"`
	// Path is the SQLite database file.
	Path string `toml:"path"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type JiraConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	APIToken string `toml:"api_token"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type AnalysisConfig struct {
	SimilarityThreshold     float64 `toml:"similarity_threshold"`
	MaxSimilarIncidents     int     `toml:"max_similar_incidents"`
	MinIncidentsForAnalysis int     `toml:"min_incidents_for_analysis"`
	IngestChunkSize         int     `toml:"ingest_chunk_size"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Jira     JiraConfig     `toml:"jira"`
	LLM      LLMConfig      `toml:"llm"`
	Analysis AnalysisConfig `toml:"analysis"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Backend: "sqlite",
			Path:    "triage.db",
		},
		Memgraph: MemgraphConfig{
			URI: "bolt://localhost:7687",
		},
		Analysis: AnalysisConfig{
			SimilarityThreshold:     0.3,
			MaxSimilarIncidents:     5,
			MinIncidentsForAnalysis: 3,
			IngestChunkSize:         100,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "triage.log",
		},
	}
}

// Load reads a TOML config file, fills unset fields with defaults and
// applies environment overrides for secrets and provider knobs.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.Backend, "TRIAGE_DB_BACKEND")
	setString(&c.Database.Path, "TRIAGE_DB_PATH")
	setString(&c.Memgraph.URI, "MEMGRAPH_URI")
	setString(&c.Memgraph.User, "MEMGRAPH_USER")
	setString(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	setString(&c.Jira.BaseURL, "JIRA_BASE_URL")
	setString(&c.Jira.Username, "JIRA_USERNAME")
	setString(&c.Jira.APIToken, "JIRA_API_TOKEN")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setFloat(&c.Analysis.SimilarityThreshold, "TRIAGE_SIMILARITY_THRESHOLD")
	setInt(&c.Analysis.MaxSimilarIncidents, "TRIAGE_MAX_SIMILAR_INCIDENTS")
	setString(&c.Logging.Level, "TRIAGE_LOG_LEVEL")
	setString(&c.Logging.File, "TRIAGE_LOG_FILE")
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Database.Backend == "" {
		c.Database.Backend = def.Database.Backend
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Analysis.SimilarityThreshold == 0 {
		c.Analysis.SimilarityThreshold = def.Analysis.SimilarityThreshold
	}
	if c.Analysis.MaxSimilarIncidents == 0 {
		c.Analysis.MaxSimilarIncidents = def.Analysis.MaxSimilarIncidents
	}
	if c.Analysis.MinIncidentsForAnalysis == 0 {
		c.Analysis.MinIncidentsForAnalysis = def.Analysis.MinIncidentsForAnalysis
	}
	if c.Analysis.IngestChunkSize == 0 {
		c.Analysis.IngestChunkSize = def.Analysis.IngestChunkSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// ValidateJira reports whether the Jira collaborator is usable.
func (c *Config) ValidateJira() error {
	if c.Jira.BaseURL == "" {
		return fmt.Errorf("jira.base_url is not set")
	}
	if c.Jira.Username == "" || c.Jira.APIToken == "" {
		return fmt.Errorf("jira credentials are not set")
	}
	return nil
}

// HasLLM reports whether an enrichment/embedding provider is configured.
func (c *Config) HasLLM() bool {
	return c.LLM.Provider != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
