// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration shared by the daemons and CLIs.
// Environment variables are parsed from the RECALL_ prefix.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage backend: postgres, mongo or memory
	StoreBackend string `envconfig:"STORE_BACKEND" default:"auto"`
	PostgresDSN  string `envconfig:"POSTGRES_DSN" default:""`
	MongoURI     string `envconfig:"MONGO_URI" default:""`
	MongoDB      string `envconfig:"MONGO_DB" default:"recall"`

	StoreTable  string `envconfig:"STORE_TABLE" default:"memory_store"`
	CorpusTable string `envconfig:"CORPUS_TABLE" default:"document_chunks"`
	MaxConns    int    `envconfig:"MAX_CONNS" default:"8"`

	// Embedding Configuration
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"dummy"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:""`
	EmbedDims     int    `envconfig:"EMBED_DIMS" default:"1024"`

	// Model Configuration
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMModel    string `envconfig:"LLM_MODEL" default:""`

	// Retrieval Configuration
	TopK         int    `envconfig:"TOP_K" default:"4"`
	Fallthrough  string `envconfig:"FALLTHROUGH" default:"generate"`
	IngestTokens int    `envconfig:"INGEST_TOKENS" default:"512"`
}

// Load reads .env when present, then parses RECALL_* variables and
// resolves derived defaults.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RECALL", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveDefaults derives the storage backend when set to "auto" and
// validates enum-valued settings.
func (c *Config) ResolveDefaults() error {
	if c.StoreBackend == "" || c.StoreBackend == "auto" {
		switch {
		case c.PostgresDSN != "":
			c.StoreBackend = "postgres"
		case c.MongoURI != "":
			c.StoreBackend = "mongo"
		default:
			c.StoreBackend = "memory"
		}
	}
	switch c.StoreBackend {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("unsupported RECALL_STORE_BACKEND: %s", c.StoreBackend)
	}

	switch c.Fallthrough {
	case "":
		c.Fallthrough = "generate"
	case "generate", "end":
	default:
		return fmt.Errorf("unsupported RECALL_FALLTHROUGH: %s", c.Fallthrough)
	}

	if c.TopK <= 0 {
		c.TopK = 4
	}
	return nil
}
