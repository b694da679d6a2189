package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultsAutoBackend(t *testing.T) {
	cfg := Config{StoreBackend: "auto"}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "memory", cfg.StoreBackend)

	cfg = Config{StoreBackend: "auto", PostgresDSN: "postgres://localhost/recall"}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "postgres", cfg.StoreBackend)

	cfg = Config{StoreBackend: "auto", MongoURI: "mongodb://localhost:27017"}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "mongo", cfg.StoreBackend)
}

func TestResolveDefaultsPrefersPostgres(t *testing.T) {
	cfg := Config{
		StoreBackend: "",
		PostgresDSN:  "postgres://localhost/recall",
		MongoURI:     "mongodb://localhost:27017",
	}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "postgres", cfg.StoreBackend)
}

func TestResolveDefaultsRejectsUnknownBackend(t *testing.T) {
	cfg := Config{StoreBackend: "cassandra"}
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsRejectsUnknownFallthrough(t *testing.T) {
	cfg := Config{StoreBackend: "memory", Fallthrough: "loop"}
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsTopK(t *testing.T) {
	cfg := Config{StoreBackend: "memory", Fallthrough: "generate", TopK: -1}
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, 4, cfg.TopK)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RECALL_STORE_BACKEND", "memory")
	t.Setenv("RECALL_EMBED_DIMS", "256")
	t.Setenv("RECALL_FALLTHROUGH", "end")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 256, cfg.EmbedDims)
	assert.Equal(t, "end", cfg.Fallthrough)
	assert.Equal(t, 8080, cfg.HTTPPort)
}
