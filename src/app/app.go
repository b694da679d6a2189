// Package app owns the process-wide collaborators: the record store, the
// corpus index, the embedder and the language model. They are constructed
// once in main and closed on shutdown.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/recall-labs/go-recall/src/concurrent"
	"github.com/recall-labs/go-recall/src/config"
	"github.com/recall-labs/go-recall/src/corpus"
	"github.com/recall-labs/go-recall/src/embed"
	"github.com/recall-labs/go-recall/src/logger"
	"github.com/recall-labs/go-recall/src/models"
	"github.com/recall-labs/go-recall/src/store"
	"github.com/recall-labs/go-recall/src/workflow"
)

// App bundles the shared singletons behind one lifecycle.
type App struct {
	Cfg      *config.Config
	Log      zerolog.Logger
	Store    store.Store
	Index    corpus.Index
	Embedder embed.Embedder
	Model    models.Agent
	Pool     *concurrent.WorkerPool

	closers []func()
}

// New wires everything from the environment-derived config. The model is
// only constructed when withModel is set; ingestion does not need one.
func New(ctx context.Context, cfg *config.Config, service string, withModel bool) (*App, error) {
	a := &App{
		Cfg:  cfg,
		Log:  logger.New(service),
		Pool: concurrent.NewWorkerPool(8),
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.EmbedProvider, err)
	}
	a.Embedder = emb

	if err := a.openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.openIndex(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	if withModel {
		model, err := models.NewLLMProvider(ctx, cfg.LLMProvider, cfg.LLMModel, "")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create %s model: %w", cfg.LLMProvider, err)
		}
		a.Model = model
	}
	return a, nil
}

// Workflow builds a retrieval workflow over the app's collaborators.
func (a *App) Workflow() *workflow.Workflow {
	return workflow.New(a.Model, a.Index, workflow.Options{
		TopK:        a.Cfg.TopK,
		Fallthrough: workflow.ParseFallthrough(a.Cfg.Fallthrough),
		Pool:        a.Pool,
		Logger:      &a.Log,
	})
}

// Close releases every owned resource, in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	switch cfg.EmbedProvider {
	case "openai":
		return embed.NewOpenAIEmbedder(cfg.EmbedModel)
	case "ollama":
		return embed.NewOllamaEmbedder(cfg.EmbedModel)
	case "voyage":
		return embed.NewVoyageEmbedder(cfg.EmbedModel)
	case "dummy", "":
		return embed.NewDummyEmbedder(cfg.EmbedDims), nil
	default:
		return embed.AutoEmbedder(), nil
	}
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) error {
	index := &store.IndexConfig{Dims: cfg.EmbedDims, Embedder: a.Embedder}

	switch cfg.StoreBackend {
	case "postgres":
		ps, err := store.NewPostgresStore(ctx, cfg.PostgresDSN, store.PostgresOptions{
			Table:    cfg.StoreTable,
			Index:    index,
			MaxConns: int32(cfg.MaxConns),
			Logger:   a.Log,
		})
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		if err := ps.EnsureSchema(ctx); err != nil {
			ps.Close()
			return fmt.Errorf("ensure store schema: %w", err)
		}
		a.Store = ps
	case "mongo":
		ms, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.StoreTable, index, a.Log)
		if err != nil {
			return fmt.Errorf("open mongo store: %w", err)
		}
		if err := ms.EnsureSchema(ctx); err != nil {
			ms.Close()
			return fmt.Errorf("ensure store schema: %w", err)
		}
		a.Store = ms
	default:
		a.Store = store.NewInMemoryStore(index)
	}
	a.closers = append(a.closers, a.Store.Close)
	return nil
}

func (a *App) openIndex(ctx context.Context, cfg *config.Config) error {
	if ps, ok := a.Store.(*store.PostgresStore); ok {
		idx := corpus.NewPostgresIndex(ps.Pool(), corpus.PostgresIndexOptions{
			Table:    cfg.CorpusTable,
			Dims:     cfg.EmbedDims,
			Embedder: a.Embedder,
			Logger:   a.Log,
		})
		if err := idx.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure corpus schema: %w", err)
		}
		a.Index = idx
		return nil
	}
	a.Index = corpus.NewMemoryIndex(cfg.EmbedDims, a.Embedder)
	return nil
}
