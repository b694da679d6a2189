package corpus

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/recall-labs/go-recall/src/concurrent"
	"github.com/recall-labs/go-recall/src/embed"
	"github.com/recall-labs/go-recall/src/logger"
)

// Ingestor chunks source text, embeds the chunks in parallel and writes
// them to an index in batches.
type Ingestor struct {
	index    Index
	embedder embed.Embedder
	chunker  Chunker
	workers  int
	batch    int
	log      zerolog.Logger
}

type IngestorOptions struct {
	MaxTokens int
	Workers   int
	BatchSize int
	Logger    *zerolog.Logger
}

func NewIngestor(index Index, embedder embed.Embedder, opts IngestorOptions) *Ingestor {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 64
	}
	log := logger.New("corpus.ingest")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Ingestor{
		index:    index,
		embedder: embedder,
		chunker:  Chunker{MaxTokens: opts.MaxTokens},
		workers:  workers,
		batch:    batch,
		log:      log,
	}
}

// IngestText chunks and indexes a single document. It returns the number of
// chunks written.
func (in *Ingestor) IngestText(ctx context.Context, text, source string) (int, error) {
	chunks, err := in.chunker.ChunkText(text, source)
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", source, err)
	}
	return in.IngestChunks(ctx, chunks)
}

// IngestReader streams a document from a reader and indexes it.
func (in *Ingestor) IngestReader(ctx context.Context, r io.Reader, source string) (int, error) {
	chunks, err := in.chunker.ChunkReader(r, source)
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", source, err)
	}
	return in.IngestChunks(ctx, chunks)
}

// IngestChunks embeds the chunks concurrently and writes them in batches.
// Chunks that already carry an embedding are kept as-is.
func (in *Ingestor) IngestChunks(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	embedded, err := concurrent.ParallelMap(ctx, chunks, func(c Chunk) (Chunk, error) {
		if len(c.Embedding) > 0 || in.embedder == nil {
			return c, nil
		}
		vec, err := in.embedder.Embed(ctx, c.Content)
		if err != nil {
			return Chunk{}, fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		c.Embedding = vec
		return c, nil
	}, in.workers)
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(embedded); start += in.batch {
		end := start + in.batch
		if end > len(embedded) {
			end = len(embedded)
		}
		if err := in.index.Add(ctx, embedded[start:end]); err != nil {
			return start, fmt.Errorf("index chunks %d..%d: %w", start, end, err)
		}
	}
	in.log.Info().Int("chunks", len(embedded)).Msg("ingested document chunks")
	return len(embedded), nil
}

// Rebuild drops the index and recreates its schema so a fresh ingest can
// start from empty.
func (in *Ingestor) Rebuild(ctx context.Context) error {
	if err := in.index.Drop(ctx); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	return in.index.EnsureSchema(ctx)
}
