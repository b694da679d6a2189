package corpus

import (
	"context"
	"fmt"

	json "github.com/alpkeskin/gotoon"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/recall-labs/go-recall/src/embed"
)

// PostgresIndex keeps chunks in a pgvector table with an ivfflat cosine index.
type PostgresIndex struct {
	db       *pgxpool.Pool
	table    string
	dims     int
	embedder embed.Embedder
	log      zerolog.Logger
}

// PostgresIndexOptions configure a PostgresIndex.
type PostgresIndexOptions struct {
	// Table defaults to "document_chunks".
	Table    string
	Dims     int
	Embedder embed.Embedder
	Logger   zerolog.Logger
}

// NewPostgresIndex wraps an existing pool; the pool's lifecycle belongs to
// the caller so the memory store and the corpus can share connections.
func NewPostgresIndex(db *pgxpool.Pool, opts PostgresIndexOptions) *PostgresIndex {
	table := opts.Table
	if table == "" {
		table = "document_chunks"
	}
	dims := opts.Dims
	if dims <= 0 {
		dims = embed.DefaultDims
	}
	return &PostgresIndex{
		db:       db,
		table:    table,
		dims:     dims,
		embedder: opts.Embedder,
		log:      opts.Logger,
	}
}

func (p *PostgresIndex) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := p.db.Exec(ctx, fmt.Sprintf(`
                CREATE TABLE IF NOT EXISTS %s (
                        id TEXT PRIMARY KEY,
                        content TEXT NOT NULL,
                        metadata JSONB,
                        embedding vector(%d)
                )`, p.table, p.dims)); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	if _, err := p.db.Exec(ctx, fmt.Sprintf(`
                CREATE INDEX IF NOT EXISTS %s_embedding_idx
                ON %s USING ivfflat (embedding vector_cosine_ops)
                WITH (lists = 100)`, p.table, p.table)); err != nil {
		return fmt.Errorf("create ANN index: %w", err)
	}
	return nil
}

// Add upserts chunks in one transaction.
func (p *PostgresIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ingest: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", c.ID, err)
		}
		embedding := c.Embedding
		if len(embedding) == 0 && p.embedder != nil {
			vec, err := p.embedder.Embed(ctx, c.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", c.ID, err)
			}
			embedding = vec
		}
		var emb any
		if len(embedding) > 0 {
			emb = vectorLiteral(conformDims(embedding, p.dims))
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
                        INSERT INTO %s (id, content, metadata, embedding)
                        VALUES ($1, $2, $3::jsonb, $4::vector)
                        ON CONFLICT (id) DO UPDATE
                        SET content = EXCLUDED.content,
                            metadata = EXCLUDED.metadata,
                            embedding = EXCLUDED.embedding`, p.table),
			c.ID, c.Content, meta, emb); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ingest: %w", err)
	}
	return nil
}

// Search embeds query and ranks chunks by similarity, descending.
func (p *PostgresIndex) Search(ctx context.Context, query string, topK int) ([]Scored, error) {
	if p.embedder == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}
	queryEmbedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.log.Warn().Err(err).Msg("query embedding failed; retrieval degraded to empty")
		return nil, nil
	}
	queryEmbedding = conformDims(queryEmbedding, p.dims)

	rows, err := p.db.Query(ctx, fmt.Sprintf(`
                SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS similarity
                FROM %s
                WHERE embedding IS NOT NULL
                ORDER BY similarity DESC
                LIMIT $2`, p.table),
		vectorLiteral(queryEmbedding), topK)
	if err != nil {
		p.log.Warn().Err(err).Msg("retrieval degraded to empty")
		return nil, nil
	}
	defer rows.Close()

	var results []Scored
	for rows.Next() {
		var (
			s   Scored
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.Content, &raw, &s.Similarity); err != nil {
			p.log.Warn().Err(err).Msg("retrieval row scan failed; skipping")
			continue
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &s.Metadata); err != nil {
				p.log.Warn().Err(err).Str("id", s.ID).Msg("malformed chunk metadata skipped")
				s.Metadata = nil
			}
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		p.log.Warn().Err(err).Msg("retrieval iteration error")
	}
	return results, nil
}

// Drop removes the whole table; pair with EnsureSchema for a rebuild.
func (p *PostgresIndex) Drop(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, p.table)); err != nil {
		return fmt.Errorf("drop %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.table)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
