package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	json "github.com/alpkeskin/gotoon"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresStore implements Store on Postgres + pgvector.
type PostgresStore struct {
	db    *pgxpool.Pool
	table string
	index *IndexConfig
	log   zerolog.Logger

	// set when the vector extension or ANN index could not be created;
	// similarity search is unavailable but plain key/value operations work.
	searchDisabled bool
	// set when the extension itself is missing and the table was created
	// without an embedding column.
	vectorless bool
}

// PostgresOptions configure a PostgresStore.
type PostgresOptions struct {
	// Table defaults to "memory_store".
	Table string
	// Index enables embedding computation and similarity search.
	Index *IndexConfig
	// MaxConns bounds the connection pool. Defaults to 8.
	MaxConns int32
	// SchemaPath optionally overrides the built-in schema with a SQL file.
	SchemaPath string
	Logger     zerolog.Logger
}

// NewPostgresStore connects a bounded pgx pool and returns the store.
// Call EnsureSchema before first use.
func NewPostgresStore(ctx context.Context, connStr string, opts PostgresOptions) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	} else {
		cfg.MaxConns = 8
	}
	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping Postgres: %w", err)
	}
	table := opts.Table
	if table == "" {
		table = "memory_store"
	}
	ps := &PostgresStore{
		db:    db,
		table: table,
		index: opts.Index,
		log:   opts.Logger,
	}
	if opts.SchemaPath != "" {
		if err := ps.applySchemaFile(ctx, opts.SchemaPath); err != nil {
			db.Close()
			return nil, err
		}
	}
	return ps, nil
}

// EnsureSchema idempotently creates the extension, table and ANN index.
// Missing vector support downgrades similarity search; the key/value path
// stays available either way.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := ps.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		ps.log.Warn().Err(err).Msg("pgvector extension unavailable; similarity search disabled")
		ps.searchDisabled = true
		ps.vectorless = true
		_, terr := ps.db.Exec(ctx, fmt.Sprintf(`
                        CREATE TABLE IF NOT EXISTS %s (
                                namespace TEXT NOT NULL,
                                key TEXT NOT NULL,
                                value JSONB NOT NULL,
                                PRIMARY KEY (namespace, key)
                        )`, ps.table))
		if terr != nil {
			return fmt.Errorf("create table %s: %w", ps.table, terr)
		}
		return nil
	}

	if _, err := ps.db.Exec(ctx, fmt.Sprintf(`
                CREATE TABLE IF NOT EXISTS %s (
                        namespace TEXT NOT NULL,
                        key TEXT NOT NULL,
                        value JSONB NOT NULL,
                        embedding vector(%d),
                        PRIMARY KEY (namespace, key)
                )`, ps.table, ps.index.dims())); err != nil {
		return fmt.Errorf("create table %s: %w", ps.table, err)
	}

	if _, err := ps.db.Exec(ctx, fmt.Sprintf(`
                CREATE INDEX IF NOT EXISTS %s_embedding_idx
                ON %s USING ivfflat (embedding vector_cosine_ops)
                WITH (lists = 100)`, ps.table, ps.table)); err != nil {
		ps.log.Warn().Err(err).Msg("ANN index creation failed; similarity search disabled")
		ps.searchDisabled = true
	}
	return nil
}

func (ps *PostgresStore) applySchemaFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	if _, err := ps.db.Exec(ctx, string(data)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Get looks up one record. Connectivity failures degrade to absent.
func (ps *PostgresStore) Get(ctx context.Context, ns Namespace, key string) (Document, error) {
	var raw []byte
	err := ps.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE namespace = $1 AND key = $2`, ps.table),
		ns.Key(), key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		ps.log.Warn().Err(err).Str("namespace", ns.Key()).Str("key", key).Msg("get degraded to absent")
		return nil, nil
	}
	return decodeValue(raw, ps.log, ns.Key(), key), nil
}

// Put upserts one record in a single statement.
func (ps *PostgresStore) Put(ctx context.Context, ns Namespace, key string, value Document) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	embedding, err := ps.index.embedValue(ctx, value)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	if err := ps.execPut(ctx, ps.db, ns, key, raw, embedding); err != nil {
		return "", err
	}
	return key, nil
}

// pgExecer is satisfied by both the pool and a transaction.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (ps *PostgresStore) execPut(ctx context.Context, q pgExecer, ns Namespace, key string, raw []byte, embedding []float32) error {
	if ps.vectorless {
		_, err := q.Exec(ctx, fmt.Sprintf(`
                        INSERT INTO %s (namespace, key, value)
                        VALUES ($1, $2, $3::jsonb)
                        ON CONFLICT (namespace, key) DO UPDATE
                        SET value = EXCLUDED.value`, ps.table),
			ns.Key(), key, raw)
		if err != nil {
			return fmt.Errorf("put %s/%s: %w", ns.Key(), key, err)
		}
		return nil
	}
	var emb any
	if embedding != nil {
		emb = vectorLiteral(embedding)
	}
	_, err := q.Exec(ctx, fmt.Sprintf(`
                INSERT INTO %s (namespace, key, value, embedding)
                VALUES ($1, $2, $3::jsonb, $4::vector)
                ON CONFLICT (namespace, key) DO UPDATE
                SET value = EXCLUDED.value, embedding = EXCLUDED.embedding`, ps.table),
		ns.Key(), key, raw, emb)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", ns.Key(), key, err)
	}
	return nil
}

// Delete removes one record; absent keys are a no-op.
func (ps *PostgresStore) Delete(ctx context.Context, ns Namespace, key string) error {
	_, err := ps.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND key = $2`, ps.table),
		ns.Key(), key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", ns.Key(), key, err)
	}
	return nil
}

// Batch runs ops in order inside one transaction. Result order matches input
// order exactly; any failure rolls the whole batch back.
func (ps *PostgresStore) Batch(ctx context.Context, ops []Op) ([]Document, error) {
	tx, err := ps.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := make([]Document, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpGet:
			var raw []byte
			err := tx.QueryRow(ctx,
				fmt.Sprintf(`SELECT value FROM %s WHERE namespace = $1 AND key = $2`, ps.table),
				op.Namespace.Key(), op.Key,
			).Scan(&raw)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("batch get %s/%s: %w", op.Namespace.Key(), op.Key, err)
			}
			results[i] = decodeValue(raw, ps.log, op.Namespace.Key(), op.Key)
		case OpPut:
			key := op.Key
			if key == "" {
				key = uuid.NewString()
			}
			embedding, err := ps.index.embedValue(ctx, op.Value)
			if err != nil {
				return nil, err
			}
			raw, err := json.Marshal(op.Value)
			if err != nil {
				return nil, fmt.Errorf("encode value: %w", err)
			}
			if err := ps.execPut(ctx, tx, op.Namespace, key, raw, embedding); err != nil {
				return nil, err
			}
		case OpDelete:
			if _, err := tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND key = $2`, ps.table),
				op.Namespace.Key(), op.Key); err != nil {
				return nil, fmt.Errorf("batch delete %s/%s: %w", op.Namespace.Key(), op.Key, err)
			}
		default:
			return nil, fmt.Errorf("unknown batch op kind %d", op.Kind)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return results, nil
}

// Search embeds query and ranks ns records by cosine distance in the database.
func (ps *PostgresStore) Search(ctx context.Context, ns Namespace, query string, limit int) ([]SearchResult, error) {
	if ps.index == nil || ps.index.Embedder == nil || ps.searchDisabled {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	queryEmbedding, err := ps.index.embedQuery(ctx, query)
	if err != nil {
		ps.log.Warn().Err(err).Msg("query embedding failed; search degraded to empty")
		return nil, nil
	}

	rows, err := ps.db.Query(ctx, fmt.Sprintf(`
                SELECT key, value, embedding <=> $1::vector AS distance
                FROM %s
                WHERE namespace = $2 AND embedding IS NOT NULL
                ORDER BY distance
                LIMIT $3`, ps.table),
		vectorLiteral(queryEmbedding), ns.Key(), limit)
	if err != nil {
		ps.log.Warn().Err(err).Str("namespace", ns.Key()).Msg("search degraded to empty")
		return nil, nil
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			key      string
			raw      []byte
			distance float64
		)
		if err := rows.Scan(&key, &raw, &distance); err != nil {
			ps.log.Warn().Err(err).Msg("search row scan failed; skipping")
			continue
		}
		value := decodeValue(raw, ps.log, ns.Key(), key)
		if value == nil {
			continue
		}
		results = append(results, SearchResult{Key: key, Value: value, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		ps.log.Warn().Err(err).Msg("search iteration error")
	}
	return results, nil
}

// Clear deletes a namespace, or truncates the whole table when ns is zero.
func (ps *PostgresStore) Clear(ctx context.Context, ns Namespace) error {
	if ns.IsZero() {
		if _, err := ps.db.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, ps.table)); err != nil {
			return fmt.Errorf("truncate %s: %w", ps.table, err)
		}
		return nil
	}
	if _, err := ps.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, ps.table), ns.Key()); err != nil {
		return fmt.Errorf("clear namespace %s: %w", ns.Key(), err)
	}
	return nil
}

// Pool exposes the shared connection pool so sibling components (the corpus
// index) can reuse it instead of opening their own.
func (ps *PostgresStore) Pool() *pgxpool.Pool {
	return ps.db
}

// Close drains the connection pool.
func (ps *PostgresStore) Close() {
	if ps != nil && ps.db != nil {
		ps.db.Close()
	}
}

// decodeValue unmarshals a stored JSONB value, skipping malformed rows.
func decodeValue(raw []byte, log zerolog.Logger, ns, key string) Document {
	var value Document
	if err := json.Unmarshal(raw, &value); err != nil {
		log.Warn().Err(err).Str("namespace", ns).Str("key", key).Msg("malformed stored value skipped")
		return nil
	}
	return value
}
