package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/recall-labs/go-recall/src/embed"
)

// Namespace is the ordered scope under which records are isolated.
// Records written under one namespace are never visible to another.
type Namespace []string

// NS builds a namespace from its parts, e.g. NS("memories", userID).
func NS(parts ...string) Namespace { return Namespace(parts) }

// Key flattens the namespace into the stored scope key.
func (n Namespace) Key() string { return strings.Join(n, "/") }

// IsZero reports whether the namespace addresses the whole store.
func (n Namespace) IsZero() bool { return len(n) == 0 }

// Document is an arbitrary JSON-like value, opaque to the store.
type Document = map[string]any

// SearchResult is one ranked hit from a similarity search.
type SearchResult struct {
	Key      string
	Value    Document
	Distance float64
}

// Similarity converts cosine distance to the 0..1 similarity convention.
func (r SearchResult) Similarity() float64 { return 1 - r.Distance }

// OpKind discriminates batch operations.
type OpKind int

const (
	OpGet OpKind = iota
	OpPut
	OpDelete
)

// Op is one element of a heterogeneous Batch call.
type Op struct {
	Kind      OpKind
	Namespace Namespace
	Key       string
	Value     Document
}

func GetOp(ns Namespace, key string) Op { return Op{Kind: OpGet, Namespace: ns, Key: key} }

func PutOp(ns Namespace, key string, value Document) Op {
	return Op{Kind: OpPut, Namespace: ns, Key: key, Value: value}
}

func DeleteOp(ns Namespace, key string) Op { return Op{Kind: OpDelete, Namespace: ns, Key: key} }

// Store is a namespace-isolated key/value store with optional similarity search.
//
// Write operations (Put, Delete, Batch writes, Clear) fail hard on storage
// errors. Reads (Get, Search) are best-effort context: implementations log and
// degrade to absent/empty instead of propagating connectivity failures.
type Store interface {
	// Get returns the stored value, or nil when absent.
	Get(ctx context.Context, ns Namespace, key string) (Document, error)

	// Put upserts a value. An empty key is replaced with a generated UUID;
	// the key actually written is returned. When an index is configured and
	// the value carries embeddable text, its embedding is computed
	// synchronously before the write.
	Put(ctx context.Context, ns Namespace, key string, value Document) (string, error)

	// Delete removes a record. Deleting an absent key is not an error.
	Delete(ctx context.Context, ns Namespace, key string) error

	// Batch executes ops in caller order against one connection/transaction
	// and returns one result slot per op (nil for puts and deletes).
	Batch(ctx context.Context, ops []Op) ([]Document, error)

	// Search embeds query and returns at most limit records from ns ordered
	// by ascending cosine distance. A missing embedder, an empty store, or an
	// empty namespace all yield an empty result, not an error.
	Search(ctx context.Context, ns Namespace, query string, limit int) ([]SearchResult, error)

	// Clear deletes every record in ns, or truncates the whole store when ns
	// is zero. Irreversible.
	Clear(ctx context.Context, ns Namespace) error

	Close()
}

// IndexConfig enables similarity search over stored values.
type IndexConfig struct {
	// Dims is the fixed embedding width of the store instance.
	Dims int
	// Embedder computes vectors for embeddable values and query strings.
	Embedder embed.Embedder
	// TextField names the value field whose string content is embedded on
	// Put. Defaults to "data".
	TextField string
}

func (c *IndexConfig) textField() string {
	if c == nil || c.TextField == "" {
		return "data"
	}
	return c.TextField
}

func (c *IndexConfig) dims() int {
	if c == nil || c.Dims <= 0 {
		return embed.DefaultDims
	}
	return c.Dims
}

// embedValue computes the embedding for a value about to be written.
// It returns nil when no embedder is configured or the value carries no
// embeddable text; an embedder failure aborts the write.
func (c *IndexConfig) embedValue(ctx context.Context, value Document) ([]float32, error) {
	if c == nil || c.Embedder == nil {
		return nil, nil
	}
	text, ok := value[c.textField()].(string)
	if !ok || text == "" {
		return nil, nil
	}
	vec, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed value: %w", err)
	}
	return conformDims(vec, c.dims()), nil
}

// embedQuery embeds a search query, conformed to the index width.
func (c *IndexConfig) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if c == nil || c.Embedder == nil {
		return nil, nil
	}
	vec, err := c.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return conformDims(vec, c.dims()), nil
}
