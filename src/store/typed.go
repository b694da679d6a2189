package store

import (
	"context"
	"fmt"

	json "github.com/alpkeskin/gotoon"
)

// Embeddable lets a typed payload choose the text that gets embedded,
// instead of relying on the index's TextField convention.
type Embeddable interface {
	EmbedText() string
}

// Typed adapts the untyped store to a concrete record shape. The store layer
// stays schema-agnostic; callers define T and get marshaling for free.
type Typed[T any] struct {
	s Store
}

func NewTyped[T any](s Store) Typed[T] { return Typed[T]{s: s} }

// Get decodes the stored value into T. The second return is false when the
// key is absent.
func (t Typed[T]) Get(ctx context.Context, ns Namespace, key string) (T, bool, error) {
	var zero T
	doc, err := t.s.Get(ctx, ns, key)
	if err != nil {
		return zero, false, err
	}
	if doc == nil {
		return zero, false, nil
	}
	out, err := decodeTyped[T](doc)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// Put encodes v and upserts it. When T implements Embeddable and the document
// carries no "data" field of its own, the embed text is stored under "data"
// so the index picks it up.
func (t Typed[T]) Put(ctx context.Context, ns Namespace, key string, v T) (string, error) {
	doc, err := encodeTyped(v)
	if err != nil {
		return "", err
	}
	if e, ok := any(v).(Embeddable); ok {
		if _, present := doc["data"]; !present {
			doc["data"] = e.EmbedText()
		}
	}
	return t.s.Put(ctx, ns, key, doc)
}

func (t Typed[T]) Delete(ctx context.Context, ns Namespace, key string) error {
	return t.s.Delete(ctx, ns, key)
}

// Search ranks ns records for query and decodes each hit into T, skipping
// records that no longer match the shape.
func (t Typed[T]) Search(ctx context.Context, ns Namespace, query string, limit int) ([]TypedResult[T], error) {
	hits, err := t.s.Search(ctx, ns, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TypedResult[T], 0, len(hits))
	for _, hit := range hits {
		v, err := decodeTyped[T](hit.Value)
		if err != nil {
			continue
		}
		out = append(out, TypedResult[T]{Key: hit.Key, Value: v, Distance: hit.Distance})
	}
	return out, nil
}

// TypedResult mirrors SearchResult with a decoded payload.
type TypedResult[T any] struct {
	Key      string
	Value    T
	Distance float64
}

func (r TypedResult[T]) Similarity() float64 { return 1 - r.Distance }

func encodeTyped[T any](v T) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return doc, nil
}

func decodeTyped[T any](doc Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}
