package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/alpkeskin/gotoon"
	"github.com/google/uuid"
)

// InMemoryStore is a process-local Store used by tests and no-DB runs.
// It honors the same namespace isolation and ordering contracts as the
// Postgres implementation, with cosine distance computed in Go.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]memoryRecord // namespace key -> record key
	index   *IndexConfig
}

type memoryRecord struct {
	value     Document
	embedding []float32
}

func NewInMemoryStore(index *IndexConfig) *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]map[string]memoryRecord),
		index:   index,
	}
}

func (ms *InMemoryStore) Get(_ context.Context, ns Namespace, key string) (Document, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	rec, ok := ms.records[ns.Key()][key]
	if !ok {
		return nil, nil
	}
	return cloneDocument(rec.value), nil
}

func (ms *InMemoryStore) Put(ctx context.Context, ns Namespace, key string, value Document) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	embedding, err := ms.index.embedValue(ctx, value)
	if err != nil {
		return "", err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.putLocked(ns, key, value, embedding)
	return key, nil
}

func (ms *InMemoryStore) putLocked(ns Namespace, key string, value Document, embedding []float32) {
	nsKey := ns.Key()
	if ms.records[nsKey] == nil {
		ms.records[nsKey] = make(map[string]memoryRecord)
	}
	ms.records[nsKey][key] = memoryRecord{value: cloneDocument(value), embedding: embedding}
}

func (ms *InMemoryStore) Delete(_ context.Context, ns Namespace, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.records[ns.Key()], key)
	return nil
}

// Batch applies ops in order under one lock so a get observes earlier puts in
// the same call. Embeddings are computed up front so a provider failure aborts
// the batch before any mutation.
func (ms *InMemoryStore) Batch(ctx context.Context, ops []Op) ([]Document, error) {
	embeddings := make([][]float32, len(ops))
	for i, op := range ops {
		if op.Kind != OpPut {
			continue
		}
		emb, err := ms.index.embedValue(ctx, op.Value)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	results := make([]Document, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpGet:
			if rec, ok := ms.records[op.Namespace.Key()][op.Key]; ok {
				results[i] = cloneDocument(rec.value)
			}
		case OpPut:
			key := op.Key
			if key == "" {
				key = uuid.NewString()
			}
			ms.putLocked(op.Namespace, key, op.Value, embeddings[i])
		case OpDelete:
			delete(ms.records[op.Namespace.Key()], op.Key)
		default:
			return nil, fmt.Errorf("unknown batch op kind %d", op.Kind)
		}
	}
	return results, nil
}

func (ms *InMemoryStore) Search(ctx context.Context, ns Namespace, query string, limit int) ([]SearchResult, error) {
	if ms.index == nil || ms.index.Embedder == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	queryEmbedding, err := ms.index.embedQuery(ctx, query)
	if err != nil {
		return nil, nil
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var results []SearchResult
	for key, rec := range ms.records[ns.Key()] {
		if len(rec.embedding) == 0 {
			continue
		}
		results = append(results, SearchResult{
			Key:      key,
			Value:    cloneDocument(rec.value),
			Distance: cosineDistance(queryEmbedding, rec.embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return strings.Compare(results[i].Key, results[j].Key) < 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (ms *InMemoryStore) Clear(_ context.Context, ns Namespace) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ns.IsZero() {
		ms.records = make(map[string]map[string]memoryRecord)
		return nil
	}
	delete(ms.records, ns.Key())
	return nil
}

func (ms *InMemoryStore) Close() {}

// cloneDocument deep-copies via a JSON round trip so callers cannot mutate
// stored state through returned maps.
func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
