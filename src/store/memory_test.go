package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-labs/go-recall/src/embed"
)

func newTestStore(t *testing.T) *InMemoryStore {
	t.Helper()
	return NewInMemoryStore(&IndexConfig{
		Dims:     64,
		Embedder: embed.NewDummyEmbedder(64),
	})
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	value := Document{"data": "name is Xiao Ming", "lang": "zh"}
	key, err := s.Put(ctx, ns, "m1", value)
	require.NoError(t, err)
	assert.Equal(t, "m1", key)

	got, err := s.Get(ctx, ns, "m1")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestPutIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")
	value := Document{"data": "likes green tea"}

	for i := 0; i < 3; i++ {
		_, err := s.Put(ctx, ns, "m1", value)
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, ns, "m1")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestPutGeneratesKeyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	key, err := s.Put(ctx, ns, "", Document{"data": "auto keyed"})
	require.NoError(t, err)
	require.NotEmpty(t, key)

	got, err := s.Get(ctx, ns, key)
	require.NoError(t, err)
	assert.Equal(t, "auto keyed", got["data"])
}

func TestDeleteThenGetAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	_, err := s.Put(ctx, ns, "m1", Document{"data": "ephemeral"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, ns, "m1"))

	got, err := s.Get(ctx, ns, "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a key that was never written is a no-op, not an error.
	assert.NoError(t, s.Delete(ctx, ns, "never-written"))
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, NS("user_1"), "m1", Document{"data": "belongs to user_1"})
	require.NoError(t, err)

	got, err := s.Get(ctx, NS("user_2"), "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	hits, err := s.Search(ctx, NS("user_2"), "belongs to user_1", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchEmptyNamespace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hits, err := s.Search(ctx, NS("nobody"), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchOrderedByDistance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	docs := []string{
		"name is Xiao Ming",
		"the weather was rainy all week",
		"favorite dish is dumplings",
		"works as a bicycle mechanic",
	}
	for _, d := range docs {
		_, err := s.Put(ctx, ns, "", Document{"data": d})
		require.NoError(t, err)
	}

	hits, err := s.Search(ctx, ns, "what is your name", 10)
	require.NoError(t, err)
	require.Len(t, hits, len(docs))
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestSearchFindsStoredMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	value := Document{"data": "name is Xiao Ming"}
	_, err := s.Put(ctx, ns, "m1", value)
	require.NoError(t, err)
	_, err = s.Put(ctx, ns, "m2", Document{"data": "completely unrelated text about sailing"})
	require.NoError(t, err)

	hits, err := s.Search(ctx, ns, "name is Xiao Ming", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, value, hits[0].Value)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
}

func TestSearchRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	for i := 0; i < 8; i++ {
		_, err := s.Put(ctx, ns, "", Document{"data": "memory"})
		require.NoError(t, err)
	}
	hits, err := s.Search(ctx, ns, "memory", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestBatchResultOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")
	v1 := Document{"data": "v1"}

	results, err := s.Batch(ctx, []Op{
		PutOp(ns, "k1", v1),
		GetOp(ns, "k1"),
		DeleteOp(ns, "k1"),
		GetOp(ns, "k1"),
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Nil(t, results[0])
	assert.Equal(t, v1, results[1])
	assert.Nil(t, results[2])
	assert.Nil(t, results[3])
}

func TestBatchObservesEarlierOps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	_, err := s.Put(ctx, ns, "seed", Document{"data": "old"})
	require.NoError(t, err)

	results, err := s.Batch(ctx, []Op{
		PutOp(ns, "seed", Document{"data": "new"}),
		GetOp(ns, "seed"),
	})
	require.NoError(t, err)
	assert.Equal(t, "new", results[1]["data"])
}

func TestClearIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, NS("user_1"), "m1", Document{"data": "user_1 memory"})
	require.NoError(t, err)
	_, err = s.Put(ctx, NS("user_2"), "m1", Document{"data": "user_2 memory"})
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, NS("user_1")))

	got, err := s.Get(ctx, NS("user_1"), "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, NS("user_2"), "m1")
	require.NoError(t, err)
	assert.Equal(t, "user_2 memory", got["data"])
}

func TestClearWholeStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, NS("user_1"), "m1", Document{"data": "a"})
	require.NoError(t, err)
	_, err = s.Put(ctx, NS("user_2"), "m1", Document{"data": "b"})
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, Namespace{}))

	for _, user := range []string{"user_1", "user_2"} {
		got, err := s.Get(ctx, NS(user), "m1")
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestReturnedDocumentIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	_, err := s.Put(ctx, ns, "m1", Document{"data": "original"})
	require.NoError(t, err)

	got, err := s.Get(ctx, ns, "m1")
	require.NoError(t, err)
	got["data"] = "mutated"

	again, err := s.Get(ctx, ns, "m1")
	require.NoError(t, err)
	assert.Equal(t, "original", again["data"])
}

func TestLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := NS("user_1")

	_, err := s.Put(ctx, ns, "m1", Document{"data": "first"})
	require.NoError(t, err)
	_, err = s.Put(ctx, ns, "m1", Document{"data": "second"})
	require.NoError(t, err)

	got, err := s.Get(ctx, ns, "m1")
	require.NoError(t, err)
	assert.Equal(t, "second", got["data"])
}
