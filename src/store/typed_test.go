package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name string `json:"name"`
	City string `json:"city"`
}

func (p profile) EmbedText() string { return p.Name + " lives in " + p.City }

func TestTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	typed := NewTyped[profile](newTestStore(t))
	ns := NS("user_1")

	_, err := typed.Put(ctx, ns, "p1", profile{Name: "Xiao Ming", City: "Shanghai"})
	require.NoError(t, err)

	got, ok, err := typed.Get(ctx, ns, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Xiao Ming", got.Name)
	assert.Equal(t, "Shanghai", got.City)
}

func TestTypedGetAbsent(t *testing.T) {
	ctx := context.Background()
	typed := NewTyped[profile](newTestStore(t))

	_, ok, err := typed.Get(ctx, NS("user_1"), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTypedSearchUsesEmbedText(t *testing.T) {
	ctx := context.Background()
	typed := NewTyped[profile](newTestStore(t))
	ns := NS("user_1")

	_, err := typed.Put(ctx, ns, "p1", profile{Name: "Xiao Ming", City: "Shanghai"})
	require.NoError(t, err)
	_, err = typed.Put(ctx, ns, "p2", profile{Name: "Ada", City: "London"})
	require.NoError(t, err)

	hits, err := typed.Search(ctx, ns, "Xiao Ming lives in Shanghai", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Xiao Ming", hits[0].Value.Name)
}

func TestTypedDelete(t *testing.T) {
	ctx := context.Background()
	typed := NewTyped[profile](newTestStore(t))
	ns := NS("user_1")

	_, err := typed.Put(ctx, ns, "p1", profile{Name: "Xiao Ming"})
	require.NoError(t, err)
	require.NoError(t, typed.Delete(ctx, ns, "p1"))

	_, ok, err := typed.Get(ctx, ns, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}
