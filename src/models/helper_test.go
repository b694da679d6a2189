package models

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "hello", Text("hello"))
	assert.Equal(t, "42", Text(42))
}

func TestNewLLMProviderDummy(t *testing.T) {
	m, err := NewLLMProvider(context.Background(), "dummy", "", "")
	require.NoError(t, err)
	out, err := m.Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.Contains(t, Text(out), "ping")
}

func TestNewLLMProviderUnknown(t *testing.T) {
	_, err := NewLLMProvider(context.Background(), "netware", "", "")
	assert.Error(t, err)
}

func TestStreamWithStreamer(t *testing.T) {
	m := NewDummyLLM("Echo:")
	ch, err := Stream(context.Background(), m, "one two three")
	require.NoError(t, err)

	var sb strings.Builder
	var done bool
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		sb.WriteString(chunk.Delta)
		if chunk.Done {
			done = true
			assert.Equal(t, sb.String(), chunk.FullText)
		}
	}
	assert.True(t, done)
	assert.Contains(t, sb.String(), "one two three")
}

type flatModel struct {
	reply string
	err   error
}

func (f flatModel) Generate(_ context.Context, _ string) (any, error) { return f.reply, f.err }

func TestStreamWrapsNonStreamer(t *testing.T) {
	ch, err := Stream(context.Background(), flatModel{reply: "whole reply"}, "q")
	require.NoError(t, err)

	chunk, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "whole reply", chunk.Delta)
	assert.True(t, chunk.Done)

	_, ok = <-ch
	assert.False(t, ok)
}

func TestStreamWrapsError(t *testing.T) {
	boom := errors.New("boom")
	ch, err := Stream(context.Background(), flatModel{err: boom}, "q")
	require.NoError(t, err)

	chunk := <-ch
	assert.ErrorIs(t, chunk.Err, boom)
	assert.True(t, chunk.Done)
}
