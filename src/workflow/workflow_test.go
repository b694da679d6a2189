package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-labs/go-recall/src/corpus"
	"github.com/recall-labs/go-recall/src/embed"
)

// scriptedModel answers prompts by keyword so tests can steer every branch.
type scriptedModel struct {
	toolsReply string
	gradeReply string
	answer     string
	prompts    []string
}

func (m *scriptedModel) Generate(_ context.Context, prompt string) (any, error) {
	m.prompts = append(m.prompts, prompt)
	switch {
	case strings.Contains(prompt, "tools are needed"):
		return m.toolsReply, nil
	case strings.Contains(prompt, "which route"):
		return m.gradeReply, nil
	default:
		return m.answer, nil
	}
}

func newTestIndex(t *testing.T, docs ...string) corpus.Index {
	t.Helper()
	idx := corpus.NewMemoryIndex(64, embed.NewDummyEmbedder(64))
	chunks := make([]corpus.Chunk, 0, len(docs))
	for i, d := range docs {
		chunks = append(chunks, corpus.Chunk{ID: string(rune('a' + i)), Content: d})
	}
	if len(chunks) > 0 {
		require.NoError(t, idx.Add(context.Background(), chunks))
	}
	return idx
}

func TestMultiplyScenario(t *testing.T) {
	model := &scriptedModel{
		toolsReply: `{"tools_needed": true}`,
		gradeReply: "",
		answer:     "12 times 7 is 84.",
	}
	w := New(model, newTestIndex(t), Options{})

	state, trail, err := w.Run(context.Background(), "What is 12 times 7?")
	require.NoError(t, err)

	assert.Equal(t, []string{NodeAgent, NodeCallTools, NodeGradeDocuments, NodeGenerate}, trail)
	require.NotNil(t, state.MultiplyResult)
	assert.Equal(t, int64(84), *state.MultiplyResult)
	assert.Equal(t, "multiply", state.RouteAfterTools)
	assert.Contains(t, state.FinalOutput, "84")
}

func TestNoToolsFallthroughGenerate(t *testing.T) {
	model := &scriptedModel{
		toolsReply: `{"tools_needed": false}`,
		answer:     "Just an answer.",
	}
	w := New(model, newTestIndex(t), Options{Fallthrough: FallthroughGenerate})

	state, trail, err := w.Run(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []string{NodeAgent, NodeGenerate}, trail)
	assert.Equal(t, "Just an answer.", state.FinalOutput)
}

func TestNoToolsFallthroughEnd(t *testing.T) {
	model := &scriptedModel{toolsReply: `{"tools_needed": false}`}
	w := New(model, newTestIndex(t), Options{Fallthrough: FallthroughEnd})

	state, trail, err := w.Run(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []string{NodeAgent}, trail)
	assert.Empty(t, state.FinalOutput)
}

func TestRetrieverRoute(t *testing.T) {
	model := &scriptedModel{
		toolsReply: `{"tools_needed": true}`,
		gradeReply: `{"route": "generate"}`,
		answer:     "Xiao Ming's name was stored earlier.",
	}
	idx := newTestIndex(t, "name is Xiao Ming", "the sky is blue")
	w := New(model, idx, Options{TopK: 2})

	state, trail, err := w.Run(context.Background(), "name is Xiao Ming")
	require.NoError(t, err)

	assert.Equal(t, []string{NodeAgent, NodeCallTools, NodeGradeDocuments, NodeGenerate}, trail)
	assert.Nil(t, state.MultiplyResult)
	assert.Equal(t, "retriever", state.RouteAfterTools)
	require.NotEmpty(t, state.RawResults)
	assert.Equal(t, "name is Xiao Ming", state.RawResults[0].Content)
}

func TestBothToolsRouteTag(t *testing.T) {
	model := &scriptedModel{
		toolsReply: `{"tools_needed": true}`,
		gradeReply: `{"route": "generate"}`,
		answer:     "ok",
	}
	idx := newTestIndex(t, "numbers 3 and 5 appear in the archive")
	w := New(model, idx, Options{})

	state, _, err := w.Run(context.Background(), "multiply 3 and 5 from the archive")
	require.NoError(t, err)
	assert.Equal(t, "multiply@retriever", state.RouteAfterTools)
}

func TestRewriteRoute(t *testing.T) {
	model := &scriptedModel{
		toolsReply: `{"tools_needed": true}`,
		gradeReply: `{"route": "rewrite"}`,
		answer:     "rewritten answer",
	}
	idx := newTestIndex(t, "some loosely related chunk")
	w := New(model, idx, Options{})

	state, trail, err := w.Run(context.Background(), "a vague question about chunks")
	require.NoError(t, err)
	assert.Equal(t, NodeRewrite, trail[len(trail)-1])
	assert.Equal(t, "rewritten answer", state.FinalOutput)
}

func TestGradeDefaultsToGenerateWithoutToolOutput(t *testing.T) {
	model := &scriptedModel{
		toolsReply: `{"tools_needed": true}`,
		gradeReply: `{"route": "rewrite"}`, // must not be consulted
		answer:     "direct answer",
	}
	w := New(model, newTestIndex(t), Options{})

	state, trail, err := w.Run(context.Background(), "no numbers, empty corpus")
	require.NoError(t, err)
	assert.Equal(t, RouteGenerate, state.RouteAfterGrade)
	assert.Equal(t, NodeGenerate, trail[len(trail)-1])
	assert.Empty(t, state.RouteAfterTools)

	// The grading prompt never reached the model.
	for _, p := range model.prompts {
		assert.NotContains(t, p, "which route")
	}
}

func TestMultiplyTool(t *testing.T) {
	got := multiplyTool("what is 12 times 7?")
	require.NotNil(t, got)
	assert.Equal(t, int64(84), *got)

	got = multiplyTool("2 by 3 by 4")
	require.NotNil(t, got)
	assert.Equal(t, int64(24), *got)

	assert.Nil(t, multiplyTool("only 42 here"))
	assert.Nil(t, multiplyTool("no numbers at all"))
}

func TestRouteTag(t *testing.T) {
	assert.Equal(t, "multiply@retriever", routeTag(true, true))
	assert.Equal(t, "multiply", routeTag(true, false))
	assert.Equal(t, "retriever", routeTag(false, true))
	assert.Equal(t, "", routeTag(false, false))
}

func TestWorkflowGraphCompiles(t *testing.T) {
	for _, policy := range []FallthroughPolicy{FallthroughGenerate, FallthroughEnd} {
		w := New(&scriptedModel{}, nil, Options{Fallthrough: policy})
		_, err := w.Build()
		require.NoError(t, err)
	}
}
