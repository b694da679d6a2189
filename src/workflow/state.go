// Package workflow runs the retrieval decision graph: classify the query,
// call tools, grade their output and produce the final answer.
package workflow

// Node and route names used by the graph.
const (
	NodeAgent          = "agent"
	NodeCallTools      = "call_tools"
	NodeGradeDocuments = "grade_documents"
	NodeGenerate       = "generate"
	NodeRewrite        = "rewrite"

	RouteGenerate = "generate"
	RouteRewrite  = "rewrite"

	// End is the terminal pseudo-node.
	End = "__end__"
)

// State carries one invocation through the graph. Each invocation owns its
// State; nodes mutate it and nothing is shared across concurrent queries.
type State struct {
	Query string

	// Routing decisions.
	ToolsNeeded     bool
	RouteAfterTools string
	RouteAfterGrade string

	// Tool results. Nil pointers mean the tool produced nothing.
	MultiplyResult  *int64
	RetrieverResult string
	RawResults      []ToolDocument

	FinalOutput string
}

// ToolDocument is one retrieved chunk as seen by the grading and answer
// nodes.
type ToolDocument struct {
	ID         string
	Content    string
	Similarity float64
}
