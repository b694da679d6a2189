package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/recall-labs/go-recall/src/concurrent"
	"github.com/recall-labs/go-recall/src/corpus"
	"github.com/recall-labs/go-recall/src/logger"
	"github.com/recall-labs/go-recall/src/models"
)

// FallthroughPolicy decides where the agent node routes when no tools are
// needed. Both behaviors exist in the wild; generate is the default because
// it still produces an answer.
type FallthroughPolicy int

const (
	FallthroughGenerate FallthroughPolicy = iota
	FallthroughEnd
)

// ParseFallthrough maps a config string to a policy; unknown values fall
// back to generate.
func ParseFallthrough(s string) FallthroughPolicy {
	if s == "end" {
		return FallthroughEnd
	}
	return FallthroughGenerate
}

// Workflow wires the decision graph to its collaborators. One Workflow
// serves concurrent queries; per-query state lives in State.
type Workflow struct {
	model  models.Agent
	index  corpus.Index
	pool   *concurrent.WorkerPool
	topK   int
	policy FallthroughPolicy
	log    zerolog.Logger
}

type Options struct {
	TopK        int
	Fallthrough FallthroughPolicy
	// Pool caps parallel tool execution across concurrent queries.
	Pool   *concurrent.WorkerPool
	Logger *zerolog.Logger
}

func New(model models.Agent, index corpus.Index, opts Options) *Workflow {
	topK := opts.TopK
	if topK <= 0 {
		topK = 4
	}
	log := logger.New("workflow")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	pool := opts.Pool
	if pool == nil {
		pool = concurrent.NewWorkerPool(8)
	}
	return &Workflow{
		model:  model,
		index:  index,
		pool:   pool,
		topK:   topK,
		policy: opts.Fallthrough,
		log:    log,
	}
}

// Build assembles and compiles the graph:
// agent -> call_tools -> grade_documents -> generate|rewrite -> End,
// with the agent's no-tools branch controlled by the fallthrough policy.
func (w *Workflow) Build() (*CompiledGraph, error) {
	noTools := NodeGenerate
	if w.policy == FallthroughEnd {
		noTools = End
	}

	g := NewGraph().
		AddNode(NodeAgent, w.agentNode).
		AddNode(NodeCallTools, w.callToolsNode).
		AddNode(NodeGradeDocuments, w.gradeDocumentsNode).
		AddNode(NodeGenerate, w.generateNode).
		AddNode(NodeRewrite, w.rewriteNode).
		SetEntryPoint(NodeAgent).
		AddConditionalEdge(NodeAgent, func(s *State) string {
			if s.ToolsNeeded {
				return NodeCallTools
			}
			return noTools
		}, map[string]string{
			NodeCallTools: NodeCallTools,
			noTools:       noTools,
		}).
		AddEdge(NodeCallTools, NodeGradeDocuments).
		AddConditionalEdge(NodeGradeDocuments, func(s *State) string {
			if s.RouteAfterGrade == "" {
				return RouteGenerate
			}
			return s.RouteAfterGrade
		}, map[string]string{
			RouteGenerate: NodeGenerate,
			RouteRewrite:  NodeRewrite,
		}).
		AddEdge(NodeGenerate, End).
		AddEdge(NodeRewrite, End)

	return g.Compile()
}

// Run executes one query end to end and returns the final state and the
// node trail.
func (w *Workflow) Run(ctx context.Context, query string) (*State, []string, error) {
	compiled, err := w.Build()
	if err != nil {
		return nil, nil, err
	}
	s := &State{Query: query}
	trail, err := compiled.Invoke(ctx, s)
	if err != nil {
		return s, trail, err
	}
	return s, trail, nil
}

// agentNode asks the model whether the query needs tool assistance.
func (w *Workflow) agentNode(ctx context.Context, s *State) error {
	prompt := fmt.Sprintf(
		"Based on the following query, determine if tools are needed.\n"+
			"Query: %s\n\n"+
			"Respond with ONLY a JSON object: {\"tools_needed\": true} or {\"tools_needed\": false}",
		s.Query)

	raw, err := w.model.Generate(ctx, prompt)
	if err != nil {
		// Model outage on classification is not fatal; take the safe branch.
		w.log.Warn().Err(err).Msg("tools classification failed, defaulting to no tools")
		s.ToolsNeeded = false
		return nil
	}
	s.ToolsNeeded = parseToolsDecision(models.Text(raw))
	return nil
}

// callToolsNode always runs both tools, in parallel, and merges whatever
// they produced into the state.
func (w *Workflow) callToolsNode(ctx context.Context, s *State) error {
	var (
		wg        sync.WaitGroup
		multiply  *int64
		retrieved string
		docs      []ToolDocument
		searchErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = w.pool.Do(ctx, func() error {
			multiply = multiplyTool(s.Query)
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		searchErr = w.pool.Do(ctx, func() error {
			retrieved, docs, searchErr = retrieverTool(ctx, w.index, s.Query, w.topK)
			return searchErr
		})
	}()
	wg.Wait()

	if searchErr != nil {
		// Retrieval is advisory context; degrade to absent.
		w.log.Warn().Err(searchErr).Msg("retriever tool degraded to empty")
	}

	s.MultiplyResult = multiply
	s.RetrieverResult = retrieved
	s.RawResults = docs
	s.RouteAfterTools = routeTag(multiply != nil, retrieved != "")
	w.log.Debug().Str("route", s.RouteAfterTools).Msg("tools finished")
	return nil
}

// gradeDocumentsNode asks the model whether the tool output is enough to
// answer directly or the query should be rewritten first.
func (w *Workflow) gradeDocumentsNode(ctx context.Context, s *State) error {
	if s.MultiplyResult == nil && s.RetrieverResult == "" {
		s.RouteAfterGrade = RouteGenerate
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Based on the query %q and the following tool results, which route should I take next: 'generate' or 'rewrite'?\n\n",
		s.Query)
	if s.MultiplyResult != nil {
		fmt.Fprintf(&sb, "Multiply result: %d\n\n", *s.MultiplyResult)
	}
	if s.RetrieverResult != "" {
		fmt.Fprintf(&sb, "Retrieved documents:\n%s\n\n", s.RetrieverResult)
	}
	sb.WriteString("Respond with ONLY a JSON object: {\"route\": \"generate\"} or {\"route\": \"rewrite\"}")

	raw, err := w.model.Generate(ctx, sb.String())
	if err != nil {
		w.log.Warn().Err(err).Msg("grading failed, defaulting to generate")
		s.RouteAfterGrade = RouteGenerate
		return nil
	}
	s.RouteAfterGrade = parseGradeDecision(models.Text(raw))
	return nil
}

// generateNode produces the final answer from the query and available tool
// context.
func (w *Workflow) generateNode(ctx context.Context, s *State) error {
	prompt := fmt.Sprintf(
		"Answer the following query.\n\nQuery: %s\n%s\nGive a direct, helpful answer.",
		s.Query, toolContext(s))

	raw, err := w.model.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}
	s.FinalOutput = models.Text(raw)
	return nil
}

// rewriteNode reformulates the query using the retrieved context and answers
// the improved version.
func (w *Workflow) rewriteNode(ctx context.Context, s *State) error {
	prompt := fmt.Sprintf(
		"Rewrite and improve the following query based on the provided context, then answer it.\n\nQuery: %s\n%s\nProvide a comprehensive, well-structured response.",
		s.Query, toolContext(s))

	raw, err := w.model.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("rewrite answer: %w", err)
	}
	s.FinalOutput = models.Text(raw)
	return nil
}

func toolContext(s *State) string {
	var sb strings.Builder
	if s.MultiplyResult != nil {
		fmt.Fprintf(&sb, "\nCalculation result: %d\n", *s.MultiplyResult)
	}
	if s.RetrieverResult != "" {
		fmt.Fprintf(&sb, "\nRetrieved information:\n%s\n", s.RetrieverResult)
	}
	return sb.String()
}
