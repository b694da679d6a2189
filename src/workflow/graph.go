package workflow

import (
	"context"
	"fmt"
)

// NodeFunc is one step of the graph. It mutates the state and returns an
// error to abort the whole invocation.
type NodeFunc func(ctx context.Context, s *State) error

// RouteFunc picks the route label after a node has run. The label is looked
// up in the conditional edge's target map.
type RouteFunc func(s *State) string

type conditionalEdge struct {
	route   RouteFunc
	targets map[string]string
}

// Graph is a small directed state machine builder. Nodes are added by name,
// then linked with static or conditional edges, then compiled.
type Graph struct {
	nodes       map[string]NodeFunc
	edges       map[string]string
	conditional map[string]conditionalEdge
	entry       string
}

func NewGraph() *Graph {
	return &Graph{
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge),
	}
}

func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

// AddEdge links from to a fixed next node (or End).
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdge links from to one of targets, chosen by route. Every
// label route can return must appear in targets; Compile checks this cannot
// leave the graph without a next hop.
func (g *Graph) AddConditionalEdge(from string, route RouteFunc, targets map[string]string) *Graph {
	g.conditional[from] = conditionalEdge{route: route, targets: targets}
	return g
}

func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

// Compile validates the graph and freezes it for execution. Every node must
// have exactly one outgoing edge kind, every edge target must be a known
// node or End, and the entry point must exist.
func (g *Graph) Compile() (*CompiledGraph, error) {
	if g.entry == "" {
		return nil, fmt.Errorf("graph has no entry point")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("entry point %q is not a node", g.entry)
	}
	for name := range g.nodes {
		_, hasStatic := g.edges[name]
		_, hasCond := g.conditional[name]
		if hasStatic && hasCond {
			return nil, fmt.Errorf("node %q has both a static and a conditional edge", name)
		}
		if !hasStatic && !hasCond {
			return nil, fmt.Errorf("node %q has no outgoing edge", name)
		}
	}
	check := func(from, to string) error {
		if to == End {
			return nil
		}
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("edge %s -> %s targets unknown node", from, to)
		}
		return nil
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if err := check(from, to); err != nil {
			return nil, err
		}
	}
	for from, ce := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("conditional edge from unknown node %q", from)
		}
		if len(ce.targets) == 0 {
			return nil, fmt.Errorf("conditional edge from %q has no targets", from)
		}
		for _, to := range ce.targets {
			if err := check(from, to); err != nil {
				return nil, err
			}
		}
	}
	return &CompiledGraph{g: g}, nil
}

// CompiledGraph executes the validated graph.
type CompiledGraph struct {
	g *Graph
}

// maxSteps bounds execution against accidental cycles.
const maxSteps = 64

// Invoke runs the graph from the entry point until End, mutating s in place.
// It returns the visited node names in order.
func (c *CompiledGraph) Invoke(ctx context.Context, s *State) ([]string, error) {
	var trail []string
	current := c.g.entry
	for steps := 0; current != End; steps++ {
		if steps >= maxSteps {
			return trail, fmt.Errorf("graph exceeded %d steps, aborting at %q", maxSteps, current)
		}
		if err := ctx.Err(); err != nil {
			return trail, err
		}
		fn := c.g.nodes[current]
		if err := fn(ctx, s); err != nil {
			return trail, fmt.Errorf("node %s: %w", current, err)
		}
		trail = append(trail, current)

		next, err := c.next(current, s)
		if err != nil {
			return trail, err
		}
		current = next
	}
	return trail, nil
}

func (c *CompiledGraph) next(current string, s *State) (string, error) {
	if to, ok := c.g.edges[current]; ok {
		return to, nil
	}
	ce := c.g.conditional[current]
	label := ce.route(s)
	to, ok := ce.targets[label]
	if !ok {
		return "", fmt.Errorf("node %s routed to unmapped label %q", current, label)
	}
	return to, nil
}
