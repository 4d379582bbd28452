package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bidforge/internal/infra/metrics"
)

// DefaultMaxHops bounds a run when no explicit guard is configured. The
// reference topology needs at most seven hops; the slack covers retry
// cycles added by handlers.
const DefaultMaxHops = 32

// Handler transforms the state of one run. A handler owns the state for the
// duration of the call and must not retain it after returning. Collaborator
// failures belong in the state's error field; a panic is a programming error
// and crashes the run.
type Handler func(ctx context.Context, st *State) *State

// RouteFunc maps the post-handler state to one of the successors declared
// for its branch. It must be a pure function of the state.
type RouteFunc func(st *State) string

type branch struct {
	route   RouteFunc
	targets map[string]struct{}
}

// Graph is a directed graph of named stages with one entry point,
// unconditional edges and conditional branches. Build with AddStage /
// AddEdge / AddBranch / SetEntry, validate with Compile, then Run. A
// compiled Graph is immutable and reentrant: many runs may execute
// concurrently against independent states.
type Graph struct {
	entry    string
	stages   map[string]Handler
	edges    map[string]string
	branches map[string]branch
	maxHops  int
	compiled bool
	log      *zerolog.Logger
}

func NewGraph(maxHops int, log *zerolog.Logger) *Graph {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Graph{
		stages:   make(map[string]Handler),
		edges:    make(map[string]string),
		branches: make(map[string]branch),
		maxHops:  maxHops,
		log:      log,
	}
}

func (g *Graph) AddStage(name string, h Handler) *Graph {
	g.stages[name] = h
	return g
}

// AddEdge registers the unconditional successor of from.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddBranch registers a conditional edge: after from runs, route picks one
// of targets (or Terminal). Targets form a closed set checked at compile
// time and enforced at run time.
func (g *Graph) AddBranch(from string, route RouteFunc, targets ...string) *Graph {
	set := make(map[string]struct{}, len(targets)+1)
	for _, t := range targets {
		set[t] = struct{}{}
	}
	set[Terminal] = struct{}{}
	g.branches[from] = branch{route: route, targets: set}
	return g
}

func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// Compile validates the graph. Every edge and branch target must name a
// registered stage and the entry stage must exist. No run starts on a graph
// that fails compilation.
func (g *Graph) Compile() error {
	if g.entry == "" {
		return &GraphValidationError{Reason: "no entry stage set"}
	}
	if _, ok := g.stages[g.entry]; !ok {
		return &GraphValidationError{Reason: "entry stage " + g.entry + " is not registered"}
	}
	for from, to := range g.edges {
		if _, ok := g.stages[from]; !ok {
			return &GraphValidationError{Reason: "edge source " + from + " is not registered"}
		}
		if to != Terminal {
			if _, ok := g.stages[to]; !ok {
				return &GraphValidationError{Stage: from, Target: to}
			}
		}
	}
	for from, br := range g.branches {
		if _, ok := g.stages[from]; !ok {
			return &GraphValidationError{Reason: "branch source " + from + " is not registered"}
		}
		for t := range br.targets {
			if t == Terminal {
				continue
			}
			if _, ok := g.stages[t]; !ok {
				return &GraphValidationError{Stage: from, Target: t}
			}
		}
	}
	g.compiled = true
	return nil
}

// Run drives one state through the graph to the terminal marker. Stages of a
// single run execute strictly in sequence. A state-level error set by a
// handler short-circuits routing; an engine invariant violation or the
// max-hop guard returns a non-nil error alongside the state seen so far.
func (g *Graph) Run(ctx context.Context, st *State) (*State, error) {
	if !g.compiled {
		return st, &GraphValidationError{Reason: "graph was not compiled"}
	}

	current := g.entry
	for hops := 0; ; hops++ {
		if hops >= g.maxHops {
			return st, &ExhaustedError{Hops: hops, Stage: current}
		}

		start := time.Now()
		st = g.stages[current](ctx, st)
		metrics.ObserveStage(current, time.Since(start), st.Err == "")
		if g.log != nil {
			g.log.Debug().
				Str("request_id", st.RequestID).
				Str("stage", current).
				Dur("duration", time.Since(start)).
				Msg("stage complete")
		}

		if st.Err != "" {
			// Short-circuit: bypass remaining edges.
			return st, nil
		}

		next := Terminal
		if br, ok := g.branches[current]; ok {
			next = br.route(st)
			if _, declared := br.targets[next]; !declared {
				return st, &StageRoutingError{Stage: current, Target: next}
			}
		} else if to, ok := g.edges[current]; ok {
			next = to
		}

		if next == Terminal {
			return st, nil
		}
		current = next
	}
}
