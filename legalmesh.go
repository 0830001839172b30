// Package legalmesh assembles the legal assistant: the research workflow,
// the optional remote delegate and the orchestrator that merges both into
// one JSON report per turn.
//
// Most applications create a Mesh with New and call Ask once per user
// message:
//
//	mesh, err := legalmesh.New(llm, func(o *legalmesh.Options) {
//		o.Searcher = search.NewClient()
//	})
//	report, err := mesh.Ask(ctx, "session-1", "Add 45 days to 2025-08-01")
//
// Components builds a Mesh and its servers from a config.Config.
package legalmesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/graph"
	"github.com/hupe1980/legalmesh/legal"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/memory"
	"github.com/hupe1980/legalmesh/metrics"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/orchestrator"
	"github.com/hupe1980/legalmesh/runner"
	"github.com/hupe1980/legalmesh/search"
)

// DefaultRecallLimit is the number of remembered turns placed in context.
const DefaultRecallLimit = 3

var (
	// ErrEmptyQuery is returned by Ask for blank input.
	ErrEmptyQuery = errors.New("legalmesh: query is empty")
	// ErrNoAnswer is returned when a turn finished without a report.
	ErrNoAnswer = errors.New("legalmesh: turn produced no answer")
)

// Options configure a Mesh.
type Options struct {
	// Stores default to in-memory implementations.
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Searcher backs the web search agent. Required.
	Searcher search.Searcher
	// Remote is the remote delegate, usually an *a2a.RemoteAgent. Optional.
	Remote core.Agent

	DraftPolicy      legal.DraftPolicy
	MinContextLength int
	MaxModelCalls    int

	// Recall lets the orchestrator seed an empty context slot with
	// remembered turns of the session and remember every answer.
	Recall      bool
	RecallLimit int

	Metrics *metrics.Collector
	Logger  logging.Logger
}

// Mesh runs turns of the orchestrator graph.
type Mesh struct {
	graph  *graph.Graph
	runner *runner.Runner
	opts   Options
}

// New builds the graph and its runner.
func New(llm model.Model, optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		DraftPolicy:      legal.DraftAlways,
		MinContextLength: legal.DefaultMinContextLength,
		MaxModelCalls:    100,
		Recall:           true,
		RecallLimit:      DefaultRecallLimit,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewKeywordStore()
	}

	collector := opts.Metrics

	g, err := orchestrator.New(llm, func(o *orchestrator.Options) {
		o.Remote = opts.Remote
		o.OnDelegate = collector.ObserveDelegate
		if opts.Recall {
			o.RecallLimit = opts.RecallLimit
		}
		o.Workflow = []func(o *legal.Options){func(lo *legal.Options) {
			lo.Searcher = opts.Searcher
			lo.DraftPolicy = opts.DraftPolicy
			lo.MinContextLength = opts.MinContextLength
			lo.OnRoute = func(l legal.Label) { collector.ObserveRoute(string(l)) }
		}}
	})
	if err != nil {
		return nil, fmt.Errorf("legalmesh: build graph: %w", err)
	}

	r := runner.New(g.Root(), func(o *runner.Options) {
		o.MaxModelCalls = opts.MaxModelCalls
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.MemoryStore = opts.MemoryStore
		o.Logger = opts.Logger
	})

	return &Mesh{graph: g, runner: r, opts: opts}, nil
}

// Graph returns the validated agent graph.
func (m *Mesh) Graph() *graph.Graph { return m.graph }

// Runner returns the runner executing turns.
func (m *Mesh) Runner() *runner.Runner { return m.runner }

// Ask runs one turn for query in the session and returns the JSON report.
func (m *Mesh) Ask(ctx context.Context, sessionID, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	start := time.Now()
	answer, err := m.ask(ctx, sessionID, query)
	m.opts.Metrics.ObserveTurn(time.Since(start), err)

	if err != nil {
		m.opts.Logger.Error("mesh.turn.failed", "session_id", sessionID, "error", err.Error())
		return "", err
	}

	m.opts.Logger.Info("mesh.turn.completed", "session_id", sessionID, "duration", time.Since(start).String())

	return answer, nil
}

func (m *Mesh) ask(ctx context.Context, sessionID, query string) (string, error) {
	_, events, errs, err := m.runner.RunWithState(ctx, sessionID, core.NewTextContent("user", query), orchestrator.TurnSeed(query, ""))
	if err != nil {
		return "", err
	}

	collected, err := runner.Collect(events, errs)
	if err != nil {
		return "", err
	}

	answer := runner.FinalText(collected, orchestrator.OrchestratorName)
	if answer == "" {
		return "", ErrNoAnswer
	}

	return answer, nil
}
