package orchestrator

import (
	"github.com/hupe1980/legalmesh/a2a"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/graph"
	"github.com/hupe1980/legalmesh/legal"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/search"
)

// Options configure the mesh graph.
type Options struct {
	// Remote is the remote delegate, usually an *a2a.RemoteAgent. It is
	// optional; without it every turn goes to the legal workflow.
	Remote core.Agent
	// Workflow configures the legal workflow agents.
	Workflow []func(o *legal.Options)
	// OnDelegate is called after each delegate run.
	OnDelegate func(delegate string, err error)
	// RecallLimit is the number of remembered turns of the session placed
	// in an empty context slot. Answers are remembered when it is positive.
	RecallLimit int
}

// Declare registers the planner, the orchestrator and the remote delegate
// with b. The legal workflow must be declared separately.
func Declare(b *graph.Builder, llm model.Model, optFns ...func(o *Options)) error {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := b.Declare(graph.Descriptor{
		Reads:  []string{legal.UserQuery.Name()},
		Writes: []string{PlanSlot.Name()},
	}, NewPlanner(llm)); err != nil {
		return err
	}

	reads := []string{legal.UserQuery.Name(), PlanSlot.Name(), legal.FinalAnswer.Name(), legal.ComplianceRisk.Name(), search.Sources.Name()}
	delegates := []string{PlannerName, legal.CoordinatorName}
	remoteName := ""

	if opts.Remote != nil {
		remoteName = opts.Remote.Name()
		reads = append(reads, a2a.RemoteAnswer.Name(), a2a.RemoteDocuments.Name())
		delegates = append(delegates, remoteName)

		if err := b.Declare(graph.Descriptor{
			Reads:  []string{legal.UserQuery.Name()},
			Writes: []string{a2a.RemoteAnswer.Name(), a2a.RemoteDocuments.Name()},
		}, opts.Remote); err != nil {
			return err
		}
	}

	orc := NewOrchestrator(remoteName, opts.OnDelegate)
	orc.recallLimit = opts.RecallLimit

	return b.Declare(graph.Descriptor{
		Reads:     reads,
		Writes:    []string{FinalReport.Name(), legal.Context.Name()},
		Delegates: delegates,
	}, orc)
}

// TurnSeed extends legal.TurnSeed with the slots of the remote delegate
// and the report.
func TurnSeed(query, recalled string) map[string]any {
	seed := legal.TurnSeed(query, recalled)
	seed[a2a.RemoteAnswer.Name()] = ""
	seed[a2a.RemoteDocuments.Name()] = []string{}
	seed[FinalReport.Name()] = ""

	return seed
}

// New builds the full mesh graph rooted at the orchestrator.
func New(llm model.Model, optFns ...func(o *Options)) (*graph.Graph, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	b := graph.NewBuilder(legal.SeedSlots...)

	if err := legal.Declare(b, llm, opts.Workflow...); err != nil {
		return nil, err
	}

	if err := Declare(b, llm, func(o *Options) { *o = opts }); err != nil {
		return nil, err
	}

	return b.Build(OrchestratorName)
}
