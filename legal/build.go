package legal

import (
	"errors"

	"github.com/hupe1980/legalmesh/graph"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/search"
)

// SeedSlots are written by the caller before a turn starts.
var SeedSlots = []string{UserQuery.Name(), Context.Name()}

// TurnSeed returns the state delta that starts a turn: the seed slots and
// empty values for every per-turn slot an earlier turn of the session may
// have left behind.
func TurnSeed(query, recalled string) map[string]any {
	return map[string]any{
		UserQuery.Name():         query,
		Context.Name():           recalled,
		SearchResults.Name():     "",
		search.Sources.Name():    []search.Source{},
		Summary.Name():           "",
		DraftedClauses.Name():    "",
		ComplianceChecked.Name(): "",
		ComplianceRisk.Name():    RiskLevel(""),
		FinalAnswer.Name():       "",
	}
}

// Options configure the workflow agents.
type Options struct {
	Searcher         search.Searcher
	DraftPolicy      DraftPolicy
	MinContextLength int
	// OnRoute is called once per turn with the classified label.
	OnRoute func(Label)
}

// Declare registers the coordinator and its delegates with b.
func Declare(b *graph.Builder, llm model.Model, optFns ...func(o *Options)) error {
	opts := Options{
		DraftPolicy:      DraftAlways,
		MinContextLength: DefaultMinContextLength,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Searcher == nil {
		return errors.New("legal: searcher is required")
	}

	specialistReads := []string{UserQuery.Name(), Context.Name(), SearchResults.Name(), Task.Name()}

	if err := b.Declare(graph.Descriptor{
		Reads:     []string{UserQuery.Name()},
		Delegates: []string{ClassifierName, SummarizerName, ClauseDrafterName, ComplianceName, FormatterName},
	}, NewCoordinator(opts.DraftPolicy, opts.OnRoute)); err != nil {
		return err
	}

	if err := b.Declare(graph.Descriptor{
		Reads:  []string{UserQuery.Name(), Context.Name()},
		Writes: []string{Task.Name()},
	}, NewClassifier(llm)); err != nil {
		return err
	}

	if err := b.Declare(graph.Descriptor{
		Reads:  []string{UserQuery.Name()},
		Writes: []string{SearchResults.Name(), search.Sources.Name()},
	}, NewSearch(llm, opts.Searcher)); err != nil {
		return err
	}

	if err := b.Declare(graph.Descriptor{
		Reads:     specialistReads,
		Writes:    []string{Summary.Name()},
		Delegates: []string{SearchName},
	}, NewSummarizer(llm, opts.MinContextLength)); err != nil {
		return err
	}

	if err := b.Declare(graph.Descriptor{
		Reads:     specialistReads,
		Writes:    []string{DraftedClauses.Name()},
		Delegates: []string{SearchName},
	}, NewClauseDrafter(llm, opts.MinContextLength)); err != nil {
		return err
	}

	if err := b.Declare(graph.Descriptor{
		Reads:     append(specialistReads, DraftedClauses.Name()),
		Writes:    []string{ComplianceChecked.Name(), ComplianceRisk.Name()},
		Delegates: []string{SearchName},
	}, NewCompliance(llm, opts.MinContextLength)); err != nil {
		return err
	}

	return b.Declare(graph.Descriptor{
		Reads: []string{
			UserQuery.Name(), Task.Name(), Summary.Name(), DraftedClauses.Name(),
			ComplianceChecked.Name(), ComplianceRisk.Name(), SearchResults.Name(), search.Sources.Name(),
		},
		Writes: []string{FinalAnswer.Name()},
	}, NewFormatter(llm))
}

// New builds the workflow as a standalone graph rooted at the coordinator.
func New(llm model.Model, optFns ...func(o *Options)) (*graph.Graph, error) {
	b := graph.NewBuilder(SeedSlots...)

	if err := Declare(b, llm, optFns...); err != nil {
		return nil, err
	}

	return b.Build(CoordinatorName)
}
