package legal

import (
	"fmt"
	"strings"

	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/flow"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/search"
	"github.com/hupe1980/legalmesh/tool"
)

// Agent names used in the delegation graph.
const (
	CoordinatorName   = "coordinator"
	ClassifierName    = "classifier"
	SearchName        = "search"
	SummarizerName    = "summarizer"
	ClauseDrafterName = "clause_drafter"
	ComplianceName    = "compliance"
	FormatterName     = "formatter"
)

// DefaultMinContextLength is the context length below which specialists
// search first.
const DefaultMinContextLength = 50

// NewClassifier creates the routing agent. Its reply is decoded into a
// TaskLabel; a malformed reply or unknown label fails the run.
func NewClassifier(llm model.Model) *agent.ModelAgent {
	return agent.NewModelAgent(ClassifierName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Classifies the request and decides whether more context is needed."
		o.Instruction = agent.NewInstructionFromText(classifierInstruction)
		o.JSONResponse = true
		o.IncludeContents = flow.IncludeNone
		o.OutputKey = Task.Name()
		o.OutputDecoder = func(text string) (any, error) { return ParseTaskLabel(text) }
	})
}

// NewSearch creates the web research agent backed by s.
func NewSearch(llm model.Model, s search.Searcher) *agent.ModelAgent {
	return agent.NewModelAgent(SearchName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Searches the web for legal sources when context is inadequate."
		o.Instruction = agent.NewInstructionFromText(searchInstruction)
		o.IncludeContents = flow.IncludeNone
		o.OutputKey = SearchResults.Name()
		o.Tools = []tool.Tool{search.NewTool(s)}
	})
}

// Specialist is a model agent that makes sure it has enough context before
// answering. When the context slot is shorter than the minimum or the
// classifier asked for more context, the attached search delegate runs first.
// The delegate also stays available to the model as a tool.
type Specialist struct {
	*agent.ModelAgent
	minContext int
	afterRun   func(runCtx *core.RunContext)
}

func newSpecialist(name, description, instruction, outputKey string, llm model.Model, minContext int) *Specialist {
	return &Specialist{
		ModelAgent: agent.NewModelAgent(name, llm, func(o *agent.ModelAgentOptions) {
			o.Description = description
			o.Instruction = agent.NewInstructionFromText(instruction)
			o.OutputKey = outputKey
		}),
		minContext: minContext,
	}
}

// NewSummarizer creates the agent writing summary.
func NewSummarizer(llm model.Model, minContext int) *Specialist {
	return newSpecialist(SummarizerName, "Summarizes legal documents in plain English.",
		summarizerInstruction, Summary.Name(), llm, minContext)
}

// NewClauseDrafter creates the agent writing drafted_clauses.
func NewClauseDrafter(llm model.Model, minContext int) *Specialist {
	return newSpecialist(ClauseDrafterName, "Drafts enforceable clauses tailored to the user's scenario.",
		drafterInstruction, DraftedClauses.Name(), llm, minContext)
}

// NewCompliance creates the agent writing compliance_checked.
func NewCompliance(llm model.Model, minContext int) *Specialist {
	s := newSpecialist(ComplianceName, "Validates drafts, flags issues and attaches citations.",
		complianceInstruction, ComplianceChecked.Name(), llm, minContext)

	s.afterRun = func(runCtx *core.RunContext) {
		report := ParseComplianceReport(ComplianceChecked.Value(runCtx))
		ComplianceRisk.Set(runCtx, report.Risk)
		runCtx.LogInfo("compliance.report.parsed", "risk", string(report.Risk))
	}

	return s
}

// NeedsSearch reports whether the context is insufficient for the turn.
// A search that already ran in this turn satisfies the need.
func (s *Specialist) NeedsSearch(runCtx *core.RunContext) bool {
	if strings.TrimSpace(SearchResults.Value(runCtx)) != "" {
		return false
	}

	if len(strings.TrimSpace(Context.Value(runCtx))) < s.minContext {
		return true
	}

	return Task.Value(runCtx).NeedsContext
}

// Run implements core.Agent.
func (s *Specialist) Run(runCtx *core.RunContext) error {
	if s.NeedsSearch(runCtx) {
		if err := s.runSearch(runCtx); err != nil {
			return err
		}
	}

	if err := s.ModelAgent.Run(runCtx); err != nil {
		return err
	}

	if s.afterRun != nil {
		s.afterRun(runCtx)
	}

	return nil
}

func (s *Specialist) runSearch(runCtx *core.RunContext) error {
	var delegate core.Agent

	for _, child := range s.SubAgents() {
		if child.Name() == SearchName {
			delegate = child
			break
		}
	}

	if delegate == nil {
		runCtx.LogWarn("specialist.search.unavailable", "agent", s.Name())
		return nil
	}

	runCtx.LogInfo("specialist.search.start", "agent", s.Name())

	child := runCtx.NewChildContext(core.AgentInfo{Name: delegate.Name(), Type: "delegate"}, delegate.Name())
	if err := delegate.Run(child); err != nil {
		return fmt.Errorf("%s: search delegate: %w", s.Name(), err)
	}

	return nil
}

// NewFormatter creates the agent assembling final_answer. Its instruction
// is built from the slots relevant to the routed label.
func NewFormatter(llm model.Model) *agent.ModelAgent {
	return agent.NewModelAgent(FormatterName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Assembles the final response into polished output."
		o.Instruction = agent.NewInstructionFromFunc(formatterInstruction)
		o.IncludeContents = flow.IncludeNone
		o.OutputKey = FinalAnswer.Name()
	})
}

func formatterInstruction(runCtx *core.RunContext) (string, error) {
	task, ok, err := Task.Get(runCtx)
	if err != nil {
		return "", err
	}

	if !ok {
		return "", fmt.Errorf("%w: no task label in state", ErrInvalidLabel)
	}

	var sb strings.Builder

	sb.WriteString(formatterPreamble)
	fmt.Fprintf(&sb, "\n\nRequest: %s\n", UserQuery.Value(runCtx))

	switch task.Label {
	case LabelSummarize:
		fmt.Fprintf(&sb, "\nReturn the summary.\n\nSummary:\n%s\n", Summary.Value(runCtx))
	case LabelDraftClause:
		fmt.Fprintf(&sb, "\nPresent a \"Drafted Clauses\" section.\n\nDrafted clauses:\n%s\n", DraftedClauses.Value(runCtx))

		if review := ComplianceChecked.Value(runCtx); review != "" {
			fmt.Fprintf(&sb, "\nAdd a short compliance note based on this review:\n%s\n", review)
		}
	case LabelComplianceCheck:
		fmt.Fprintf(&sb, "\nReturn the compliance report and the revised draft.\n\nCompliance report:\n%s\n", ComplianceChecked.Value(runCtx))
	}

	if risk := ComplianceRisk.Value(runCtx); risk != "" {
		fmt.Fprintf(&sb, "\nState the overall risk level: %s.\n", risk)
	}

	if sources := search.Sources.Value(runCtx); len(sources) > 0 {
		sb.WriteString("\nEnd with a compact \"Sources\" section listing:\n")
		for _, src := range sources {
			fmt.Fprintf(&sb, "- %s (%s)\n", src.Title, src.URL)
		}
	} else if results := SearchResults.Value(runCtx); results != "" {
		fmt.Fprintf(&sb, "\nEnd with a compact \"Sources\" section drawn from:\n%s\n", results)
	}

	return sb.String(), nil
}
