package legal

import (
	"fmt"
	"strings"

	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/core"
)

// DraftPolicy decides whether drafted clauses go through Compliance.
type DraftPolicy string

// Draft validation policies.
const (
	DraftAlways           DraftPolicy = "always"
	DraftNever            DraftPolicy = "never"
	DraftWhenNeedsContext DraftPolicy = "when_needs_context"
)

// ParseDraftPolicy maps a config value to a policy. Empty means DraftAlways.
func ParseDraftPolicy(s string) (DraftPolicy, error) {
	switch p := DraftPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DraftAlways, nil
	case DraftAlways, DraftNever, DraftWhenNeedsContext:
		return p, nil
	default:
		return "", fmt.Errorf("legal: unknown draft policy %q", s)
	}
}

// Coordinator routes a turn through the workflow:
//
//	classifier -> label
//	SUMMARIZE        -> summarizer
//	DRAFT_CLAUSE     -> clause_drafter (-> compliance, per DraftPolicy)
//	COMPLIANCE_CHECK -> compliance
//	always           -> formatter, exactly once
//
// A branch error fails the turn before the formatter runs.
type Coordinator struct {
	agent.BaseAgent
	policy  DraftPolicy
	onRoute func(Label)
}

// NewCoordinator creates a coordinator. Its delegates are attached by the
// graph builder.
func NewCoordinator(policy DraftPolicy, onRoute func(Label)) *Coordinator {
	c := &Coordinator{BaseAgent: agent.NewBaseAgent(CoordinatorName), policy: policy, onRoute: onRoute}
	c.SetDescription("Legal assistant workflow with web-search fallback: summarizes, drafts clauses and checks compliance.")

	return c
}

// Route returns the delegates to run for task, formatter excluded.
func (c *Coordinator) Route(task TaskLabel) []string {
	switch task.Label {
	case LabelSummarize:
		return []string{SummarizerName}
	case LabelDraftClause:
		if c.validateDraft(task) {
			return []string{ClauseDrafterName, ComplianceName}
		}
		return []string{ClauseDrafterName}
	case LabelComplianceCheck:
		return []string{ComplianceName}
	}

	return nil
}

func (c *Coordinator) validateDraft(task TaskLabel) bool {
	switch c.policy {
	case DraftNever:
		return false
	case DraftWhenNeedsContext:
		return task.NeedsContext
	default:
		return true
	}
}

// Run implements core.Agent.
func (c *Coordinator) Run(runCtx *core.RunContext) error {
	if err := c.runDelegate(runCtx, ClassifierName); err != nil {
		return err
	}

	task, ok, err := Task.Get(runCtx)
	if err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	if !ok {
		return fmt.Errorf("coordinator: %w: classifier wrote no label", ErrInvalidLabel)
	}

	if _, err := ParseLabel(string(task.Label)); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	route := c.Route(task)

	runCtx.LogInfo("coordinator.route.selected", "label", string(task.Label), "needs_context", task.NeedsContext, "route", strings.Join(route, ","))

	if c.onRoute != nil {
		c.onRoute(task.Label)
	}

	for _, name := range route {
		if err := c.runDelegate(runCtx, name); err != nil {
			return err
		}
	}

	return c.runDelegate(runCtx, FormatterName)
}

func (c *Coordinator) runDelegate(runCtx *core.RunContext, name string) error {
	if err := runCtx.Err(); err != nil {
		return err
	}

	var delegate core.Agent

	for _, child := range c.SubAgents() {
		if child.Name() == name {
			delegate = child
			break
		}
	}

	if delegate == nil {
		return fmt.Errorf("coordinator: delegate %s is not attached", name)
	}

	runCtx.LogDebug("coordinator.delegate.start", "delegate", name)

	if err := delegate.Run(runCtx); err != nil {
		runCtx.LogError("coordinator.delegate.error", "delegate", name, "error", err.Error())
		return fmt.Errorf("coordinator: %s: %w", name, err)
	}

	return nil
}
