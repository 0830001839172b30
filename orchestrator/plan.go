package orchestrator

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/legalmesh/blackboard"
)

// Delegate selectors understood by the planner.
const (
	DelegateRemote = "remote"
	DelegateSDK    = "sdk"
)

// delegateOrder is the fixed invocation order.
var delegateOrder = []string{DelegateRemote, DelegateSDK}

// Plan is the planner's decision for one turn.
type Plan struct {
	LegalIssue    string   `json:"legal_issue"`
	Delegates     []string `json:"delegates"`
	AdjustedGoals []string `json:"adjusted_goals"`
	Plan          string   `json:"plan"`
}

// PlanSlot holds the decoded planner output.
var PlanSlot = blackboard.NewKey[Plan]("orchestrator_plan")

// FinalReport holds the rendered JSON report.
var FinalReport = blackboard.NewKey[string]("final_report")

// ParsePlan decodes a planner reply. Code fences and surrounding prose are
// tolerated. Delegates are normalized with NormalizeDelegates.
func ParsePlan(text string) (Plan, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start < 0 || end < start {
		return Plan{}, fmt.Errorf("orchestrator: plan is not a JSON object")
	}

	var p Plan
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return Plan{}, fmt.Errorf("orchestrator: decode plan: %w", err)
	}

	p.Delegates = NormalizeDelegates(p.Delegates)
	p.LegalIssue = strings.TrimSpace(p.LegalIssue)
	p.Plan = strings.TrimSpace(p.Plan)

	if p.AdjustedGoals == nil {
		p.AdjustedGoals = []string{}
	}

	return p, nil
}

// NormalizeDelegates lower-cases names, drops unknown and repeated ones and
// sorts the rest into invocation order. An empty result selects every
// delegate.
func NormalizeDelegates(names []string) []string {
	var out []string

	for _, d := range delegateOrder {
		if slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(strings.TrimSpace(n), d) }) {
			out = append(out, d)
		}
	}

	if len(out) == 0 {
		return slices.Clone(delegateOrder)
	}

	return out
}

// FallbackPlan is used when the planner fails.
func FallbackPlan(query string) Plan {
	return Plan{
		LegalIssue:    "",
		Delegates:     slices.Clone(delegateOrder),
		AdjustedGoals: []string{},
		Plan: fmt.Sprintf("Consult the internal legal delegate and the research workflow for %q, then merge document facts with web citations.",
			strings.TrimSpace(query)),
	}
}
