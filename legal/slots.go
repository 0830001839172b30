package legal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/legalmesh/blackboard"
)

// Blackboard slots owned by the workflow.
var (
	UserQuery         = blackboard.NewKey[string]("user_query")
	Context           = blackboard.NewKey[string]("context")
	SearchResults     = blackboard.NewKey[string]("search_results")
	Task              = blackboard.NewKey[TaskLabel]("task_label_json")
	Summary           = blackboard.NewKey[string]("summary")
	DraftedClauses    = blackboard.NewKey[string]("drafted_clauses")
	ComplianceChecked = blackboard.NewKey[string]("compliance_checked")
	ComplianceRisk    = blackboard.NewKey[RiskLevel]("compliance_risk")
	FinalAnswer       = blackboard.NewKey[string]("final_answer")
)

// ErrInvalidLabel is returned for a routing label outside the known set.
var ErrInvalidLabel = errors.New("legal: invalid task label")

// Label selects the specialist branch of a turn.
type Label string

// Known labels.
const (
	LabelSummarize       Label = "SUMMARIZE"
	LabelDraftClause     Label = "DRAFT_CLAUSE"
	LabelComplianceCheck Label = "COMPLIANCE_CHECK"
)

// Labels lists every valid label.
var Labels = []Label{LabelSummarize, LabelDraftClause, LabelComplianceCheck}

// ParseLabel accepts one of the three labels, ignoring surrounding space and
// case.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))

	switch l {
	case LabelSummarize, LabelDraftClause, LabelComplianceCheck:
		return l, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidLabel, s)
}

// TaskLabel is the Classifier's routing decision.
type TaskLabel struct {
	Label        Label  `json:"label"`
	NeedsContext bool   `json:"needs_context"`
	Notes        string `json:"notes"`
}

// ParseTaskLabel decodes the Classifier reply. Markdown code fences and
// prose around the JSON object are tolerated; the label must be valid.
func ParseTaskLabel(text string) (TaskLabel, error) {
	raw := strings.TrimSpace(text)

	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return TaskLabel{}, fmt.Errorf("legal: task label is not a JSON object: %q", text)
	}

	var wire struct {
		Label        string `json:"label"`
		NeedsContext bool   `json:"needs_context"`
		Notes        string `json:"notes"`
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return TaskLabel{}, fmt.Errorf("legal: decode task label: %w", err)
	}

	label, err := ParseLabel(wire.Label)
	if err != nil {
		return TaskLabel{}, err
	}

	return TaskLabel{Label: label, NeedsContext: wire.NeedsContext, Notes: wire.Notes}, nil
}
