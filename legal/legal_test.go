package legal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/testutil"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/search"
)

const groundedContext = "Employment agreement governed by California law, signed 2025-08-01, 40 hours sick leave."

type fakeSearcher struct {
	hits  []search.Result
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, _ string) ([]search.Result, error) {
	f.calls++
	return f.hits, nil
}

func newWorkflow(t *testing.T, llm model.Model, s search.Searcher, optFns ...func(o *Options)) core.Agent {
	t.Helper()

	if s == nil {
		s = &fakeSearcher{}
	}

	g, err := New(llm, append([]func(o *Options){func(o *Options) { o.Searcher = s }}, optFns...)...)
	require.NoError(t, err)

	return g.Root()
}

func finalEvents(events []core.Event, author string) int {
	n := 0
	for _, ev := range events {
		if ev.Author == author && ev.IsFinalResponse() {
			n++
		}
	}
	return n
}

func TestParseLabel(t *testing.T) {
	for _, l := range Labels {
		got, err := ParseLabel(string(l))
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	got, err := ParseLabel(" summarize ")
	require.NoError(t, err)
	assert.Equal(t, LabelSummarize, got)

	_, err = ParseLabel("TRANSLATE")
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestParseTaskLabel(t *testing.T) {
	task, err := ParseTaskLabel("```json\n{\"label\":\"DRAFT_CLAUSE\",\"needs_context\":true,\"notes\":\"asks for an NDA\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, TaskLabel{Label: LabelDraftClause, NeedsContext: true, Notes: "asks for an NDA"}, task)

	_, err = ParseTaskLabel(`{"label":"TRANSLATE"}`)
	assert.ErrorIs(t, err, ErrInvalidLabel)

	_, err = ParseTaskLabel("not json")
	assert.Error(t, err)
}

func TestParseComplianceReport(t *testing.T) {
	tests := []struct {
		text string
		want RiskLevel
	}{
		{"Issues: none\nRisk Level: Low\nFixes: -", RiskLow},
		{"**Risk Level:** Med", RiskMedium},
		{"risk level - HIGH", RiskHigh},
		{"Risk Level: Severe", ""},
		{"no level at all", ""},
	}

	for _, tt := range tests {
		report := ParseComplianceReport(tt.text)
		assert.Equal(t, tt.want, report.Risk, tt.text)
		assert.Equal(t, tt.text, report.Text)
	}
}

func TestParseDraftPolicy(t *testing.T) {
	p, err := ParseDraftPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DraftAlways, p)

	p, err = ParseDraftPolicy("When_Needs_Context")
	require.NoError(t, err)
	assert.Equal(t, DraftWhenNeedsContext, p)

	_, err = ParseDraftPolicy("sometimes")
	assert.Error(t, err)
}

func TestCoordinator_Route(t *testing.T) {
	draft := TaskLabel{Label: LabelDraftClause}

	assert.Equal(t, []string{SummarizerName}, NewCoordinator(DraftAlways, nil).Route(TaskLabel{Label: LabelSummarize}))
	assert.Equal(t, []string{ComplianceName}, NewCoordinator(DraftAlways, nil).Route(TaskLabel{Label: LabelComplianceCheck}))
	assert.Equal(t, []string{ClauseDrafterName, ComplianceName}, NewCoordinator(DraftAlways, nil).Route(draft))
	assert.Equal(t, []string{ClauseDrafterName}, NewCoordinator(DraftNever, nil).Route(draft))
	assert.Equal(t, []string{ClauseDrafterName}, NewCoordinator(DraftWhenNeedsContext, nil).Route(draft))

	draft.NeedsContext = true
	assert.Equal(t, []string{ClauseDrafterName, ComplianceName}, NewCoordinator(DraftWhenNeedsContext, nil).Route(draft))
}

func TestWorkflow_Summarize(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"SUMMARIZE","needs_context":false,"notes":"explain"}`),
		model.TextReply("The agreement grants 40 hours of sick leave."),
		model.TextReply("Summary\n\nThe agreement grants 40 hours of sick leave."),
	)

	var routed []Label
	root := newWorkflow(t, llm, nil, func(o *Options) { o.OnRoute = func(l Label) { routed = append(routed, l) } })

	rc, events, err := testutil.RunAgent(context.Background(), root, "Summarize my sick leave terms", map[string]any{
		"user_query": "Summarize my sick leave terms",
		"context":    groundedContext,
	})
	require.NoError(t, err)

	assert.Equal(t, "The agreement grants 40 hours of sick leave.", Summary.Value(rc))
	assert.Equal(t, "Summary\n\nThe agreement grants 40 hours of sick leave.", FinalAnswer.Value(rc))
	assert.Equal(t, LabelSummarize, Task.Value(rc).Label)
	assert.Equal(t, []Label{LabelSummarize}, routed)
	assert.Equal(t, 1, finalEvents(events, FormatterName))
	assert.Equal(t, 0, llm.Remaining())

	formatterReq := llm.Requests()[2]
	assert.Contains(t, formatterReq.Instructions, "Summary:\nThe agreement grants 40 hours of sick leave.")
}

func TestWorkflow_DraftThenCompliance(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"DRAFT_CLAUSE","needs_context":false,"notes":"draft"}`),
		model.TextReply("1. Confidentiality. [TERM_YEARS] years."),
		model.TextReply("Issues: term unspecified\nRisk Level: Medium\nRevised Draft: 1. Confidentiality. 3 years."),
		model.TextReply("Drafted Clauses\n\n1. Confidentiality. 3 years."),
	)

	rc, events, err := testutil.RunAgent(context.Background(), newWorkflow(t, llm, nil), "Draft an NDA clause", map[string]any{
		"user_query": "Draft an NDA clause",
		"context":    groundedContext,
	})
	require.NoError(t, err)

	assert.Equal(t, "1. Confidentiality. [TERM_YEARS] years.", DraftedClauses.Value(rc))
	assert.Contains(t, ComplianceChecked.Value(rc), "Risk Level: Medium")
	assert.Equal(t, RiskMedium, ComplianceRisk.Value(rc))
	assert.NotEmpty(t, FinalAnswer.Value(rc))
	assert.Equal(t, 1, finalEvents(events, FormatterName))

	complianceReq := llm.Requests()[2]
	assert.Contains(t, complianceReq.Instructions, "Draft: 1. Confidentiality. [TERM_YEARS] years.")
}

func TestWorkflow_DraftPolicyNever(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"DRAFT_CLAUSE","needs_context":false,"notes":"draft"}`),
		model.TextReply("1. Governing Law. [GOVERNING_LAW]."),
		model.TextReply("Drafted Clauses\n\n1. Governing Law."),
	)

	rc, _, err := testutil.RunAgent(context.Background(), newWorkflow(t, llm, nil, func(o *Options) { o.DraftPolicy = DraftNever }),
		"Draft a governing law clause", map[string]any{"user_query": "Draft a governing law clause", "context": groundedContext})
	require.NoError(t, err)

	_, ok := rc.GetState(ComplianceChecked.Name())
	assert.False(t, ok)
	assert.Equal(t, "Drafted Clauses\n\n1. Governing Law.", FinalAnswer.Value(rc))
	assert.Equal(t, 0, llm.Remaining())
}

func TestWorkflow_ComplianceCheckOnly(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"COMPLIANCE_CHECK","needs_context":false,"notes":"check leave"}`),
		model.TextReply("Issues: none\nRisk Level: Low\nRevised Draft: unchanged."),
		model.TextReply("Compliance Report\n\nRisk Level: Low"),
	)

	var routed []Label
	root := newWorkflow(t, llm, nil, func(o *Options) { o.OnRoute = func(l Label) { routed = append(routed, l) } })

	rc, events, err := testutil.RunAgent(context.Background(), root, "Is 40 hours of sick leave compliant?", map[string]any{
		"user_query": "Is 40 hours of sick leave compliant?",
		"context":    groundedContext,
	})
	require.NoError(t, err)

	assert.Equal(t, []Label{LabelComplianceCheck}, routed)
	assert.Equal(t, RiskLow, ComplianceRisk.Value(rc))
	assert.Empty(t, DraftedClauses.Value(rc))
	assert.Equal(t, "Compliance Report\n\nRisk Level: Low", FinalAnswer.Value(rc))
	assert.Equal(t, 1, finalEvents(events, FormatterName))
	assert.Equal(t, 0, finalEvents(events, ClauseDrafterName))
	assert.Equal(t, 0, llm.Remaining())

	requests := llm.Requests()
	require.Len(t, requests, 3)
	assert.Contains(t, requests[2].Instructions, "State the overall risk level: Low.")
}

func TestWorkflow_TemplateSyntaxInStateIsKeptVerbatim(t *testing.T) {
	const clause = "1. Payment. The {{ .PartyName } shall pay {{.Amount}} within 30 days."

	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"DRAFT_CLAUSE","needs_context":false,"notes":"draft"}`),
		model.TextReply(clause),
		model.TextReply("Drafted Clauses\n\n"+clause),
	)

	query := "Draft a payment clause for {{ .PartyName }"

	rc, _, err := testutil.RunAgent(context.Background(), newWorkflow(t, llm, nil, func(o *Options) { o.DraftPolicy = DraftNever }),
		query, map[string]any{"user_query": query, "context": groundedContext})
	require.NoError(t, err)

	assert.Equal(t, "Drafted Clauses\n\n"+clause, FinalAnswer.Value(rc))

	requests := llm.Requests()
	require.Len(t, requests, 3)
	assert.Contains(t, requests[1].Instructions, query)
	assert.Contains(t, requests[2].Instructions, "Request: "+query)
	assert.Contains(t, requests[2].Instructions, clause)
}

func TestWorkflow_SearchesWhenContextIsThin(t *testing.T) {
	searcher := &fakeSearcher{hits: []search.Result{
		{Title: "California Paid Sick Leave", URL: "https://www.dir.ca.gov/dlse/paid_sick_leave.htm", Content: "40 hours or 5 days."},
	}}

	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"COMPLIANCE_CHECK","needs_context":true,"notes":"needs statute"}`),
		model.CallReply("call-1", search.ToolName, `{"query":"California sick leave statute"}`),
		model.TextReply("Sources:\n- California Paid Sick Leave - https://www.dir.ca.gov/dlse/paid_sick_leave.htm"),
		model.TextReply("Risk Level: High\nRevised Draft: Employees accrue 40 hours."),
		model.TextReply("Compliance Report\n\nRisk Level: High\n\nSources\n- California Paid Sick Leave"),
	)

	rc, events, err := testutil.RunAgent(context.Background(), newWorkflow(t, llm, searcher),
		"Is 3 sick days compliant?", map[string]any{"user_query": "Is 3 sick days compliant?", "context": ""})
	require.NoError(t, err)

	assert.Equal(t, 1, searcher.calls)
	assert.Contains(t, SearchResults.Value(rc), "California Paid Sick Leave")
	assert.Equal(t, []search.Source{{Title: "California Paid Sick Leave", URL: "https://www.dir.ca.gov/dlse/paid_sick_leave.htm"}}, search.Sources.Value(rc))
	assert.Equal(t, 1, finalEvents(events, FormatterName))

	formatterReq := llm.Requests()[4]
	assert.Contains(t, formatterReq.Instructions, "- California Paid Sick Leave (https://www.dir.ca.gov/dlse/paid_sick_leave.htm)")
}

func TestWorkflow_RejectsFourthLabel(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"TRANSLATE","needs_context":false,"notes":"?"}`),
	)

	rc, events, err := testutil.RunAgent(context.Background(), newWorkflow(t, llm, nil), "Translate this",
		map[string]any{"user_query": "Translate this", "context": groundedContext})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidLabel))

	assert.Empty(t, FinalAnswer.Value(rc))
	assert.Equal(t, 0, finalEvents(events, FormatterName))
}

func TestWorkflow_BranchErrorSkipsFormatter(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply(`{"label":"SUMMARIZE","needs_context":false,"notes":"explain"}`),
	)

	_, events, err := testutil.RunAgent(context.Background(), newWorkflow(t, llm, nil), "Summarize",
		map[string]any{"user_query": "Summarize", "context": groundedContext})
	require.ErrorIs(t, err, model.ErrScriptExhausted)
	assert.Equal(t, 0, finalEvents(events, FormatterName))
}

func TestDeclare_RequiresSearcher(t *testing.T) {
	_, err := New(model.NewScriptedModel("test"))
	assert.Error(t, err)
}

func TestTurnSeed(t *testing.T) {
	seed := TurnSeed("q", "ctx")

	assert.Equal(t, "q", seed[UserQuery.Name()])
	assert.Equal(t, "ctx", seed[Context.Name()])
	assert.Equal(t, "", seed[FinalAnswer.Name()])
	assert.Equal(t, RiskLevel(""), seed[ComplianceRisk.Name()])
	assert.Equal(t, []search.Source{}, seed[search.Sources.Name()])
}
