package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/a2a"
	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/testutil"
	"github.com/hupe1980/legalmesh/legal"
	"github.com/hupe1980/legalmesh/legaltools"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/runner"
	"github.com/hupe1980/legalmesh/search"
)

const groundedContext = "Employment agreement governed by California law, signed 2025-08-01, 40 hours sick leave."

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string) ([]search.Result, error) { return nil, nil }

func workflowOptions(o *legal.Options) { o.Searcher = stubSearcher{} }

func newRemote(t *testing.T, replies ...model.Response) core.Agent {
	t.Helper()

	delegate := agent.NewModelAgent("legal_delegate", model.NewScriptedModel("remote", replies...), func(o *agent.ModelAgentOptions) {
		o.Tools = legaltools.New(nil, func(o *legaltools.Options) { o.OutputDir = t.TempDir() }).Tools()
	})

	exec := a2a.NewRunnerExecutor(runner.New(delegate), func(o *a2a.ExecutorOptions) {
		o.Documents = legaltools.DocumentsUsed
	})

	ts := httptest.NewServer(a2a.NewServer(a2a.LegalAssistantCard("localhost", 10001), exec))
	t.Cleanup(ts.Close)

	return a2a.NewRemoteAgent(RemoteDelegateName, a2a.NewClient(ts.URL))
}

func decodeReport(t *testing.T, rc *core.RunContext) Report {
	t.Helper()

	var r Report
	require.NoError(t, json.Unmarshal([]byte(FinalReport.Value(rc)), &r))

	return r
}

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan("```json\n{\"legal_issue\":\" Deadline \",\"delegates\":[\"SDK\",\"oracle\",\"remote\",\"sdk\"],\"plan\":\"ask both\"}\n```")
	require.NoError(t, err)

	assert.Equal(t, "Deadline", p.LegalIssue)
	assert.Equal(t, []string{DelegateRemote, DelegateSDK}, p.Delegates)
	assert.Equal(t, []string{}, p.AdjustedGoals)

	p, err = ParsePlan(`{"delegates":["oracle"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{DelegateRemote, DelegateSDK}, p.Delegates)

	_, err = ParsePlan("no plan today")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	report := Merge(MergeInput{
		Query: "What are the sick days policies in this contract?",
		Plan:  Plan{LegalIssue: "Sick leave entitlement", AdjustedGoals: []string{"find policy"}, Plan: "Read the contract, then check the statute."},
		Remote: RemoteOutcome{
			Used:      true,
			Answer:    "Employees get 5 sick days.\n\nSee https://example.com/handbook.",
			Documents: []string{"/docs/contract.pdf"},
		},
		SDK: SDKOutcome{
			Used:        true,
			FinalAnswer: "Summary:\nCalifornia requires 40 hours.\n\nSources:\n- California Paid Sick Leave (https://www.dir.ca.gov)\n",
			Sources: []search.Source{
				{Title: "California Paid Sick Leave", URL: "https://www.dir.ca.gov"},
				{Title: "Handbook", URL: "https://example.com/handbook"},
			},
		},
	})

	assert.Equal(t, "What are the sick days policies in this contract?", report.OriginalQuery)
	assert.Equal(t, "Read the contract, then check the statute.", report.Plan)
	assert.Equal(t, []string{"Employees get 5 sick days.", "See https://example.com/handbook."}, report.DataSummary.Highlights)
	assert.Equal(t, []string{"/docs/contract.pdf"}, report.DataSummary.DocumentsUsed)
	assert.Equal(t, []string{
		"California Paid Sick Leave (https://www.dir.ca.gov)",
		"California Paid Sick Leave",
		"Handbook",
	}, report.DataSummary.Citations)
	assert.Equal(t, []Source{
		{Title: "California Paid Sick Leave", URL: "https://www.dir.ca.gov"},
		{Title: "Handbook", URL: "https://example.com/handbook"},
	}, report.Sources)
}

func TestMerge_NoDocuments(t *testing.T) {
	report := Merge(MergeInput{
		Query:  "q",
		Remote: RemoteOutcome{Used: true, Err: errors.New("unreachable"), Answer: "ignored"},
		SDK:    SDKOutcome{Used: true, FinalAnswer: "Summary:\nnothing"},
	})

	assert.Equal(t, []string{NoDocumentsHighlight}, report.DataSummary.Highlights)
	assert.Equal(t, []string{}, report.DataSummary.DocumentsUsed)
	assert.Equal(t, []string{}, report.DataSummary.Citations)
	assert.Equal(t, []Source{}, report.Sources)

	out, err := report.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `"sources": []`)
}

func TestMerge_ComplianceRiskHighlight(t *testing.T) {
	report := Merge(MergeInput{
		Query: "Is 3 sick days compliant?",
		SDK:   SDKOutcome{Used: true, FinalAnswer: "Compliance Report", Risk: legal.RiskHigh},
	})

	assert.Equal(t, []string{NoDocumentsHighlight, "Compliance risk: High"}, report.DataSummary.Highlights)

	failed := Merge(MergeInput{SDK: SDKOutcome{Used: true, Err: errors.New("boom"), Risk: legal.RiskHigh}})
	assert.Equal(t, []string{NoDocumentsHighlight}, failed.DataSummary.Highlights)
}

func TestOrchestrator_RemoteOnlyFallsBackToWorkflow(t *testing.T) {
	remote := newRemote(t,
		model.CallReply("call-1", legaltools.AddDaysName, `{"start_date":"2025-08-01","day_count":"45"}`),
		model.TextReply("The deadline is 2025-09-15."),
	)

	llm := model.NewScriptedModel("test",
		model.TextReply(`{"legal_issue":"Deadline calculation","delegates":["remote"],"adjusted_goals":["compute the deadline"],"plan":"Ask the internal delegate to add the days."}`),
		model.TextReply(`{"label":"SUMMARIZE","needs_context":false,"notes":"deadline"}`),
		model.TextReply("The deadline falls 45 days after signature."),
		model.TextReply("Summary:\nThe deadline falls 45 days after signature."),
	)

	var calls []string

	g, err := New(llm, func(o *Options) {
		o.Remote = remote
		o.Workflow = []func(o *legal.Options){workflowOptions}
		o.OnDelegate = func(d string, err error) {
			assert.NoError(t, err)
			calls = append(calls, d)
		}
	})
	require.NoError(t, err)

	rc, events, err := testutil.RunAgent(context.Background(), g.Root(), "Add 45 days to 2025-08-01", map[string]any{
		"user_query": "Add 45 days to 2025-08-01",
		"context":    groundedContext,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{RemoteDelegateName, legal.CoordinatorName}, calls)
	assert.Equal(t, 0, llm.Remaining())

	report := decodeReport(t, rc)
	assert.Equal(t, "Deadline calculation", report.LegalIssue)
	assert.Equal(t, "Ask the internal delegate to add the days.", report.Plan)
	assert.Equal(t, []string{NoDocumentsHighlight, "The deadline is 2025-09-15."}, report.DataSummary.Highlights)
	assert.Equal(t, []string{}, report.DataSummary.DocumentsUsed)
	assert.Contains(t, FinalReport.Value(rc), "2025-09-15")

	last := events[len(events)-1]
	assert.Equal(t, OrchestratorName, last.Author)
	assert.Equal(t, FinalReport.Value(rc), last.Content.Text())
}

func TestOrchestrator_GeneratedDocumentIsNotASource(t *testing.T) {
	remote := newRemote(t,
		model.CallReply("call-1", legaltools.FormatAsDocumentName, `{"content":"Sick leave: 40 hours.","filename":"memo.docx"}`),
		model.TextReply("Saved the memo."),
	)

	llm := model.NewScriptedModel("test",
		model.TextReply(`{"legal_issue":"Memo","delegates":["remote"],"plan":"Have the delegate write the memo."}`),
		model.TextReply(`{"label":"SUMMARIZE","needs_context":false}`),
		model.TextReply("40 hours of sick leave."),
		model.TextReply("Summary:\n40 hours of sick leave."),
	)

	var calls []string

	g, err := New(llm, func(o *Options) {
		o.Remote = remote
		o.Workflow = []func(o *legal.Options){workflowOptions}
		o.OnDelegate = func(d string, _ error) { calls = append(calls, d) }
	})
	require.NoError(t, err)

	rc, _, err := testutil.RunAgent(context.Background(), g.Root(), "Write a sick leave memo", map[string]any{
		"user_query": "Write a sick leave memo",
		"context":    groundedContext,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{RemoteDelegateName, legal.CoordinatorName}, calls)
	assert.Empty(t, a2a.RemoteDocuments.Value(rc))

	report := decodeReport(t, rc)
	assert.Equal(t, []string{NoDocumentsHighlight, "Saved the memo."}, report.DataSummary.Highlights)
	assert.Equal(t, []string{}, report.DataSummary.DocumentsUsed)
	assert.Equal(t, 0, llm.Remaining())
}

func TestOrchestrator_PlannerFailureUsesFallbackPlan(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply("I think both would help."),
		model.TextReply(`{"label":"SUMMARIZE","needs_context":false}`),
		model.TextReply("40 hours of sick leave."),
		model.TextReply("Summary:\n40 hours of sick leave.\n\nSources:\n- Labor Code 246 (https://leginfo.legislature.ca.gov)"),
	)

	g, err := New(llm, func(o *Options) { o.Workflow = []func(o *legal.Options){workflowOptions} })
	require.NoError(t, err)

	rc, _, err := testutil.RunAgent(context.Background(), g.Root(), "Summarize my sick leave", map[string]any{
		"user_query": "Summarize my sick leave",
		"context":    groundedContext,
	})
	require.NoError(t, err)

	report := decodeReport(t, rc)
	assert.Equal(t, FallbackPlan("Summarize my sick leave").Plan, report.Plan)
	assert.Equal(t, []string{NoDocumentsHighlight}, report.DataSummary.Highlights)
	assert.Equal(t, []string{"Labor Code 246 (https://leginfo.legislature.ca.gov)"}, report.DataSummary.Citations)
}

func TestOrchestrator_FailsWhenEveryDelegateFails(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.TextReply(`{"legal_issue":"x","delegates":["sdk"],"plan":"research"}`),
	)

	g, err := New(llm, func(o *Options) { o.Workflow = []func(o *legal.Options){workflowOptions} })
	require.NoError(t, err)

	rc, _, err := testutil.RunAgent(context.Background(), g.Root(), "Summarize", map[string]any{"user_query": "Summarize"})
	require.ErrorIs(t, err, ErrAllDelegatesFailed)
	assert.ErrorIs(t, err, model.ErrScriptExhausted)

	_, ok := rc.GetState(FinalReport.Name())
	assert.False(t, ok)
}

func TestNew_GraphShape(t *testing.T) {
	g, err := New(model.NewScriptedModel("test"), func(o *Options) {
		o.Remote = a2a.NewRemoteAgent(RemoteDelegateName, a2a.NewClient("http://localhost:10001"))
		o.Workflow = []func(o *legal.Options){workflowOptions}
	})
	require.NoError(t, err)

	assert.Equal(t, OrchestratorName, g.Root().Name())
	assert.Equal(t, OrchestratorName, g.Order()[0])

	writer, ok := g.Writer(FinalReport.Name())
	require.True(t, ok)
	assert.Equal(t, OrchestratorName, writer)

	writer, ok = g.Writer(a2a.RemoteAnswer.Name())
	require.True(t, ok)
	assert.Equal(t, RemoteDelegateName, writer)

	_, err = New(model.NewScriptedModel("test"))
	assert.Error(t, err)
}
