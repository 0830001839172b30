package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/testutil"
	"github.com/hupe1980/legalmesh/legaltools"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/runner"
)

func newDelegateServer(t *testing.T, llm model.Model) (*httptest.Server, *Server) {
	t.Helper()

	delegate := agent.NewModelAgent("legal_delegate", llm, func(o *agent.ModelAgentOptions) {
		o.Tools = legaltools.New(nil).Tools()
	})

	exec := NewRunnerExecutor(runner.New(delegate), func(o *ExecutorOptions) {
		o.Documents = legaltools.DocumentsUsed
	})

	srv := NewServer(LegalAssistantCard("localhost", 10001), exec)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return ts, srv
}

func addDaysScript() *model.ScriptedModel {
	return model.NewScriptedModel("test",
		model.CallReply("call-1", legaltools.AddDaysName, `{"start_date":"2025-08-01","day_count":"45"}`),
		model.TextReply("The deadline is 2025-09-15."),
	)
}

func toolResponses(reqs []model.Request) []map[string]any {
	var out []map[string]any
	for _, r := range reqs {
		for _, c := range r.Contents {
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok {
					out = append(out, core.ResponseMap(fr.FunctionResponse.Response))
				}
			}
		}
	}
	return out
}

func TestServer_AgentCard(t *testing.T) {
	ts, srv := newDelegateServer(t, model.NewScriptedModel("test"))

	card, err := NewClient(ts.URL + WellKnownCardPath).Card(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Legal Assistant Agent", card.Name)
	assert.Equal(t, "http://localhost:10001/", card.URL)
	assert.Equal(t, "1.0.0", card.Version)
	assert.Equal(t, a2ago.TransportProtocolJSONRPC, card.PreferredTransport)
	assert.True(t, card.Capabilities.Streaming)
	assert.False(t, card.Capabilities.PushNotifications)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "legal_advice", card.Skills[0].ID)
	assert.Equal(t, []string{"legal", "compliance", "guidance"}, card.Skills[0].Tags)
	assert.Equal(t, card.Name, srv.Card().Name)

	resp, err := http.Get(ts.URL + LegacyCardPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	var legacy a2ago.AgentCard
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&legacy))
	assert.Equal(t, "Legal Assistant Agent", legacy.Name)
}

func TestNewClient_AcceptsCardURLs(t *testing.T) {
	assert.Equal(t, "http://localhost:10001", NewClient("http://localhost:10001"+WellKnownCardPath).BaseURL())
	assert.Equal(t, "http://localhost:10001", NewClient("http://localhost:10001"+LegacyCardPath).BaseURL())
	assert.Equal(t, "http://localhost:10001", NewClient("http://localhost:10001/").BaseURL())
}

func TestRemoteAgent_AddDaysEndToEnd(t *testing.T) {
	llm := addDaysScript()
	ts, _ := newDelegateServer(t, llm)

	remote := NewRemoteAgent("remote_delegate", NewClient(ts.URL))

	rc, events, err := testutil.RunAgent(context.Background(), remote, "Add 45 days to 2025-08-01", map[string]any{
		"user_query": "Add 45 days to 2025-08-01",
	})
	require.NoError(t, err)

	assert.Contains(t, RemoteAnswer.Value(rc), "2025-09-15")
	assert.Equal(t, []string{}, RemoteDocuments.Value(rc))
	require.Len(t, events, 1)
	assert.Equal(t, "remote_delegate", events[0].Author)

	responses := toolResponses(llm.Requests())
	require.Len(t, responses, 1)
	assert.Equal(t, "success", responses[0]["status"])
	assert.Equal(t, "2025-09-15", responses[0]["result_date"])
}

func TestRemoteAgent_Streaming(t *testing.T) {
	ts, _ := newDelegateServer(t, addDaysScript())

	remote := NewRemoteAgent("remote_delegate", NewClient(ts.URL), func(o *RemoteAgentOptions) { o.Streaming = true })

	rc, _, err := testutil.RunAgent(context.Background(), remote, "Add 45 days to 2025-08-01", nil)
	require.NoError(t, err)
	assert.Equal(t, "The deadline is 2025-09-15.", RemoteAnswer.Value(rc))
}

func TestRemoteAgent_FailedTaskIsAnError(t *testing.T) {
	ts, _ := newDelegateServer(t, model.NewScriptedModel("test"))

	remote := NewRemoteAgent("remote_delegate", NewClient(ts.URL))

	rc, events, err := testutil.RunAgent(context.Background(), remote, "Add 45 days to 2025-08-01", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Empty(t, RemoteAnswer.Value(rc))
	assert.Empty(t, events)
}

func TestClient_StreamEventOrder(t *testing.T) {
	ts, _ := newDelegateServer(t, model.NewScriptedModel("test", model.TextReply("Texas is supported.")))

	var events []a2ago.Event
	for ev, err := range NewClient(ts.URL).SendMessageStream(context.Background(), &a2ago.MessageSendParams{Message: NewUserMessage("Is Texas supported?")}) {
		require.NoError(t, err)
		events = append(events, ev)
	}

	require.NotEmpty(t, events)

	_, ok := events[0].(*a2ago.Task)
	assert.True(t, ok, "first event is the submitted task")

	var artifacts []*a2ago.Artifact
	for _, ev := range events {
		if a, ok := ev.(*a2ago.TaskArtifactUpdateEvent); ok {
			artifacts = append(artifacts, a.Artifact)
		}
	}

	require.Len(t, artifacts, 1)
	assert.Equal(t, ResponseArtifactName, artifacts[0].Name)

	final, ok := events[len(events)-1].(*a2ago.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, final.Final)
	assert.Equal(t, a2ago.TaskStateCompleted, final.Status.State)
}

func TestClient_SendMessageAndGetTask(t *testing.T) {
	ts, _ := newDelegateServer(t, model.NewScriptedModel("test", model.TextReply("California is supported.")))
	client := NewClient(ts.URL)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	res, err := client.SendMessage(ctx, &a2ago.MessageSendParams{Message: NewUserMessage("Is California supported?")})
	require.NoError(t, err)

	task, ok := res.(*a2ago.Task)
	require.True(t, ok)
	assert.Equal(t, a2ago.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, ResponseArtifactName, task.Artifacts[0].Name)

	answer, docs := ExtractResult(task.Artifacts)
	assert.Equal(t, "California is supported.", answer)
	assert.Equal(t, []string{}, docs)

	got, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.ContextID, got.ContextID)

	_, err = client.GetTask(ctx, "missing")
	assert.Error(t, err)
}

func TestClient_Cancel(t *testing.T) {
	ts, _ := newDelegateServer(t, model.NewScriptedModel("test", model.TextReply("done")))
	client := NewClient(ts.URL)
	ctx := context.Background()

	res, err := client.SendMessage(ctx, &a2ago.MessageSendParams{Message: NewUserMessage("hello")})
	require.NoError(t, err)

	task, ok := res.(*a2ago.Task)
	require.True(t, ok)

	_, err = client.CancelTask(ctx, task.ID)
	assert.Error(t, err)

	_, err = client.CancelTask(ctx, "missing")
	assert.Error(t, err)
}

func TestClient_EmptyMessageIsRejected(t *testing.T) {
	llm := model.NewScriptedModel("test")
	ts, _ := newDelegateServer(t, llm)

	_, err := NewClient(ts.URL).SendMessage(context.Background(), &a2ago.MessageSendParams{Message: NewUserMessage("  ")})
	assert.Error(t, err)
	assert.Empty(t, llm.Requests())
}

func TestServer_ExecutionFailure(t *testing.T) {
	ts, _ := newDelegateServer(t, model.NewScriptedModel("test"))
	client := NewClient(ts.URL)

	res, err := client.SendMessage(context.Background(), &a2ago.MessageSendParams{Message: NewUserMessage("Add 45 days to 2025-08-01")})
	require.NoError(t, err)

	task, ok := res.(*a2ago.Task)
	require.True(t, ok)
	assert.Equal(t, a2ago.TaskStateFailed, task.Status.State)
	assert.Contains(t, MessageText(task.Status.Message), model.ErrScriptExhausted.Error())
	assert.Empty(t, task.Artifacts)

	var last a2ago.Event
	for ev, err := range client.SendMessageStream(context.Background(), &a2ago.MessageSendParams{Message: NewUserMessage("again")}) {
		require.NoError(t, err)
		last = ev
	}

	status, ok := last.(*a2ago.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2ago.TaskStateFailed, status.Status.State)
	assert.True(t, status.Final)
}

func TestExtractResult(t *testing.T) {
	answer, docs := ExtractResult([]*a2ago.Artifact{
		{
			Parts: a2ago.ContentParts{
				a2ago.TextPart{Text: "Sick leave: 5 days."},
				a2ago.DataPart{Data: map[string]any{"status": "success"}},
			},
			Metadata: map[string]any{"documents": []any{"/docs/contract.pdf", ""}},
		},
		nil,
		{
			Parts:    a2ago.ContentParts{&a2ago.TextPart{Text: "Notice: 30 days."}},
			Metadata: map[string]any{"documents": []string{"/docs/handbook.pdf"}},
		},
	})

	assert.Equal(t, "Sick leave: 5 days.\n{\"status\":\"success\"}\nNotice: 30 days.", answer)
	assert.Equal(t, []string{"/docs/contract.pdf", "/docs/handbook.pdf"}, docs)
}

func TestMessageText(t *testing.T) {
	msg := a2ago.NewMessage(a2ago.MessageRoleUser, a2ago.TextPart{Text: "Add 45 days"}, &a2ago.TextPart{Text: "to 2025-08-01"})

	assert.Equal(t, "Add 45 days\nto 2025-08-01", MessageText(msg))
	assert.Empty(t, MessageText(nil))
}
