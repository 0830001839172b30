package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/session"
)

type failingAgent struct{ agent.BaseAgent }

func (f *failingAgent) Run(*core.RunContext) error { return errors.New("boom") }

type blockingAgent struct{ agent.BaseAgent }

func (b *blockingAgent) Run(rc *core.RunContext) error {
	<-rc.Done()
	return rc.Err()
}

type gateAgent struct {
	agent.BaseAgent
	started chan string
	release chan struct{}
}

func (g *gateAgent) Run(rc *core.RunContext) error {
	g.started <- rc.SessionID

	select {
	case <-g.release:
	case <-rc.Done():
		return rc.Err()
	}

	return rc.EmitEvent(core.NewMessageEvent(rc.RunID, g.Name(), "done "+rc.SessionID))
}

func TestRunner_PersistsEventsAndState(t *testing.T) {
	store := session.NewInMemoryStore()
	llm := model.NewScriptedModel("s", model.TextReply("The deadline is 2025-09-15."))
	root := agent.NewModelAgent("formatter", llm, func(o *agent.ModelAgentOptions) {
		o.OutputKey = "final_answer"
	})

	r := New(root, func(o *Options) { o.SessionStore = store })

	_, events, errs, err := r.RunWithState(context.Background(), "s1", core.NewTextContent("user", "Add 45 days to 2025-08-01"), map[string]any{
		"user_query": "Add 45 days to 2025-08-01",
	})
	require.NoError(t, err)

	got, err := Collect(events, errs)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "The deadline is 2025-09-15.", FinalText(got, "formatter"))

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)

	answer, ok := sess.GetState("final_answer")
	require.True(t, ok)
	assert.Equal(t, "The deadline is 2025-09-15.", answer)

	query, _ := sess.GetState("user_query")
	assert.Equal(t, "Add 45 days to 2025-08-01", query)

	history := sess.GetEvents()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "formatter", history[1].Author)
}

func TestRunner_AgentError(t *testing.T) {
	r := New(&failingAgent{BaseAgent: agent.NewBaseAgent("broken")})

	_, events, errs, err := r.Run(context.Background(), "s1", core.NewTextContent("user", "q"))
	require.NoError(t, err)

	_, err = Collect(events, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunner_Cancel(t *testing.T) {
	r := New(&blockingAgent{BaseAgent: agent.NewBaseAgent("slow")})

	runID, events, errs, err := r.Run(context.Background(), "s1", core.NewTextContent("user", "q"))
	require.NoError(t, err)

	require.NoError(t, r.Cancel(runID))

	_, err = Collect(events, errs)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, r.Cancel("unknown"), ErrRunNotFound)
}

func TestRunner_ConcurrentSessions(t *testing.T) {
	root := &gateAgent{BaseAgent: agent.NewBaseAgent("formatter"), started: make(chan string, 2), release: make(chan struct{})}
	r := New(root)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, events1, errs1, err := r.Run(ctx, "s1", core.NewTextContent("user", "first"))
	require.NoError(t, err)

	_, events2, errs2, err := r.Run(ctx, "s2", core.NewTextContent("user", "second"))
	require.NoError(t, err)

	var started []string
	for range 2 {
		select {
		case id := <-root.started:
			started = append(started, id)
		case <-ctx.Done():
			t.Fatal("both runs should be in flight at once")
		}
	}

	assert.ElementsMatch(t, []string{"s1", "s2"}, started)

	close(root.release)

	got1, err := Collect(events1, errs1)
	require.NoError(t, err)
	assert.Equal(t, "done s1", FinalText(got1, "formatter"))

	got2, err := Collect(events2, errs2)
	require.NoError(t, err)
	assert.Equal(t, "done s2", FinalText(got2, "formatter"))
	assert.Error(t, root.Stop(nil))
}

func TestFinalText_SkipsUserAndOtherAuthors(t *testing.T) {
	events := []core.Event{
		core.NewMessageEvent("r", "search", "sources"),
		core.NewMessageEvent("r", "formatter", "answer"),
		core.NewUserContentEvent("r", &core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "q"}}}),
	}

	assert.Equal(t, "answer", FinalText(events, ""))
	assert.Equal(t, "sources", FinalText(events, "search"))
	assert.Empty(t, FinalText(events, "compliance"))
}
