package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/testutil"
	"github.com/hupe1980/legalmesh/model"
)

func TestInstructionsProcessor_PassesResolvedTextThrough(t *testing.T) {
	agent := &stubAgent{name: "formatter", instruction: "Draft:\nThe {{ .PartyName } shall pay."}
	rc, _ := testutil.NewRunContext(context.Background(), "q", map[string]any{"user_query": "sick days?"})

	req := model.Request{}
	require.NoError(t, NewInstructionsProcessor().ProcessRequest(rc, &req, agent))

	assert.Equal(t, "Draft:\nThe {{ .PartyName } shall pay.", req.Instructions)
}

func seedHistory(rc *core.RunContext) {
	prevUser := core.NewUserContentEvent("old-run", &core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "earlier question"}}})
	prevAnswer := core.NewMessageEvent("old-run", "formatter", "earlier answer")
	otherAgent := core.NewMessageEvent(rc.RunID, "classifier", `{"label":"SUMMARIZE"}`)
	own := core.NewMessageEvent(rc.RunID, "summarizer", "own earlier step")

	for _, ev := range []core.Event{prevUser, prevAnswer, otherAgent, own} {
		rc.Session.AddEvent(ev)
	}
}

func TestContentsProcessor_Default(t *testing.T) {
	rc, _ := testutil.NewRunContext(context.Background(), "current question", nil)
	seedHistory(rc)

	req := model.Request{}
	agent := &stubAgent{name: "summarizer", include: IncludeDefault}
	require.NoError(t, NewContentsProcessor().ProcessRequest(rc, &req, agent))

	texts := make([]string, 0, len(req.Contents))
	for _, c := range req.Contents {
		texts = append(texts, c.Text())
	}

	assert.Equal(t, []string{"earlier question", "earlier answer", "current question", "own earlier step"}, texts)
}

func TestContentsProcessor_None(t *testing.T) {
	rc, _ := testutil.NewRunContext(context.Background(), "current question", nil)
	seedHistory(rc)

	req := model.Request{}
	agent := &stubAgent{name: "summarizer", include: IncludeNone}
	require.NoError(t, NewContentsProcessor().ProcessRequest(rc, &req, agent))

	require.Len(t, req.Contents, 2)
	assert.Equal(t, "current question", req.Contents[0].Text())
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "own earlier step", req.Contents[1].Text())
}
