package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	a2ago "github.com/a2aproject/a2a-go/a2a"

	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/blackboard"
	"github.com/hupe1980/legalmesh/core"
)

// Slots written by RemoteAgent.
var (
	RemoteAnswer    = blackboard.NewKey[string]("remote_answer")
	RemoteDocuments = blackboard.NewKey[[]string]("remote_documents")
)

var errNoTask = errors.New("stream ended without a task")

// RemoteAgentOptions configure a RemoteAgent.
type RemoteAgentOptions struct {
	Description string
	// Streaming consumes message/stream instead of message/send.
	Streaming bool
	// InputSlot names the state slot holding the query. The user content is
	// used when it is empty or unset.
	InputSlot string
}

// RemoteAgent delegates a turn to a remote A2A server. It sends the query,
// waits for the task to finish, and writes the text of the returned
// artifacts to remote_answer and their "documents" metadata to
// remote_documents.
type RemoteAgent struct {
	agent.BaseAgent
	client *Client
	opts   RemoteAgentOptions
}

// NewRemoteAgent creates a remote delegate named name.
func NewRemoteAgent(name string, client *Client, optFns ...func(o *RemoteAgentOptions)) *RemoteAgent {
	opts := RemoteAgentOptions{InputSlot: "user_query"}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &RemoteAgent{BaseAgent: agent.NewBaseAgent(name), client: client, opts: opts}
	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	return a
}

// Run implements core.Agent.
func (a *RemoteAgent) Run(runCtx *core.RunContext) error {
	query := runCtx.UserContent.Text()
	if a.opts.InputSlot != "" {
		if v, ok := runCtx.GetState(a.opts.InputSlot); ok {
			if s, _ := v.(string); strings.TrimSpace(s) != "" {
				query = s
			}
		}
	}

	card, err := a.client.Card(runCtx.Context)
	if err != nil {
		return fmt.Errorf("remote %s: %w", a.Name(), err)
	}

	runCtx.LogInfo("a2a.remote.send", "agent", a.Name(), "remote", card.Name, "streaming", a.opts.Streaming)

	msg := NewUserMessage(query)
	msg.ContextID = runCtx.SessionID
	params := &a2ago.MessageSendParams{Message: msg}

	var task *a2ago.Task

	if a.opts.Streaming && card.Capabilities.Streaming {
		task, err = a.stream(runCtx, params)
	} else {
		task, err = a.send(runCtx, params)
	}

	if err != nil {
		return fmt.Errorf("remote %s: %w", a.Name(), err)
	}

	if task.Status.State != a2ago.TaskStateCompleted {
		return fmt.Errorf("remote %s: task %s ended %s: %s", a.Name(), task.ID, task.Status.State, MessageText(task.Status.Message))
	}

	answer, docs := ExtractResult(task.Artifacts)

	RemoteAnswer.Set(runCtx, answer)
	RemoteDocuments.Set(runCtx, docs)

	runCtx.LogInfo("a2a.remote.completed", "agent", a.Name(), "task_id", string(task.ID), "documents", len(docs))

	return runCtx.EmitEvent(core.NewMessageEvent(runCtx.RunID, a.Name(), answer))
}

func (a *RemoteAgent) send(runCtx *core.RunContext, params *a2ago.MessageSendParams) (*a2ago.Task, error) {
	res, err := a.client.SendMessage(runCtx.Context, params)
	if err != nil {
		return nil, err
	}

	switch r := res.(type) {
	case *a2ago.Task:
		return r, nil
	case *a2ago.Message:
		return messageTask(r), nil
	}

	return nil, fmt.Errorf("unexpected %T result", res)
}

// stream folds stream events into a task snapshot until the stream ends.
func (a *RemoteAgent) stream(runCtx *core.RunContext, params *a2ago.MessageSendParams) (*a2ago.Task, error) {
	var task *a2ago.Task

	for ev, err := range a.client.SendMessageStream(runCtx.Context, params) {
		if err != nil {
			return nil, err
		}

		switch e := ev.(type) {
		case *a2ago.Task:
			task = e
		case *a2ago.TaskStatusUpdateEvent:
			if task == nil {
				task = &a2ago.Task{ID: e.TaskID, ContextID: e.ContextID}
			}
			task.Status = e.Status
			runCtx.LogDebug("a2a.remote.status", "agent", a.Name(), "state", string(e.Status.State))
		case *a2ago.TaskArtifactUpdateEvent:
			if task == nil {
				task = &a2ago.Task{ID: e.TaskID, ContextID: e.ContextID}
			}
			task.Artifacts = append(task.Artifacts, e.Artifact)
		case *a2ago.Message:
			task = messageTask(e)
		}
	}

	if task == nil {
		return nil, errNoTask
	}

	return task, nil
}

// messageTask wraps a direct message reply as a completed task.
func messageTask(msg *a2ago.Message) *a2ago.Task {
	return &a2ago.Task{
		ID:        msg.TaskID,
		ContextID: msg.ContextID,
		Status:    a2ago.TaskStatus{State: a2ago.TaskStateCompleted},
		Artifacts: []*a2ago.Artifact{{Name: ResponseArtifactName, Parts: msg.Parts}},
	}
}

// ExtractResult returns the joined content of the artifacts and the
// document paths listed in their "documents" metadata. Text parts are taken
// verbatim and data parts are rendered as JSON.
func ExtractResult(artifacts []*a2ago.Artifact) (string, []string) {
	var (
		texts []string
		docs  = []string{}
	)

	for _, art := range artifacts {
		if art == nil {
			continue
		}

		for _, p := range art.Parts {
			if s := partText(p); s != "" {
				texts = append(texts, s)
			}
		}

		switch v := art.Metadata["documents"].(type) {
		case []string:
			docs = append(docs, v...)
		case []any:
			for _, d := range v {
				if s, ok := d.(string); ok && s != "" {
					docs = append(docs, s)
				}
			}
		}
	}

	return strings.Join(texts, "\n"), docs
}

func partText(p a2ago.Part) string {
	switch v := p.(type) {
	case a2ago.TextPart:
		return v.Text
	case *a2ago.TextPart:
		return v.Text
	case a2ago.DataPart:
		return dataText(v.Data)
	case *a2ago.DataPart:
		return dataText(v.Data)
	}

	return ""
}

func dataText(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}

	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return string(b)
}
