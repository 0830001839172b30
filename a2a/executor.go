package a2a

import (
	"context"
	"fmt"
	"strings"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/hupe1980/legalmesh/blackboard"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/runner"
)

// ResponseArtifactName names the artifact holding the agent's answer.
const ResponseArtifactName = "legal_response"

// ExecutorOptions configure a RunnerExecutor.
type ExecutorOptions struct {
	// Documents is the slot listing documents the run touched. Its value is
	// published as the "documents" metadata of the response artifact.
	Documents blackboard.Key[[]string]
	// InputSlot receives the user text before the run starts.
	InputSlot string
	Logger    logging.Logger
}

// RunnerExecutor runs a runner's root agent for each message. The task's
// context id is used as the session id, so follow-up messages share state.
type RunnerExecutor struct {
	runner *runner.Runner
	opts   ExecutorOptions
}

var _ a2asrv.AgentExecutor = (*RunnerExecutor)(nil)

// NewRunnerExecutor creates an executor over r.
func NewRunnerExecutor(r *runner.Runner, optFns ...func(o *ExecutorOptions)) *RunnerExecutor {
	opts := ExecutorOptions{
		InputSlot: "user_query",
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &RunnerExecutor{runner: r, opts: opts}
}

// Execute implements a2asrv.AgentExecutor. It publishes the task, a working
// status, the response artifact and a final completed status. A failed run
// ends the task in the failed state with the error as status message.
func (e *RunnerExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	query := strings.TrimSpace(MessageText(reqCtx.Message))
	if query == "" {
		return fmt.Errorf("%w: message must contain a non-empty text part", a2ago.ErrInvalidParams)
	}

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, a2ago.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
	}

	if err := queue.Write(ctx, a2ago.NewStatusUpdateEvent(reqCtx, a2ago.TaskStateWorking, nil)); err != nil {
		return err
	}

	answer, docs, err := e.run(ctx, reqCtx.ContextID, query)
	if err != nil {
		e.opts.Logger.Error("a2a.task.failed", "task_id", string(reqCtx.TaskID), "error", err.Error())

		reason := a2ago.NewMessage(a2ago.MessageRoleAgent, a2ago.TextPart{Text: err.Error()})
		reason.TaskID = reqCtx.TaskID
		reason.ContextID = reqCtx.ContextID

		return e.finish(ctx, reqCtx, queue, a2ago.TaskStateFailed, reason)
	}

	artifact := a2ago.NewArtifactEvent(reqCtx, a2ago.TextPart{Text: answer})
	artifact.Artifact.Name = ResponseArtifactName
	artifact.Artifact.Metadata = map[string]any{"documents": docs}
	artifact.LastChunk = true

	if err := queue.Write(ctx, artifact); err != nil {
		return err
	}

	e.opts.Logger.Info("a2a.task.completed", "task_id", string(reqCtx.TaskID), "documents", len(docs))

	return e.finish(ctx, reqCtx, queue, a2ago.TaskStateCompleted, nil)
}

func (e *RunnerExecutor) finish(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, state a2ago.TaskState, msg *a2ago.Message) error {
	ev := a2ago.NewStatusUpdateEvent(reqCtx, state, msg)
	ev.Final = true

	return queue.Write(ctx, ev)
}

func (e *RunnerExecutor) run(ctx context.Context, sessionID, query string) (string, []string, error) {
	seed := map[string]any{}
	if e.opts.InputSlot != "" {
		seed[e.opts.InputSlot] = query
	}

	if name := e.opts.Documents.Name(); name != "" {
		seed[name] = []string{}
	}

	_, events, errs, err := e.runner.RunWithState(ctx, sessionID, core.NewTextContent("user", query), seed)
	if err != nil {
		return "", nil, err
	}

	collected, err := runner.Collect(events, errs)
	if err != nil {
		return "", nil, err
	}

	answer := runner.FinalText(collected, e.runner.Agent().Name())

	docs := []string{}

	if e.opts.Documents.Name() != "" {
		sess, err := e.runner.SessionStore().Get(ctx, sessionID)
		if err != nil {
			return "", nil, fmt.Errorf("load session: %w", err)
		}

		if v := e.opts.Documents.Value(sess); v != nil {
			docs = v
		}
	}

	return answer, docs, nil
}

// Cancel implements a2asrv.AgentExecutor. Runs cannot be cancelled.
func (e *RunnerExecutor) Cancel(_ context.Context, reqCtx *a2asrv.RequestContext, _ eventqueue.Queue) error {
	e.opts.Logger.Warn("a2a.task.cancel_unsupported", "task_id", string(reqCtx.TaskID))
	return a2ago.ErrUnsupportedOperation
}

// MessageText joins the text parts of msg.
func MessageText(msg *a2ago.Message) string {
	if msg == nil {
		return ""
	}

	texts := make([]string, 0, len(msg.Parts))

	for _, p := range msg.Parts {
		if s := partText(p); s != "" {
			texts = append(texts, s)
		}
	}

	return strings.Join(texts, "\n")
}
