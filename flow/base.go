package flow

import (
	"fmt"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/model"
)

// BaseFlow implements the request -> model -> tool loop with pluggable
// processors. It runs synchronously; the owning agent returns when Run does.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
	maxRounds          int
}

// NewBaseFlow creates a flow with no processors and a sequential executor.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:     agent,
		executor:  NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 1, PreserveOrder: true}),
		maxRounds: 10,
	}
}

// AddRequestProcessor appends a request processor; registration order is execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a processor run on every model response.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the tool executor.
func (f *BaseFlow) SetFunctionExecutor(e FunctionExecutor) { f.executor = e }

// SetMaxRounds bounds the number of model calls per Run.
func (f *BaseFlow) SetMaxRounds(n int) {
	if n > 0 {
		f.maxRounds = n
	}
}

// Run implements Flow.
func (f *BaseFlow) Run(runCtx *core.RunContext) error {
	for round := 0; round < f.maxRounds; round++ {
		done, err := f.runOnce(runCtx)
		if err != nil {
			return err
		}

		if done {
			return nil
		}
	}

	return fmt.Errorf("%w: agent %s, %d rounds", ErrMaxIterations, f.agent.GetName(), f.maxRounds)
}

// runOnce performs one model call and executes any requested tools. It
// reports true once the model produced a final answer.
func (f *BaseFlow) runOnce(runCtx *core.RunContext) (bool, error) {
	name := f.agent.GetName()

	if err := runCtx.Limiter.Increment(); err != nil {
		return false, err
	}

	req, err := f.buildRequest(runCtx)
	if err != nil {
		return false, err
	}

	runCtx.LogDebug("flow.model.request", "agent", name, "contents", len(req.Contents), "tools", len(req.Tools))

	respCh, errCh := f.agent.GetLLM().Generate(runCtx.Context, req)

	var (
		final    model.Response
		hasFinal bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-runCtx.Done():
			return false, runCtx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			for _, p := range f.responseProcessors {
				if err := p.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					return false, fmt.Errorf("response processor %s: %w", p.Name(), err)
				}
			}

			if resp.Partial {
				ev := core.NewEvent(runCtx.RunID, name)
				content := resp.Content
				ev.Content = &content
				ev.Partial = true

				if err := runCtx.EmitEvent(ev); err != nil {
					return false, err
				}

				continue
			}

			final, hasFinal = resp, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				runCtx.LogError("flow.model.error", "agent", name, "error", err.Error())
				return false, fmt.Errorf("model %s: %w", f.agent.GetLLM().Info().Name, err)
			}
		}
	}

	if !hasFinal {
		return false, model.ErrNoResponse
	}

	ev := core.NewEvent(runCtx.RunID, name)
	content := final.Content
	if content.Role == "" {
		content.Role = "assistant"
	}
	ev.Content = &content

	calls := ev.GetFunctionCalls()
	if len(calls) == 0 {
		ev.TurnComplete = true

		if err := f.agent.HandleFinalResponse(runCtx, content.Text()); err != nil {
			return false, err
		}
	}

	if err := f.emit(runCtx, ev); err != nil {
		return false, err
	}

	if len(calls) == 0 {
		return true, nil
	}

	var emitErr error

	f.executor.Execute(runCtx, f.agent, f.agent.GetTools(), calls, func(resp core.Event) error {
		if err := f.emit(runCtx, resp); err != nil {
			emitErr = err
			return err
		}
		return nil
	})

	return false, emitErr
}

func (f *BaseFlow) buildRequest(runCtx *core.RunContext) (model.Request, error) {
	req := model.Request{
		Stream:       f.agent.IsStreamingEnabled(),
		JSONResponse: f.agent.IsJSONResponse(),
	}

	for _, p := range f.requestProcessors {
		if err := p.ProcessRequest(runCtx, &req, f.agent); err != nil {
			return model.Request{}, fmt.Errorf("request processor %s: %w", p.Name(), err)
		}
	}

	for _, t := range f.agent.GetTools() {
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return req, nil
}

// emit sends ev and waits for the runner to persist it.
func (f *BaseFlow) emit(runCtx *core.RunContext, ev core.Event) error {
	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}

	return runCtx.WaitForResume()
}
