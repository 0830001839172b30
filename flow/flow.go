// Package flow drives one agent's conversation with its model: build the
// request, call the model, execute requested tools, and repeat until the
// model gives a final answer.
package flow

import (
	"errors"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/tool"
)

// ErrMaxIterations is returned when the model keeps requesting tools past
// the configured number of rounds.
var ErrMaxIterations = errors.New("flow exceeded max tool rounds")

// IncludeContents selects which events become model contents.
type IncludeContents string

const (
	// IncludeDefault sends prior turns of the session followed by the current
	// request and this agent's own events in the run.
	IncludeDefault IncludeContents = "default"
	// IncludeNone sends only the current request plus this agent's own events
	// in the run. Agents reading their inputs from state use it.
	IncludeNone IncludeContents = "none"
)

// Flow runs an agent to completion on the calling goroutine. Events are
// emitted through the RunContext.
type Flow interface {
	Run(runCtx *core.RunContext) error
}

// FlowAgent is the view of an agent a flow needs.
type FlowAgent interface {
	GetName() string
	GetLLM() model.Model
	ResolveInstructions(runCtx *core.RunContext) (string, error)
	GetTools() map[string]tool.Tool
	IsStreamingEnabled() bool
	IsJSONResponse() bool
	IncludeContents() IncludeContents
	MaxHistoryMessages() int
	// HandleFinalResponse is called with the text of the final model reply
	// before it is emitted, so state writes travel with the final event.
	HandleFinalResponse(runCtx *core.RunContext, text string) error
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes each response received from the LLM.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
