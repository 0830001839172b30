package agent

import (
	"fmt"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/flow"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/tool"
)

// OutputDecoder converts the final model text into the value stored under
// the output key. A decoding error fails the run.
type OutputDecoder func(text string) (any, error)

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	Instruction        Instruction
	Description        string
	EnableStreaming    bool
	JSONResponse       bool
	IncludeContents    flow.IncludeContents
	OutputKey          string
	OutputDecoder      OutputDecoder
	MaxHistoryMessages int
	MaxToolRounds      int
	Tools              []tool.Tool
	// ExposeSubAgents offers every sub-agent to the model as an AgentTool.
	ExposeSubAgents bool
}

// ModelAgent answers with a language model, calling tools as requested.
// The final reply is written to OutputKey when set.
type ModelAgent struct {
	BaseAgent
	llm  model.Model
	opts ModelAgentOptions
}

// NewModelAgent creates a model-backed agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful legal assistant.", name)),
		IncludeContents:    flow.IncludeDefault,
		MaxHistoryMessages: 20,
		MaxToolRounds:      10,
		ExposeSubAgents:    true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{BaseAgent: NewBaseAgent(name), llm: llm, opts: opts}
	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	return a
}

// GetName implements flow.FlowAgent.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM implements flow.FlowAgent.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns the registered tools plus, when enabled, one AgentTool per
// sub-agent.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := tool.NewRegistry(a.opts.Tools...)

	if !a.opts.ExposeSubAgents {
		return tools
	}

	for _, child := range a.SubAgents() {
		if _, taken := tools[child.Name()]; taken {
			continue
		}

		tools[child.Name()] = tool.NewAgentTool(child, func(o *tool.AgentToolOptions) {
			if keyed, ok := child.(interface{ GetOutputKey() string }); ok {
				o.OutputKey = keyed.GetOutputKey()
			}
		})
	}

	return tools
}

// IsStreamingEnabled implements flow.FlowAgent.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.opts.EnableStreaming }

// IsJSONResponse implements flow.FlowAgent.
func (a *ModelAgent) IsJSONResponse() bool { return a.opts.JSONResponse }

// IncludeContents implements flow.FlowAgent.
func (a *ModelAgent) IncludeContents() flow.IncludeContents { return a.opts.IncludeContents }

// GetOutputKey returns the state slot receiving the final reply.
func (a *ModelAgent) GetOutputKey() string { return a.opts.OutputKey }

// MaxHistoryMessages implements flow.FlowAgent.
func (a *ModelAgent) MaxHistoryMessages() int { return a.opts.MaxHistoryMessages }

// ResolveInstructions implements flow.FlowAgent.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.opts.Instruction.Resolve(runCtx)
}

// HandleFinalResponse stages the (decoded) reply under the output key.
func (a *ModelAgent) HandleFinalResponse(runCtx *core.RunContext, text string) error {
	if a.opts.OutputKey == "" {
		return nil
	}

	var value any = text

	if a.opts.OutputDecoder != nil {
		decoded, err := a.opts.OutputDecoder(text)
		if err != nil {
			runCtx.LogError("agent.output.decode_failed", "agent", a.Name(), "key", a.opts.OutputKey, "error", err.Error())
			return fmt.Errorf("agent %s: decode %s: %w", a.Name(), a.opts.OutputKey, err)
		}
		value = decoded
	}

	runCtx.SetState(a.opts.OutputKey, value)

	return nil
}

// Run implements core.Agent by running the standard single-agent flow.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	fl := flow.NewSingleAgentFlow(a)
	fl.SetMaxRounds(a.opts.MaxToolRounds)

	if err := fl.Run(runCtx); err != nil {
		runCtx.LogError("agent.run.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("agent %s: %w", a.Name(), err)
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}
