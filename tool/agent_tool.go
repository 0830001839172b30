package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/legalmesh/core"
)

// AgentToolOptions configures an AgentTool.
type AgentToolOptions struct {
	// Description overrides the wrapped agent's description.
	Description string
	// OutputKey is the state slot holding the agent's answer. When empty the
	// text of the agent's last final event is returned instead.
	OutputKey string
}

// AgentTool lets a model call another agent like a function. The wrapped
// agent runs in a child context sharing the session, so its state writes
// and events flow through the same runner.
type AgentTool struct {
	agent core.Agent
	opts  AgentToolOptions
}

// NewAgentTool wraps agent as a tool named after it.
func NewAgentTool(agent core.Agent, optFns ...func(o *AgentToolOptions)) *AgentTool {
	opts := AgentToolOptions{Description: agent.Description()}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &AgentTool{agent: agent, opts: opts}
}

// Agent returns the wrapped agent.
func (t *AgentTool) Agent() core.Agent { return t.agent }

// Name implements Tool.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description implements Tool.
func (t *AgentTool) Description() string { return t.opts.Description }

// Parameters implements Tool.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": "What the agent should do. Defaults to the current user request.",
			},
		},
	}
}

// Call runs the wrapped agent and returns its answer as a text Result.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	parent := toolCtx.InternalRunContext()
	child := parent.NewChildContext(core.AgentInfo{Name: t.agent.Name(), Type: "agent_tool"}, t.agent.Name())

	if req, _ := args["request"].(string); req != "" {
		child.UserContent = core.NewTextContent("user", req)
	}

	toolCtx.LogDebug("tool.agent.start", "agent", t.agent.Name(), "caller", toolCtx.AgentName())

	if err := t.agent.Run(child); err != nil {
		return nil, &ToolError{Tool: t.Name(), Message: err.Error(), Code: CodeExecution}
	}

	return core.TextResult(t.output(child)), nil
}

func (t *AgentTool) output(child *core.RunContext) string {
	if t.opts.OutputKey != "" {
		if v, ok := child.GetState(t.opts.OutputKey); ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
			if b, err := json.Marshal(v); err == nil {
				return string(b)
			}
			return fmt.Sprint(v)
		}
	}

	events := child.Session.GetEvents()
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.InvocationID == child.RunID && ev.Author == t.agent.Name() && ev.IsFinalResponse() {
			return ev.Text()
		}
	}

	return ""
}
