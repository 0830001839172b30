// Package tool implements the function calling subsystem: agents expose
// tools to the model, the flow validates the model's arguments against each
// tool's JSON schema and invokes it with a ToolContext.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/util"
)

// Tool is a capability a model may call.
//
// Implementations should:
//   - Use snake_case names; the name is the function name the model sees
//   - Describe parameters with a minimal JSON schema (type, properties, required, enum)
//   - Report domain failures in the result value and reserve errors for
//     framework failures such as bad arguments
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is shown to the model to decide when to call the tool.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used by the framework.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Registry indexes tools by name.
type Registry map[string]Tool

// NewRegistry builds a registry; a later tool with the same name replaces
// an earlier one.
func NewRegistry(tools ...Tool) Registry {
	r := make(Registry, len(tools))
	for _, t := range tools {
		r[t.Name()] = t
	}

	return r
}

// Names returns the registered tool names.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}

	return names
}

// Definition is a transport-neutral tool: a schema plus a function that
// needs only a context. The same definition backs an in-process Tool and a
// tool served over MCP.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Fn          func(ctx context.Context, args map[string]any) (core.Result, error)
}

// Tool wraps the definition as a FunctionTool.
func (d Definition) Tool() *FunctionTool {
	return NewFunctionTool(d.Name, d.Description, d.Parameters, func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		return d.Fn(toolCtx.Context(), args)
	})
}
