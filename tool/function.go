package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/util"
)

// FunctionFn is the signature wrapped by FunctionTool.
type FunctionFn func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are validated against the declared schema before the function
// runs. Failures are normalized to *ToolError:
//
//	validation failure        -> Code VALIDATION_ERROR
//	other error from fn       -> Code EXECUTION_ERROR
//	*ToolError returned by fn -> forwarded unchanged
//
// A FunctionTool holds no mutable state and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          FunctionFn
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
//
// Example:
//
//	jurisdiction := tool.NewFunctionTool(
//	  "check_jurisdiction",
//	  "Check whether a jurisdiction is supported",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "jurisdiction": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"jurisdiction"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return legaltools.CheckJurisdiction(args["jurisdiction"].(string)), nil
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn FunctionFn) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct's
// json and description tags.
func NewFunctionToolFromStruct(name, description string, structType any, fn FunctionFn) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and invokes the wrapped function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)
			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
