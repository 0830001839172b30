package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/testutil"
)

func newToolContext(t *testing.T, state map[string]any) *core.ToolContext {
	t.Helper()
	rc, _ := testutil.NewRunContext(context.Background(), "Add 45 days to 2025-08-01", state)
	return core.NewToolContext(rc, "fc-1")
}

func daysSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start_date": map[string]any{"type": "string"},
			"day_count":  map[string]any{"type": "string"},
		},
		"required": []string{"start_date", "day_count"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	echo := NewFunctionTool("add_days", "Add days", daysSchema(), func(_ *core.ToolContext, args map[string]any) (any, error) {
		return map[string]any{"status": "success", "start": args["start_date"]}, nil
	})

	res, err := echo.Call(newToolContext(t, nil), map[string]any{"start_date": "2025-08-01", "day_count": "45"})
	require.NoError(t, err)
	assert.Equal(t, "2025-08-01", res.(map[string]any)["start"])
}

func TestFunctionTool_ValidationError(t *testing.T) {
	called := false
	ft := NewFunctionTool("add_days", "Add days", daysSchema(), func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	_, err := ft.Call(newToolContext(t, nil), map[string]any{"start_date": "2025-08-01"})
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.False(t, called)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	ft := NewFunctionTool("fail", "Fails", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := ft.Call(newToolContext(t, nil), map[string]any{})

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	ft := NewFunctionTool("custom", "Custom", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, NewToolError("custom", "nope", "CUSTOM")
	})

	_, err := ft.Call(newToolContext(t, nil), map[string]any{})

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "CUSTOM", toolErr.Code)
}

func TestToolContext_SetStateIsRecorded(t *testing.T) {
	tc := newToolContext(t, nil)
	ft := NewFunctionTool("writer", "Writes", map[string]any{"type": "object"}, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		tc.SetState("search_sources", []any{map[string]any{"title": "CA Labor Code", "url": "https://example.org"}})
		return "ok", nil
	})

	_, err := ft.Call(tc, map[string]any{})
	require.NoError(t, err)

	_, ok := tc.Actions().StateDelta["search_sources"]
	assert.True(t, ok)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("add_days", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "add_days")
}

func TestRegistry(t *testing.T) {
	a := NewFunctionTool("a", "", nil, nil)
	b := NewFunctionTool("b", "", nil, nil)

	r := NewRegistry(a, b)
	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
	assert.Same(t, b, r["b"])
}
