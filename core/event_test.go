package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_JSONPreservesPartKinds(t *testing.T) {
	ev := NewEvent("run-1", "remote_delegate")
	ev.Content = &Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "2025-09-15"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "add_days", Arguments: `{"start_date":"2025-08-01","day_count":"45"}`}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "c1", Name: "add_days", Response: map[string]any{"status": "success"}}},
		DataPart{Data: map[string]any{"documents": []any{"lease.pdf"}}},
	}}

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NotNil(t, decoded.Content)
	require.Len(t, decoded.Content.Parts, 4)

	assert.IsType(t, TextPart{}, decoded.Content.Parts[0])
	assert.Equal(t, "add_days", decoded.GetFunctionCalls()[0].Name)
	assert.Equal(t, "success", decoded.GetFunctionResponses()[0].Response.(map[string]any)["status"])
	assert.IsType(t, DataPart{}, decoded.Content.Parts[3])
}

func TestEvent_UnknownPartKindFails(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"kind":"video"}]}`), &c)
	assert.Error(t, err)
}

func TestEvent_IsFinalResponse(t *testing.T) {
	final := NewMessageEvent("r", "formatter", "answer")
	assert.True(t, final.IsFinalResponse())

	call := NewEvent("r", "delegate")
	call.Content = &Content{Role: "assistant", Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{Name: "add_days"}}}}
	assert.False(t, call.IsFinalResponse())

	final.Partial = true
	assert.False(t, final.IsFinalResponse())
}

func TestResult_Variants(t *testing.T) {
	s := StructuredResult(map[string]any{"status": "success", "result_date": "2025-09-15"})
	assert.True(t, s.IsStructured())
	assert.Equal(t, "2025-09-15", s.Field("result_date"))
	assert.JSONEq(t, `{"status":"success","result_date":"2025-09-15"}`, s.String())

	txt := TextResult("I don't know.")
	assert.False(t, txt.IsStructured())
	assert.Empty(t, txt.Field("status"))
	assert.Equal(t, map[string]any{"result": "I don't know."}, txt.AsMap())

	assert.Equal(t, map[string]any{"result": "plain"}, ResponseMap("plain"))
	assert.Equal(t, "success", ResponseMap(s)["status"])
	assert.Equal(t, float64(3), ResponseMap(struct {
		N int `json:"n"`
	}{N: 3})["n"])
}
