package core

import (
	"encoding/json"
	"fmt"
)

// ResultKind tags the variant held by a Result.
type ResultKind string

const (
	// ResultText marks a free-form text result.
	ResultText ResultKind = "text"
	// ResultStructured marks a key/value result such as {status, ...}.
	ResultStructured ResultKind = "structured"
)

// Result is the value exchanged across tool and delegate boundaries. Consumers
// switch on Kind rather than inspecting the payload shape.
type Result struct {
	Kind   ResultKind     `json:"kind"`
	Text   string         `json:"text,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// TextResult wraps free-form text.
func TextResult(text string) Result { return Result{Kind: ResultText, Text: text} }

// StructuredResult wraps a key/value payload.
func StructuredResult(fields map[string]any) Result {
	if fields == nil {
		fields = map[string]any{}
	}
	return Result{Kind: ResultStructured, Fields: fields}
}

// IsStructured reports whether the result carries fields.
func (r Result) IsStructured() bool { return r.Kind == ResultStructured }

// Field returns a structured field as string. Text results have no fields.
func (r Result) Field(key string) string {
	if r.Kind != ResultStructured {
		return ""
	}
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// AsMap returns a map view suitable for model function responses. Text
// results are exposed under the "result" key.
func (r Result) AsMap() map[string]any {
	if r.Kind == ResultStructured {
		return r.Fields
	}
	return map[string]any{"result": r.Text}
}

// String renders text results verbatim and structured results as JSON.
func (r Result) String() string {
	if r.Kind != ResultStructured {
		return r.Text
	}
	b, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Sprint(r.Fields)
	}
	return string(b)
}

// ResponseMap converts a function response payload into a map. Results are
// unwrapped by kind, maps pass through and anything else is JSON-normalized
// or placed under "result".
func ResponseMap(v any) map[string]any {
	switch t := v.(type) {
	case nil:
		return map[string]any{}
	case Result:
		return t.AsMap()
	case *Result:
		return t.AsMap()
	case map[string]any:
		return t
	case string:
		return map[string]any{"result": t}
	}

	b, err := json.Marshal(v)
	if err == nil {
		var m map[string]any
		if json.Unmarshal(b, &m) == nil {
			return m
		}
	}

	return map[string]any{"result": fmt.Sprint(v)}
}
