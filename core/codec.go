package core

import (
	"encoding/json"
	"fmt"
)

// wirePart is the JSON envelope for a Part. Kind selects which payload field
// is populated.
type wirePart struct {
	Kind             string            `json:"kind"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	File             *FilePartFile     `json:"file,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

const (
	partKindText             = "text"
	partKindData             = "data"
	partKindFile             = "file"
	partKindFunctionCall     = "function_call"
	partKindFunctionResponse = "function_response"
)

// MarshalJSON encodes the content with a kind tag per part so it can be
// restored by UnmarshalJSON.
func (c Content) MarshalJSON() ([]byte, error) {
	parts := make([]wirePart, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			parts = append(parts, wirePart{Kind: partKindText, Text: v.Text, Metadata: v.Metadata})
		case DataPart:
			parts = append(parts, wirePart{Kind: partKindData, Data: v.Data, Metadata: v.Metadata})
		case FilePart:
			f := v.File
			parts = append(parts, wirePart{Kind: partKindFile, File: &f, Metadata: v.Metadata})
		case FunctionCallPart:
			fc := v.FunctionCall
			parts = append(parts, wirePart{Kind: partKindFunctionCall, FunctionCall: &fc, Metadata: v.Metadata})
		case FunctionResponsePart:
			fr := v.FunctionResponse
			parts = append(parts, wirePart{Kind: partKindFunctionResponse, FunctionResponse: &fr, Metadata: v.Metadata})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}

	return json.Marshal(struct {
		Role  string     `json:"role,omitempty"`
		Parts []wirePart `json:"parts"`
	}{Role: c.Role, Parts: parts})
}

// UnmarshalJSON restores parts from their kind-tagged envelopes.
func (c *Content) UnmarshalJSON(b []byte) error {
	var raw struct {
		Role  string     `json:"role,omitempty"`
		Parts []wirePart `json:"parts"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	c.Role = raw.Role
	c.Parts = make([]Part, 0, len(raw.Parts))

	for _, wp := range raw.Parts {
		switch wp.Kind {
		case partKindText:
			c.Parts = append(c.Parts, TextPart{Text: wp.Text, Metadata: wp.Metadata})
		case partKindData:
			c.Parts = append(c.Parts, DataPart{Data: wp.Data, Metadata: wp.Metadata})
		case partKindFile:
			if wp.File == nil {
				return fmt.Errorf("file part without file payload")
			}
			c.Parts = append(c.Parts, FilePart{File: *wp.File, Metadata: wp.Metadata})
		case partKindFunctionCall:
			if wp.FunctionCall == nil {
				return fmt.Errorf("function_call part without payload")
			}
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: *wp.FunctionCall, Metadata: wp.Metadata})
		case partKindFunctionResponse:
			if wp.FunctionResponse == nil {
				return fmt.Errorf("function_response part without payload")
			}
			c.Parts = append(c.Parts, FunctionResponsePart{FunctionResponse: *wp.FunctionResponse, Metadata: wp.Metadata})
		default:
			return fmt.Errorf("unknown part kind %q", wp.Kind)
		}
	}

	return nil
}
