// Package gemini adapts Google's Gemini API to model.Model and
// model.Embedder. It is the default provider of the legal mesh.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/model"
)

// Options configure the Gemini adapter.
type Options struct {
	Model          string
	EmbeddingModel string
	Temperature    float32
}

// Model wraps a genai client behind model.Model and model.Embedder.
type Model struct {
	client *genai.Client
	opts   Options
}

// ErrEmptyAPIKey is returned by New when no key is supplied.
var ErrEmptyAPIKey = errors.New("gemini: api key is empty")

// New dials the Gemini API with apiKey.
func New(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Model, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return NewFromClient(client, optFns...), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:          "gemini-2.0-flash",
		EmbeddingModel: "text-embedding-004",
		Temperature:    0.2,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Close releases the underlying client.
func (m *Model) Close() error { return m.client.Close() }

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		gm := m.client.GenerativeModel(m.opts.Model)
		gm.SetTemperature(m.opts.Temperature)

		if system := systemText(req); system != "" {
			gm.SystemInstruction = genai.NewUserContent(genai.Text(system))
		}

		if req.JSONResponse {
			gm.ResponseMIMEType = "application/json"
		}

		if len(req.Tools) > 0 {
			gm.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
		}

		history := toHistory(req.Contents)
		if len(history) == 0 {
			errCh <- errors.New("gemini: no contents provided")
			return
		}

		chat := gm.StartChat()
		chat.History = history[:len(history)-1]
		last := history[len(history)-1].Parts

		if req.Stream {
			m.stream(ctx, chat, last, out, errCh)
			return
		}

		resp, err := chat.SendMessage(ctx, last...)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		parts, finish := fromResponse(resp)
		out <- model.Response{
			ID:           core.NewID(),
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finish,
			Usage:        usage(resp),
		}
	}()

	return out, errCh
}

func (m *Model) stream(ctx context.Context, chat *genai.ChatSession, last []genai.Part, out chan<- model.Response, errCh chan<- error) {
	iter := chat.SendMessageStream(ctx, last...)

	var (
		text   strings.Builder
		calls  []core.Part
		finish = "stop"
		tokens *model.TokenUsage
	)

	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		parts, reason := fromResponse(resp)
		if reason != "" {
			finish = reason
		}
		if u := usage(resp); u != nil {
			tokens = u
		}

		for _, p := range parts {
			switch part := p.(type) {
			case core.TextPart:
				text.WriteString(part.Text)
				out <- model.Response{Partial: true, Content: core.NewTextContent("assistant", part.Text)}
			case core.FunctionCallPart:
				calls = append(calls, part)
			}
		}
	}

	final := make([]core.Part, 0, len(calls)+1)
	if text.Len() > 0 {
		final = append(final, core.TextPart{Text: text.String()})
	}
	final = append(final, calls...)

	out <- model.Response{
		ID:           core.NewID(),
		Content:      core.Content{Role: "assistant", Parts: final},
		FinishReason: finish,
		Usage:        tokens,
	}
}

// Embed implements model.Embedder with one batch request.
func (m *Model) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	em := m.client.EmbeddingModel(m.opts.EmbeddingModel)
	batch := em.NewBatch()

	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}

	return out, nil
}

func systemText(req model.Request) string {
	parts := []string{}
	if req.Instructions != "" {
		parts = append(parts, req.Instructions)
	}

	for _, c := range req.Contents {
		if c.Role == "system" {
			if t := c.Text(); t != "" {
				parts = append(parts, t)
			}
		}
	}

	return strings.Join(parts, "\n\n")
}

// toHistory maps normalized contents onto Gemini's user/model turns. Tool
// responses travel as user turns and adjacent turns of the same role merge.
func toHistory(contents []core.Content) []*genai.Content {
	var history []*genai.Content

	for _, c := range contents {
		role := "user"

		switch c.Role {
		case "system":
			continue
		case "assistant":
			role = "model"
		}

		var parts []genai.Part

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, genai.Text(part.Text))
				}
			case core.DataPart:
				if b, err := json.Marshal(part.Data); err == nil {
					parts = append(parts, genai.Text(string(b)))
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}
				parts = append(parts, genai.FunctionCall{Name: part.FunctionCall.Name, Args: args})
			case core.FunctionResponsePart:
				resp := core.ResponseMap(part.FunctionResponse.Response)
				if part.FunctionResponse.Error != "" {
					resp = map[string]any{"error": part.FunctionResponse.Error}
				}
				parts = append(parts, genai.FunctionResponse{Name: part.FunctionResponse.Name, Response: resp})
			}
		}

		if len(parts) == 0 {
			continue
		}

		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, parts...)
			continue
		}

		history = append(history, &genai.Content{Role: role, Parts: parts})
	}

	return history
}

func fromResponse(resp *genai.GenerateContentResponse) ([]core.Part, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ""
	}

	cand := resp.Candidates[0]
	finish := ""
	if cand.FinishReason != genai.FinishReasonUnspecified {
		finish = strings.ToLower(cand.FinishReason.String())
	}

	if cand.Content == nil {
		return nil, finish
	}

	var parts []core.Part

	for _, p := range cand.Content.Parts {
		switch v := p.(type) {
		case genai.Text:
			if v != "" {
				parts = append(parts, core.TextPart{Text: string(v)})
			}
		case genai.FunctionCall:
			args, _ := json.Marshal(v.Args)
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        "call_" + core.NewID(),
				Name:      v.Name,
				Arguments: string(args),
			}})
		}
	}

	return parts, finish
}

func usage(resp *genai.GenerateContentResponse) *model.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}

	return &model.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

func toDeclarations(tools []model.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))

	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
		}

		if len(t.Function.Parameters) > 0 {
			decl.Parameters = toSchema(t.Function.Parameters)
		}

		decls = append(decls, decl)
	}

	return decls
}

// toSchema converts a JSON Schema fragment into the genai schema subset.
func toSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}

	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
	}

	if d, ok := m["description"].(string); ok {
		s.Description = d
	}

	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}

	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}

	s.Required = stringSlice(m["required"])
	s.Enum = stringSlice(m["enum"])

	return s
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
