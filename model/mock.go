package model

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/legalmesh/core"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of turns.
var ErrScriptExhausted = errors.New("scripted model has no more responses")

// ScriptedModel replays a fixed sequence of replies, one per Generate call,
// and records every request it receives.
type ScriptedModel struct {
	name string

	mu       sync.Mutex
	script   []Response
	requests []Request
}

// NewScriptedModel creates a model that replays replies in order.
func NewScriptedModel(name string, replies ...Response) *ScriptedModel {
	return &ScriptedModel{name: name, script: replies}
}

// TextReply builds a final assistant reply containing text.
func TextReply(text string) Response {
	return Response{Content: core.NewTextContent("assistant", text), FinishReason: "stop"}
}

// CallReply builds a final assistant reply requesting one function call.
func CallReply(id, name, argsJSON string) Response {
	return Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: argsJSON}},
		}},
		FinishReason: "tool_calls",
	}
}

// Push appends replies to the script.
func (m *ScriptedModel) Push(replies ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request{}, m.requests...)
}

// Remaining reports how many scripted replies are left.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}

// Generate implements Model. With req.Stream the text of the reply is
// first emitted rune by rune as partial chunks.
func (m *ScriptedModel) Generate(_ context.Context, req Request) (<-chan Response, <-chan error) {
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)

	if len(m.script) == 0 {
		m.mu.Unlock()
		respCh := make(chan Response)
		errCh <- ErrScriptExhausted
		close(respCh)
		close(errCh)
		return respCh, errCh
	}

	next := m.script[0]
	m.script = m.script[1:]
	m.mu.Unlock()

	var chunks []rune
	if req.Stream {
		chunks = []rune(next.Content.Text())
	}

	respCh := make(chan Response, len(chunks)+1)
	for _, r := range chunks {
		respCh <- Response{Partial: true, Content: core.NewTextContent("assistant", string(r))}
	}

	respCh <- next
	close(respCh)
	close(errCh)

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}

// HashEmbedder is a deterministic bag-of-words embedder: every lower-cased
// word is hashed into one of Dim buckets and the result is L2-normalized.
// Texts sharing vocabulary end up close in cosine space.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder creates a HashEmbedder with dim buckets.
func NewHashEmbedder(dim int) *HashEmbedder { return &HashEmbedder{Dim: dim} }

// Embed implements Embedder.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}

	out := make([][]float32, len(texts))

	for i, text := range texts {
		vec := make([]float32, dim)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})

		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			vec[h.Sum32()%uint32(dim)]++
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}

		if norm == 0 {
			vec[0] = 1
		} else {
			n := float32(math.Sqrt(norm))
			for j := range vec {
				vec[j] /= n
			}
		}

		out[i] = vec
	}

	return out, nil
}
