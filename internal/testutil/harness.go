package testutil

import (
	"context"

	"github.com/hupe1980/legalmesh/artifact"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/logging"
)

const emitBuffer = 1024

// NewRunContext builds a RunContext over a fresh session seeded with state.
// Events are buffered on the returned channel; nothing consumes them.
func NewRunContext(ctx context.Context, query string, state map[string]any) (*core.RunContext, chan core.Event) {
	sess := core.NewSession("test-session")
	sess.ApplyStateDelta(state)

	emit := make(chan core.Event, emitBuffer)

	rc := core.NewRunContext(
		ctx,
		sess.ID,
		core.NewID(),
		core.AgentInfo{Name: "test", Type: "test"},
		core.NewTextContent("user", query),
		0,
		emit,
		nil,
		sess,
		nil,
		artifact.NewInMemoryStore(),
		nil,
		logging.NoOpLogger{},
	)

	return rc, emit
}

// RunAgent runs a synchronously against a fresh RunContext and returns the
// context (for state inspection) plus every emitted event.
func RunAgent(ctx context.Context, a core.Agent, query string, state map[string]any) (*core.RunContext, []core.Event, error) {
	rc, emit := NewRunContext(ctx, query, state)
	rc.Agent = core.AgentInfo{Name: a.Name(), Type: "test"}

	err := a.Run(rc)

	close(emit)

	events := make([]core.Event, 0, len(emit))
	for ev := range emit {
		events = append(events, ev)
	}

	return rc, events, err
}

// StateString reads a string slot from the run's working session.
func StateString(rc *core.RunContext, key string) string {
	v, ok := rc.GetState(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
