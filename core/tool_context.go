package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/legalmesh/logging"
)

// ToolContext is the surface a tool implementation sees. State writes are
// visible to the calling agent immediately and are also recorded so they can
// be attached to the function response event.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo

	mu           sync.Mutex
	eventActions EventActions

	*loggerAdapter
}

// NewToolContext binds a tool invocation to its parent RunContext.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session the tool runs in.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run the tool belongs to.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the id of the originating function call.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the calling agent.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// GetState reads from the calling agent's view of the blackboard.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.runCtx.GetState(k) }

// SetState writes through to the RunContext and records the write locally.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}

	tc.eventActions.StateDelta[k] = v
}

// Actions returns a copy of the accumulated event actions.
func (tc *ToolContext) Actions() EventActions {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	return EventActions{
		StateDelta:    maps.Clone(tc.eventActions.StateDelta),
		ArtifactDelta: maps.Clone(tc.eventActions.ArtifactDelta),
	}
}

// SaveArtifact persists artifact bytes and records the delta size.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	if tc.runCtx.ArtifactStore == nil {
		return ErrStoreNotConfigured
	}

	if err := tc.runCtx.ArtifactStore.Save(tc.SessionID(), id, data); err != nil {
		return err
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.eventActions.ArtifactDelta == nil {
		tc.eventActions.ArtifactDelta = map[string]int{}
	}

	tc.eventActions.ArtifactDelta[id] = len(data)

	return nil
}

// LoadArtifact retrieves a persisted artifact by id.
func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, ErrStoreNotConfigured
	}

	return tc.runCtx.ArtifactStore.Get(tc.SessionID(), id)
}

// InternalRunContext exposes the parent RunContext to framework code such as
// agent-backed tools.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalApplyActions merges the accumulated actions into ev.
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if len(tc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, tc.eventActions.StateDelta)
	}

	if len(tc.eventActions.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		maps.Copy(ev.Actions.ArtifactDelta, tc.eventActions.ArtifactDelta)
	}
}
