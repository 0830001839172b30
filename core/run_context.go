package core

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/hupe1980/legalmesh/logging"
)

// ErrStoreNotConfigured is returned by helpers whose backing store is nil.
var ErrStoreNotConfigured = errors.New("store not configured")

// RunContext is the mutable, per-run execution scope passed to Agent.Run.
// It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID, Agent info) and the user Content
//   - Emission / resumption channels shared with the runner
//   - Backing stores (session, artifact, memory)
//   - A working Session snapshot plus a pending StateDelta
//
// SetState stages writes in StateDelta. EmitEvent attaches the staged delta to
// the outgoing event and folds it into the local Session snapshot, so agents
// that run later in the same turn observe the write immediately while the
// runner persists it to the store.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	Emit             chan<- Event
	Resume           <-chan struct{}
	SessionStore     SessionStore
	ArtifactStore    ArtifactStore
	MemoryStore      MemoryStore
	Limiter          *ModelLimiter
	Session          *Session
	StateDelta       map[string]any
	Artifacts        []string
	Branch           string

	mu sync.Mutex
	*loggerAdapter
}

// NewRunContext constructs a RunContext with empty state and artifact deltas.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	sessionStore SessionStore,
	artifactStore ArtifactStore,
	memoryStore MemoryStore,
	logger logging.Logger,
) *RunContext {
	if sess == nil {
		sess = NewSession(sessionID)
	}

	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		Emit:          emit,
		Resume:        resume,
		Session:       sess,
		SessionStore:  sessionStore,
		ArtifactStore: artifactStore,
		MemoryStore:   memoryStore,
		Limiter:       NewModelLimiter(maxModelCalls),
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error of the underlying context, if any.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged value if present, else the session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	rc.mu.Lock()
	v, ok := rc.StateDelta[k]
	rc.mu.Unlock()

	if ok {
		return v, true
	}

	return rc.Session.GetState(k)
}

// SetState stages a state mutation.
func (rc *RunContext) SetState(k string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.StateDelta[k] = v
}

// ApplyStateDelta stages all pairs from d.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	maps.Copy(rc.StateDelta, d)
}

// StateSnapshot returns the session state overlaid with staged writes.
func (rc *RunContext) StateSnapshot() map[string]any {
	state := rc.Session.StateSnapshot()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	maps.Copy(state, rc.StateDelta)

	return state
}

// AddArtifact stages an artifact id for the next emitted event.
func (rc *RunContext) AddArtifact(id string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Artifacts = append(rc.Artifacts, id)
}

// SaveArtifact stores bytes in the ArtifactStore and stages the id.
func (rc *RunContext) SaveArtifact(id string, data []byte) error {
	if rc.ArtifactStore == nil {
		return ErrStoreNotConfigured
	}

	if err := rc.ArtifactStore.Save(rc.SessionID, id, data); err != nil {
		return err
	}

	rc.AddArtifact(id)

	return nil
}

// SearchMemory recalls stored snippets relevant to q.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.Context, rc.SessionID, q, limit)
}

// StoreMemory appends content plus metadata to the MemoryStore.
func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryStore == nil {
		return ErrStoreNotConfigured
	}

	return rc.MemoryStore.Store(rc.Context, rc.SessionID, content, md)
}

// GetSessionHistory returns the conversation history of the working session.
func (rc *RunContext) GetSessionHistory() []Event {
	return rc.Session.GetConversationHistory()
}

// NewChildContext derives a context for a delegated agent. The child shares
// the session snapshot, stores and channels but starts with empty buffers and
// runs as agent.
func (rc *RunContext) NewChildContext(agent AgentInfo, branch string) *RunContext {
	finalBranch := rc.Branch
	if branch != "" {
		finalBranch = branch
	}

	return &RunContext{
		Context:       rc.Context,
		SessionID:     rc.SessionID,
		RunID:         rc.RunID,
		Agent:         agent,
		UserContent:   rc.UserContent,
		Emit:          rc.Emit,
		Resume:        rc.Resume,
		SessionStore:  rc.SessionStore,
		ArtifactStore: rc.ArtifactStore,
		MemoryStore:   rc.MemoryStore,
		Limiter:       rc.Limiter,
		Session:       rc.Session,
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		Branch:        finalBranch,
		loggerAdapter: rc.loggerAdapter,
	}
}

// EmitEvent merges pending StateDelta and Artifacts into the event, folds the
// delta into the working session and sends the event to the runner. Partial
// events are forwarded as-is and leave staged writes for the final event.
func (rc *RunContext) EmitEvent(ev Event) error {
	if ev.Partial {
		return rc.send(ev)
	}

	rc.mu.Lock()

	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	if len(rc.Artifacts) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for _, id := range rc.Artifacts {
			ev.Actions.ArtifactDelta[id] = 1
		}
	}

	if ev.InvocationID == "" {
		ev.InvocationID = rc.RunID
	}

	if ev.Branch == "" {
		ev.Branch = rc.Branch
	}

	if len(ev.Actions.StateDelta) > 0 {
		rc.Session.ApplyStateDelta(ev.Actions.StateDelta)
	}

	rc.Session.AddEvent(ev)

	rc.StateDelta = map[string]any{}
	rc.Artifacts = []string{}

	rc.mu.Unlock()

	return rc.send(ev)
}

func (rc *RunContext) send(ev Event) error {
	if ev.InvocationID == "" {
		ev.InvocationID = rc.RunID
	}

	if rc.Emit == nil {
		return nil
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	return nil
}

// WaitForResume blocks until the runner signals persistence or the context
// is cancelled.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
