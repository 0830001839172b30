package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/legalmesh/artifact"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/session"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run; 0 disables the cap.
	MaxModelCalls int
	// SessionStore persists session state and history.
	SessionStore core.SessionStore
	// ArtifactStore keeps generated documents.
	ArtifactStore core.ArtifactStore
	// MemoryStore recalls prior answers; may be nil.
	MemoryStore core.MemoryStore
	// Logger receives runner diagnostics.
	Logger logging.Logger
}

// Runner coordinates agent execution: creates run contexts, streams events,
// applies state deltas and persists history. Public methods are safe for
// concurrent use.
type Runner struct {
	agent core.Agent
	opts  Options

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

var _ core.Runner = (*Runner)(nil)

// New constructs a Runner for the root agent.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}

	return &Runner{
		agent:      agent,
		opts:       opts,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Agent returns the root agent.
func (r *Runner) Agent() core.Agent { return r.agent }

// SessionStore returns the store the runner persists into.
func (r *Runner) SessionStore() core.SessionStore { return r.opts.SessionStore }

// ArtifactStore returns the store generated documents are saved to.
func (r *Runner) ArtifactStore() core.ArtifactStore { return r.opts.ArtifactStore }

// Run implements core.Runner.
func (r *Runner) Run(ctx context.Context, sessionID string, userContent core.Content) (string, <-chan core.Event, <-chan error, error) {
	return r.RunWithState(ctx, sessionID, userContent, nil)
}

// RunWithState starts a run after merging seed into the session state.
func (r *Runner) RunWithState(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	seed map[string]any,
) (string, <-chan core.Event, <-chan error, error) {
	store := r.opts.SessionStore
	runID := core.NewID()

	if len(seed) > 0 {
		if err := store.ApplyDelta(ctx, sessionID, seed); err != nil {
			return "", nil, nil, fmt.Errorf("failed to seed session state: %w", err)
		}
	}

	if userContent.Role == "" {
		userContent.Role = "user"
	}

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := store.AppendEvent(ctx, sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	sess, err := store.Get(ctx, sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	eventsCh := make(chan core.Event, r.opts.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.opts.EventBufferSize)
	resumeCh := make(chan struct{}, 1)

	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	rc := core.NewRunContext(
		runCtx,
		sessionID,
		runID,
		core.AgentInfo{Name: r.agent.Name(), Type: "root"},
		userContent,
		r.opts.MaxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		store,
		r.opts.ArtifactStore,
		r.opts.MemoryStore,
		r.opts.Logger,
	)

	r.opts.Logger.Debug("runner.run.start", "run_id", runID, "session_id", sessionID, "agent", r.agent.Name())

	agentErr := make(chan error, 1)

	go func() {
		defer close(agentEmit)
		agentErr <- r.runAgent(rc)
	}()

	go func() {
		defer func() {
			cancel()

			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()

			close(eventsCh)
			close(errorsCh)
		}()

		if err := r.processEvents(rc, agentEmit, resumeCh, eventsCh); err != nil {
			errorsCh <- err
			// Unblock the agent and wait for it so no goroutine outlives the run.
			cancel()
			for range agentEmit {
			}
			<-agentErr
			return
		}

		if err := <-agentErr; err != nil {
			r.opts.Logger.Error("runner.run.error", "run_id", runID, "error", err.Error())
			errorsCh <- fmt.Errorf("agent execution failed: %w", err)
			return
		}

		r.opts.Logger.Debug("runner.run.complete", "run_id", runID, "model_calls", rc.Limiter.Count())
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel implements core.Runner.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()

	return nil
}

func (r *Runner) runAgent(rc *core.RunContext) error {
	if err := r.agent.Start(rc); err != nil {
		return err
	}

	defer func() {
		if err := r.agent.Stop(rc); err != nil {
			r.opts.Logger.Warn("runner.agent.stop_failed", "agent", r.agent.Name(), "error", err.Error())
		}
	}()

	return r.agent.Run(rc)
}

// processEvents persists and forwards events until the agent closes its
// emit channel. Every non-partial event is followed by a resume signal.
func (r *Runner) processEvents(
	rc *core.RunContext,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) error {
	store := r.opts.SessionStore

	for ev := range agentEmit {
		if !ev.IsPartial() {
			if len(ev.Actions.StateDelta) > 0 {
				if err := store.ApplyDelta(rc.Context, rc.SessionID, ev.Actions.StateDelta); err != nil {
					return fmt.Errorf("failed to apply state delta: %w", err)
				}
			}

			if err := store.AppendEvent(rc.Context, rc.SessionID, ev); err != nil {
				return fmt.Errorf("failed to append event to session: %w", err)
			}
		}

		select {
		case <-rc.Done():
			return rc.Err()
		case eventsCh <- ev:
		}

		if !ev.IsPartial() {
			select {
			case resumeCh <- struct{}{}:
			default:
			}
		}
	}

	return nil
}

// Collect drains a run and returns the non-partial events. It fails with the
// run's terminal error, if any.
func Collect(events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	var out []core.Event

	for ev := range events {
		if !ev.IsPartial() {
			out = append(out, ev)
		}
	}

	for err := range errs {
		if err != nil {
			return out, err
		}
	}

	return out, nil
}

// FinalText returns the text of the last final event authored by agentName,
// or of the last final event when agentName is empty.
func FinalText(events []core.Event, agentName string) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if !ev.IsFinalResponse() || ev.Author == "user" {
			continue
		}
		if agentName != "" && ev.Author != agentName {
			continue
		}
		if t := ev.Text(); t != "" {
			return t
		}
	}

	return ""
}
