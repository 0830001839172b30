package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/legalmesh/core"
)

// BaseAgent bundles identity, Start/Stop lifecycle and sub-agent management.
// Embed it in concrete agents and supply Run. Exported methods are safe for
// concurrent use.
type BaseAgent struct {
	name        string
	description string

	mu        sync.Mutex
	runs      int
	parent    core.Agent
	subAgents []core.Agent
}

// NewBaseAgent constructs a BaseAgent with a generated description.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns what the agent does. Models see it when the agent is
// exposed as a tool.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Start registers a run. Runs of different sessions may overlap.
func (b *BaseAgent) Start(_ *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.runs++

	return nil
}

// Stop ends a run started with Start. It fails if no run is active.
func (b *BaseAgent) Stop(_ *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runs == 0 {
		return errors.New("agent is not running")
	}

	b.runs--

	return nil
}

// SetSubAgents replaces the child set. Children keep the first parent they
// were attached to, so an agent shared by several delegators (a DAG, not a
// tree) reports one stable parent.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	b.mu.Lock()
	previous := b.subAgents
	b.subAgents = append([]core.Agent(nil), children...)
	b.mu.Unlock()

	for _, child := range previous {
		if w, ok := child.Parent().(*agentWrapper); ok && w.BaseAgent == b {
			if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
				setter.setParent(nil)
			}
		}
	}

	for _, child := range children {
		if child == nil {
			return errors.New("nil sub-agent")
		}
		if setter, ok := child.(interface{ claimParent(core.Agent) }); ok {
			setter.claimParent(&agentWrapper{b})
		}
	}

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// claimParent sets p as parent unless one is already set.
func (b *BaseAgent) claimParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.parent == nil {
		b.parent = p
	}
}

// Parent returns the first delegator this agent was attached to, or nil.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SubAgents returns a copy of the child agents.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)

	return result
}

// FindAgent searches the subtree rooted at this agent depth-first.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return &agentWrapper{b}
	}

	for _, child := range b.SubAgents() {
		if child.Name() == name {
			return child
		}
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// agentWrapper lets a bare BaseAgent stand in as a core.Agent for hierarchy
// references.
type agentWrapper struct{ *BaseAgent }

// Run always fails: a BaseAgent has no behavior of its own.
func (w *agentWrapper) Run(_ *core.RunContext) error {
	return fmt.Errorf("cannot run BaseAgent %s directly", w.name)
}
