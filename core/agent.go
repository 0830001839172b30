package core

// Agent is the unit of work in a legalmesh workflow.
//
// Agents read and write the shared blackboard through the RunContext they
// receive and report progress by emitting events. Delegation between agents is
// expressed through the sub-agent set, which the graph builder assigns once
// every agent has been declared.
//
// Implementations must:
//   - Respect cancellation of the RunContext
//   - Emit events through RunContext.EmitEvent so state deltas travel with them
//   - Return an error instead of emitting a partial answer when they fail
type Agent interface {
	Name() string
	Description() string
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts and events.
type AgentInfo struct{ Name, Type string }
