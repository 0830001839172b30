// Package core provides the foundational types shared by every legalmesh
// component:
//
//   - Agents (units of work composed into the legal workflow graph)
//   - Sessions (per-conversation state plus ordered event history)
//   - Events (immutable records carrying content and state deltas)
//   - RunContext / ToolContext (scoped execution for agents and tools)
//   - Result (the tagged text | structured value passed across tool boundaries)
//   - Store interfaces for sessions, artifacts and memory recall
//
// Concrete stores, agents and transports live in sibling packages.
package core
