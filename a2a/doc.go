// Package a2a publishes and consumes agents over the Agent2Agent (A2A)
// protocol using github.com/a2aproject/a2a-go.
//
// Server side, RunnerExecutor adapts a runner.Runner to an
// a2asrv.AgentExecutor and Server mounts it behind the JSON-RPC transport
// next to the agent card. Client side, Client resolves a remote card and
// RemoteAgent wraps the remote server as a core.Agent that can take part in
// a local graph.
package a2a
