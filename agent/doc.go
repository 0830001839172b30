// Package agent contains the agent building blocks of legalmesh:
//
//  1. BaseAgent: identity, lifecycle and sub-agent plumbing
//  2. ModelAgent: a model-backed agent running the standard tool-calling flow
//
// Workflow-specific agents (classifier, specialists, coordinator) live in the
// legal package and embed BaseAgent or wrap ModelAgent.
package agent
