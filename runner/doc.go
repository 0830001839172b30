// Package runner is the execution shell of legalmesh.
//
// A Runner drives one turn of a root agent inside a session:
//   - loads (or lazily creates) the session and seeds the turn state
//   - records the user message before the agent starts
//   - persists every non-partial event and its state delta, then lets the
//     agent resume
//   - streams events to the caller and reports at most one terminal error
//
// Runs are independent; sessions are isolated by id. Cancel aborts the
// context of an in-flight run.
package runner
