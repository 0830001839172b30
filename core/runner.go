package core

import "context"

// Runner executes a root agent within a conversational session.
//
// Events emitted within one run are delivered in order. The events channel is
// closed once the run finishes; the error channel carries at most one terminal
// error and is then closed.
type Runner interface {
	// Run starts an asynchronous execution bound to sessionID. The immediate
	// error covers startup failures such as session loading.
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Cancel requests termination of an in-flight run.
	Cancel(runID string) error
}
