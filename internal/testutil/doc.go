// Package testutil holds helpers for running agents in tests without a
// runner: an in-memory RunContext with a buffered emit channel.
package testutil
