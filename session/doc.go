// Package session contains core.SessionStore implementations. The in-memory
// store lives here; the Redis-backed store lives in the redis sub-package.
package session
