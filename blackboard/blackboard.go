// Package blackboard gives typed access to the shared run state.
//
// A Key declares a slot name together with its Go type. Values written in
// this process come back as-is; values that were persisted and reloaded
// (e.g. through the Redis session store, which stores JSON) are decoded
// back into the declared type.
package blackboard

import (
	"encoding/json"
	"fmt"
)

// State is the read/write surface of the blackboard. *core.RunContext and
// *core.ToolContext satisfy it.
type State interface {
	GetState(key string) (any, bool)
	SetState(key string, value any)
}

// Key names a slot holding values of type T.
type Key[T any] struct {
	name string
}

// NewKey declares a typed slot.
func NewKey[T any](name string) Key[T] { return Key[T]{name: name} }

// Name returns the slot name.
func (k Key[T]) Name() string { return k.name }

// String implements fmt.Stringer.
func (k Key[T]) String() string { return k.name }

// Get reads the slot. The boolean reports presence; a present value that
// cannot be converted to T is an error.
func (k Key[T]) Get(s State) (T, bool, error) {
	var zero T

	raw, ok := s.GetState(k.name)
	if !ok || raw == nil {
		return zero, false, nil
	}

	if v, ok := raw.(T); ok {
		return v, true, nil
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return zero, true, fmt.Errorf("blackboard: slot %s: %w", k.name, err)
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, true, fmt.Errorf("blackboard: slot %s holds %T: %w", k.name, raw, err)
	}

	return v, true, nil
}

// Value reads the slot and returns the zero value when it is absent or
// malformed.
func (k Key[T]) Value(s State) T {
	v, _, _ := k.Get(s)
	return v
}

// Set writes the slot.
func (k Key[T]) Set(s State, v T) { s.SetState(k.name, v) }

// Map is a plain State over a map. It is used to seed a turn.
type Map map[string]any

// GetState implements State.
func (m Map) GetState(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// SetState implements State.
func (m Map) SetState(key string, value any) { m[key] = value }
