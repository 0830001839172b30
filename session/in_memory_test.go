package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/core"
)

var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_DeltaAndEvents(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.ApplyDelta(ctx, "123344", map[string]any{"user_query": "q", "context": ""}))
	require.NoError(t, s.AppendEvent(ctx, "123344", core.NewMessageEvent("r1", "formatter", "answer")))

	sess, err := s.Get(ctx, "123344")
	require.NoError(t, err)

	v, ok := sess.GetState("user_query")
	require.True(t, ok)
	assert.Equal(t, "q", v)
	assert.Len(t, sess.GetEvents(), 1)
}

func TestInMemoryStore_GetReturnsClone(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	sess, err := s.Get(ctx, "a")
	require.NoError(t, err)
	sess.SetState("summary", "local only")

	again, _ := s.Get(ctx, "a")
	_, ok := again.GetState("summary")
	assert.False(t, ok)
}

func TestInMemoryStore_CreateResets(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.ApplyDelta(ctx, "a", map[string]any{"k": 1}))
	_, err := s.Create(ctx, "a")
	require.NoError(t, err)

	sess, _ := s.Get(ctx, "a")
	assert.Empty(t, sess.State)
}
