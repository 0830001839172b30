package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/core"
)

var _ core.SessionStore = (*Store)(nil)

func setupTestStore(t *testing.T, optFns ...func(o *Options)) (*Store, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestStore_RoundTripsStateAndEvents(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	require.NoError(t, store.ApplyDelta(ctx, "123344", map[string]any{
		"user_query":      "What are the sick days policies in this contract?",
		"task_label_json": map[string]any{"label": "SUMMARIZE", "needs_context": true, "notes": ""},
	}))

	ev := core.NewMessageEvent("run-1", "formatter", "Ten sick days per year.")
	ev.Actions.StateDelta = map[string]any{"final_answer": "Ten sick days per year."}
	require.NoError(t, store.AppendEvent(ctx, "123344", ev))

	sess, err := store.Get(ctx, "123344")
	require.NoError(t, err)

	q, _ := sess.GetState("user_query")
	assert.Equal(t, "What are the sick days policies in this contract?", q)

	label, _ := sess.GetState("task_label_json")
	assert.Equal(t, "SUMMARIZE", label.(map[string]any)["label"])
	assert.Equal(t, true, label.(map[string]any)["needs_context"])

	events := sess.GetEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)
	assert.Equal(t, "Ten sick days per year.", events[0].Text())
}

func TestStore_GetCreatesLazily(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestStore(t, func(o *Options) { o.Namespace = "legal" })

	sess, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Empty(t, sess.State)
	assert.True(t, mr.Exists("legalmesh:legal:session:fresh:meta"))
}

func TestStore_CreateResetsSession(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	require.NoError(t, store.ApplyDelta(ctx, "s", map[string]any{"summary": "old"}))
	require.NoError(t, store.AppendEvent(ctx, "s", core.NewMessageEvent("r", "a", "x")))

	_, err := store.Create(ctx, "s")
	require.NoError(t, err)

	sess, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, sess.State)
	assert.Empty(t, sess.Events)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestStore(t, func(o *Options) { o.TTL = time.Minute })

	require.NoError(t, store.ApplyDelta(ctx, "s", map[string]any{"k": "v"}))
	assert.Equal(t, time.Minute, mr.TTL("legalmesh:default:session:s:state"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("legalmesh:default:session:s:state"))
}

func TestNew_RejectsEmptyNamespace(t *testing.T) {
	_, err := New(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), func(o *Options) { o.Namespace = "" })
	assert.Error(t, err)
}
