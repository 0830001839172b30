// Package redis provides a Redis-backed core.SessionStore so sessions survive
// process restarts and can be shared between the HTTP front-end and the
// remote delegate.
//
// Layout per session (all keys namespaced):
//
//	legalmesh:{namespace}:session:{id}:meta    hash  created / updated (RFC3339Nano)
//	legalmesh:{namespace}:session:{id}:state   hash  slot -> JSON value
//	legalmesh:{namespace}:session:{id}:events  list  JSON encoded events
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/legalmesh/core"
)

// Options configures a Store.
type Options struct {
	// Namespace isolates deployments sharing one Redis database.
	Namespace string
	// TTL expires idle sessions; zero keeps them forever.
	TTL time.Duration
}

// Store implements core.SessionStore on top of Redis.
type Store struct {
	rdb       goredis.UniversalClient
	namespace string
	ttl       time.Duration
}

// New creates a Store using an existing client. The caller owns the client
// unless Close is called on the Store.
func New(rdb goredis.UniversalClient, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Namespace: "default"}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Namespace == "" {
		return nil, errors.New("namespace cannot be empty")
	}

	return &Store{rdb: rdb, namespace: opts.Namespace, ttl: opts.TTL}, nil
}

// NewFromAddr dials Redis at addr and returns a Store owning the connection.
func NewFromAddr(addr, password string, db int, optFns ...func(o *Options)) (*Store, error) {
	return New(goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db}), optFns...)
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

// Close closes the underlying client.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) key(sessionID, suffix string) string {
	return fmt.Sprintf("legalmesh:%s:session:%s:%s", s.namespace, sessionID, suffix)
}

// Create resets the session and returns the fresh copy.
func (s *Store) Create(ctx context.Context, sessionID string) (*core.Session, error) {
	sess := core.NewSession(sessionID)

	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, s.key(sessionID, "state"), s.key(sessionID, "events"))
		p.HSet(ctx, s.key(sessionID, "meta"),
			"created", sess.Created.Format(time.RFC3339Nano),
			"updated", sess.Updated.Format(time.RFC3339Nano),
		)
		s.expire(ctx, p, sessionID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}

	return sess, nil
}

// Get loads the session, creating it lazily when no metadata exists.
func (s *Store) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	meta, err := s.rdb.HGetAll(ctx, s.key(sessionID, "meta")).Result()
	if err != nil {
		return nil, fmt.Errorf("read session meta %s: %w", sessionID, err)
	}

	if len(meta) == 0 {
		return s.Create(ctx, sessionID)
	}

	sess := core.NewSession(sessionID)
	if t, err := time.Parse(time.RFC3339Nano, meta["created"]); err == nil {
		sess.Created = t
	}
	if t, err := time.Parse(time.RFC3339Nano, meta["updated"]); err == nil {
		sess.Updated = t
	}

	state, err := s.rdb.HGetAll(ctx, s.key(sessionID, "state")).Result()
	if err != nil {
		return nil, fmt.Errorf("read session state %s: %w", sessionID, err)
	}

	for k, raw := range state {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode state slot %s: %w", k, err)
		}
		sess.State[k] = v
	}

	rawEvents, err := s.rdb.LRange(ctx, s.key(sessionID, "events"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session events %s: %w", sessionID, err)
	}

	for _, raw := range rawEvents {
		var ev core.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		sess.Events = append(sess.Events, ev)
	}

	return sess, nil
}

// AppendEvent pushes the JSON encoded event onto the session history.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, s.key(sessionID, "events"), b)
		s.touch(ctx, p, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append event to %s: %w", sessionID, err)
	}

	return nil
}

// ApplyDelta writes each slot as a JSON value into the state hash.
func (s *Store) ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}

	fields := make([]any, 0, len(delta)*2)
	for k, v := range delta {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode state slot %s: %w", k, err)
		}
		fields = append(fields, k, string(b))
	}

	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, s.key(sessionID, "state"), fields...)
		s.touch(ctx, p, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply delta to %s: %w", sessionID, err)
	}

	return nil
}

func (s *Store) touch(ctx context.Context, p goredis.Pipeliner, sessionID string) {
	now := time.Now().Format(time.RFC3339Nano)
	p.HSetNX(ctx, s.key(sessionID, "meta"), "created", now)
	p.HSet(ctx, s.key(sessionID, "meta"), "updated", now)
	s.expire(ctx, p, sessionID)
}

func (s *Store) expire(ctx context.Context, p goredis.Pipeliner, sessionID string) {
	if s.ttl <= 0 {
		return
	}
	for _, suffix := range []string{"meta", "state", "events"} {
		p.Expire(ctx, s.key(sessionID, suffix), s.ttl)
	}
}
