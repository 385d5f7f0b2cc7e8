package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Belphemur/flash/internal/store"
)

// Method names recorded by ScriptedBackend.
const (
	OpGet              = "GET"
	OpSet              = "SET"
	OpSetEx            = "SETEX"
	OpExpire           = "EXPIRE"
	OpSAdd             = "SADD"
	OpSMembers         = "SMEMBERS"
	OpSIsMember        = "SISMEMBER"
	OpSPop             = "SPOP"
	OpZAdd             = "ZADD"
	OpZRangeByScore    = "ZRANGEBYSCORE"
	OpZRemRangeByScore = "ZREMRANGEBYSCORE"
	OpExists           = "EXISTS"
	OpDel              = "DEL"
	OpJSONSet          = "JSON.SET"
	OpJSONGet          = "JSON.GET"
	OpPing             = "PING"
)

type script struct {
	err   error
	delay time.Duration
	stall time.Duration
}

// ScriptedBackend wraps a store.Backend, records every call and lets tests
// inject errors, delays and stalls per method. Delays honor context
// cancellation; stalls do not, like a client blocked on a dead socket.
// This is a test helper and should not be used in production code.
type ScriptedBackend struct {
	inner store.Backend

	mu      sync.Mutex
	scripts map[string]script
	calls   []string
}

// NewScriptedBackend wraps inner. A nil inner selects a fresh memory backend.
func NewScriptedBackend(inner store.Backend) *ScriptedBackend {
	if inner == nil {
		inner, _ = store.NewMemoryBackend(0)
	}
	return &ScriptedBackend{inner: inner, scripts: make(map[string]script)}
}

// Fail makes every later call of op return err.
func (s *ScriptedBackend) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scripts[op]
	sc.err = err
	s.scripts[op] = sc
}

// Delay makes every later call of op wait d before running.
func (s *ScriptedBackend) Delay(op string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scripts[op]
	sc.delay = d
	s.scripts[op] = sc
}

// Stall makes every later call of op block for d regardless of its context.
func (s *ScriptedBackend) Stall(op string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.scripts[op]
	sc.stall = d
	s.scripts[op] = sc
}

// Reset clears scripts and the call log.
func (s *ScriptedBackend) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = make(map[string]script)
	s.calls = nil
}

// Calls returns the recorded method names in call order.
func (s *ScriptedBackend) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many times op was called.
func (s *ScriptedBackend) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (s *ScriptedBackend) before(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	sc := s.scripts[op]
	s.mu.Unlock()

	if sc.stall > 0 {
		time.Sleep(sc.stall)
	}
	if sc.delay > 0 {
		select {
		case <-time.After(sc.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.err
}

func (s *ScriptedBackend) Get(ctx context.Context, key string) (string, error) {
	if err := s.before(ctx, OpGet); err != nil {
		return "", err
	}
	return s.inner.Get(ctx, key)
}

func (s *ScriptedBackend) Set(ctx context.Context, key, value string) (string, error) {
	if err := s.before(ctx, OpSet); err != nil {
		return "", err
	}
	return s.inner.Set(ctx, key, value)
}

func (s *ScriptedBackend) SetEx(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	if err := s.before(ctx, OpSetEx); err != nil {
		return "", err
	}
	return s.inner.SetEx(ctx, key, value, ttl)
}

func (s *ScriptedBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.before(ctx, OpExpire); err != nil {
		return false, err
	}
	return s.inner.Expire(ctx, key, ttl)
}

func (s *ScriptedBackend) SAdd(ctx context.Context, key string, members ...any) (int64, error) {
	if err := s.before(ctx, OpSAdd); err != nil {
		return 0, err
	}
	return s.inner.SAdd(ctx, key, members...)
}

func (s *ScriptedBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := s.before(ctx, OpSMembers); err != nil {
		return nil, err
	}
	return s.inner.SMembers(ctx, key)
}

func (s *ScriptedBackend) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	if err := s.before(ctx, OpSIsMember); err != nil {
		return false, err
	}
	return s.inner.SIsMember(ctx, key, member)
}

func (s *ScriptedBackend) SPopN(ctx context.Context, key string, count int64) ([]string, error) {
	if err := s.before(ctx, OpSPop); err != nil {
		return nil, err
	}
	return s.inner.SPopN(ctx, key, count)
}

func (s *ScriptedBackend) ZAdd(ctx context.Context, key string, score float64, member any) (int64, error) {
	if err := s.before(ctx, OpZAdd); err != nil {
		return 0, err
	}
	return s.inner.ZAdd(ctx, key, score, member)
}

func (s *ScriptedBackend) ZRangeByScoreWithScores(ctx context.Context, key, min, max string) ([]store.ScoredMember, error) {
	if err := s.before(ctx, OpZRangeByScore); err != nil {
		return nil, err
	}
	return s.inner.ZRangeByScoreWithScores(ctx, key, min, max)
}

func (s *ScriptedBackend) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	if err := s.before(ctx, OpZRemRangeByScore); err != nil {
		return 0, err
	}
	return s.inner.ZRemRangeByScore(ctx, key, min, max)
}

func (s *ScriptedBackend) Exists(ctx context.Context, key string) (int64, error) {
	if err := s.before(ctx, OpExists); err != nil {
		return 0, err
	}
	return s.inner.Exists(ctx, key)
}

func (s *ScriptedBackend) Del(ctx context.Context, key string) (int64, error) {
	if err := s.before(ctx, OpDel); err != nil {
		return 0, err
	}
	return s.inner.Del(ctx, key)
}

func (s *ScriptedBackend) JSONSet(ctx context.Context, key, path, value string) (string, error) {
	if err := s.before(ctx, OpJSONSet); err != nil {
		return "", err
	}
	return s.inner.JSONSet(ctx, key, path, value)
}

func (s *ScriptedBackend) JSONGet(ctx context.Context, key, path string) (string, error) {
	if err := s.before(ctx, OpJSONGet); err != nil {
		return "", err
	}
	return s.inner.JSONGet(ctx, key, path)
}

func (s *ScriptedBackend) Ping(ctx context.Context) error {
	if err := s.before(ctx, OpPing); err != nil {
		return err
	}
	return s.inner.Ping(ctx)
}

func (s *ScriptedBackend) Close() error {
	return s.inner.Close()
}
