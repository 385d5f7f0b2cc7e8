package store

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/fallback"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/Belphemur/flash/internal/apperrors"
	"github.com/Belphemur/flash/internal/keys"
)

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	// Breaker configures timeouts and breakers. The zero value selects DefaultBreakerConfig.
	Breaker BreakerConfig

	// Breakers is the registry the adapter takes its breakers from. Nil selects
	// DefaultBreakers, shared by every adapter in the process.
	Breakers *Breakers

	// Logger receives fallback and breaker events.
	Logger zerolog.Logger

	// Hub, when set, receives every StoreFault.
	Hub *sentry.Hub
}

// Adapter runs Backend commands through per-command circuit breakers with a fixed
// timeout. Every fault, including timeouts and open breakers, surfaces as an
// *apperrors.StoreFault; successful replies are returned untouched.
type Adapter struct {
	backend   Backend
	breakers  *Breakers
	executors map[string]failsafe.Executor[any]
	cfg       BreakerConfig
	logger    zerolog.Logger
	hub       *sentry.Hub
}

// NewAdapter wraps backend.
func NewAdapter(backend Backend, opts AdapterOptions) *Adapter {
	breakers := opts.Breakers
	if breakers == nil {
		breakers = DefaultBreakers()
	}
	a := &Adapter{
		backend:   backend,
		breakers:  breakers,
		executors: make(map[string]failsafe.Executor[any], len(Commands)),
		cfg:       opts.Breaker.withDefaults(),
		logger:    opts.Logger,
		hub:       opts.Hub,
	}
	for _, cmd := range Commands {
		a.executors[cmd] = a.newExecutor(cmd)
	}
	return a
}

// newExecutor composes fallback, breaker and timeout, outermost first, so that
// timeouts count as breaker failures and every error reaches the fallback.
func (a *Adapter) newExecutor(cmd string) failsafe.Executor[any] {
	fb := fallback.NewWithFunc[any](func(exec failsafe.Execution[any]) (any, error) {
		return nil, a.fallback(exec.Context(), cmd, exec.LastError())
	})
	to := timeout.New[any](a.cfg.Timeout)

	if a.cfg.ForceClosed {
		return failsafe.With[any](fb, to)
	}
	return failsafe.With[any](fb, a.breakers.Get(cmd, a.cfg, a.logger), to)
}

// fallback logs the fault as a generic error event and converts it.
func (a *Adapter) fallback(ctx context.Context, cmd string, err error) error {
	// Stack is captured here, in the fallback, not where the store call failed.
	stack := string(debug.Stack())
	fault := apperrors.NewStoreFault(cmd, err, stack)

	ev := a.logger.Error().
		Str("error_type", apperrors.TypeStoreFault).
		Str("command", cmd).
		Str("error_stack", stack).
		Str("error_message", fault.Message)
	if bucketName, userKey, ok := keys.Split(keyFrom(ctx)); ok {
		ev = ev.Str("bucket", bucketName).Str("user_key", userKey)
	}
	ev.Msg("Store call failed")
	FallbackTotal.WithLabelValues(cmd).Inc()
	if a.hub != nil {
		a.hub.CaptureException(fault)
	}
	return fault
}

// State returns the state of the breaker guarding cmd. Forced closed adapters
// have no breaker and always report ClosedState.
func (a *Adapter) State(cmd string) circuitbreaker.State {
	if a.cfg.ForceClosed {
		return circuitbreaker.ClosedState
	}
	return a.breakers.Get(cmd, a.cfg, a.logger).State()
}

type cacheKeyCtx struct{}

func withKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, cacheKeyCtx{}, key)
}

func keyFrom(ctx context.Context) string {
	key, _ := ctx.Value(cacheKeyCtx{}).(string)
	return key
}

type reply struct {
	v   any
	err error
}

// call runs fn through the executor of cmd. fn runs on its own goroutine so a
// backend that does not honour ctx cannot hold the caller past the timeout; the
// abandoned goroutine finishes into a buffered channel and exits.
func call[T any](ctx context.Context, a *Adapter, cmd, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	res, err := a.executors[cmd].WithContext(withKey(ctx, key)).GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		execCtx := exec.Context()
		done := make(chan reply, 1)
		go func() {
			v, err := fn(execCtx)
			done <- reply{v: v, err: err}
		}()
		select {
		case r := <-done:
			return r.v, r.err
		case <-execCtx.Done():
			return nil, execCtx.Err()
		}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// Get returns the raw value of key, or "" when it does not exist.
func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	return call(ctx, a, CmdGet, key, func(ctx context.Context) (string, error) {
		return a.backend.Get(ctx, key)
	})
}

// Set stores value without expiry.
func (a *Adapter) Set(ctx context.Context, key, value string) (string, error) {
	return call(ctx, a, CmdSet, key, func(ctx context.Context) (string, error) {
		return a.backend.Set(ctx, key, value)
	})
}

// SetAndExpire stores value with a TTL in seconds.
func (a *Adapter) SetAndExpire(ctx context.Context, key, value string, ttl int) (string, error) {
	return call(ctx, a, CmdSet, key, func(ctx context.Context) (string, error) {
		return a.backend.SetEx(ctx, key, value, seconds(ttl))
	})
}

// Expire sets a TTL in seconds on key.
func (a *Adapter) Expire(ctx context.Context, key string, ttl int) (bool, error) {
	return call(ctx, a, CmdExpire, key, func(ctx context.Context) (bool, error) {
		return a.backend.Expire(ctx, key, seconds(ttl))
	})
}

// SAdd adds members to the set at key and returns how many were new.
func (a *Adapter) SAdd(ctx context.Context, key string, members ...any) (int64, error) {
	return call(ctx, a, CmdSAdd, key, func(ctx context.Context) (int64, error) {
		return a.backend.SAdd(ctx, key, members...)
	})
}

// ZAdd adds member with score to the sorted set at key.
func (a *Adapter) ZAdd(ctx context.Context, key string, score float64, member any) (int64, error) {
	return call(ctx, a, CmdZAdd, key, func(ctx context.Context) (int64, error) {
		return a.backend.ZAdd(ctx, key, score, member)
	})
}

// ZRangeByScore returns members with scores between min and max, inclusive unless
// prefixed with "(". "-inf" and "+inf" are accepted.
func (a *Adapter) ZRangeByScore(ctx context.Context, key, min, max string) ([]ScoredMember, error) {
	return call(ctx, a, CmdZRangeByScore, key, func(ctx context.Context) ([]ScoredMember, error) {
		return a.backend.ZRangeByScoreWithScores(ctx, key, min, max)
	})
}

// ZRemRangeByScore removes members with scores between min and max.
func (a *Adapter) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	return call(ctx, a, CmdZRemRangeByScore, key, func(ctx context.Context) (int64, error) {
		return a.backend.ZRemRangeByScore(ctx, key, min, max)
	})
}

// SMembers returns every member of the set at key.
func (a *Adapter) SMembers(ctx context.Context, key string) ([]string, error) {
	return call(ctx, a, CmdSMembers, key, func(ctx context.Context) ([]string, error) {
		return a.backend.SMembers(ctx, key)
	})
}

// SIsMember reports whether member belongs to the set at key.
func (a *Adapter) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	return call(ctx, a, CmdSIsMember, key, func(ctx context.Context) (bool, error) {
		return a.backend.SIsMember(ctx, key, member)
	})
}

// Exists returns 1 when key exists, 0 otherwise.
func (a *Adapter) Exists(ctx context.Context, key string) (int64, error) {
	return call(ctx, a, CmdExists, key, func(ctx context.Context) (int64, error) {
		return a.backend.Exists(ctx, key)
	})
}

// SPop removes and returns up to count random members of the set at key.
func (a *Adapter) SPop(ctx context.Context, key string, count int) ([]string, error) {
	return call(ctx, a, CmdSPop, key, func(ctx context.Context) ([]string, error) {
		return a.backend.SPopN(ctx, key, int64(count))
	})
}

// Delete removes key and returns the number of keys removed.
func (a *Adapter) Delete(ctx context.Context, key string) (int64, error) {
	return call(ctx, a, CmdDelete, key, func(ctx context.Context) (int64, error) {
		return a.backend.Del(ctx, key)
	})
}

// JSONSet stores the JSON text value at path in the document at key.
func (a *Adapter) JSONSet(ctx context.Context, key, value, path string) (string, error) {
	return call(ctx, a, CmdJSONSet, key, func(ctx context.Context) (string, error) {
		return a.backend.JSONSet(ctx, key, path, value)
	})
}

// JSONGet returns the JSON text at path in the document at key, or "" when the key does not exist.
func (a *Adapter) JSONGet(ctx context.Context, key, path string) (string, error) {
	return call(ctx, a, CmdJSONGet, key, func(ctx context.Context) (string, error) {
		return a.backend.JSONGet(ctx, key, path)
	})
}

// Ping checks store connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	_, err := call(ctx, a, CmdPing, "", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.backend.Ping(ctx)
	})
	return err
}

// Close closes the backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

func seconds(ttl int) time.Duration {
	return time.Duration(ttl) * time.Second
}
