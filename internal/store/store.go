// Package store wraps the physical key-value store. Backends expose the native
// command surface; the Adapter runs every command through a circuit breaker with
// a fixed timeout and turns any fault into an *apperrors.StoreFault.
package store

import (
	"context"
	"time"
)

// Command names identify store primitives. Each one owns a circuit breaker.
const (
	CmdGet              = "get"
	CmdSet              = "set" // SET and SETEX
	CmdSAdd             = "sadd"
	CmdZAdd             = "zadd"
	CmdZRangeByScore    = "zrangebyscore"
	CmdZRemRangeByScore = "zremrangebyscore"
	CmdExpire           = "expire"
	CmdSMembers         = "smembers"
	CmdSIsMember        = "sismember"
	CmdExists           = "exists"
	CmdDelete           = "delete"
	CmdSPop             = "spop"
	CmdJSONSet          = "jsonset"
	CmdJSONGet          = "jsonget"
	CmdPing             = "ping"
)

// Commands lists every command name, in a stable order.
var Commands = []string{
	CmdGet, CmdSet, CmdSAdd, CmdZAdd, CmdZRangeByScore, CmdZRemRangeByScore, CmdExpire,
	CmdSMembers, CmdSIsMember, CmdExists, CmdDelete, CmdSPop, CmdJSONSet, CmdJSONGet, CmdPing,
}

// ScoredMember is a sorted set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Backend is the native command surface of the store. Replies are returned as the
// store sends them; a missing key on GET or JSON.GET is reported as "" with no error.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) (string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	SAdd(ctx context.Context, key string, members ...any) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key string, member any) (bool, error)
	SPopN(ctx context.Context, key string, count int64) ([]string, error)

	ZAdd(ctx context.Context, key string, score float64, member any) (int64, error)
	ZRangeByScoreWithScores(ctx context.Context, key, min, max string) ([]ScoredMember, error)
	ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error)

	Exists(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) (int64, error)

	JSONSet(ctx context.Context, key, path, value string) (string, error)
	JSONGet(ctx context.Context, key, path string) (string, error)

	Ping(ctx context.Context) error
	Close() error
}
