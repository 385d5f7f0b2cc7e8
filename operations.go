package flash

import (
	"context"
	"fmt"

	"github.com/Belphemur/flash/internal/apperrors"
	"github.com/Belphemur/flash/internal/bucket"
	"github.com/Belphemur/flash/internal/metrics"
	"github.com/Belphemur/flash/internal/payload"
)

// OK is returned by successful writes.
const OK = "OK"

// DefaultJSONPath is the JSON path used when none is given.
const DefaultJSONPath = "$"

// ScoredValue is a decoded sorted set member with its score.
type ScoredValue struct {
	Value any
	Score float64
}

func withPayload(name string, value any) *bucket.Field {
	f := bucket.Required(name, value)
	return &f
}

// GetData returns the value stored under key, or nil when there is none.
// Returns nil on failure.
func (c *Cache) GetData(ctx context.Context, bucketName, key string) any {
	return execute(ctx, c, call{command: metrics.CmdGetData, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[any] {
			raw, err := r.adapter.Get(ctx, r.cacheKey)
			if err != nil {
				return failed[any](err)
			}
			value, err := c.codec.Uncompress(raw)
			if err != nil {
				return failed[any](err)
			}
			out := success(value)
			if value == nil {
				out = miss(value)
			}
			out.dataLength = len(raw)
			return out
		})
}

// SetData stores value under key. A ttl of 0 selects the bucket default; a
// resolved ttl of -1 stores the key without expiry. Returns "OK", or 0 on failure.
func (c *Cache) SetData(ctx context.Context, bucketName, key string, value any, ttl int) any {
	return execute(ctx, c, call{command: metrics.CmdSetData, bucket: bucketName, key: key, payload: withPayload("data", value)},
		func(ctx context.Context, r request) outcome[any] {
			ttl := r.policy.ResolveTTL(ttl, r.bucket)
			blob, err := c.codec.Compress(value)
			if err != nil {
				return failed[any](err)
			}
			if ttl == bucket.NoExpiry {
				_, err = r.adapter.Set(ctx, r.cacheKey, blob)
			} else {
				_, err = r.adapter.SetAndExpire(ctx, r.cacheKey, blob, ttl)
			}
			if err != nil {
				return failed[any](err)
			}
			return success[any](OK)
		})
}

// JSONSet stores value as a JSON document at path ("$" when empty), then sets
// the key TTL unless it resolves to -1. A failed EXPIRE is logged but does not
// fail the call. Returns "OK", or 0 on failure.
func (c *Cache) JSONSet(ctx context.Context, bucketName, key string, value any, path string, ttl int) any {
	if path == "" {
		path = DefaultJSONPath
	}
	return execute(ctx, c, call{command: metrics.CmdJSONSet, bucket: bucketName, key: key, payload: withPayload("data", value)},
		func(ctx context.Context, r request) outcome[any] {
			ttl := r.policy.ResolveTTL(ttl, r.bucket)
			doc, err := payload.Marshal(value)
			if err != nil {
				return failed[any](err)
			}
			if _, err := r.adapter.JSONSet(ctx, r.cacheKey, string(doc), path); err != nil {
				return failed[any](err)
			}
			if ttl != bucket.NoExpiry {
				if _, err := r.adapter.Expire(ctx, r.cacheKey, ttl); err != nil {
					c.opts.logger.Warn().
						Err(err).
						Str("cache_key", r.cacheKey).
						Int("ttl", ttl).
						Msg("Failed to set JSON document expiry")
				}
			}
			return success[any](OK)
		})
}

// JSONGet returns the first match of path ("$" when empty) in the JSON document
// stored under key, or nil when there is none. The store replies to JSONPath
// queries with an array of matches; any other reply shape is a decode failure.
// Returns 0 on failure.
func (c *Cache) JSONGet(ctx context.Context, bucketName, key, path string) any {
	if path == "" {
		path = DefaultJSONPath
	}
	return execute(ctx, c, call{command: metrics.CmdJSONGet, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[any] {
			raw, err := r.adapter.JSONGet(ctx, r.cacheKey, path)
			if err != nil {
				return failed[any](err)
			}
			if raw == "" {
				return miss[any](nil)
			}
			parsed, err := payload.Unmarshal(raw)
			if err != nil {
				return failed[any](err)
			}
			if parsed == nil {
				return miss[any](nil)
			}
			matches, ok := parsed.([]any)
			if !ok {
				return failed[any](&apperrors.ErrDecode{Err: fmt.Errorf("expected an array of matches, got %T", parsed)})
			}
			if len(matches) == 0 {
				return miss[any](nil)
			}
			out := success(matches[0])
			out.dataLength = len(raw)
			return out
		})
}

// ZAdd adds value with score to the sorted set under key, then sets the key TTL
// unless it resolves to -1. Returns "OK", or 0 on failure.
func (c *Cache) ZAdd(ctx context.Context, bucketName, key string, score float64, value any, ttl int) any {
	return execute(ctx, c, call{command: metrics.CmdZAdd, bucket: bucketName, key: key, payload: withPayload("data", value)},
		func(ctx context.Context, r request) outcome[any] {
			ttl := r.policy.ResolveTTL(ttl, r.bucket)
			blob, err := c.codec.Compress(value)
			if err != nil {
				return failed[any](err)
			}
			if _, err := r.adapter.ZAdd(ctx, r.cacheKey, score, blob); err != nil {
				return failed[any](err)
			}
			if ttl != bucket.NoExpiry {
				if _, err := r.adapter.Expire(ctx, r.cacheKey, ttl); err != nil {
					return failed[any](err)
				}
			}
			return success[any](OK)
		})
}

// ZRangeByScore returns the decoded members of the sorted set under key with a
// score between min and max. Bounds are inclusive unless prefixed with "(";
// empty bounds mean -inf and +inf. Returns nil on failure.
func (c *Cache) ZRangeByScore(ctx context.Context, bucketName, key, min, max string) []ScoredValue {
	if min == "" {
		min = "-inf"
	}
	if max == "" {
		max = "+inf"
	}
	return execute(ctx, c, call{command: metrics.CmdZRangeByScore, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[[]ScoredValue] {
			members, err := r.adapter.ZRangeByScore(ctx, r.cacheKey, min, max)
			if err != nil {
				return failed[[]ScoredValue](err)
			}
			values := make([]ScoredValue, 0, len(members))
			length := 0
			for _, m := range members {
				v, err := c.codec.Uncompress(m.Member)
				if err != nil {
					return failed[[]ScoredValue](err)
				}
				values = append(values, ScoredValue{Value: v, Score: m.Score})
				length += len(m.Member)
			}
			out := success(values)
			if len(values) == 0 {
				out = miss(values)
			}
			out.dataLength = length
			return out
		})
}

// ZRemRangeByScore removes the members of the sorted set under key with a score
// between min and max, with the bounds of ZRangeByScore. Returns the number of
// members removed, or 0 on failure.
func (c *Cache) ZRemRangeByScore(ctx context.Context, bucketName, key, min, max string) int64 {
	if min == "" {
		min = "-inf"
	}
	if max == "" {
		max = "+inf"
	}
	return execute(ctx, c, call{command: metrics.CmdZRemRangeByScore, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[int64] {
			n, err := r.adapter.ZRemRangeByScore(ctx, r.cacheKey, min, max)
			if err != nil {
				return failed[int64](err)
			}
			return success(n)
		})
}

// CheckIfKeyExists reports whether key exists. Returns false on failure.
func (c *Cache) CheckIfKeyExists(ctx context.Context, bucketName, key string) bool {
	return execute(ctx, c, call{command: metrics.CmdCheckIfKeyExists, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[bool] {
			n, err := r.adapter.Exists(ctx, r.cacheKey)
			if err != nil {
				return failed[bool](err)
			}
			return success(n != 0)
		})
}

// AddArrayValues adds values to the set under key and returns how many were new.
// An empty values skips the store entirely. The key TTL is only set when members
// were added and the TTL does not resolve to -1. Returns 0 on failure.
func (c *Cache) AddArrayValues(ctx context.Context, bucketName, key string, values []any, ttl int) int64 {
	return execute(ctx, c, call{command: metrics.CmdAddArrayValues, bucket: bucketName, key: key, payload: withPayload("values", values)},
		func(ctx context.Context, r request) outcome[int64] {
			if len(values) == 0 {
				return success(int64(0))
			}
			added, err := r.adapter.SAdd(ctx, r.cacheKey, values...)
			if err != nil {
				return failed[int64](err)
			}
			if added == 0 {
				return success(added)
			}
			if ttl := r.policy.ResolveTTL(ttl, r.bucket); ttl != bucket.NoExpiry {
				if _, err := r.adapter.Expire(ctx, r.cacheKey, ttl); err != nil {
					return failed[int64](err)
				}
			}
			return success(added)
		})
}

// GetArrayValues returns the members of the set under key; an empty set is a
// miss and returns an empty slice. Returns nil on failure.
func (c *Cache) GetArrayValues(ctx context.Context, bucketName, key string) []string {
	return execute(ctx, c, call{command: metrics.CmdGetArrayValues, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[[]string] {
			members, err := r.adapter.SMembers(ctx, r.cacheKey)
			if err != nil {
				return failed[[]string](err)
			}
			if len(members) == 0 {
				return miss([]string{})
			}
			return success(members)
		})
}

// CheckValueInArray reports whether value is a member of the set under key.
// Returns false on failure.
func (c *Cache) CheckValueInArray(ctx context.Context, bucketName, key string, value any) bool {
	return execute(ctx, c, call{command: metrics.CmdCheckValueInArray, bucket: bucketName, key: key, payload: withPayload("value", value)},
		func(ctx context.Context, r request) outcome[bool] {
			ok, err := r.adapter.SIsMember(ctx, r.cacheKey, value)
			if err != nil {
				return failed[bool](err)
			}
			return success(ok)
		})
}

// PopValuesInSet removes and returns up to count random members of the set
// under key. A count below 1 pops one member. Returns an empty slice on failure.
func (c *Cache) PopValuesInSet(ctx context.Context, bucketName, key string, count int) []string {
	if count < 1 {
		count = 1
	}
	return execute(ctx, c, call{command: metrics.CmdSPop, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[[]string] {
			popped, err := r.adapter.SPop(ctx, r.cacheKey, count)
			if err != nil {
				return failed[[]string](err)
			}
			if popped == nil {
				popped = []string{}
			}
			return success(popped)
		})
}

// DeleteKey removes key and returns the number of keys removed, or 0 on failure.
func (c *Cache) DeleteKey(ctx context.Context, bucketName, key string) int64 {
	return execute(ctx, c, call{command: metrics.CmdDeleteKey, bucket: bucketName, key: key},
		func(ctx context.Context, r request) outcome[int64] {
			n, err := r.adapter.Delete(ctx, r.cacheKey)
			if err != nil {
				return failed[int64](err)
			}
			return success(n)
		})
}
