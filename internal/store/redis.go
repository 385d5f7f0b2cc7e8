package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func init() {
	Register("redis", openRedis)
}

// redisBackend implements Backend on a go-redis UniversalClient, which is either
// a single-node client or a cluster client depending on the topology.
//
// JSON commands are sent with Do so they work against any RedisJSON-compatible
// server regardless of client-side module support.
type redisBackend struct {
	client redis.UniversalClient
	owned  bool
}

// NewRedisBackend wraps an existing client. Close does not close the client.
func NewRedisBackend(client redis.UniversalClient) Backend {
	return &redisBackend{client: client}
}

func openRedis(ctx context.Context, cfg TopologyConfig) (Backend, error) {
	if len(cfg.Nodes) == 0 {
		return nil, errors.New("redis: no nodes configured")
	}
	client := newUniversalClient(cfg)

	// Verify connectivity.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &redisBackend{client: client, owned: true}, nil
}

func newUniversalClient(cfg TopologyConfig) redis.UniversalClient {
	opts := cfg.Options
	if cfg.Cluster {
		addrs := make([]string, 0, len(cfg.Nodes))
		for _, n := range cfg.Nodes {
			addrs = append(addrs, n.Addr())
		}
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        addrs,
			Username:     opts.Username,
			Password:     opts.Password,
			PoolSize:     opts.PoolSize,
			DialTimeout:  opts.DialTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,

			ContextTimeoutEnabled: true,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Nodes[0].Addr(),
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,

		ContextTimeoutEnabled: true,
	})
}

func (r *redisBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *redisBackend) Set(ctx context.Context, key, value string) (string, error) {
	return r.client.Set(ctx, key, value, 0).Result()
}

func (r *redisBackend) SetEx(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	return r.client.SetEx(ctx, key, value, ttl).Result()
}

func (r *redisBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.Expire(ctx, key, ttl).Result()
}

func (r *redisBackend) SAdd(ctx context.Context, key string, members ...any) (int64, error) {
	return r.client.SAdd(ctx, key, members...).Result()
}

func (r *redisBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *redisBackend) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	return r.client.SIsMember(ctx, key, member).Result()
}

func (r *redisBackend) SPopN(ctx context.Context, key string, count int64) ([]string, error) {
	return r.client.SPopN(ctx, key, count).Result()
}

func (r *redisBackend) ZAdd(ctx context.Context, key string, score float64, member any) (int64, error) {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Result()
}

func (r *redisBackend) ZRangeByScoreWithScores(ctx context.Context, key, min, max string) ([]ScoredMember, error) {
	zs, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		out = append(out, ScoredMember{Member: fmt.Sprint(z.Member), Score: z.Score})
	}
	return out, nil
}

func (r *redisBackend) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	return r.client.ZRemRangeByScore(ctx, key, min, max).Result()
}

func (r *redisBackend) Exists(ctx context.Context, key string) (int64, error) {
	return r.client.Exists(ctx, key).Result()
}

func (r *redisBackend) Del(ctx context.Context, key string) (int64, error) {
	return r.client.Del(ctx, key).Result()
}

func (r *redisBackend) JSONSet(ctx context.Context, key, path, value string) (string, error) {
	return r.client.Do(ctx, "JSON.SET", key, path, value).Text()
}

func (r *redisBackend) JSONGet(ctx context.Context, key, path string) (string, error) {
	v, err := r.client.Do(ctx, "JSON.GET", key, path).Text()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *redisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisBackend) Close() error {
	if !r.owned {
		return nil
	}
	if err := r.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
