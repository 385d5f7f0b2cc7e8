// Package flash is a bucket-scoped cache facade over Redis.
//
// Every call validates the bucket and the calling service, compresses or
// decompresses the payload, runs the store command behind a circuit breaker
// with a fixed timeout and records one metrics event. Calls never return
// errors: a failed call returns the fixed failure value of its operation.
package flash

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Belphemur/flash/internal/apperrors"
	"github.com/Belphemur/flash/internal/bucket"
	"github.com/Belphemur/flash/internal/metrics"
	"github.com/Belphemur/flash/internal/payload"
	"github.com/Belphemur/flash/internal/store"
)

// ErrNotConnected is the failure of calls made before Connect or Attach.
var ErrNotConnected error = &apperrors.ErrNotConnected{}

type (
	// ServiceConfig maps bucket names to their configuration.
	ServiceConfig = bucket.ServiceConfig
	// BucketConfig describes a single bucket.
	BucketConfig = bucket.Config
	// ConnectionConfig holds the store topologies.
	ConnectionConfig = store.ConnectionConfig
	// BreakerConfig configures the store call timeout and circuit breakers.
	BreakerConfig = store.BreakerConfig
)

// state is what Connect or Attach installs. It is replaced as a whole and
// never mutated afterwards.
type state struct {
	policy *bucket.Policy
	ha     *store.Adapter
	la     *store.Adapter
	conns  *store.Connections
}

// adapter returns the adapter serving bucketName.
func (s *state) adapter(bucketName string) *store.Adapter {
	if s.la != nil && !s.policy.HighAvailability(bucketName) {
		return s.la
	}
	return s.ha
}

// Cache is the cache facade. It is safe for concurrent use.
type Cache struct {
	opts     options
	codec    *payload.Codec
	recorder metrics.Recorder
	breakers *store.Breakers

	mu      sync.RWMutex
	st      *state
	service string
}

// New creates an unconnected Cache.
func New(opts ...Option) (*Cache, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	compressor, err := payload.CompressorByName(o.compression)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		opts:     o,
		codec:    payload.New(compressor),
		recorder: o.recorder,
	}
	if c.recorder == nil {
		c.recorder = metrics.NewCollector(o.logger, metrics.Options{
			InfoLogs:   o.infoLogs,
			Monitoring: o.monitoring,
		})
	}
	if o.isolated {
		c.breakers = store.NewBreakers()
	} else {
		c.breakers = store.DefaultBreakers()
	}
	return c, nil
}

// Connect opens the configured topologies and installs the bucket policy. It is
// the only call that reports failures: a cache that cannot connect must not be used.
func (c *Cache) Connect(ctx context.Context, conn ConnectionConfig, services ServiceConfig, serviceName string) error {
	policy, err := bucket.NewPolicy(services)
	if err != nil {
		return err
	}
	conns, err := store.Connect(ctx, conn)
	if err != nil {
		return fmt.Errorf("flash: connect: %w", err)
	}
	c.install(policy, conns, serviceName)
	return nil
}

// Attach installs the bucket policy over already opened backends. la may be nil.
// Closing the Cache closes the backends.
func (c *Cache) Attach(services ServiceConfig, serviceName string, ha, la store.Backend) error {
	if ha == nil {
		return errors.New("flash: attach requires a high availability backend")
	}
	policy, err := bucket.NewPolicy(services)
	if err != nil {
		return err
	}
	c.install(policy, store.NewConnections(ha, la), serviceName)
	return nil
}

func (c *Cache) install(policy *bucket.Policy, conns *store.Connections, serviceName string) {
	st := &state{
		policy: policy,
		ha:     c.newAdapter(conns.HighAvailability()),
		conns:  conns,
	}
	if la := conns.LowAvailability(); la != nil {
		st.la = c.newAdapter(la)
	}

	c.mu.Lock()
	old := c.st
	c.st = st
	c.service = serviceName
	c.mu.Unlock()

	if old != nil {
		if err := old.conns.Close(); err != nil {
			c.opts.logger.Warn().Err(err).Msg("Failed to close previous store connections")
		}
	}
}

func (c *Cache) newAdapter(b store.Backend) *store.Adapter {
	return store.NewAdapter(b, store.AdapterOptions{
		Breaker:  c.opts.breaker,
		Breakers: c.breakers,
		Logger:   c.opts.logger,
		Hub:      c.opts.hub,
	})
}

// SetCurrentService changes the service identity used to authorize later calls.
func (c *Cache) SetCurrentService(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.service = name
}

// CurrentService returns the service identity used to authorize calls.
func (c *Cache) CurrentService() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.service
}

func (c *Cache) snapshot() (*state, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st, c.service
}

// ExportMetrics returns the flash_* metric families in the Prometheus text
// format, or "" when monitoring is disabled.
func (c *Cache) ExportMetrics() string {
	if !c.opts.monitoring {
		return ""
	}
	out, err := metrics.Export(nil)
	if err != nil {
		c.opts.logger.Error().Err(err).Msg("Failed to export metrics")
		return ""
	}
	return out
}

// Ping checks every connected store.
func (c *Cache) Ping(ctx context.Context) error {
	st, _ := c.snapshot()
	if st == nil {
		return ErrNotConnected
	}
	if err := st.ha.Ping(ctx); err != nil {
		return err
	}
	if st.la != nil {
		return st.la.Ping(ctx)
	}
	return nil
}

// Buckets returns the configured bucket names, sorted.
func (c *Cache) Buckets() []string {
	st, _ := c.snapshot()
	if st == nil {
		return nil
	}
	return st.policy.Buckets()
}

// Close closes the store connections. Later calls fail with ErrNotConnected.
func (c *Cache) Close() error {
	c.mu.Lock()
	st := c.st
	c.st = nil
	c.mu.Unlock()

	if st == nil {
		return nil
	}
	return st.conns.Close()
}
