package store

import (
	"context"
	"errors"
	"fmt"
)

// ConnectionConfig holds the store topologies. HighAvailability is required;
// buckets that are not flagged high_availability use LowAvailability when present.
type ConnectionConfig struct {
	HighAvailability *TopologyConfig `mapstructure:"high_availability"`
	LowAvailability  *TopologyConfig `mapstructure:"low_availability"`
}

// Connections holds the opened backends.
type Connections struct {
	ha Backend
	la Backend
}

// Connect opens every configured topology. Any failure closes what was already
// opened and is returned to the caller.
func Connect(ctx context.Context, cfg ConnectionConfig) (*Connections, error) {
	if cfg.HighAvailability == nil {
		return nil, errors.New("store: connection config is missing HIGH_AVAILABILITY")
	}
	ha, err := Open(ctx, *cfg.HighAvailability)
	if err != nil {
		return nil, fmt.Errorf("store: high availability connection: %w", err)
	}

	conns := &Connections{ha: ha}
	if cfg.LowAvailability != nil {
		la, err := Open(ctx, *cfg.LowAvailability)
		if err != nil {
			_ = ha.Close()
			return nil, fmt.Errorf("store: low availability connection: %w", err)
		}
		conns.la = la
	}
	return conns, nil
}

// NewConnections wraps already opened backends. la may be nil.
func NewConnections(ha, la Backend) *Connections {
	return &Connections{ha: ha, la: la}
}

// HighAvailability returns the high availability backend.
func (c *Connections) HighAvailability() Backend {
	return c.ha
}

// LowAvailability returns the low availability backend, or nil when not configured.
func (c *Connections) LowAvailability() Backend {
	return c.la
}

// For returns the backend serving buckets with the given availability flag.
// Low availability buckets fall back to the high availability backend when no
// low availability topology is configured.
func (c *Connections) For(highAvailability bool) Backend {
	if !highAvailability && c.la != nil {
		return c.la
	}
	return c.ha
}

// Close closes every backend.
func (c *Connections) Close() error {
	var errs []error
	if c.ha != nil {
		errs = append(errs, c.ha.Close())
	}
	if c.la != nil {
		errs = append(errs, c.la.Close())
	}
	return errors.Join(errs...)
}
