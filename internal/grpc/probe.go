package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger checks that the cache store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober periodically pings the store and publishes the result as the health status.
type Prober struct {
	pinger   Pinger
	health   *health.Server
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	serving bool
}

// NewProber creates a Prober. A non-positive interval defaults to 10s.
func NewProber(p Pinger, hs *health.Server, interval time.Duration, logger zerolog.Logger) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Prober{
		pinger:   p,
		health:   hs,
		interval: interval,
		timeout:  interval,
		logger:   logger,
	}
}

// Probe pings once and updates the health status.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	serving := err == nil

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !serving {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	p.health.SetServingStatus(HealthService, status)
	p.health.SetServingStatus("", status)

	if serving != p.serving {
		if serving {
			p.logger.Info().Msg("Cache store reachable")
		} else {
			p.logger.Error().Err(err).Msg("Cache store unreachable")
		}
	}
	p.serving = serving
	return serving
}

// Run probes immediately, then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
