package flash

import (
	"os"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Belphemur/flash/internal/metrics"
	"github.com/Belphemur/flash/internal/store"
)

// MonitoringEnv is the environment variable read for the default of WithMonitoring.
const MonitoringEnv = "LIBRARY_MONITORING_ENABLED"

type options struct {
	logger      zerolog.Logger
	recorder    metrics.Recorder
	compression string
	breaker     store.BreakerConfig
	isolated    bool
	hub         *sentry.Hub
	infoLogs    bool
	monitoring  bool
}

func defaultOptions() options {
	monitoring, _ := strconv.ParseBool(os.Getenv(MonitoringEnv))
	return options{
		logger:     log.Logger,
		breaker:    store.DefaultBreakerConfig(),
		infoLogs:   true,
		monitoring: monitoring,
	}
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the logger used for call logs, store faults and breaker events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder replaces the default Prometheus and zerolog recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithCompression selects the payload compressor: snappy (default), zstd or brotli.
func WithCompression(name string) Option {
	return func(o *options) { o.compression = name }
}

// WithBreakerConfig sets the store call timeout and circuit breaker thresholds.
func WithBreakerConfig(cfg store.BreakerConfig) Option {
	return func(o *options) { o.breaker = cfg }
}

// WithIsolatedBreakers gives the Cache its own breakers instead of the ones
// shared by every Cache in the process.
func WithIsolatedBreakers() Option {
	return func(o *options) { o.isolated = true }
}

// WithSentryHub reports store faults to hub.
func WithSentryHub(hub *sentry.Hub) Option {
	return func(o *options) { o.hub = hub }
}

// WithInfoLogs toggles the info line logged for successful and missed calls.
func WithInfoLogs(enabled bool) Option {
	return func(o *options) { o.infoLogs = enabled }
}

// WithMonitoring toggles the Prometheus metrics. Defaults to the value of
// LIBRARY_MONITORING_ENABLED.
func WithMonitoring(enabled bool) Option {
	return func(o *options) { o.monitoring = enabled }
}
