// Package metrics records one observation per cache facade call: a latency
// histogram, error and miss counters, and a structured log line.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Belphemur/flash/internal/apperrors"
)

// Status is the outcome of a facade call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusMiss    Status = "miss"
	StatusFailure Status = "failure"
)

// Facade command names, used as the "command" label.
const (
	CmdGetData           = "getData"
	CmdSetData           = "setData"
	CmdZAdd              = "zadd"
	CmdCheckIfKeyExists  = "checkIfKeyExists"
	CmdAddArrayValues    = "addArrayValues"
	CmdGetArrayValues    = "getArrayValues"
	CmdCheckValueInArray = "checkValueInArray"
	CmdDeleteKey         = "deleteKey"
	CmdSPop              = "spop"
	CmdJSONSet           = "jsonSet"
	CmdJSONGet           = "jsonGet"
	CmdZRangeByScore     = "zrangeByScore"
	CmdZRemRangeByScore  = "zremRangeByScore"
)

// Event describes a single facade call.
type Event struct {
	Bucket     string
	Command    string
	Status     Status
	Duration   time.Duration
	CacheKey   string
	Service    string
	Err        error
	DataLength int
}

// Recorder receives one Event per facade call. Implementations must not panic
// and must be safe for concurrent use.
type Recorder interface {
	Capture(Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Event)

// Capture implements Recorder.
func (f RecorderFunc) Capture(e Event) { f(e) }

// Facade request metrics
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flash_request_duration_milliseconds",
			Help:    "Duration of cache facade calls in milliseconds.",
			Buckets: []float64{1, 3, 5, 10, 15, 20, 25, 50, 100, 1000, 60000},
		},
		[]string{"service", "bucket", "command", "status"},
	)

	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flash_request_error_count",
			Help: "Total number of failed cache facade calls.",
		},
		[]string{"service", "bucket", "command", "error_type"},
	)

	RequestMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flash_request_miss_count",
			Help: "Total number of cache facade calls that found nothing.",
		},
		[]string{"service", "bucket", "command"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration,
		RequestErrors,
		RequestMisses,
	)
}

// Options configures a Collector.
type Options struct {
	// InfoLogs enables the info line written for successful and missed calls.
	// Failures are always logged.
	InfoLogs bool

	// Monitoring enables the Prometheus updates.
	Monitoring bool
}

// Collector is the default Recorder.
type Collector struct {
	logger zerolog.Logger
	opts   Options
}

// NewCollector creates a Collector logging to logger.
func NewCollector(logger zerolog.Logger, opts Options) *Collector {
	return &Collector{logger: logger, opts: opts}
}

// Capture implements Recorder. Panics are recovered and logged.
func (c *Collector) Capture(e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("error_type", "flash_metrics_capture_error").
				Str("event_name", e.Bucket).
				Str("event_type", e.Command).
				Str("error_message", fmt.Sprint(r)).
				Msg("Failed to capture cache metrics")
		}
	}()

	ms := float64(e.Duration) / float64(time.Millisecond)

	if c.opts.Monitoring {
		RequestDuration.WithLabelValues(e.Service, e.Bucket, e.Command, string(e.Status)).Observe(ms)
		switch e.Status {
		case StatusFailure:
			RequestErrors.WithLabelValues(e.Service, e.Bucket, e.Command, apperrors.Classify(e.Err)).Inc()
		case StatusMiss:
			RequestMisses.WithLabelValues(e.Service, e.Bucket, e.Command).Inc()
		}
	}

	if e.Status == StatusFailure {
		c.logger.Error().
			Err(e.Err).
			Str("error_type", apperrors.Classify(e.Err)).
			Str("event_name", e.Bucket).
			Str("event_type", e.Command).
			Str("status", string(e.Status)).
			Str("cache_key", e.CacheKey).
			Str("service_name", e.Service).
			Float64("response_time_ms", ms).
			Msg("Cache call failed")
		return
	}
	if c.opts.InfoLogs {
		c.logger.Info().
			Str("event_name", e.Bucket).
			Str("event_type", e.Command).
			Str("status", string(e.Status)).
			Str("cache_key", e.CacheKey).
			Str("service_name", e.Service).
			Float64("response_time_ms", ms).
			Int("data_length", e.DataLength).
			Msg("Cache call")
	}
}
