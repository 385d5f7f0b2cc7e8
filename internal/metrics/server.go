package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
)

// DefaultPort is used when the monitoring port is not configured.
const DefaultPort = 9090

// NewHTTPServer creates an HTTP server exposing every registered metric at
// /metrics and only the flash_* families at /metrics/flash. A nil gatherer
// selects the default registry.
func NewHTTPServer(address string, port int, gatherer prometheus.Gatherer, logger zerolog.Logger) *http.Server {
	if port == 0 {
		port = DefaultPort
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/metrics/flash", func(w http.ResponseWriter, _ *http.Request) {
		out, err := Export(gatherer)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to export flash metrics")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		_, _ = w.Write([]byte(out))
	})
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", address, port),
		Handler: mux,
	}
}
