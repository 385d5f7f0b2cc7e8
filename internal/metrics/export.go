package metrics

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Prefix is shared by every metric family owned by this module.
const Prefix = "flash_"

// Export renders the flash_* families of gatherer in the Prometheus text format.
// A nil gatherer selects the default one.
func Export(gatherer prometheus.Gatherer) (string, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	families, err := gatherer.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), Prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}
