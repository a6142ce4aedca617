package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBuckets are latency buckets in milliseconds.
var DefaultBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// PrometheusReporter records latencies in a histogram labelled by metric and tag.
type PrometheusReporter struct {
	hist *prometheus.HistogramVec
}

// NewPrometheusReporter creates the histogram and registers it with reg.
// A histogram already registered under the same name is reused.
func NewPrometheusReporter(reg prometheus.Registerer, namespace string, buckets []float64) (*PrometheusReporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}

	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_latency_milliseconds",
		Help:      "Latency of backing-store fetches in milliseconds.",
		Buckets:   buckets,
	}, []string{"metric", "tag"})

	if err := reg.Register(hist); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("failed to register latency histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("latency histogram registered with a different type: %T", are.ExistingCollector)
		}
		hist = existing
	}

	return &PrometheusReporter{hist: hist}, nil
}

func (p *PrometheusReporter) ReportLatency(metric string, start time.Time, tag string, _ int) {
	p.hist.WithLabelValues(metric, tag).Observe(elapsedMillis(start))
}
