package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(stageLatencyMs) }

var stageLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bidforge_stage_latency_ms",
		Help:    "Workflow stage latency distribution in milliseconds.",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 15000, 60000},
	},
	[]string{"stage", "success"},
)

func ObserveStage(stage string, d time.Duration, success bool) {
	stageLatencyMs.WithLabelValues(norm(stage), strconv.FormatBool(success)).
		Observe(float64(d.Milliseconds()))
}
