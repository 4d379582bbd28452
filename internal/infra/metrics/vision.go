package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		visionPromptTokens,
		visionCallsLatencyMs,
		visionOversizePrompts,
	)
}

var (
	visionPromptTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidforge_vision_prompt_tokens",
			Help: "Estimated prompt tokens sent per provider/model.",
		},
		[]string{"provider", "model"},
	)

	visionCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidforge_vision_calls_latency_ms",
			Help:    "Vision call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000},
		},
		[]string{"provider", "model", "success"},
	)

	visionOversizePrompts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidforge_vision_oversize_prompts",
			Help: "Prompts whose token estimate exceeded the configured budget.",
		},
		[]string{"provider", "model"},
	)
)

func ObserveVisionCall(provider, model string, promptTokens, latencyMs int, success bool) {
	visionPromptTokens.WithLabelValues(norm(provider), norm(model)).Add(float64(promptTokens))
	visionCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncOversizePrompt(provider, model string) {
	visionOversizePrompts.WithLabelValues(norm(provider), norm(model)).Inc()
}
