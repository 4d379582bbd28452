package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsFinishedTotal, jobsSubmittedTotal) }

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bidforge_jobs_finished_total",
		Help: "Jobs that reached a terminal status, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'cancelled'
)

var jobsSubmittedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bidforge_jobs_submitted_total",
		Help: "Jobs accepted for asynchronous processing.",
	},
)

func IncJob(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobSubmitted() { jobsSubmittedTotal.Inc() }
