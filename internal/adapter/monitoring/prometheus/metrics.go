// Package prometheus exposes coordinator metrics for scraping. The Redis
// stats:* counters remain the durable record; these gauges and counters
// are the live view.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	jobsSubmitted  prometheus.Counter
	jobsCompleted  prometheus.Counter
	jobsFailed     prometheus.Counter
	jobsCancelled  prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksRetried   prometheus.Counter
	activeWorkers  prometheus.Gauge
	queueDepth     *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daf_jobs_submitted_total",
			Help: "Jobs admitted by the coordinator.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daf_jobs_completed_total",
			Help: "Jobs that reached completed status.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daf_jobs_failed_total",
			Help: "Jobs that reached failed status.",
		}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daf_jobs_cancelled_total",
			Help: "Jobs cancelled by clients.",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daf_tasks_completed_total",
			Help: "Task attempts reported completed.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daf_tasks_failed_total",
			Help: "Tasks that exhausted their attempts.",
		}),
		tasksRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daf_tasks_retried_total",
			Help: "Failed task attempts pushed back for retry.",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "daf_active_workers",
			Help: "Workers with a fresh heartbeat.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "daf_task_queue_depth",
			Help: "Pending tasks per capability queue.",
		}, []string{"capability"}),
	}
	reg.MustRegister(
		m.jobsSubmitted, m.jobsCompleted, m.jobsFailed, m.jobsCancelled,
		m.tasksCompleted, m.tasksFailed, m.tasksRetried,
		m.activeWorkers, m.queueDepth,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The mutators tolerate a nil receiver so callers can run without metrics.

func (m *Metrics) JobSubmitted() {
	if m != nil {
		m.jobsSubmitted.Inc()
	}
}

func (m *Metrics) JobCompleted() {
	if m != nil {
		m.jobsCompleted.Inc()
	}
}

func (m *Metrics) JobFailed() {
	if m != nil {
		m.jobsFailed.Inc()
	}
}

func (m *Metrics) JobCancelled() {
	if m != nil {
		m.jobsCancelled.Inc()
	}
}

func (m *Metrics) TaskCompleted() {
	if m != nil {
		m.tasksCompleted.Inc()
	}
}

func (m *Metrics) TaskFailed() {
	if m != nil {
		m.tasksFailed.Inc()
	}
}

func (m *Metrics) TaskRetried() {
	if m != nil {
		m.tasksRetried.Inc()
	}
}

func (m *Metrics) SetActiveWorkers(n int) {
	if m != nil {
		m.activeWorkers.Set(float64(n))
	}
}

func (m *Metrics) SetQueueDepth(capability string, n int64) {
	if m != nil {
		m.queueDepth.WithLabelValues(capability).Set(float64(n))
	}
}
