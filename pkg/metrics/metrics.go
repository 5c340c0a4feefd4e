package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarm_runs_total",
			Help: "Total number of runs by terminal status",
		},
		[]string{"status"},
	)

	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarm_active_runs",
			Help: "Number of runs currently in the running state",
		},
	)

	// Task metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarm_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TasksScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_tasks_scheduled_total",
			Help: "Total number of tasks successfully claimed by a worker",
		},
	)

	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_tasks_completed_total",
			Help: "Total number of tasks completed successfully",
		},
	)

	TasksFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_tasks_failed_total",
			Help: "Total number of tasks that ended in the failed state",
		},
	)

	TasksRequeued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarm_tasks_requeued_total",
			Help: "Total number of tasks returned to pending, by reason",
		},
		[]string{"reason"},
	)

	ClaimContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_claim_contention_total",
			Help: "Total number of claim_task retries caused by a lost race",
		},
	)

	ClaimLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarm_claim_latency_seconds",
			Help:    "Time taken for claim_task to succeed, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarm_workers_total",
			Help: "Total number of worker rows by status",
		},
		[]string{"status"},
	)

	WorkerLiveness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarm_worker_alive",
			Help: "Worker liveness polled by the collector from the worker row's status (1 = not stopped, 0 = stopped)",
		},
		[]string{"worker_id"},
	)

	WorkersReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_workers_reaped_total",
			Help: "Total number of workers marked stopped by the dead-worker sweep",
		},
	)

	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarm_scheduling_sweep_duration_seconds",
			Help:    "Time taken for one scheduler sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulerSweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_scheduler_sweeps_total",
			Help: "Total number of scheduler sweeps completed",
		},
	)

	// Lock metrics
	LockConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_lock_conflicts_total",
			Help: "Total number of acquire_locks calls that hit an overlapping pattern",
		},
	)

	LocksHeld = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarm_locks_held",
			Help: "Current number of held file locks across all active runs",
		},
	)

	// Agent invocation metrics
	AgentInvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swarm_agent_invocation_duration_seconds",
			Help:    "Wall-clock duration of an LLM agent subprocess invocation",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"outcome"},
	)

	AgentTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_agent_timeouts_total",
			Help: "Total number of agent invocations killed on wall-clock timeout",
		},
	)

	AgentTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarm_agent_tokens_total",
			Help: "Total prompt/completion tokens reported by the agent, by kind",
		},
		[]string{"kind"},
	)

	AgentCostTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_agent_cost_usd_total",
			Help: "Best-effort cumulative cost in USD reported across agent invocations",
		},
	)

	// Merge metrics
	MergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swarm_merge_duration_seconds",
			Help:    "Time taken to merge all worker worktrees into the destination repo",
			Buckets: prometheus.DefBuckets,
		},
	)

	MergeConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarm_merge_conflicts_total",
			Help: "Total number of per-worker git merges that fell back to file copy",
		},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(ActiveRuns)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TasksScheduled)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(TasksFailed)
	prometheus.MustRegister(TasksRequeued)
	prometheus.MustRegister(ClaimContentionTotal)
	prometheus.MustRegister(ClaimLatency)
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(WorkerLiveness)
	prometheus.MustRegister(WorkersReaped)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(SchedulerSweepsTotal)
	prometheus.MustRegister(LockConflictsTotal)
	prometheus.MustRegister(LocksHeld)
	prometheus.MustRegister(AgentInvocationDuration)
	prometheus.MustRegister(AgentTimeoutsTotal)
	prometheus.MustRegister(AgentTokensTotal)
	prometheus.MustRegister(AgentCostTotal)
	prometheus.MustRegister(MergeDuration)
	prometheus.MustRegister(MergeConflictsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
