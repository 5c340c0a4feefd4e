/*
Package metrics provides Prometheus metrics collection and exposition for
swarmctl's coordinator process.

Metrics are registered at package init and exposed via an HTTP endpoint for
scraping by Prometheus servers. Alongside the metric vars, this package
holds a small health-check surface (HealthChecker, HealthHandler,
ReadyHandler, LivenessHandler) used by the same server to answer
orchestrator health and readiness probes, and a Collector that periodically
polls the coordination store for point-in-time gauges the store itself
can't update inline.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Sources                  │          │
	│  │                                              │          │
	│  │  Event-driven: incremented at the store/    │          │
	│  │  scheduler/merge call site that causes a    │          │
	│  │  transition (task completed, lock conflict, │          │
	│  │  worker reaped, sweep finished, ...)        │          │
	│  │                                              │          │
	│  │  Polled: Collector snapshots point-in-time  │          │
	│  │  counts (active runs, task/worker counts by │          │
	│  │  status) on a 15s ticker                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: metrics.Handler() (promhttp)    │          │
	│  │  - /health, /ready, /live served alongside  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Run metrics:

	swarm_runs_total{status}           Counter - runs reaching a terminal status (completed, interrupted)
	swarm_active_runs                  Gauge   - runs currently in the running state

Task metrics:

	swarm_tasks_total{status}              Gauge   - task rows by status, polled
	swarm_tasks_scheduled_total             Counter - tasks successfully claimed by a worker
	swarm_tasks_completed_total             Counter - tasks completed successfully
	swarm_tasks_failed_total                Counter - tasks that ended failed
	swarm_tasks_requeued_total{reason}       Counter - tasks returned to pending, by reason
	swarm_claim_contention_total            Counter - claim_task retries caused by a lost race
	swarm_claim_latency_seconds             Histogram - time for claim_task to succeed, incl. retries

Worker metrics:

	swarm_workers_total{status}        Gauge   - worker rows by status, polled
	swarm_worker_alive{worker_id}      Gauge   - per-worker liveness (status not stopped), polled
	swarm_workers_reaped_total          Counter - workers marked stopped by the dead-worker sweep

Scheduler metrics:

	swarm_scheduling_sweep_duration_seconds   Histogram - time for one scheduler sweep
	swarm_scheduler_sweeps_total               Counter   - sweeps completed

Lock metrics:

	swarm_lock_conflicts_total   Counter - acquire_locks calls that hit an overlapping pattern
	swarm_locks_held             Gauge   - currently held file locks across all active runs

Agent invocation metrics:

	swarm_agent_invocation_duration_seconds{outcome}   Histogram - agent subprocess wall-clock duration
	swarm_agent_timeouts_total                          Counter   - invocations killed on timeout
	swarm_agent_tokens_total{kind}                      Counter   - prompt/completion tokens reported
	swarm_agent_cost_usd_total                          Counter   - cumulative best-effort USD cost

Merge metrics:

	swarm_merge_duration_seconds     Histogram - time to merge all worker worktrees
	swarm_merge_conflicts_total       Counter   - per-worker merges that fell back to file copy

# Health and readiness

GetHealth reports "unhealthy" if any registered component is unhealthy.
GetReadiness looks only at a fixed critical set — "store" and
"scheduler" — and ignores other components, so a probe hitting /ready before the scheduler has started
correctly reports not_ready instead of a false positive.

# Usage

The coordinator registers components and starts the collector in New:

	metrics.RegisterComponent("store", true, "")
	c.collector = metrics.NewCollector(store)
	c.collector.Start()

and mounts the HTTP surface when an address is configured:

	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
*/
package metrics
