/*
Package log provides structured logging for swarmctl using zerolog.

The log package wraps zerolog to provide JSON or human-readable console
logging, configurable log levels, and helper functions for attaching
the run_id/worker_id/task_id/component fields that show up throughout
the coordinator, scheduler, worker, and devplan analyzer.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout or custom writer          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("worker")                  │          │
	│  │  - WithRunID(logger, runID)                 │          │
	│  │  - WithWorkerID(logger, workerID)            │          │
	│  │  - WithTaskID(logger, taskID)                │          │
	│  │  chain onto each other: WithComponent is    │          │
	│  │  the only one that starts from the global   │          │
	│  │  Logger; the rest take a logger and return  │          │
	│  │  a child with one more field                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"info","component":"worker",      │          │
	│  │   "run_id":"...","worker_id":"...",         │          │
	│  │   "message":"task claimed"}                 │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

Initializing the logger, in cmd/swarmctl's cobra.OnInitialize hook:

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})

Component loggers, chained with context fields as a worker binds to a
run and then to a specific task:

	w.logger = log.WithWorkerID(log.WithRunID(log.WithComponent("worker"), runID), id)
	taskLogger := log.WithTaskID(w.logger, claimed.ID)
	taskLogger.Info().Msg("task claimed")

Simple package-level helpers for one-off messages outside a component:

	log.Info("swarmctl starting")
	log.Error("failed to open coordination store")

# Best Practices

Do:
  - Build a component logger once per long-lived value (Worker,
    Scheduler, Coordinator) and store it rather than re-deriving it
    per log call
  - Chain WithRunID/WithWorkerID/WithTaskID onto an existing logger
    instead of the global Logger, so earlier context fields survive
  - Log errors with .Err() so they get a dedicated field

Don't:
  - Log secrets: agent stderr heads are truncated
    (stderrRingSize) specifically so a runaway agent response can't
    flood the log
  - Use Debug level in production runs; it logs every scheduler sweep
*/
package log
