package metrics

import (
	"time"

	"github.com/taskswarm/swarmctl/pkg/types"
)

// runStore is the narrow slice of *store.Store the collector polls.
// Declared here instead of importing pkg/store directly because
// pkg/store imports pkg/metrics for its own event-driven counters;
// accepting the interface keeps the dependency one-directional.
type runStore interface {
	ListRuns() ([]*types.Run, error)
	ListTasks(runID string) ([]*types.Task, error)
	ListWorkers(runID string) ([]*types.Worker, error)
}

// Collector periodically snapshots the coordination store into the
// gauge metrics that a point-in-time count, not a state transition,
// naturally produces (ActiveRuns, TasksTotal, WorkersTotal,
// WorkerLiveness) — counters for transitions (TasksCompleted,
// WorkersReaped, ...) are incremented directly at the call site
// instead and don't need polling.
type Collector struct {
	store  runStore
	stopCh chan struct{}
}

// NewCollector creates a Collector polling s.
func NewCollector(s runStore) *Collector {
	return &Collector{
		store:  s,
		stopCh: make(chan struct{}),
	}
}

// Start begins polling on a 15s interval, collecting immediately first.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts polling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	runs, err := c.store.ListRuns()
	if err != nil {
		return
	}

	var active int
	taskCounts := make(map[types.TaskStatus]int)
	workerCounts := make(map[types.WorkerStatus]int)
	liveness := make(map[string]bool)

	for _, r := range runs {
		if r.Status == types.RunStatusRunning {
			active++
		}

		tasks, err := c.store.ListTasks(r.ID)
		if err == nil {
			for _, t := range tasks {
				taskCounts[t.Status]++
			}
		}

		workers, err := c.store.ListWorkers(r.ID)
		if err == nil {
			for _, w := range workers {
				workerCounts[w.Status]++
				liveness[w.ID] = w.Status != types.WorkerStatusStopped
			}
		}
	}

	ActiveRuns.Set(float64(active))

	TasksTotal.Reset()
	for status, count := range taskCounts {
		TasksTotal.WithLabelValues(string(status)).Set(float64(count))
	}

	WorkersTotal.Reset()
	for status, count := range workerCounts {
		WorkersTotal.WithLabelValues(string(status)).Set(float64(count))
	}

	WorkerLiveness.Reset()
	for workerID, alive := range liveness {
		v := 0.0
		if alive {
			v = 1.0
		}
		WorkerLiveness.WithLabelValues(workerID).Set(v)
	}
}
