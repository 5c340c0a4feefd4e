// Package scheduler runs the coordinator's single poll loop: it sweeps
// dead workers, enforces the run-wide timeout, and decides when a run
// has finished. It never executes tasks itself.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskswarm/swarmctl/pkg/log"
	"github.com/taskswarm/swarmctl/pkg/metrics"
	"github.com/taskswarm/swarmctl/pkg/store"
)

const (
	pollInterval      = 5 * time.Second
	staleHeartbeatMax = 30 * time.Second
)

// Outcome is why the scheduler loop stopped.
type Outcome string

const (
	OutcomeDone              Outcome = "done"
	OutcomeResumeRequired    Outcome = "resume_required"
	OutcomeRunTimeout        Outcome = "run_timeout"
	OutcomeStoppedExternally Outcome = "stopped"
)

// Scheduler owns the single coordinator-side poll loop. It holds no
// task-execution logic; workers own that.
type Scheduler struct {
	store      *store.Store
	runID      string
	runTimeout time.Duration
	logger     zerolog.Logger

	// PollInterval overrides the tick cadence; tests shrink it from the
	// production default so the loop doesn't have to run for minutes.
	PollInterval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan Outcome
}

// New builds a Scheduler for one run. runTimeout is measured from this
// Scheduler's own Start call, not the run's DB started_at, so that
// resuming an old run doesn't immediately trip the timeout.
func New(s *store.Store, runID string, runTimeout time.Duration) *Scheduler {
	return &Scheduler{
		store:        s,
		runID:        runID,
		runTimeout:   runTimeout,
		logger:       log.WithRunID(log.WithComponent("scheduler"), runID),
		PollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan Outcome, 1),
	}
}

// Start launches the loop in the background. Call Wait to block for
// its outcome, or Stop to cancel it early.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop cancels the loop; Wait then returns OutcomeStoppedExternally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Wait blocks until the loop exits and returns why.
func (s *Scheduler) Wait() Outcome {
	return <-s.doneCh
}

func (s *Scheduler) run() {
	start := time.Now()
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.finish(OutcomeStoppedExternally)
			return
		case <-ticker.C:
			s.emitStatus()
			timer := metrics.NewTimer()
			outcome, done := s.sweep(start)
			timer.ObserveDuration(metrics.SchedulingLatency)
			metrics.SchedulerSweepsTotal.Inc()
			if done {
				s.finish(outcome)
				return
			}
		}
	}
}

func (s *Scheduler) finish(o Outcome) {
	s.logger.Info().Str("outcome", string(o)).Msg("scheduler loop exiting")
	s.doneCh <- o
}

// sweep runs one iteration's checks and reports whether the loop
// should stop, and why.
func (s *Scheduler) sweep(start time.Time) (Outcome, bool) {
	deadReaped, err := s.store.ReapDeadWorkers(s.runID)
	if err != nil {
		s.logger.Error().Err(err).Msg("dead-worker sweep failed")
	} else if deadReaped > 0 {
		s.logger.Warn().Int("count", deadReaped).Msg("reaped workers with dead pids")
	}

	staleReaped, err := s.store.CleanupStaleWorkers(s.runID, staleHeartbeatMax)
	if err != nil {
		s.logger.Error().Err(err).Msg("stale-heartbeat sweep failed")
	} else if staleReaped > 0 {
		s.logger.Warn().Int("count", staleReaped).Msg("reaped workers with stale heartbeats")
	}

	if orphaned, err := s.store.ReapOrphanTasks(s.runID); err != nil {
		s.logger.Error().Err(err).Msg("orphan-task sweep failed")
	} else if orphaned > 0 {
		s.logger.Warn().Int("count", orphaned).Msg("requeued orphaned in_progress tasks")
	}

	alive, err := s.store.AliveWorkerCount(s.runID)
	if err != nil {
		s.logger.Error().Err(err).Msg("alive-worker count failed")
	} else if alive == 0 {
		s.logger.Error().Msg("no alive workers remain, resume required")
		if err := s.store.SetRunInterrupted(s.runID); err != nil {
			s.logger.Error().Err(err).Msg("failed to mark run interrupted")
		}
		return OutcomeResumeRequired, true
	}

	if time.Since(start) > s.runTimeout {
		s.logger.Error().Dur("run_timeout", s.runTimeout).Msg("run timeout exceeded")
		if err := s.store.SetRunInterrupted(s.runID); err != nil {
			s.logger.Error().Err(err).Msg("failed to mark run interrupted")
		}
		return OutcomeRunTimeout, true
	}

	pending, err := s.store.PendingTaskCount(s.runID)
	if err != nil {
		s.logger.Error().Err(err).Msg("pending-task count failed")
	} else if pending == 0 {
		return OutcomeDone, true
	}

	return "", false
}

func (s *Scheduler) emitStatus() {
	run, err := s.store.GetRun(s.runID)
	if err != nil {
		s.logger.Error().Err(err).Msg("status line: failed to read run")
		return
	}
	s.logger.Info().
		Str("status", string(run.Status)).
		Int("total_tasks", run.TotalTasks).
		Int("completed_tasks", run.CompletedTasks).
		Int("failed_tasks", run.FailedTasks).
		Msg("run status")
}
