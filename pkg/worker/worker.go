// Package worker implements one swarm worker: a detached OS process
// bound to a single git worktree that repeatedly claims a task from
// the coordination store, runs the external LLM agent against it, and
// reports the outcome back: register, then alternate heartbeats with
// the claim→execute→finalize loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskswarm/swarmctl/pkg/agent"
	"github.com/taskswarm/swarmctl/pkg/gitutil"
	"github.com/taskswarm/swarmctl/pkg/log"
	"github.com/taskswarm/swarmctl/pkg/store"
)

const (
	heartbeatInterval = 10 * time.Second
	claimPollInterval = 2 * time.Second
)

// Worker drives the claim→execute→finalize loop for one worktree.
type Worker struct {
	Store       *store.Store
	RunID       string
	ID          string
	Num         int
	WorkDir     string
	AgentBin    string
	TaskTimeout time.Duration

	repo   *gitutil.Repo
	logger zerolog.Logger
}

// Register creates a Worker and its coordination-store row, bound to
// workDir (an existing git worktree).
func Register(s *store.Store, runID string, num, pid int, branch, workDir, agentBin string, taskTimeout time.Duration) (*Worker, error) {
	id, err := s.RegisterWorker(runID, num, pid, branch, workDir)
	if err != nil {
		return nil, fmt.Errorf("worker: register: %w", err)
	}
	return &Worker{
		Store:       s,
		RunID:       runID,
		ID:          id,
		Num:         num,
		WorkDir:     workDir,
		AgentBin:    agentBin,
		TaskTimeout: taskTimeout,
		repo:        gitutil.NewRepo(workDir),
		logger:      log.WithWorkerID(log.WithRunID(log.WithComponent("worker"), runID), id),
	}, nil
}

// Run blocks, alternating heartbeats and task execution, until ctx is
// cancelled (the worker subcommand's signal handler cancels it on
// SIGINT/SIGTERM).
func (w *Worker) Run(ctx context.Context) {
	stopHeartbeat := make(chan struct{})
	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		w.heartbeatLoop(ctx, stopHeartbeat)
	}()

	w.mainLoop(ctx)

	close(stopHeartbeat)
	<-heartbeatDone
	_ = w.Store.SetWorkerStatus(w.ID, "stopped")
}

func (w *Worker) heartbeatLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Store.WorkerHeartbeat(w.ID); err != nil {
				w.logger.Error().Err(err).Msg("heartbeat failed")
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// mainLoop implements the claim loop: claim, idempotency gate,
// scoped lock acquisition, execute, parse outcome, finalize.
func (w *Worker) mainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := w.Store.ClaimTask(w.RunID, w.ID)
		if errors.Is(err, store.ErrNoTask) {
			if !sleepOrDone(ctx, claimPollInterval) {
				return
			}
			continue
		}
		if err != nil {
			w.logger.Error().Err(err).Msg("claim_task failed")
			if !sleepOrDone(ctx, claimPollInterval) {
				return
			}
			continue
		}

		w.runTask(ctx, claimed)

		if err := w.Store.WorkerHeartbeat(w.ID); err != nil {
			w.logger.Error().Err(err).Msg("task-boundary heartbeat failed")
		}
	}
}

func (w *Worker) runTask(ctx context.Context, claimed *store.ClaimedTask) {
	logger := log.WithTaskID(w.logger, claimed.ID)
	taskHash := store.TaskHash(claimed.TaskText)

	done, err := alreadyDone(w.Store, w.repo, taskHash, claimed.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("idempotency check failed, proceeding with execution")
	} else if done {
		logger.Info().Msg("task already done (idempotency gate), completing without re-executing")
		if err := w.Store.CompleteTask(w.RunID, claimed.ID, claimed.EstimatedFiles, w.ID); err != nil {
			logger.Error().Err(err).Msg("complete_task failed after idempotency gate")
		}
		return
	}

	conflicts, release, err := AcquireScoped(w.Store, w.RunID, w.ID, claimed.ID, claimed.EstimatedFiles)
	if err != nil {
		logger.Error().Err(err).Msg("acquire_locks failed")
		release()
		w.requeue(claimed.ID)
		return
	}
	if len(conflicts) > 0 {
		logger.Info().Strs("conflicts", conflicts).Msg("lock conflict, requeuing task")
		release()
		w.requeue(claimed.ID)
		return
	}
	defer release()

	outcome, err := execute(ctx, w.AgentBin, w.WorkDir, w.ID, claimed.ID, claimed.TaskText, w.TaskTimeout)
	w.recordCost(claimed.ID, outcome)

	if err != nil {
		reason := "agent_error"
		if errors.Is(err, agent.ErrTimeout) {
			reason = "timeout"
		}
		logger.Error().Err(err).Str("reason", reason).Msg("agent invocation did not complete")
		w.fail(claimed.ID, err.Error())
		return
	}
	if !outcome.Complete {
		logger.Warn().Msg("agent finished without a completion signal")
		w.fail(claimed.ID, ErrNoCompletionSignal.Error())
		return
	}

	actualFiles, err := w.changedFiles()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to enumerate changed files, recording task complete with none")
	}

	if err := w.Store.CompleteTask(w.RunID, claimed.ID, actualFiles, w.ID); err != nil {
		logger.Error().Err(err).Msg("complete_task failed")
	}
}

func (w *Worker) recordCost(taskID int64, outcome agent.Outcome) {
	if outcome.PromptTokens == 0 && outcome.CompletionTokens == 0 && outcome.Cost == 0 {
		return
	}
	if err := w.Store.RecordTaskCost(w.RunID, taskID, outcome.PromptTokens, outcome.CompletionTokens, outcome.Cost); err != nil {
		w.logger.Error().Err(err).Msg("record_task_cost failed")
	}
}

func (w *Worker) changedFiles() ([]string, error) {
	head, err := w.repo.HeadCommit("HEAD")
	if err != nil {
		return nil, err
	}
	base, err := w.repo.DefaultBaseBranch()
	if err != nil {
		return nil, err
	}
	mergeBase, err := w.repo.MergeBase(base, head)
	if err != nil {
		return nil, err
	}
	return w.repo.ChangedFiles(mergeBase, head)
}

func (w *Worker) requeue(taskID int64) {
	if err := w.Store.RequeueTask(w.RunID, taskID, w.ID); err != nil {
		w.logger.Error().Err(err).Int64("task_id", taskID).Msg("requeue_task failed")
	}
}

func (w *Worker) fail(taskID int64, reason string) {
	if err := w.Store.FailTask(w.RunID, taskID, w.ID, reason); err != nil {
		w.logger.Error().Err(err).Msg("fail_task failed")
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
