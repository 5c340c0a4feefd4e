// Package coordinator wires the coordination store, devplan analyzer,
// worker spawner, scheduler, and merger into the two entry points the
// CLI drives: starting a fresh run and resuming an interrupted one.
// It holds no state of its own beyond the store handle and config;
// everything durable lives in the coordination store, not in this struct.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskswarm/swarmctl/pkg/config"
	"github.com/taskswarm/swarmctl/pkg/devplan"
	"github.com/taskswarm/swarmctl/pkg/events"
	"github.com/taskswarm/swarmctl/pkg/gitutil"
	"github.com/taskswarm/swarmctl/pkg/log"
	"github.com/taskswarm/swarmctl/pkg/merge"
	"github.com/taskswarm/swarmctl/pkg/metrics"
	"github.com/taskswarm/swarmctl/pkg/scheduler"
	"github.com/taskswarm/swarmctl/pkg/store"
	"github.com/taskswarm/swarmctl/pkg/worker"
)

// Coordinator assembles one run's components. Callers construct one
// per CLI invocation and discard it when the command returns.
type Coordinator struct {
	Store  *store.Store
	Config *config.Config
	Events *events.Broker

	// SchedulerPollInterval overrides the scheduler's tick cadence when
	// set; tests shrink it so a run doesn't have to wait out the
	// production 5s default.
	SchedulerPollInterval time.Duration

	logger     zerolog.Logger
	collector  *metrics.Collector
	metricsSrv *http.Server
}

// New builds a Coordinator, starts its event broker and a background
// gauge collector, and — when cfg.MetricsAddr is set — starts an HTTP
// server exposing /metrics, /health, /ready, and /live.
func New(cfg *config.Config, s *store.Store) *Coordinator {
	b := events.NewBroker()
	b.Start()

	c := &Coordinator{
		Store:  s,
		Config: cfg,
		Events: b,
		logger: log.WithComponent("coordinator"),
	}

	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("scheduler", false, "not started")

	c.collector = metrics.NewCollector(s)
	c.collector.Start()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		c.metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := c.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		c.logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
	}

	return c
}

// Close stops the event broker, the metrics collector, and the metrics
// HTTP server if one was started. It does not close the store; callers
// own the store's lifetime independently.
func (c *Coordinator) Close() {
	c.Events.Stop()
	c.collector.Stop()
	metrics.UpdateComponent("scheduler", false, "stopped")
	if c.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.metricsSrv.Shutdown(ctx)
	}
}

// Result is what Start and Resume report back to the CLI.
type Result struct {
	RunID    string
	Outcome  scheduler.Outcome
	Analysis devplan.Summary
	Merge    merge.Summary
	Merged   bool
}

// HashDevplan digests a devplan file's contents for use as a run's
// source_hash, the key cross-run resume and dedup both use.
func HashDevplan(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("coordinator: read devplan: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Start runs the full pipeline: analyze the devplan, spawn workers,
// run the scheduler loop, and, on a clean finish, merge. projectRoot
// is the git repository worker worktrees branch off of.
func (c *Coordinator) Start(ctx context.Context, devplanPath, projectRoot, projectName string, workerCount int) (Result, error) {
	sourceHash, err := HashDevplan(devplanPath)
	if err != nil {
		return Result{}, err
	}

	if existing, err := c.Store.FindExistingRun(sourceHash); err == nil {
		return Result{}, fmt.Errorf("coordinator: run %s for this devplan is already active, use resume", existing.ID)
	} else if !errors.Is(err, store.ErrRunNotFound) {
		return Result{}, fmt.Errorf("coordinator: find existing run: %w", err)
	}

	fm, err := devplan.ReadFrontMatter(devplanPath)
	if err != nil {
		return Result{}, fmt.Errorf("coordinator: read devplan front matter: %w", err)
	}
	if workerCount <= 0 {
		workerCount = fm.Workers
	}
	if workerCount <= 0 {
		workerCount = c.Config.MaxWorkers
	}
	if fm.BaseBranch != "" && c.Config.BaseBranch == "" {
		c.Config.BaseBranch = fm.BaseBranch
	}
	if fm.Project != "" && projectName == "" {
		projectName = fm.Project
	}

	if projectName != "" {
		c.Config.ProjectName = projectName
	}

	runID, err := c.Store.StartRun("devplan", devplanPath, sourceHash, "", workerCount)
	if err != nil {
		return Result{}, fmt.Errorf("coordinator: start run: %w", err)
	}
	c.logger.Info().Str("run_id", runID).Int("workers", workerCount).Msg("run started")
	c.Events.Publish(&events.Event{Type: events.EventRunStarted, Message: runID})

	analyzer := devplan.NewAnalyzer(c.Store, c.Config.AgentBin, projectRoot, c.Config.TaskTimeout)
	analysis, err := analyzer.Analyze(ctx, runID, devplanPath)
	if err != nil {
		return Result{RunID: runID}, fmt.Errorf("coordinator: analyze devplan: %w", err)
	}
	c.logger.Info().Int("added", analysis.Added).Int("skipped", analysis.Skipped).Msg("devplan analyzed")

	if err := c.spawnWorkers(runID, projectRoot, workerCount); err != nil {
		return Result{RunID: runID, Analysis: analysis}, err
	}

	return c.runScheduler(ctx, runID, analysis)
}

// Resume re-runs resume_run's crash recovery, relaunches every
// worker the run's registry still records, and re-enters the
// scheduler loop.
func (c *Coordinator) Resume(ctx context.Context, runID string) (Result, error) {
	if err := c.Store.ResumeRun(runID); err != nil {
		return Result{}, fmt.Errorf("coordinator: resume run: %w", err)
	}
	c.logger.Info().Str("run_id", runID).Msg("run resumed")
	c.Events.Publish(&events.Event{Type: events.EventRunStarted, Message: runID})

	workers, err := c.Store.ListWorkers(runID)
	if err != nil {
		return Result{}, fmt.Errorf("coordinator: list workers: %w", err)
	}

	swarmctlBin, err := os.Executable()
	if err != nil {
		return Result{}, fmt.Errorf("coordinator: resolve swarmctl binary: %w", err)
	}

	for _, w := range workers {
		if _, err := os.Stat(w.WorkDir); err != nil {
			c.logger.Warn().Int("worker_num", w.WorkerNum).Str("work_dir", w.WorkDir).
				Msg("worktree missing on resume, leaving worker slot idle")
			continue
		}

		logPath := filepath.Join(c.Config.WorkerDir(runID, w.WorkerNum), "logs", "worker.log")
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return Result{}, fmt.Errorf("coordinator: prepare log dir: %w", err)
		}

		if _, err := worker.Spawn(worker.SpawnOptions{
			SwarmctlBin: swarmctlBin,
			RunID:       runID,
			WorkerNum:   w.WorkerNum,
			WorkDir:     w.WorkDir,
			LogPath:     logPath,
		}); err != nil {
			return Result{}, fmt.Errorf("coordinator: respawn worker %d: %w", w.WorkerNum, err)
		}
		c.Events.Publish(&events.Event{Type: events.EventWorkerRegistered, Message: fmt.Sprintf("worker-%d respawned", w.WorkerNum)})

		if c.Config.SpawnDelay > 0 {
			time.Sleep(c.Config.SpawnDelay)
		}
	}

	return c.runScheduler(ctx, runID, devplan.Summary{})
}

// spawnWorkers creates one worktree-backed worker per slot and
// launches its detached process, staggered by Config.SpawnDelay.
func (c *Coordinator) spawnWorkers(runID, projectRoot string, workerCount int) error {
	repo := gitutil.NewRepo(projectRoot)

	baseBranch := c.Config.BaseBranch
	if baseBranch == "" {
		var err error
		baseBranch, err = repo.DefaultBaseBranch()
		if err != nil {
			return fmt.Errorf("coordinator: resolve base branch: %w", err)
		}
	}

	swarmctlBin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("coordinator: resolve swarmctl binary: %w", err)
	}

	for n := 0; n < workerCount; n++ {
		workDir := filepath.Join(c.Config.WorkerDir(runID, n), "repo")
		branch := gitutil.WorkerBranchName(runID, n)
		if err := repo.AddWorktree(workDir, branch, baseBranch); err != nil {
			return fmt.Errorf("coordinator: create worktree for worker %d: %w", n, err)
		}

		logPath := filepath.Join(c.Config.WorkerDir(runID, n), "logs", "worker.log")
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return fmt.Errorf("coordinator: prepare log dir: %w", err)
		}

		if _, err := worker.Spawn(worker.SpawnOptions{
			SwarmctlBin: swarmctlBin,
			RunID:       runID,
			WorkerNum:   n,
			WorkDir:     workDir,
			LogPath:     logPath,
		}); err != nil {
			return fmt.Errorf("coordinator: spawn worker %d: %w", n, err)
		}
		c.logger.Info().Int("worker_num", n).Str("branch", branch).Msg("worker spawned")
		c.Events.Publish(&events.Event{Type: events.EventWorkerRegistered, Message: fmt.Sprintf("worker-%d spawned", n)})

		if n < workerCount-1 && c.Config.SpawnDelay > 0 {
			time.Sleep(c.Config.SpawnDelay)
		}
	}
	return nil
}

// runScheduler starts the poll loop, blocks for its outcome (or an
// earlier ctx cancellation), and merges on a clean finish.
func (c *Coordinator) runScheduler(ctx context.Context, runID string, analysis devplan.Summary) (Result, error) {
	sched := scheduler.New(c.Store, runID, c.Config.RunTimeout)
	if c.SchedulerPollInterval > 0 {
		sched.PollInterval = c.SchedulerPollInterval
	}
	sched.Start()
	metrics.UpdateComponent("scheduler", true, "")

	go func() {
		<-ctx.Done()
		sched.Stop()
	}()

	outcome := sched.Wait()
	result := Result{RunID: runID, Outcome: outcome, Analysis: analysis}

	switch outcome {
	case scheduler.OutcomeDone:
		c.Events.Publish(&events.Event{Type: events.EventRunCompleted, Message: runID})
		summary, err := merge.New(c.Store, c.Config).Run(runID)
		if err != nil {
			return result, fmt.Errorf("coordinator: merge: %w", err)
		}
		result.Merge = summary
		result.Merged = true
	case scheduler.OutcomeResumeRequired, scheduler.OutcomeRunTimeout:
		c.logger.Warn().Str("run_id", runID).Str("outcome", string(outcome)).Msg("run ended without completing")
		c.Events.Publish(&events.Event{Type: events.EventRunInterrupted, Message: string(outcome)})
	case scheduler.OutcomeStoppedExternally:
		c.logger.Info().Str("run_id", runID).Msg("run stopped externally")
	}

	return result, nil
}
