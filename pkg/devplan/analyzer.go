package devplan

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/taskswarm/swarmctl/pkg/log"
	"github.com/taskswarm/swarmctl/pkg/store"
)

// Summary reports what the analyzer did with a devplan, for the CLI
// to print after `start`.
type Summary struct {
	Added   int
	Skipped int
}

// scopePredictor is the subset of *Predictor the analyzer depends on,
// narrowed so tests can substitute a fake without invoking a real
// agent subprocess.
type scopePredictor interface {
	Predict(ctx context.Context, workDir string, task Task) []string
}

// Analyzer ties markdown parsing, scope prediction, and CS insertion
// together into a single pass: parse, predict, insert.
type Analyzer struct {
	Store     *store.Store
	Predictor scopePredictor
	WorkDir   string
}

// NewAnalyzer builds an Analyzer that predicts file patterns by
// invoking agentBin in workDir with the given per-call timeout.
func NewAnalyzer(s *store.Store, agentBin, workDir string, timeout time.Duration) *Analyzer {
	return &Analyzer{
		Store:     s,
		Predictor: &Predictor{AgentBin: agentBin, Timeout: timeout},
		WorkDir:   workDir,
	}
}

// Analyze parses devplanPath, predicts file patterns per task, and
// inserts each into the run via AddTask. Tasks already completed in a
// prior run (same task_hash) are reported as skipped, not inserted.
func (a *Analyzer) Analyze(ctx context.Context, runID, devplanPath string) (Summary, error) {
	logger := log.WithRunID(log.WithComponent("devplan"), runID)

	content, err := os.ReadFile(devplanPath)
	if err != nil {
		return Summary{}, err
	}

	// The coordinator already consumed FrontMatter (worker count, base
	// branch, project) before the run was created; here we only need
	// the body so front matter isn't mistaken for task bullets.
	_, body, err := ExtractFrontMatter(string(content))
	if err != nil {
		return Summary{}, err
	}

	tasks, err := Parse(strings.NewReader(body))
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for priority, t := range tasks {
		patterns := a.Predictor.Predict(ctx, a.WorkDir, t)

		_, skipped, err := a.Store.AddTask(runID, t.Text, patterns, t.Line, priority)
		if err != nil {
			return summary, err
		}
		if skipped {
			summary.Skipped++
			logger.Info().Int("devplan_line", t.Line).Msg("task already completed, skipping")
			continue
		}
		summary.Added++
	}

	return summary, nil
}
