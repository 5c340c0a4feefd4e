package store

import (
	"time"

	"github.com/taskswarm/swarmctl/pkg/metrics"
	"github.com/taskswarm/swarmctl/pkg/types"
)

// RecordTaskCost appends best-effort token/cost telemetry for a task.
// Values are whatever the agent event stream happened to report;
// missing fields arrive here as zero and are summed as such.
func (s *Store) RecordTaskCost(runID string, taskID int64, promptTokens, completionTokens int64, cost float64) error {
	_, err := s.db.Exec(
		`INSERT INTO task_costs (task_id, run_id, prompt_tokens, completion_tokens, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, runID, promptTokens, completionTokens, cost, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	metrics.AgentTokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	metrics.AgentTokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
	metrics.AgentCostTotal.Add(cost)
	return nil
}

// TotalCost sums cost across every recorded task in a run.
func (s *Store) TotalCost(runID string) (*types.TaskCost, error) {
	var out types.TaskCost
	err := s.readDB.QueryRow(
		`SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(cost), 0)
		 FROM task_costs WHERE run_id = ?`,
		runID,
	).Scan(&out.PromptTokens, &out.CompletionTokens, &out.Cost)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
