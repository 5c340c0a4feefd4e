package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskswarm/swarmctl/pkg/agent"
)

// forbiddenDirs are internal-tooling paths the agent prompt instructs
// the model never to touch, even though its worktree is otherwise its
// entire view.
var forbiddenDirs = []string{".git", ".swarm"}

// buildPrompt assembles the task prompt: identity,
// the task text, the required sentinel, the forbidden-directory
// instruction, and the required commit message format.
func buildPrompt(workerID string, taskID int64, taskText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are worker %s, executing task %d in a parallel swarm.\n\n", workerID, taskID)
	fmt.Fprintf(&b, "Task:\n%s\n\n", taskText)
	b.WriteString("Work only inside your current directory; it is an isolated git worktree. ")
	fmt.Fprintf(&b, "Never read or modify: %s.\n\n", strings.Join(forbiddenDirs, ", "))
	fmt.Fprintf(&b, "When the task is done, create a git commit titled exactly \"Task %d: <short summary>\" ", taskID)
	b.WriteString("describing the change.\n\n")
	fmt.Fprintf(&b, "End your final reply with the literal text %s once the commit exists.\n", agent.Sentinel)
	return b.String()
}

// execute invokes the external agent in workDir with a wall-clock
// timeout and returns its outcome.
func execute(ctx context.Context, agentBin, workDir, workerID string, taskID int64, taskText string, timeout time.Duration) (agent.Outcome, error) {
	prompt := buildPrompt(workerID, taskID, taskText)
	return agent.Run(ctx, agentBin, nil, workDir, prompt, timeout)
}
