package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/taskswarm/swarmctl/pkg/log"
	"github.com/taskswarm/swarmctl/pkg/metrics"
)

// ErrTimeout is returned by Run when the agent subprocess is killed
// after exceeding its wall-clock budget.
var ErrTimeout = errors.New("agent: invocation exceeded wall-clock timeout")

// stderrRingSize bounds how much stderr Run retains for error reporting
// ("head of stderr" in the failure taxonomy).
const stderrRingSize = 4096

// Outcome is the result of one agent invocation.
type Outcome struct {
	FinalText        string
	Complete         bool
	ToolNames        []string
	PromptTokens     int64
	CompletionTokens int64
	Cost             float64
	StderrHead       string
}

// Run invokes binary with args in workDir, feeding prompt on stdin,
// and parses the resulting newline-delimited JSON event stream. The
// invocation is killed if it exceeds timeout.
func Run(ctx context.Context, binary string, args []string, workDir, prompt string, timeout time.Duration) (Outcome, error) {
	logger := log.WithComponent("agent")
	timer := metrics.NewTimer()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(prompt)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("agent: stdout pipe: %w", err)
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("agent: start: %w", err)
	}

	var lastText string
	var toolNames []string
	var promptTokens, completionTokens int64
	var cost float64

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		ev, parseErr := parseLine(line)
		if parseErr != nil {
			if text := extractTextFallback(line); text != "" {
				lastText = text
			}
			continue
		}

		if ev.Text != "" {
			lastText = ev.Text
		}
		if ev.ToolName != "" {
			toolNames = append(toolNames, ev.ToolName)
		}
		promptTokens += ev.PromptTokens
		completionTokens += ev.CompletionTokens
		cost += ev.Cost
	}

	waitErr := cmd.Wait()

	outcome := Outcome{
		FinalText:        lastText,
		Complete:         IsComplete(lastText),
		ToolNames:        toolNames,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Cost:             cost,
		StderrHead:       headOf(stderrBuf.String(), stderrRingSize),
	}

	if ctx.Err() == context.DeadlineExceeded {
		metrics.AgentTimeoutsTotal.Inc()
		timer.ObserveDurationVec(metrics.AgentInvocationDuration, "timeout")
		logger.Warn().Str("work_dir", workDir).Msg("agent invocation timed out")
		return outcome, ErrTimeout
	}

	if waitErr != nil {
		timer.ObserveDurationVec(metrics.AgentInvocationDuration, "error")
		return outcome, fmt.Errorf("agent: process exited: %w (stderr: %s)", waitErr, outcome.StderrHead)
	}

	outcomeLabel := "incomplete"
	if outcome.Complete {
		outcomeLabel = "complete"
	}
	timer.ObserveDurationVec(metrics.AgentInvocationDuration, outcomeLabel)

	return outcome, nil
}

func headOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
