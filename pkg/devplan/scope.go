package devplan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/taskswarm/swarmctl/pkg/agent"
)

const (
	treeMaxDepth   = 3
	treeMaxEntries = 100
)

var vcsDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
}

// TreeListing builds a depth-limited directory listing of root, used
// to ground the LLM's file-pattern prediction. VCS directories are
// skipped and the listing is capped at treeMaxEntries entries.
func TreeListing(root string) ([]string, error) {
	var entries []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if len(entries) >= treeMaxEntries {
			return filepath.SkipAll
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() && vcsDirs[info.Name()] {
			return filepath.SkipDir
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if depth > treeMaxDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, rel)
		if len(entries) >= treeMaxEntries {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	return entries, nil
}

// Predictor asks the LLM agent for file-path patterns a task is
// likely to touch, grounded on a tree listing of the project.
type Predictor struct {
	AgentBin string
	Timeout  time.Duration
}

// Predict returns a JSON array of file-path patterns. A parse failure
// in the agent's response is not fatal: it yields an empty slice,
// meaning the task runs without predicted locks.
func (p *Predictor) Predict(ctx context.Context, workDir string, task Task) []string {
	listing, err := TreeListing(workDir)
	if err != nil {
		return nil
	}

	prompt := fmt.Sprintf(
		"Project tree listing (depth<=%d, capped at %d entries):\n%s\n\n"+
			"Task:\n%s\n\n"+
			"Reply with ONLY a JSON array of file-path patterns (strings) this task is "+
			"likely to create or modify. If unsure, reply with an empty array []. No "+
			"other text.",
		treeMaxDepth, treeMaxEntries, strings.Join(listing, "\n"), task.Text,
	)

	outcome, err := agent.Run(ctx, p.AgentBin, nil, workDir, prompt, p.Timeout)
	if err != nil {
		return nil
	}

	patterns, ok := parsePatternArray(outcome.FinalText)
	if !ok {
		return nil
	}
	return patterns
}

// parsePatternArray extracts a JSON array of strings from text,
// tolerating surrounding prose by locating the outermost brackets.
func parsePatternArray(text string) ([]string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, false
	}

	var patterns []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &patterns); err != nil {
		return nil, false
	}
	return patterns, true
}
