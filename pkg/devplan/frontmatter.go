package devplan

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is optional run-level configuration a devplan file may
// carry as a leading YAML block delimited by "---" lines, ahead of its
// task list. It lets a devplan pin its own worker count, base branch,
// or destination project without the operator having to remember the
// equivalent CLI flags every time it's run.
//
//	---
//	workers: 6
//	base_branch: develop
//	project: billing-service
//	---
//	- [ ] Add retry logic to the payment webhook handler
type FrontMatter struct {
	Workers    int    `yaml:"workers"`
	BaseBranch string `yaml:"base_branch"`
	Project    string `yaml:"project"`
}

const frontMatterDelim = "---"

// ExtractFrontMatter splits a leading YAML front-matter block off the
// front of a devplan file's contents. If content doesn't start with a
// "---" line, it returns the zero FrontMatter and content unchanged.
func ExtractFrontMatter(content string) (FrontMatter, string, error) {
	if !strings.HasPrefix(content, frontMatterDelim) {
		return FrontMatter{}, content, nil
	}

	rest := strings.TrimPrefix(content, frontMatterDelim)
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return FrontMatter{}, content, nil
	}

	block := rest[:end]
	body := strings.TrimPrefix(rest[end+len("\n"+frontMatterDelim):], "\n")

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return FrontMatter{}, content, err
	}
	return fm, body, nil
}

// ReadFrontMatter reads path and extracts just its FrontMatter, for
// callers that need the run-level overrides before task parsing runs
// (the coordinator resolves worker count and base branch from it
// before the run row is even created).
func ReadFrontMatter(path string) (FrontMatter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FrontMatter{}, err
	}
	fm, _, err := ExtractFrontMatter(string(data))
	return fm, err
}
