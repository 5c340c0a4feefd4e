package merge

import "strings"

// ToolingPrefixes are path prefixes the Merger refuses to copy out of a
// worker worktree: git's internal data and the swarm's own scratch
// directory. These mirror the forbidden-directory list the agent
// prompt already warns workers away from (see pkg/worker/agentcall.go);
// the deny-list exists so a worker that touches them anyway still can't
// leak them into the destination project.
var ToolingPrefixes = []string{
	".swarm/",
	".git/",
}

const coordinationDBName = "swarm.db"

// IsDenied reports whether path is internal tooling rather than project
// content, per ToolingPrefixes and the coordination DB filename above.
func IsDenied(path string) bool {
	clean := strings.TrimPrefix(path, "./")
	if strings.HasSuffix(clean, coordinationDBName) {
		return true
	}
	for _, prefix := range ToolingPrefixes {
		if strings.HasPrefix(clean, prefix) {
			return true
		}
	}
	return false
}
