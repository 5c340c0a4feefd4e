package gitutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultBaseBranchEnvOverride(t *testing.T) {
	r := initRepo(t)
	t.Setenv("SWARM_BASE_BRANCH", "trunk")

	branch, err := r.DefaultBaseBranch()
	require.NoError(t, err)
	require.Equal(t, "trunk", branch)
}

func TestDefaultBaseBranchFromHead(t *testing.T) {
	r := initRepo(t)
	t.Setenv("SWARM_BASE_BRANCH", "")

	current, err := r.CurrentBranch()
	require.NoError(t, err)

	branch, err := r.DefaultBaseBranch()
	require.NoError(t, err)
	require.Equal(t, current, branch)
}
