package gitutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasTaskCommit(t *testing.T) {
	r := initRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(r.Dir, "a.txt"), []byte("one"), 0644))
	require.NoError(t, r.StageAll())
	require.NoError(t, r.Commit("Task 7: add a.txt"))

	found, err := r.HasTaskCommit("HEAD", 7)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = r.HasTaskCommit("HEAD", 8)
	require.NoError(t, err)
	assert.False(t, found)
}
