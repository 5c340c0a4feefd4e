package devplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFrontMatterParsesLeadingBlock(t *testing.T) {
	content := `---
workers: 6
base_branch: develop
project: billing-service
---
- [ ] add a README
`
	fm, body, err := ExtractFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, 6, fm.Workers)
	assert.Equal(t, "develop", fm.BaseBranch)
	assert.Equal(t, "billing-service", fm.Project)
	assert.Equal(t, "- [ ] add a README\n", body)
}

func TestExtractFrontMatterNoBlock(t *testing.T) {
	content := "- [ ] add a README\n"
	fm, body, err := ExtractFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, FrontMatter{}, fm)
	assert.Equal(t, content, body)
}

func TestExtractFrontMatterUnterminatedBlock(t *testing.T) {
	content := "---\nworkers: 6\n- [ ] add a README\n"
	fm, body, err := ExtractFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, FrontMatter{}, fm)
	assert.Equal(t, content, body)
}

func TestReadFrontMatter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.md")
	content := "---\nworkers: 3\n---\n- [ ] task one\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	fm, err := ReadFrontMatter(path)
	require.NoError(t, err)
	assert.Equal(t, 3, fm.Workers)
}
