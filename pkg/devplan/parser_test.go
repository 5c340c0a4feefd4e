package devplan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUncheckedTasksOnly(t *testing.T) {
	md := `# Plan
- [ ] add a README
- [x] already done, wrong marker form
- [✅] completed task
- [ ] add tests
`
	tasks, err := Parse(strings.NewReader(md))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "add a README", tasks[0].Text)
	assert.Equal(t, 2, tasks[0].Line)
	assert.Equal(t, "add tests", tasks[1].Text)
}

func TestParseConsumesSubBullets(t *testing.T) {
	md := `- [ ] implement feature
  - support config A
  - support config B
- [ ] next task
`
	tasks, err := Parse(strings.NewReader(md))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "implement feature\nsupport config A\nsupport config B", tasks[0].Text)
	assert.Equal(t, "next task", tasks[1].Text)
}

func TestParseSubBulletsStopAtBlankLine(t *testing.T) {
	md := `- [ ] task one
  - detail

- [ ] task two
`
	tasks, err := Parse(strings.NewReader(md))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "task one\ndetail", tasks[0].Text)
	assert.Equal(t, "task two", tasks[1].Text)
}

func TestParseIndentedTaskList(t *testing.T) {
	md := `- [ ] top
  - [ ] nested
`
	tasks, err := Parse(strings.NewReader(md))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "  ", tasks[1].Indent)
}

func TestParseNoTasks(t *testing.T) {
	tasks, err := Parse(strings.NewReader("# Just a heading\nsome prose\n"))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
