package devplan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetMarkRoundTrips(t *testing.T) {
	content := "# Plan\n- [ ] add a README\n  - detail\n- [ ] add tests\n"

	updated, err := SetMark(content, 2, MarkInProgress)
	require.NoError(t, err)
	assert.Equal(t, "# Plan\n- [⏳] add a README\n  - detail\n- [ ] add tests\n", updated)

	updated, err = SetMark(updated, 2, MarkDone)
	require.NoError(t, err)
	assert.Contains(t, strings.Split(updated, "\n")[1], "[✅]")

	updated, err = SetMark(updated, 4, MarkRetrying)
	require.NoError(t, err)
	assert.Contains(t, strings.Split(updated, "\n")[3], "[🔄]")
}

func TestSetMarkPreservesIndentation(t *testing.T) {
	content := "  - [ ] nested task\n"
	updated, err := SetMark(content, 1, MarkDone)
	require.NoError(t, err)
	assert.Equal(t, "  - [✅] nested task\n", updated)
}

func TestSetMarkErrors(t *testing.T) {
	content := "- [ ] task\n"

	_, err := SetMark(content, 99, MarkDone)
	assert.Error(t, err)

	_, err = SetMark("not a task line\n", 1, MarkDone)
	assert.Error(t, err)
}

func TestReadMarks(t *testing.T) {
	content := "- [ ] a\n- [⏳] b\n- [✅] c\n- [🔄] d\nnot a task\n"
	marks, err := ReadMarks(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, MarkUnchecked, marks[1])
	assert.Equal(t, MarkInProgress, marks[2])
	assert.Equal(t, MarkDone, marks[3])
	assert.Equal(t, MarkRetrying, marks[4])
	assert.NotContains(t, marks, 5)
}
