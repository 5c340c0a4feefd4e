package devplan

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Mark is one of the four devplan state markers. The analyzer only
// ever reads Unchecked lines; the other three are round-tripped for
// whatever outside the core also mutates this file.
type Mark string

const (
	MarkUnchecked  Mark = "[ ]"
	MarkDone       Mark = "[✅]"
	MarkInProgress Mark = "[⏳]"
	MarkRetrying   Mark = "[🔄]"
)

var markLineRE = regexp.MustCompile(`^(\s*-\s)(\[[ ✅⏳🔄]\])(\s.*)$`)

// SetMark rewrites the marker on the devplan line at lineNum (1-based)
// to mark, preserving indentation, the dash, and the trailing text
// exactly. It returns the updated content.
func SetMark(content string, lineNum int, mark Mark) (string, error) {
	lines := strings.Split(content, "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return content, fmt.Errorf("devplan: line %d out of range (file has %d lines)", lineNum, len(lines))
	}

	idx := lineNum - 1
	m := markLineRE.FindStringSubmatch(lines[idx])
	if m == nil {
		return content, fmt.Errorf("devplan: line %d is not a task-marker line", lineNum)
	}
	lines[idx] = m[1] + string(mark) + m[3]
	return strings.Join(lines, "\n"), nil
}

// ReadMarks scans r and returns the Mark found on every task-shaped
// line, keyed by 1-based line number, for callers that need to audit
// devplan state without reparsing task text.
func ReadMarks(r io.Reader) (map[int]Mark, error) {
	scanner := bufio.NewScanner(r)
	marks := make(map[int]Mark)
	line := 0
	for scanner.Scan() {
		line++
		m := markLineRE.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		marks[line] = Mark(m[2])
	}
	return marks, scanner.Err()
}
