package agent

import (
	"regexp"
	"strings"
)

// Sentinel is the literal token an agent is instructed to end its reply
// with to signal successful completion.
const Sentinel = "<promise>COMPLETE</promise>"

// fallbackPhrases are checked case-insensitively when the sentinel is
// absent, per the agent contract's allowed fallback.
var fallbackPhrases = []string{
	"task completed",
	"task complete",
	"done",
	"finished",
	"completed successfully",
}

// IsComplete classifies an agent's final text as a completion signal.
// The sentinel match is exact (case-insensitive) anywhere in the text;
// the phrase list is a looser fallback for agents that never learned
// the sentinel.
func IsComplete(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(Sentinel)) {
		return true
	}
	for _, phrase := range fallbackPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// regexTextFallback is used when a line fails JSON parsing: it pulls
// any quoted "text" field out of the raw bytes on a best-effort basis.
var regexTextFallback = regexp.MustCompile(`"text"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// extractTextFallback recovers a text value from a malformed JSON line.
func extractTextFallback(line []byte) string {
	m := regexTextFallback.FindSubmatch(line)
	if m == nil {
		return ""
	}
	text := string(m[1])
	text = strings.ReplaceAll(text, `\"`, `"`)
	text = strings.ReplaceAll(text, `\n`, "\n")
	return text
}
