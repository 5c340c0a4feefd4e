// Package agent invokes the external LLM coding agent as a subprocess
// and interprets its newline-delimited JSON event stream. The agent
// itself is a black box: the only contract is "receive a prompt and a
// working directory, emit JSON events with text, token counts, and
// cost, optionally create files and commits."
package agent

import "encoding/json"

// rawEvent is the tolerant shape of one line of agent output. Upstream
// agent versions disagree on where text and usage numbers live, so
// every field here is optional and absence is not an error.
type rawEvent struct {
	Type string     `json:"type"`
	Text string     `json:"text"`
	Part *eventPart `json:"part"`
}

type eventPart struct {
	Text    string      `json:"text"`
	Tokens  *tokenUsage `json:"tokens"`
	Cost    *float64    `json:"cost"`
	Tool    *toolCall   `json:"tool"`
	Content []content   `json:"content"`
}

type tokenUsage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

type toolCall struct {
	Name string `json:"name"`
}

// content models the nested Anthropic/OpenAI-shaped message content
// blocks some agents emit instead of a flat part.text.
type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Event is the normalized, caller-facing view of one parsed line.
type Event struct {
	Text             string
	ToolName         string
	PromptTokens     int64
	CompletionTokens int64
	Cost             float64
}

// parseLine extracts a normalized Event from one line of raw agent
// output. A JSON parse failure is reported to the caller, who falls
// back to regex extraction over the raw line.
func parseLine(line []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, err
	}

	ev := Event{Text: textFromEvent(raw)}

	if raw.Part != nil {
		if raw.Part.Tokens != nil {
			ev.PromptTokens = raw.Part.Tokens.Input
			ev.CompletionTokens = raw.Part.Tokens.Output
		}
		if raw.Part.Cost != nil {
			ev.Cost = *raw.Part.Cost
		}
		if raw.Part.Tool != nil {
			ev.ToolName = raw.Part.Tool.Name
		}
	}

	return ev, nil
}

// textFromEvent applies the field preference order the core relies on:
// event type "text" with part.text, then top-level .text, then
// Anthropic/OpenAI-shaped nested content blocks.
func textFromEvent(raw rawEvent) string {
	if raw.Type == "text" && raw.Part != nil && raw.Part.Text != "" {
		return raw.Part.Text
	}
	if raw.Text != "" {
		return raw.Text
	}
	if raw.Part != nil {
		if raw.Part.Text != "" {
			return raw.Part.Text
		}
		for _, c := range raw.Part.Content {
			if c.Type == "text" && c.Text != "" {
				return c.Text
			}
		}
	}
	return ""
}
