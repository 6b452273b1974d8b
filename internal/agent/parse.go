package agent

import (
	"encoding/json"
	"strings"
)

// parseFailureThought marks steps whose raw output could not be parsed.
const parseFailureThought = "(parse failure -- raw text used as answer)"

// modelReply is the structured output contract the model must approximate:
// exactly four keys, with action/answer mutually exclusive. Pointers
// distinguish JSON null from a missing or empty string.
type modelReply struct {
	Thought     string  `json:"thought"`
	Action      *string `json:"action"`
	ActionInput *string `json:"action_input"`
	Answer      *string `json:"answer"`
}

// action returns the normalized tool name, treating JSON null and the
// literal string "null" as no action. Small models emit both.
func (r *modelReply) action() string {
	if r.Action == nil {
		return ""
	}
	name := strings.TrimSpace(*r.Action)
	if name == "null" {
		return ""
	}
	return name
}

func (r *modelReply) actionInput() string {
	if r.ActionInput == nil {
		return ""
	}
	return *r.ActionInput
}

// parseModelOutput runs the three-tier parsing cascade over raw model
// output. The second return value reports whether any tier succeeded;
// when all fail, the fallback reply treats the raw text as a direct
// answer so a malformed response never becomes a user-facing error.
func parseModelOutput(raw string) (modelReply, bool) {
	// Tier 1: strict parse.
	if reply, ok := tryParse(raw); ok {
		return reply, true
	}

	// Tier 2: strip surrounding markdown code fences and retry.
	if stripped, ok := stripFences(raw); ok {
		if reply, ok := tryParse(stripped); ok {
			return reply, true
		}
	}

	// Tier 3: extract the first brace-delimited substring and retry.
	if inner, ok := braceSubstring(raw); ok {
		if reply, ok := tryParse(inner); ok {
			return reply, true
		}
	}

	answer := raw
	return modelReply{Thought: parseFailureThought, Answer: &answer}, false
}

func tryParse(s string) (modelReply, bool) {
	var reply modelReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &reply); err != nil {
		return modelReply{}, false
	}
	return reply, true
}

// stripFences removes a leading ```lang line and trailing ``` marker.
func stripFences(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s), true
}

// braceSubstring returns the span from the first '{' to the last '}'.
func braceSubstring(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
