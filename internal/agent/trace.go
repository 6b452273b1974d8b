package agent

// ThoughtStep records one iteration of the reasoning loop. Steps are
// immutable once appended to the trace.
type ThoughtStep struct {
	Iteration   int    `json:"iteration"`
	Thought     string `json:"thought"`
	Action      string `json:"action,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// AgentResponse is the final result of one turn: the answer shown to the
// user plus the full reasoning trace for auditability.
type AgentResponse struct {
	Answer       string        `json:"answer"`
	ThoughtTrace []ThoughtStep `json:"thought_trace"`
}
