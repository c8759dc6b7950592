package models

// Source is a citation attached to an answer.
type Source struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Page    int     `json:"page,omitempty"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// AgentResponse is the sole result delivered to the orchestrator's
// caller. It is always well formed: degradation is signalled through
// Fallback and Error, never through a raised error crossing the
// pipeline boundary.
type AgentResponse struct {
	AgentName  string         `json:"agent_name"`
	Answer     string         `json:"answer"`
	Sources    []Source       `json:"sources"`
	Confidence float64        `json:"confidence"`
	Fallback   bool           `json:"fallback"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ErrorResponse builds the error-shaped response used when routing or
// handler execution fails. The Error field is always non-empty so
// callers can detect it.
func ErrorResponse(agentName, answer, errMsg string) AgentResponse {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return AgentResponse{
		AgentName:  agentName,
		Answer:     answer,
		Sources:    []Source{},
		Confidence: 0.0,
		Fallback:   true,
		Error:      errMsg,
	}
}
