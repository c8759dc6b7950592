// Package models defines the value types shared across the sibyl query
// pipeline: queries, routing context, chunks, responses and settings.
package models

// Query is a single natural-language question submitted by a caller.
// It is immutable once constructed and consumed exactly once per
// routing decision.
type Query struct {
	Text    string       `json:"query"`
	UserID  string       `json:"user_id,omitempty"`
	Context QueryContext `json:"context,omitempty"`
}

// QueryContext carries the caller-supplied hints recognized by the
// pipeline. Using a typed struct instead of a free-form map prevents
// silent key typos from producing unfiltered results.
type QueryContext struct {
	// ProjectID scopes code retrieval to a single project.
	ProjectID string `json:"project_id,omitempty"`

	// DocumentIDs restricts document retrieval to specific documents.
	DocumentIDs []string `json:"document_ids,omitempty"`

	// RequestedAgents bypasses confidence scoring when the first entry
	// names a registered agent.
	RequestedAgents []string `json:"requested_handlers,omitempty"`

	// TopK overrides the per-agent retrieval depth. Clamped to [1,10]
	// by the retrieval engine.
	TopK int `json:"top_k,omitempty"`

	// Filter is applied as an exact-match AND predicate during retrieval.
	Filter Filter `json:"metadata_filter,omitempty"`

	// ExistingTasks is consumed by the task-planning agent only.
	ExistingTasks []Task `json:"existing_tasks,omitempty"`
}

// Task is a single task item, either supplied by the caller as context
// or extracted from a generated plan.
type Task struct {
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Filter is the typed metadata filter with the enumerated recognized
// keys. Zero-valued fields are ignored; set fields combine with AND
// semantics.
type Filter struct {
	DocumentID string `json:"document_id,omitempty" yaml:"document_id"`
	Source     string `json:"source,omitempty" yaml:"source"`
	Ward       string `json:"ward,omitempty" yaml:"ward"`
	Tag        string `json:"tag,omitempty" yaml:"tag"`
	UploadedBy string `json:"uploaded_by,omitempty" yaml:"uploaded_by"`
}

// IsZero reports whether no filter field is set.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Map returns the set filter fields keyed by their metadata names.
func (f Filter) Map() map[string]string {
	m := make(map[string]string)
	if f.DocumentID != "" {
		m["document_id"] = f.DocumentID
	}
	if f.Source != "" {
		m["source"] = f.Source
	}
	if f.Ward != "" {
		m["ward"] = f.Ward
	}
	if f.Tag != "" {
		m["tag"] = f.Tag
	}
	if f.UploadedBy != "" {
		m["uploaded_by"] = f.UploadedBy
	}
	return m
}

// Matches reports whether the given chunk metadata satisfies every set
// filter field (exact match, AND across keys).
func (f Filter) Matches(meta map[string]string) bool {
	for key, want := range f.Map() {
		if meta[key] != want {
			return false
		}
	}
	return true
}
