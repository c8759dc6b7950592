// Package agents implements the specialized query handlers and the
// confidence router that dispatches between them. Agents score queries
// without side effects; all I/O happens in Process.
package agents

import (
	"context"
	"strings"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/pkg/models"
)

// Agent is a specialized query handler.
type Agent interface {
	// Name is the stable registry key.
	Name() string

	// Description is shown in the handler listing.
	Description() string

	// CanHandle scores how confident the agent is about a query, in
	// [0,1]. Scoring must be pure: same query, same score, no side
	// effects.
	CanHandle(q models.Query) float64

	// Process answers the query.
	Process(ctx context.Context, q models.Query) (models.AgentResponse, error)
}

// scoreKeywords counts keyword hits in the lowercased query text and
// normalizes by the agent's divisor, capped at 1.0.
func scoreKeywords(cfg config.AgentConfig, text string) float64 {
	if cfg.Divisor <= 0 {
		return 0.0
	}

	lower := strings.ToLower(text)
	var matches float64
	for _, kw := range cfg.Keywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}

	score := matches / cfg.Divisor
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// clampScore keeps a boosted score inside [0,1].
func clampScore(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// queryUserID returns the tenant for collection scoping, defaulting
// when the caller did not identify themselves.
func queryUserID(q models.Query) string {
	if q.UserID != "" {
		return q.UserID
	}
	return "default"
}
