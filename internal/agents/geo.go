package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sibylhq/sibyl/internal/complaints"
	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/pkg/models"
)

// geoConfidence is reported when the agent answered from loaded data.
// The answer is a deterministic aggregation, not a generation, so its
// confidence is fixed and high.
const geoConfidence = 0.95

var (
	wardRe     = regexp.MustCompile(`ward\s*(\d+)`)
	lastDaysRe = regexp.MustCompile(`(?:last|past)\s*(\d+)\s*days?`)
)

// geoAgent answers ward-level questions from the complaints dataset.
type geoAgent struct {
	cfg   config.AgentConfig
	store *complaints.Store
	now   func() time.Time
}

func newGeoAgent(cfg config.AgentConfig, store *complaints.Store) Agent {
	return &geoAgent{cfg: cfg, store: store, now: time.Now}
}

func (a *geoAgent) Name() string { return config.AgentGeo }

func (a *geoAgent) Description() string {
	return "Analyzes citizen complaints by ward, type, status and time window."
}

func (a *geoAgent) CanHandle(q models.Query) float64 {
	return clampScore(scoreKeywords(a.cfg, q.Text))
}

func (a *geoAgent) Process(_ context.Context, q models.Query) (models.AgentResponse, error) {
	if a.store == nil || !a.store.Loaded() {
		return models.AgentResponse{
			AgentName:  config.AgentGeo,
			Answer:     "Geo-spatial data is not currently available. Please ensure complaints data is loaded.",
			Sources:    []models.Source{},
			Confidence: 0.0,
			Fallback:   true,
			Metadata:   map[string]any{"error": "No data"},
		}, nil
	}

	ward := extractWard(q.Text)
	days := extractDays(q.Text)

	var since time.Time
	if days > 0 {
		since = a.now().AddDate(0, 0, -days)
	}

	filtered := a.store.Filter(ward, since)
	answer := summarizeComplaints(filtered, ward, days)

	meta := map[string]any{
		"total_complaints": len(filtered),
	}
	if ward > 0 {
		meta["ward"] = ward
	}
	if days > 0 {
		meta["days"] = days
	}

	return models.AgentResponse{
		AgentName: config.AgentGeo,
		Answer:    answer,
		Sources: []models.Source{{
			ID:      "complaints_db",
			Title:   "Complaints Database",
			Snippet: fmt.Sprintf("Analyzed %d complaint records", len(filtered)),
			Score:   1.0,
		}},
		Confidence: geoConfidence,
		Metadata:   meta,
	}, nil
}

// extractWard pulls a ward number from the query, 0 when absent.
func extractWard(text string) int {
	m := wardRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0
	}
	ward, _ := strconv.Atoi(m[1])
	return ward
}

// extractDays pulls a "last/past N days" window from the query, 0 when
// absent.
func extractDays(text string) int {
	m := lastDaysRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0
	}
	days, _ := strconv.Atoi(m[1])
	return days
}

// summarizeComplaints renders the filtered records as a ward report:
// totals, type breakdown, status split and recommended actions.
func summarizeComplaints(records []complaints.Record, ward, days int) string {
	if len(records) == 0 {
		msg := "No complaints found"
		if ward > 0 {
			msg += fmt.Sprintf(" for Ward %d", ward)
		}
		if days > 0 {
			msg += fmt.Sprintf(" in the last %d days", days)
		}
		return msg + "."
	}

	sum := complaints.Summarize(records)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d complaints", sum.Total)
	if ward > 0 {
		fmt.Fprintf(&sb, " in Ward %d", ward)
	}
	if days > 0 {
		fmt.Fprintf(&sb, " in the last %d days", days)
	}
	sb.WriteString(":\n")

	sb.WriteString("\n**Complaint Breakdown:**\n")
	for i, tc := range sum.ByType {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "- %s: %d\n", tc.Type, tc.Count)
	}

	fmt.Fprintf(&sb, "\n**Status:** %d open, %d resolved\n", sum.Open, sum.Resolved)

	sb.WriteString("\n**Recommended Actions:**\n")
	fmt.Fprintf(&sb, "1. Prioritize %s complaints\n", sum.ByType[0].Type)
	sb.WriteString("2. Deploy maintenance teams to high-complaint areas\n")
	sb.WriteString("3. Review resource allocation for affected ward(s)")

	return sb.String()
}
