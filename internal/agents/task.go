package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/synthesis"
	"github.com/sibylhq/sibyl/pkg/models"
)

// taskConfidence is reported for planning answers; they are generated
// rather than retrieval-grounded, so there is no distance signal.
// Canned fallback answers report 0.0 instead.
const taskConfidence = 0.75

// taskAgent plans and prioritizes work items. It is generation-only:
// no retrieval, no sources.
type taskAgent struct {
	cfg   config.AgentConfig
	synth *synthesis.Synthesizer
}

func newTaskAgent(cfg config.AgentConfig, synth *synthesis.Synthesizer) Agent {
	return &taskAgent{cfg: cfg, synth: synth}
}

func (a *taskAgent) Name() string { return config.AgentTask }

func (a *taskAgent) Description() string {
	return "Plans, breaks down and prioritizes tasks, considering existing workload."
}

func (a *taskAgent) CanHandle(q models.Query) float64 {
	return clampScore(scoreKeywords(a.cfg, q.Text))
}

func (a *taskAgent) Process(ctx context.Context, q models.Query) (models.AgentResponse, error) {
	prompt := a.buildPrompt(q)
	answer, fallback := a.synth.Generate(ctx, prompt, q.Text)

	confidence := taskConfidence
	if fallback {
		confidence = 0.0
	}

	return models.AgentResponse{
		AgentName:  config.AgentTask,
		Answer:     answer,
		Sources:    []models.Source{},
		Confidence: confidence,
		Fallback:   fallback,
		Metadata: map[string]any{
			"existing_tasks":  len(q.Context.ExistingTasks),
			"suggested_tasks": extractTasks(answer),
		},
	}, nil
}

// minTaskLength filters out list-marker noise like lone numbers.
const minTaskLength = 5

// extractTasks pulls bullet and numbered lines out of a generated plan
// as structured task suggestions. Priority is read from the line when
// it names one, defaulting to medium.
func extractTasks(answer string) []models.Task {
	tasks := []models.Task{}
	for _, line := range strings.Split(answer, "\n") {
		title, ok := stripListMarker(strings.TrimSpace(line))
		if !ok || len(title) < minTaskLength {
			continue
		}
		tasks = append(tasks, models.Task{
			Title:    title,
			Status:   "pending",
			Priority: taskPriority(title),
		})
	}
	return tasks
}

func stripListMarker(line string) (string, bool) {
	if rest, found := strings.CutPrefix(line, "- "); found {
		return strings.TrimSpace(rest), true
	}
	if rest, found := strings.CutPrefix(line, "* "); found {
		return strings.TrimSpace(rest), true
	}

	// Numbered lines: "1. Inspect the site" or "2) Assign a crew".
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if i > 0 && (r == '.' || r == ')') {
			return strings.TrimSpace(line[i+1:]), true
		}
		break
	}
	return "", false
}

func taskPriority(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "high"), strings.Contains(lower, "urgent"):
		return "high"
	case strings.Contains(lower, "low"):
		return "low"
	default:
		return "medium"
	}
}

func (a *taskAgent) buildPrompt(q models.Query) string {
	var sb strings.Builder
	sb.WriteString(`You are a task planning assistant for government officers.
Break the request into concrete, actionable tasks.

IMPORTANT INSTRUCTIONS:
- Produce a numbered list of tasks with a suggested priority (high/medium/low)
- Account for the existing tasks below; do not duplicate them
- Flag dependencies between tasks
- Keep the plan under 200 words`)

	if len(q.Context.ExistingTasks) > 0 {
		sb.WriteString("\n\nExisting tasks:\n")
		for _, task := range q.Context.ExistingTasks {
			fmt.Fprintf(&sb, "- %s (status: %s, priority: %s)\n", task.Title, task.Status, task.Priority)
		}
	}

	sb.WriteString("\n\nRequest: ")
	sb.WriteString(q.Text)
	return sb.String()
}
