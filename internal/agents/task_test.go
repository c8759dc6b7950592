package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/generation"
	"github.com/sibylhq/sibyl/internal/synthesis"
	"github.com/sibylhq/sibyl/pkg/models"
)

func TestExtractTasks(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected []models.Task
	}{
		// ===== GOOD CASES =====
		{
			name:   "numbered list",
			answer: "Plan:\n1. Inspect ward 5 roads\n2. Assign repair crew",
			expected: []models.Task{
				{Title: "Inspect ward 5 roads", Status: "pending", Priority: "medium"},
				{Title: "Assign repair crew", Status: "pending", Priority: "medium"},
			},
		},
		{
			name:   "bullet list with priorities",
			answer: "- File the report (high priority)\n- Archive old records (low priority)",
			expected: []models.Task{
				{Title: "File the report (high priority)", Status: "pending", Priority: "high"},
				{Title: "Archive old records (low priority)", Status: "pending", Priority: "low"},
			},
		},
		{
			name:   "parenthesis-numbered list",
			answer: "1) Review the budget\n2) Submit for approval",
			expected: []models.Task{
				{Title: "Review the budget", Status: "pending", Priority: "medium"},
				{Title: "Submit for approval", Status: "pending", Priority: "medium"},
			},
		},

		// ===== EDGE CASES =====
		{
			name:     "prose without list markers",
			answer:   "You should start by reviewing the budget and then submit it.",
			expected: []models.Task{},
		},
		{
			name:     "short fragments are skipped",
			answer:   "1. Go\n2. Do the full site inspection",
			expected: []models.Task{{Title: "Do the full site inspection", Status: "pending", Priority: "medium"}},
		},
		{
			name:     "empty answer",
			answer:   "",
			expected: []models.Task{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractTasks(tt.answer))
		})
	}
}

func TestTaskAgent_Process(t *testing.T) {
	plan := "1. Inspect the damaged stretch\n2. Assign a repair crew (high priority)\n3. Schedule resurfacing"
	settings := generation.NewSettings(models.GenerationSettings{Model: "gpt-4o-mini"})
	synth, err := synthesis.NewSynthesizer(scriptedGenerator{answer: plan}, settings)
	require.NoError(t, err)

	agent := newTaskAgent(config.DefaultRouting().Agents[config.AgentTask], synth)

	resp, err := agent.Process(context.Background(), models.Query{
		Text: "Break down the pothole repair work",
		Context: models.QueryContext{
			ExistingTasks: []models.Task{{Title: "Order asphalt", Status: "open", Priority: "high"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, config.AgentTask, resp.AgentName)
	assert.Equal(t, taskConfidence, resp.Confidence)
	assert.False(t, resp.Fallback)
	assert.Equal(t, 1, resp.Metadata["existing_tasks"])

	suggested, ok := resp.Metadata["suggested_tasks"].([]models.Task)
	require.True(t, ok)
	require.Len(t, suggested, 3)
	assert.Equal(t, "high", suggested[1].Priority)
}

func TestTaskAgent_FallbackZeroesConfidence(t *testing.T) {
	settings := generation.NewSettings(models.GenerationSettings{Model: "gpt-4o-mini"})
	synth, err := synthesis.NewSynthesizer(offlineGenerator{}, settings)
	require.NoError(t, err)

	agent := newTaskAgent(config.DefaultRouting().Agents[config.AgentTask], synth)
	resp, err := agent.Process(context.Background(), models.Query{Text: "Plan the pothole repairs"})
	require.NoError(t, err)

	assert.True(t, resp.Fallback)
	assert.Zero(t, resp.Confidence, "canned answers must not carry the live confidence")
	assert.NotEmpty(t, resp.Answer)
}
