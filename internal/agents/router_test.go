package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/pkg/models"
)

// stubAgent scores a fixed value and records Process calls.
type stubAgent struct {
	name      string
	score     float64
	processed int
	err       error
	panics    bool
}

func (a *stubAgent) Name() string                   { return a.name }
func (a *stubAgent) Description() string            { return "stub" }
func (a *stubAgent) CanHandle(models.Query) float64 { return a.score }

func (a *stubAgent) Process(context.Context, models.Query) (models.AgentResponse, error) {
	a.processed++
	if a.panics {
		panic("boom")
	}
	if a.err != nil {
		return models.AgentResponse{}, a.err
	}
	return models.AgentResponse{
		AgentName:  a.name,
		Answer:     "answer from " + a.name,
		Sources:    []models.Source{},
		Confidence: a.score,
	}, nil
}

func newTestRouter(agents ...Agent) *Router {
	router := NewRouter(config.RoutingConfig{Threshold: 0.3, DefaultAgent: "research"})
	for _, a := range agents {
		router.Register(a)
	}
	return router
}

func TestRouter_Route_HighestScoreWins(t *testing.T) {
	low := &stubAgent{name: "geo", score: 0.4}
	high := &stubAgent{name: "document", score: 0.8}
	fallback := &stubAgent{name: "research", score: 0.1}

	agent, score, err := newTestRouter(low, high, fallback).Route(models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, "document", agent.Name())
	assert.Equal(t, 0.8, score)
}

func TestRouter_Route_TieBreaksByRegistrationOrder(t *testing.T) {
	first := &stubAgent{name: "geo", score: 0.6}
	second := &stubAgent{name: "document", score: 0.6}
	fallback := &stubAgent{name: "research", score: 0.1}

	agent, _, err := newTestRouter(first, second, fallback).Route(models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, "geo", agent.Name(), "equal scores resolve to the earlier registration")
}

func TestRouter_Route_BelowThresholdUsesDefault(t *testing.T) {
	weak := &stubAgent{name: "geo", score: 0.2}
	fallback := &stubAgent{name: "research", score: 0.05}

	agent, score, err := newTestRouter(weak, fallback).Route(models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, "research", agent.Name())
	assert.Equal(t, 0.2, score, "the winning score is reported even when the default takes over")
}

func TestRouter_Route_AtThresholdWins(t *testing.T) {
	borderline := &stubAgent{name: "geo", score: 0.3}
	fallback := &stubAgent{name: "research", score: 0.05}

	agent, _, err := newTestRouter(borderline, fallback).Route(models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, "geo", agent.Name(), "threshold is a minimum, not a strict bound")
}

func TestRouter_Route_RequestedAgentBypassesScoring(t *testing.T) {
	strong := &stubAgent{name: "document", score: 0.9}
	weak := &stubAgent{name: "task", score: 0.0}

	q := models.Query{
		Text:    "q",
		Context: models.QueryContext{RequestedAgents: []string{"task"}},
	}
	agent, score, err := newTestRouter(strong, weak).Route(q)
	require.NoError(t, err)

	assert.Equal(t, "task", agent.Name())
	assert.Equal(t, 1.0, score)
}

func TestRouter_Route_UnknownRequestedAgent(t *testing.T) {
	router := newTestRouter(&stubAgent{name: "document", score: 0.9})

	q := models.Query{
		Text:    "q",
		Context: models.QueryContext{RequestedAgents: []string{"nonexistent"}},
	}
	_, _, err := router.Route(q)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRouter_Route_IsPure(t *testing.T) {
	a := &stubAgent{name: "geo", score: 0.7}
	b := &stubAgent{name: "research", score: 0.2}
	router := newTestRouter(a, b)
	q := models.Query{Text: "q"}

	for i := 0; i < 5; i++ {
		agent, score, err := router.Route(q)
		require.NoError(t, err)
		assert.Equal(t, "geo", agent.Name())
		assert.Equal(t, 0.7, score)
	}
	assert.Zero(t, a.processed, "routing must not execute handlers")
}

func TestRouter_Register_IgnoresDuplicates(t *testing.T) {
	router := newTestRouter(
		&stubAgent{name: "geo", score: 0.5},
		&stubAgent{name: "geo", score: 0.9},
	)
	assert.Len(t, router.Agents(), 1)
}

func TestRouter_Route_NoAgents(t *testing.T) {
	_, _, err := newTestRouter().Route(models.Query{Text: "q"})
	assert.Error(t, err)
}

func TestOrchestrator_Handle(t *testing.T) {
	agent := &stubAgent{name: "document", score: 0.8}
	orch := NewOrchestrator(newTestRouter(agent, &stubAgent{name: "research", score: 0.1}))

	resp := orch.Handle(context.Background(), models.Query{Text: "q"})

	assert.Equal(t, "document", resp.AgentName)
	assert.Equal(t, "answer from document", resp.Answer)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 1, agent.processed)
}

func TestOrchestrator_Handle_AgentError(t *testing.T) {
	failing := &stubAgent{name: "document", score: 0.8, err: errors.New("index offline")}
	orch := NewOrchestrator(newTestRouter(failing, &stubAgent{name: "research", score: 0.1}))

	resp := orch.Handle(context.Background(), models.Query{Text: "q"})

	assert.Equal(t, "document", resp.AgentName)
	assert.True(t, resp.Fallback)
	assert.Contains(t, resp.Error, "index offline")
	assert.NotNil(t, resp.Sources)
}

func TestOrchestrator_Handle_AgentPanic(t *testing.T) {
	panicking := &stubAgent{name: "document", score: 0.8, panics: true}
	orch := NewOrchestrator(newTestRouter(panicking, &stubAgent{name: "research", score: 0.1}))

	resp := orch.Handle(context.Background(), models.Query{Text: "q"})

	assert.Equal(t, "document", resp.AgentName)
	assert.True(t, resp.Fallback)
	assert.Contains(t, resp.Error, "panic")
	assert.Zero(t, resp.Confidence)
}

func TestOrchestrator_Handle_UnknownRequestedAgent(t *testing.T) {
	orch := NewOrchestrator(newTestRouter(&stubAgent{name: "document", score: 0.8}))

	q := models.Query{
		Text:    "q",
		Context: models.QueryContext{RequestedAgents: []string{"nonexistent"}},
	}
	resp := orch.Handle(context.Background(), q)

	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.Error)
	assert.Zero(t, resp.Confidence)
}

func TestBuildRouter_RegistrationOrder(t *testing.T) {
	router := BuildRouter(config.DefaultRouting(), nil, nil, nil)

	var names []string
	for _, a := range router.Agents() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"geo", "compliance", "summary", "code", "document", "task", "research"}, names)
}

func TestBuildRouter_DisabledAgentSkipped(t *testing.T) {
	cfg := config.DefaultRouting()
	geo := cfg.Agents[config.AgentGeo]
	geo.Enabled = false
	cfg.Agents[config.AgentGeo] = geo

	router := BuildRouter(cfg, nil, nil, nil)
	_, ok := router.Get(config.AgentGeo)
	assert.False(t, ok)
}
