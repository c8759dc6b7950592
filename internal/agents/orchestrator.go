package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sibylhq/sibyl/pkg/models"
)

// Orchestrator is the single entry point for query execution. Whatever
// goes wrong below it — routing failures, handler errors, panics — the
// caller always receives a well-formed AgentResponse.
type Orchestrator struct {
	router *Router
}

// NewOrchestrator wraps a router.
func NewOrchestrator(router *Router) *Orchestrator {
	return &Orchestrator{router: router}
}

// Router exposes the underlying router for handler listings.
func (o *Orchestrator) Router() *Router { return o.router }

// Handle routes and executes a query. Errors never escape: they are
// folded into the response's Error field with Fallback set.
func (o *Orchestrator) Handle(ctx context.Context, q models.Query) (resp models.AgentResponse) {
	start := time.Now()
	agentName := "router"

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("agent", agentName).
				Interface("panic", r).
				Msg("Agent panicked")
			resp = models.ErrorResponse(agentName,
				"An internal error occurred while processing your query.",
				fmt.Sprintf("panic: %v", r))
		}
	}()

	agent, score, err := o.router.Route(q)
	if err != nil {
		log.Warn().Err(err).Msg("Routing failed")
		return models.ErrorResponse(agentName,
			"The requested handler is not available.", err.Error())
	}
	agentName = agent.Name()

	resp, err = agent.Process(ctx, q)
	if err != nil {
		log.Error().
			Err(err).
			Str("agent", agentName).
			Msg("Agent failed")
		return models.ErrorResponse(agentName,
			"An error occurred while processing your query.", err.Error())
	}

	if resp.AgentName == "" {
		resp.AgentName = agentName
	}
	if resp.Sources == nil {
		resp.Sources = []models.Source{}
	}

	log.Info().
		Str("agent", agentName).
		Float64("routingScore", score).
		Float64("confidence", resp.Confidence).
		Bool("fallback", resp.Fallback).
		Dur("duration", time.Since(start)).
		Msg("Handled query")

	return resp
}
