package agents

import (
	"errors"
	"fmt"

	"github.com/sibylhq/sibyl/internal/complaints"
	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/retrieval"
	"github.com/sibylhq/sibyl/internal/synthesis"
	"github.com/sibylhq/sibyl/pkg/models"
)

// ErrAgentNotFound reports that an explicitly requested handler is not
// registered.
var ErrAgentNotFound = errors.New("requested agent not registered")

// Router scores every registered agent against a query and picks the
// winner. Routing is a pure decision: it performs no I/O and leaves no
// state behind.
type Router struct {
	agents      []Agent // registration order; earlier wins ties
	byName      map[string]Agent
	threshold   float64
	defaultName string
}

// NewRouter creates an empty router with the given thresholding rules.
func NewRouter(cfg config.RoutingConfig) *Router {
	return &Router{
		byName:      make(map[string]Agent),
		threshold:   cfg.Threshold,
		defaultName: cfg.DefaultAgent,
	}
}

// Register adds an agent. Order matters: when two agents score equally,
// the earlier registration wins.
func (r *Router) Register(a Agent) {
	if _, dup := r.byName[a.Name()]; dup {
		return
	}
	r.agents = append(r.agents, a)
	r.byName[a.Name()] = a
}

// Get looks up an agent by name.
func (r *Router) Get(name string) (Agent, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Agents returns the registered agents in registration order.
func (r *Router) Agents() []Agent {
	return r.agents
}

// Route picks the agent for a query. A requested handler in the query
// context bypasses scoring entirely; otherwise the highest-scoring
// agent wins, with ties broken by registration order, and scores below
// the threshold falling through to the default agent.
func (r *Router) Route(q models.Query) (Agent, float64, error) {
	if requested := q.Context.RequestedAgents; len(requested) > 0 {
		name := requested[0]
		agent, ok := r.byName[name]
		if !ok {
			return nil, 0.0, fmt.Errorf("%w: %q", ErrAgentNotFound, name)
		}
		return agent, 1.0, nil
	}

	if len(r.agents) == 0 {
		return nil, 0.0, errors.New("no agents registered")
	}

	var best Agent
	bestScore := -1.0
	for _, agent := range r.agents {
		if score := agent.CanHandle(q); score > bestScore {
			best = agent
			bestScore = score
		}
	}

	if bestScore < r.threshold {
		if fallback, ok := r.byName[r.defaultName]; ok {
			return fallback, bestScore, nil
		}
	}
	return best, bestScore, nil
}

// BuildRouter registers the enabled agents in their canonical order:
// geo, compliance, summary, code, document, task, research. The order
// is the tie-break, so it is fixed here rather than left to map
// iteration.
func BuildRouter(cfg config.RoutingConfig, engine *retrieval.Engine, synth *synthesis.Synthesizer, store *complaints.Store) *Router {
	router := NewRouter(cfg)

	build := map[string]func(config.AgentConfig) Agent{
		config.AgentGeo:        func(ac config.AgentConfig) Agent { return newGeoAgent(ac, store) },
		config.AgentCompliance: func(ac config.AgentConfig) Agent { return newComplianceAgent(ac, engine, synth) },
		config.AgentSummary:    func(ac config.AgentConfig) Agent { return newSummaryAgent(ac, engine, synth) },
		config.AgentCode:       func(ac config.AgentConfig) Agent { return newCodeAgent(ac, engine, synth) },
		config.AgentDocument:   func(ac config.AgentConfig) Agent { return newDocumentAgent(ac, engine, synth) },
		config.AgentTask:       func(ac config.AgentConfig) Agent { return newTaskAgent(ac, synth) },
		config.AgentResearch:   func(ac config.AgentConfig) Agent { return newResearchAgent(ac, synth) },
	}

	for _, name := range []string{
		config.AgentGeo,
		config.AgentCompliance,
		config.AgentSummary,
		config.AgentCode,
		config.AgentDocument,
		config.AgentTask,
		config.AgentResearch,
	} {
		agentCfg, ok := cfg.Agents[name]
		if !ok || !agentCfg.Enabled {
			continue
		}
		router.Register(build[name](agentCfg))
	}

	return router
}
