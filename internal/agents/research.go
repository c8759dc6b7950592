package agents

import (
	"context"
	"strings"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/synthesis"
	"github.com/sibylhq/sibyl/pkg/models"
)

// researchConfidence is reported for general-knowledge answers; they
// are not retrieval-grounded, so there is no distance signal. Canned
// fallback answers report 0.0 instead.
const researchConfidence = 0.7

// researchAgent answers general questions without retrieval.
type researchAgent struct {
	cfg   config.AgentConfig
	synth *synthesis.Synthesizer
}

func newResearchAgent(cfg config.AgentConfig, synth *synthesis.Synthesizer) Agent {
	return &researchAgent{cfg: cfg, synth: synth}
}

func (a *researchAgent) Name() string { return config.AgentResearch }

func (a *researchAgent) Description() string {
	return "General research and explanation; handles queries no specialist claims."
}

// CanHandle scores the research keywords. The interrogative boost only
// amplifies an existing keyword match; a bare question form alone never
// outranks a retrieval-backed specialist.
func (a *researchAgent) CanHandle(q models.Query) float64 {
	score := scoreKeywords(a.cfg, q.Text)
	if score > 0 && startsWithInterrogative(q.Text) {
		score += a.cfg.ContextBoost
	}
	return clampScore(score)
}

func (a *researchAgent) Process(ctx context.Context, q models.Query) (models.AgentResponse, error) {
	prompt := `You are a knowledgeable research assistant for government officers.
Answer the question clearly and concisely.

IMPORTANT INSTRUCTIONS:
- Explain concepts in plain language
- Say when a question needs authoritative sources you do not have
- Keep answers under 200 words

Question: ` + q.Text

	answer, fallback := a.synth.Generate(ctx, prompt, q.Text)

	confidence := researchConfidence
	if fallback {
		confidence = 0.0
	}

	return models.AgentResponse{
		AgentName:  config.AgentResearch,
		Answer:     answer,
		Sources:    []models.Source{},
		Confidence: confidence,
		Fallback:   fallback,
	}, nil
}

var interrogatives = []string{"what", "who", "how", "why", "when", "where", "explain", "tell me"}

func startsWithInterrogative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, word := range interrogatives {
		if strings.HasPrefix(lower, word) {
			return true
		}
	}
	return false
}
