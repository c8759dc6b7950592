package agents

import (
	"context"
	"strings"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/retrieval"
	"github.com/sibylhq/sibyl/internal/synthesis"
	"github.com/sibylhq/sibyl/pkg/models"
)

// ragAgent is the shared retrieval-augmented handler. The variants
// differ in their content class, prompt preamble and structural boost.
type ragAgent struct {
	name        string
	description string
	cfg         config.AgentConfig
	class       string
	preamble    string

	// defaultTopK overrides the engine default when the caller did not
	// ask for a depth; 0 keeps the engine default.
	defaultTopK int

	// boost reports whether the agent's structural hint is present in
	// the query context; nil means no boost.
	boost func(q models.Query) bool

	// frame post-processes the synthesized answer; nil leaves it as is.
	frame func(answer string) string

	engine *retrieval.Engine
	synth  *synthesis.Synthesizer
}

func (a *ragAgent) Name() string        { return a.name }
func (a *ragAgent) Description() string { return a.description }

func (a *ragAgent) CanHandle(q models.Query) float64 {
	score := scoreKeywords(a.cfg, q.Text)
	if a.boost != nil && a.boost(q) {
		score += a.cfg.ContextBoost
	}
	return clampScore(score)
}

// Process retrieves the nearest chunks for the query and synthesizes a
// cited answer. Retrieval failures surface as an honest empty result,
// so Process itself never errors.
func (a *ragAgent) Process(ctx context.Context, q models.Query) (models.AgentResponse, error) {
	filter := q.Context.Filter
	if filter.DocumentID == "" && len(q.Context.DocumentIDs) == 1 {
		filter.DocumentID = q.Context.DocumentIDs[0]
	}

	topK := q.Context.TopK
	if topK == 0 {
		topK = a.defaultTopK
	}

	collection := models.NewCollection(queryUserID(q), a.class)
	chunks := a.engine.Retrieve(ctx, collection, q.Text, topK, filter)

	resp := a.synth.Synthesize(ctx, a.name, a.preamble, q.Text, chunks)
	if a.frame != nil && !resp.Fallback {
		resp.Answer = a.frame(resp.Answer)
	}
	return resp, nil
}

func newDocumentAgent(cfg config.AgentConfig, engine *retrieval.Engine, synth *synthesis.Synthesizer) Agent {
	return &ragAgent{
		name:        config.AgentDocument,
		description: "Answers questions grounded in uploaded documents, with citations.",
		cfg:         cfg,
		class:       models.ClassDocuments,
		engine:      engine,
		synth:       synth,
		boost: func(q models.Query) bool {
			return len(q.Context.DocumentIDs) > 0
		},
	}
}

func newCodeAgent(cfg config.AgentConfig, engine *retrieval.Engine, synth *synthesis.Synthesizer) Agent {
	return &ragAgent{
		name:        config.AgentCode,
		description: "Explains and debugs code using the indexed codebase.",
		cfg:         cfg,
		class:       models.ClassCode,
		defaultTopK: 10,
		engine:      engine,
		synth:       synth,
		preamble: `You are an expert software engineer assisting with an indexed codebase.
Use the following code excerpts to answer the question accurately.

IMPORTANT INSTRUCTIONS:
- Base your answer ONLY on the provided code
- Reference file names and functions when explaining behavior
- If the excerpts are insufficient, say so
- Keep answers concise and technical`,
		boost: func(q models.Query) bool {
			return q.Context.ProjectID != ""
		},
	}
}

func newSummaryAgent(cfg config.AgentConfig, engine *retrieval.Engine, synth *synthesis.Synthesizer) Agent {
	return &ragAgent{
		name:        config.AgentSummary,
		description: "Produces summaries and key points from uploaded documents.",
		cfg:         cfg,
		class:       models.ClassDocuments,
		defaultTopK: 6,
		engine:      engine,
		synth:       synth,
		frame: func(answer string) string {
			if strings.HasPrefix(answer, "**Summary:**") {
				return answer
			}
			return "**Summary:**\n\n" + answer
		},
		preamble: `You are a summarization assistant for government officers.
Use the following document excerpts to produce the requested summary.

IMPORTANT INSTRUCTIONS:
- Summarize ONLY what the provided documents contain
- Lead with the key points, then supporting detail
- Call out action items and deadlines explicitly
- Keep the summary under 200 words`,
	}
}

func newComplianceAgent(cfg config.AgentConfig, engine *retrieval.Engine, synth *synthesis.Synthesizer) Agent {
	return &ragAgent{
		name:        config.AgentCompliance,
		description: "Checks questions against regulations and standard operating procedures.",
		cfg:         cfg,
		class:       models.ClassDocuments,
		defaultTopK: 4,
		engine:      engine,
		synth:       synth,
		frame: func(answer string) string {
			return answer + "\n\n*This is an automated compliance check. Consult the legal department for authoritative interpretation.*"
		},
		preamble: `You are a compliance assistant for municipal operations.
Use the following regulatory excerpts to answer the compliance question.

IMPORTANT INSTRUCTIONS:
- Base your answer ONLY on the provided regulations and procedures
- Cite the specific clause or section for every claim
- State clearly when the documents do not settle the question
- Never speculate about legal consequences beyond the text`,
	}
}

