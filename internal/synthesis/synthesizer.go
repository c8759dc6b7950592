// Package synthesis turns retrieved chunks into a grounded, cited
// answer. It owns the degradation ladder: grounded generation first,
// an honest "nothing found" when retrieval came back empty, and canned
// output when the generation backend is unreachable.
package synthesis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/sibylhq/sibyl/internal/generation"
	"github.com/sibylhq/sibyl/pkg/models"
)

const (
	// maxContextChunks caps how many retrieved chunks enter the prompt.
	maxContextChunks = 5

	// maxContextTokens bounds the context block so the prompt stays
	// within model limits regardless of chunk sizes.
	maxContextTokens = 3000

	// snippetLength is the citation snippet size in characters.
	snippetLength = 200
)

// NotFoundAnswer is returned when retrieval produced no chunks.
const NotFoundAnswer = "No relevant documents found in the knowledge base."

// DefaultPreamble is the grounding instruction used when an agent does
// not supply its own.
const DefaultPreamble = `You are a helpful AI assistant for government officers managing a smart city.
Use the following document excerpts to answer the user's question accurately and concisely.

IMPORTANT INSTRUCTIONS:
- Base your answer ONLY on the provided documents
- If the documents don't contain enough information, say so
- Keep answers under 200 words
- Use professional, clear language
- When referencing information, mention the source document
- For compliance questions, cite specific clauses or sections`

// Synthesizer generates grounded answers from retrieved chunks.
type Synthesizer struct {
	generator generation.Generator
	canned    *generation.CannedGenerator
	settings  *generation.Settings
	codec     tokenizer.Codec
}

// NewSynthesizer wires the answer stage. The canned generator is always
// constructed as the degradation target, even when it is also the
// primary provider.
func NewSynthesizer(gen generation.Generator, settings *generation.Settings) (*Synthesizer, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Synthesizer{
		generator: gen,
		canned:    generation.NewCannedGenerator(),
		settings:  settings,
		codec:     codec,
	}, nil
}

// Synthesize produces the answer for a query given its retrieved
// chunks. It never returns an error; every failure mode maps to a
// well-formed degraded response.
func (s *Synthesizer) Synthesize(ctx context.Context, agentName, preamble, query string, chunks []models.RetrievedChunk) models.AgentResponse {
	if len(chunks) == 0 {
		return models.AgentResponse{
			AgentName:  agentName,
			Answer:     NotFoundAnswer,
			Sources:    []models.Source{},
			Confidence: 0.0,
			Fallback:   true,
		}
	}

	if preamble == "" {
		preamble = DefaultPreamble
	}
	prompt := fmt.Sprintf("%s\n\nContext from documents:\n%s\n\nQuestion: %s",
		preamble, s.ContextBlock(chunks), query)

	settings := s.settings.Snapshot()
	fallback := s.generator.Name() == "canned"

	answer, err := s.generator.Generate(ctx, prompt, settings)
	if err != nil {
		log.Warn().
			Err(err).
			Str("agent", agentName).
			Str("provider", s.generator.Name()).
			Msg("Generation failed, serving canned response")
		answer, _ = s.canned.Generate(ctx, query, settings)
		fallback = true
	}

	return models.AgentResponse{
		AgentName:  agentName,
		Answer:     answer,
		Sources:    Sources(chunks),
		Confidence: Confidence(chunks),
		Fallback:   fallback,
	}
}

// Generate runs an ungrounded prompt through the primary generator,
// degrading to canned output on failure. The returned flag reports
// whether the answer came from the canned path.
func (s *Synthesizer) Generate(ctx context.Context, prompt, query string) (string, bool) {
	settings := s.settings.Snapshot()
	fallback := s.generator.Name() == "canned"

	answer, err := s.generator.Generate(ctx, prompt, settings)
	if err != nil {
		log.Warn().
			Err(err).
			Str("provider", s.generator.Name()).
			Msg("Generation failed, serving canned response")
		answer, _ = s.canned.Generate(ctx, query, settings)
		fallback = true
	}
	return answer, fallback
}

// ContextBlock formats up to maxContextChunks chunks as numbered,
// attributed excerpts, dropping trailing chunks once the token budget
// is spent.
func (s *Synthesizer) ContextBlock(chunks []models.RetrievedChunk) string {
	if len(chunks) > maxContextChunks {
		chunks = chunks[:maxContextChunks]
	}

	var parts []string
	used := 0
	for i, chunk := range chunks {
		pageStr := ""
		if page := chunkPage(chunk); page > 0 {
			pageStr = fmt.Sprintf(" (Page %d)", page)
		}
		part := fmt.Sprintf("[Source %d: %s%s]\n%s\n", i+1, chunkTitle(chunk), pageStr, chunk.Text)

		count, err := s.codec.Count(part)
		if err != nil {
			// Fall back to a conservative character estimate.
			count = len(part) / 3
		}
		if used+count > maxContextTokens && len(parts) > 0 {
			break
		}
		used += count
		parts = append(parts, part)
	}

	return strings.Join(parts, "\n---\n")
}

// Sources builds citations for the retrieved chunks, ordered by
// relevance. Scores are similarities in [0,1], higher meaning closer.
func Sources(chunks []models.RetrievedChunk) []models.Source {
	sources := make([]models.Source, len(chunks))
	for i, chunk := range chunks {
		snippet := chunk.Text
		if len(snippet) > snippetLength {
			snippet = truncateToRune(snippet, snippetLength) + "..."
		}
		sources[i] = models.Source{
			ID:      chunk.DocumentID,
			Title:   chunkTitle(chunk),
			Page:    chunkPage(chunk),
			Snippet: snippet,
			Score:   similarityScore(chunk.Distance),
		}
	}
	return sources
}

// Confidence maps the average retrieval distance into [0,1], rounded
// to two decimals: identical vectors score 1.0, orthogonal ones 0.5.
func Confidence(chunks []models.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0.0
	}

	var sum float64
	for _, chunk := range chunks {
		sum += chunk.Distance
	}

	confidence := similarityScore(sum / float64(len(chunks)))
	return math.Round(confidence*100) / 100
}

// similarityScore converts a cosine distance in [0,2] to a similarity
// in [0,1], higher meaning closer. Citation scores and answer
// confidence share this scale.
func similarityScore(distance float64) float64 {
	return math.Max(0.0, math.Min(1.0, 1.0-distance/2.0))
}

// truncateToRune cuts s to at most limit bytes, backing off so a
// multi-byte rune is never split.
func truncateToRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func chunkTitle(chunk models.RetrievedChunk) string {
	if title := chunk.Metadata["title"]; title != "" {
		return title
	}
	if chunk.Source != "" {
		return chunk.Source
	}
	return "Unknown Document"
}

func chunkPage(chunk models.RetrievedChunk) int {
	page, err := strconv.Atoi(chunk.Metadata["page"])
	if err != nil || page < 0 {
		return 0
	}
	return page
}
