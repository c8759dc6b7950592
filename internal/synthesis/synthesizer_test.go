package synthesis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibylhq/sibyl/internal/generation"
	"github.com/sibylhq/sibyl/pkg/models"
)

// echoGenerator returns its prompt, so tests can inspect what the
// synthesizer actually sent.
type echoGenerator struct{}

func (echoGenerator) Name() string { return "echo" }

func (echoGenerator) Generate(_ context.Context, prompt string, _ models.GenerationSettings) (string, error) {
	return prompt, nil
}

// downGenerator simulates an unreachable backend.
type downGenerator struct{}

func (downGenerator) Name() string { return "openai" }

func (downGenerator) Generate(context.Context, string, models.GenerationSettings) (string, error) {
	return "", fmt.Errorf("dial: %w", generation.ErrUnavailable)
}

func newTestSynthesizer(t *testing.T, gen generation.Generator) *Synthesizer {
	t.Helper()
	settings := generation.NewSettings(models.GenerationSettings{Model: "gpt-4o-mini", Temperature: 0.7})
	synth, err := NewSynthesizer(gen, settings)
	require.NoError(t, err)
	return synth
}

func chunkAt(docID string, seq int, text string, distance float64) models.RetrievedChunk {
	return models.RetrievedChunk{
		DocumentChunk: models.DocumentChunk{
			ID:         models.ChunkID(docID, seq),
			DocumentID: docID,
			Seq:        seq,
			Text:       text,
			Source:     "sop.pdf",
		},
		Distance: distance,
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		chunks   []models.RetrievedChunk
		expected float64
	}{
		// ===== GOOD CASES =====
		{
			name:     "perfect match",
			chunks:   []models.RetrievedChunk{chunkAt("d1", 0, "a", 0.0)},
			expected: 1.0,
		},
		{
			name:     "orthogonal match",
			chunks:   []models.RetrievedChunk{chunkAt("d1", 0, "a", 1.0)},
			expected: 0.5,
		},
		{
			name: "averaged over chunks",
			chunks: []models.RetrievedChunk{
				chunkAt("d1", 0, "a", 0.2),
				chunkAt("d1", 1, "b", 0.6),
			},
			expected: 0.8,
		},
		{
			name:     "rounded to two decimals",
			chunks:   []models.RetrievedChunk{chunkAt("d1", 0, "a", 0.333)},
			expected: 0.83,
		},

		// ===== EDGE CASES =====
		{
			name:     "no chunks",
			chunks:   nil,
			expected: 0.0,
		},
		{
			name:     "maximal distance clamps to zero",
			chunks:   []models.RetrievedChunk{chunkAt("d1", 0, "a", 2.0)},
			expected: 0.0,
		},
		{
			name:     "distance beyond range still clamps",
			chunks:   []models.RetrievedChunk{chunkAt("d1", 0, "a", 3.5)},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Confidence(tt.chunks), 1e-9)
		})
	}
}

func TestConfidence_Monotonic(t *testing.T) {
	// Closer chunks must never yield lower confidence.
	prev := 1.1
	for d := 0.0; d <= 2.0; d += 0.25 {
		c := Confidence([]models.RetrievedChunk{chunkAt("d1", 0, "a", d)})
		assert.LessOrEqual(t, c, prev)
		prev = c
	}
}

func TestSources(t *testing.T) {
	long := strings.Repeat("x", 300)
	sources := Sources([]models.RetrievedChunk{
		chunkAt("d1", 0, "short text", 0.1),
		chunkAt("d2", 0, long, 0.4),
	})

	require.Len(t, sources, 2)
	assert.Equal(t, "d1", sources[0].ID)
	assert.Equal(t, "sop.pdf", sources[0].Title)
	assert.Equal(t, "short text", sources[0].Snippet)

	assert.Len(t, sources[1].Snippet, 203, "long snippets truncate to 200 chars plus ellipsis")
	assert.True(t, strings.HasSuffix(sources[1].Snippet, "..."))

	// Scores are similarities: higher means closer, same scale as
	// the answer confidence.
	assert.InDelta(t, 0.95, sources[0].Score, 1e-9)
	assert.InDelta(t, 0.8, sources[1].Score, 1e-9)
	assert.Greater(t, sources[0].Score, sources[1].Score)
}

func TestSources_MultibyteSnippet(t *testing.T) {
	// 100 three-byte runes: the 200-byte cut falls inside a rune.
	text := strings.Repeat("€", 100)
	sources := Sources([]models.RetrievedChunk{chunkAt("d1", 0, text, 0.1)})

	require.Len(t, sources, 1)
	assert.True(t, utf8.ValidString(sources[0].Snippet), "truncation must not split a rune")
	assert.True(t, strings.HasSuffix(sources[0].Snippet, "..."))
}

func TestSynthesizer_Synthesize_Grounded(t *testing.T) {
	synth := newTestSynthesizer(t, echoGenerator{})

	chunks := []models.RetrievedChunk{
		chunkAt("d1", 0, "Potholes are repaired within ten days.", 0.2),
	}
	resp := synth.Synthesize(context.Background(), "document", "", "How fast are potholes fixed?", chunks)

	assert.Equal(t, "document", resp.AgentName)
	assert.False(t, resp.Fallback)
	assert.Empty(t, resp.Error)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
	require.Len(t, resp.Sources, 1)

	// The prompt carries the grounding context and the question.
	assert.Contains(t, resp.Answer, "[Source 1: sop.pdf]")
	assert.Contains(t, resp.Answer, "Potholes are repaired within ten days.")
	assert.Contains(t, resp.Answer, "How fast are potholes fixed?")
}

func TestSynthesizer_Synthesize_NothingFound(t *testing.T) {
	synth := newTestSynthesizer(t, echoGenerator{})

	resp := synth.Synthesize(context.Background(), "document", "", "anything", nil)

	assert.Equal(t, NotFoundAnswer, resp.Answer)
	assert.True(t, resp.Fallback)
	assert.Zero(t, resp.Confidence)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.Error, "nothing found is a degraded answer, not an error")
}

func TestSynthesizer_Synthesize_GenerationDown(t *testing.T) {
	synth := newTestSynthesizer(t, downGenerator{})

	chunks := []models.RetrievedChunk{
		chunkAt("d1", 0, "Pothole repair procedures.", 0.2),
	}
	resp := synth.Synthesize(context.Background(), "document", "", "pothole repair timelines?", chunks)

	assert.True(t, resp.Fallback)
	assert.Contains(t, resp.Answer, "7-10 business days", "canned template keyed on the query")
	assert.NotEmpty(t, resp.Sources, "citations survive generation failure")
	assert.Greater(t, resp.Confidence, 0.0, "retrieval confidence survives generation failure")
}

func TestSynthesizer_ContextBlock_CapsChunks(t *testing.T) {
	synth := newTestSynthesizer(t, echoGenerator{})

	var chunks []models.RetrievedChunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, chunkAt("d1", i, fmt.Sprintf("chunk number %d", i), 0.1))
	}

	block := synth.ContextBlock(chunks)
	assert.Contains(t, block, "chunk number 4")
	assert.NotContains(t, block, "chunk number 5", "at most five chunks enter the prompt")
}

func TestSynthesizer_ContextBlock_PageAnnotation(t *testing.T) {
	synth := newTestSynthesizer(t, echoGenerator{})

	chunk := chunkAt("d1", 0, "section text", 0.1)
	chunk.Metadata = map[string]string{"page": "12"}

	block := synth.ContextBlock([]models.RetrievedChunk{chunk})
	assert.Contains(t, block, "(Page 12)")
}

func TestSynthesizer_Generate_FallsBackWhenDown(t *testing.T) {
	synth := newTestSynthesizer(t, downGenerator{})

	answer, fallback := synth.Generate(context.Background(), "plan my water testing tasks", "water testing tasks")
	assert.True(t, fallback)
	assert.NotEmpty(t, answer)
}
