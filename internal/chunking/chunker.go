// Package chunking splits document text into bounded, overlapping
// chunks for embedding. Chunk ids are derived from the document id and
// the chunk sequence, so re-splitting the same document always yields
// the same ids.
package chunking

import (
	"strings"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/pkg/models"
)

const (
	defaultSize    = 1000
	defaultOverlap = 200
)

// Chunker splits text into chunks of roughly Size characters with
// Overlap characters of trailing context carried into the next chunk.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker from configuration, falling back to defaults
// for unset values.
func New(cfg config.ChunkingConfig) *Chunker {
	size := cfg.Size
	if size <= 0 {
		size = defaultSize
	}
	overlap := cfg.Overlap
	if overlap < 0 || overlap >= size {
		overlap = defaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into chunks, preferring paragraph breaks, then line
// breaks, then word boundaries near the size limit. Whitespace-only
// input yields no chunks. The metadata map is copied per chunk so later
// mutation of one chunk cannot leak into its siblings.
func (c *Chunker) Split(documentID, text, source string, metadata map[string]string) []models.DocumentChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []models.DocumentChunk
	seq := 0
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.breakPoint(text, start, end)
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, models.DocumentChunk{
				ID:         models.ChunkID(documentID, seq),
				DocumentID: documentID,
				Seq:        seq,
				Text:       piece,
				Source:     source,
				Metadata:   cloneMetadata(metadata),
			})
			seq++
		}

		if end == len(text) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// breakPoint finds the best split position inside text[start:end],
// trying paragraph, line and word boundaries in that order. Candidates
// must fall past the overlap region so the window always advances.
func (c *Chunker) breakPoint(text string, start, end int) int {
	window := text[start:end]
	min := len(window) / 2
	if min <= c.overlap {
		min = c.overlap + 1
	}

	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(window, sep); idx >= min {
			return start + idx + len(sep)
		}
	}
	return end
}

func cloneMetadata(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
