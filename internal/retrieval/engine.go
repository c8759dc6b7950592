// Package retrieval embeds a query and finds its nearest stored chunks.
// The engine never fails a caller: index or embedding errors degrade to
// an empty result set, which downstream synthesis reports honestly as
// "nothing found".
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/sibylhq/sibyl/internal/embedding"
	"github.com/sibylhq/sibyl/internal/vector"
	"github.com/sibylhq/sibyl/pkg/models"
)

// Retrieval depth bounds. Caller-supplied k is clamped into this range.
const (
	MinTopK     = 1
	MaxTopK     = 10
	DefaultTopK = 5
)

// Metrics tracks engine counters. All fields are atomic; read them via
// Snapshot.
type Metrics struct {
	queries   atomic.Int64
	errors    atomic.Int64
	coalesced atomic.Int64
	totalUS   atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the engine counters.
type MetricsSnapshot struct {
	Queries      int64   `json:"queries"`
	Errors       int64   `json:"errors"`
	Coalesced    int64   `json:"coalesced"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Queries:   m.queries.Load(),
		Errors:    m.errors.Load(),
		Coalesced: m.coalesced.Load(),
	}
	if s.Queries > 0 {
		s.AvgLatencyMS = float64(m.totalUS.Load()) / float64(s.Queries) / 1000.0
	}
	return s
}

// Engine performs similarity retrieval over the vector index.
type Engine struct {
	embedder embedding.Embedder
	index    vector.Index
	group    singleflight.Group
	metrics  Metrics
}

// NewEngine creates a retrieval engine.
func NewEngine(embedder embedding.Embedder, index vector.Index) *Engine {
	return &Engine{embedder: embedder, index: index}
}

// Metrics exposes the engine counters.
func (e *Engine) Metrics() *Metrics { return &e.metrics }

// ClampTopK normalizes a caller-supplied retrieval depth. Zero means
// "use the default"; out-of-range values are pulled to the nearest
// bound.
func ClampTopK(k int) int {
	switch {
	case k == 0:
		return DefaultTopK
	case k < MinTopK:
		return MinTopK
	case k > MaxTopK:
		return MaxTopK
	}
	return k
}

// Retrieve returns up to k chunks nearest to the query text, most
// relevant first. Identical concurrent lookups are coalesced into one
// backend round trip. On any failure it logs and returns an empty
// slice; retrieval errors must never abort the query pipeline.
func (e *Engine) Retrieve(ctx context.Context, collection models.Collection, query string, k int, filter models.Filter) []models.RetrievedChunk {
	start := time.Now()
	e.metrics.queries.Add(1)
	defer func() {
		e.metrics.totalUS.Add(time.Since(start).Microseconds())
	}()

	k = ClampTopK(k)

	key := coalesceKey(collection, query, k, filter)
	v, err, shared := e.group.Do(key, func() (any, error) {
		return e.retrieve(ctx, collection, query, k, filter)
	})
	if shared {
		e.metrics.coalesced.Add(1)
	}
	if err != nil {
		e.metrics.errors.Add(1)
		log.Warn().
			Err(err).
			Str("collection", string(collection)).
			Int("topK", k).
			Msg("Retrieval failed, returning empty results")
		return nil
	}

	return v.([]models.RetrievedChunk)
}

func (e *Engine) retrieve(ctx context.Context, collection models.Collection, query string, k int, filter models.Filter) ([]models.RetrievedChunk, error) {
	embedded, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := e.index.Query(ctx, collection, embedded, k, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	chunks := make([]models.RetrievedChunk, len(results))
	for i, res := range results {
		chunks[i] = models.RetrievedChunk{
			DocumentChunk: models.DocumentChunk{
				ID:         res.ID,
				DocumentID: res.DocumentID,
				Seq:        res.Seq,
				Text:       res.Content,
				Source:     res.Source,
				Metadata:   res.Metadata,
			},
			Distance: res.Distance,
		}
	}
	return chunks, nil
}

// coalesceKey builds a stable singleflight key from all inputs that
// affect the result.
func coalesceKey(collection models.Collection, query string, k int, filter models.Filter) string {
	var sb strings.Builder
	sb.WriteString(string(collection))
	sb.WriteByte('|')
	fmt.Fprintf(&sb, "%d|", k)

	fm := filter.Map()
	keys := make([]string, 0, len(fm))
	for key := range fm {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(fm[key])
		sb.WriteByte(';')
	}

	sb.WriteByte('|')
	sb.WriteString(query)
	return sb.String()
}
