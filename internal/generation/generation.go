// Package generation produces natural-language answers from prompts.
// Providers are selected by configuration at startup; the canned
// provider doubles as the degradation target when a live model is
// unreachable.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/pkg/models"
)

// ErrUnavailable reports that the generation backend could not be
// reached or refused the request. Callers fall back to canned output.
var ErrUnavailable = errors.New("generation backend unavailable")

// Generator produces an answer for a prompt.
type Generator interface {
	// Generate returns the model output for the prompt. Failures wrap
	// ErrUnavailable so callers can trigger degradation.
	Generate(ctx context.Context, prompt string, settings models.GenerationSettings) (string, error)

	// Name identifies the provider.
	Name() string
}

// New creates the configured generator.
func New(cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return newOpenAIGenerator(cfg)
	case config.ProviderCanned, "":
		return NewCannedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// Settings holds the process-wide generation settings. Reads are
// lock-free snapshots; updates are serialized and last-write-wins.
// In-flight queries keep the snapshot they started with.
type Settings struct {
	mu sync.Mutex
	v  atomic.Value // models.GenerationSettings
}

// NewSettings creates a settings holder with the given initial values.
func NewSettings(initial models.GenerationSettings) *Settings {
	s := &Settings{}
	s.v.Store(initial)
	return s
}

// Snapshot returns the current settings values.
func (s *Settings) Snapshot() models.GenerationSettings {
	return s.v.Load().(models.GenerationSettings)
}

// Apply merges a partial update into the current settings and returns
// the new values.
func (s *Settings) Apply(patch models.SettingsPatch) models.GenerationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.v.Load().(models.GenerationSettings).Merge(patch)
	s.v.Store(merged)
	return merged
}
