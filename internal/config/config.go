// Package config provides configuration management for sibyl.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sibylhq/sibyl/pkg/models"
)

// Provider names for the embedding and generation capabilities.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
	ProviderCanned = "canned"
)

// Vector backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPgvector = "pgvector"
)

// Config holds the full application configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Vector     VectorConfig     `yaml:"vector"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Routing    RoutingConfig    `yaml:"routing"`
	Complaints ComplaintsConfig `yaml:"complaints"`
}

// HTTPConfig configures the HTTP service.
type HTTPConfig struct {
	Port        int   `yaml:"port"`
	MaxBodySize int64 `yaml:"max_body_size"`
}

// EmbeddingConfig selects and parameterizes the embedding provider.
// The provider is chosen here at construction time, never by runtime
// environment sniffing inside components.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "openai" or "mock"
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`

	// APIKey is populated from OPENAI_API_KEY at load time; it is never
	// read from the YAML file.
	APIKey string `yaml:"-"`
}

// GenerationConfig selects the generation provider and its defaults.
type GenerationConfig struct {
	Provider string                    `yaml:"provider"` // "openai" or "canned"
	BaseURL  string                    `yaml:"base_url"`
	Defaults models.GenerationSettings `yaml:"defaults"`

	APIKey string `yaml:"-"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Backend     string `yaml:"backend"` // "sqlite" or "pgvector"
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ChunkingConfig parameterizes the document splitter.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// AgentConfig holds the routing heuristics for one agent. Keyword sets
// and normalization divisors are configuration data so that tests can
// enumerate them and operators can tune them.
type AgentConfig struct {
	Enabled bool `yaml:"enabled"`

	// Keywords counted against the lowercased query text.
	Keywords []string `yaml:"keywords"`

	// Divisor normalizes the keyword match count into [0,1].
	Divisor float64 `yaml:"divisor"`

	// ContextBoost is added when the agent's structural hint is present
	// (project id, document id list, interrogative opener).
	ContextBoost float64 `yaml:"context_boost"`
}

// RoutingConfig holds the router threshold, the designated default
// agent, and the per-agent scoring heuristics.
type RoutingConfig struct {
	// Threshold is the minimum winning confidence; below it the default
	// agent handles the query. Heuristic, unvalidated — tune, don't
	// trust.
	Threshold float64 `yaml:"threshold"`

	// DefaultAgent handles queries no agent is confident about.
	DefaultAgent string `yaml:"default_agent"`

	Agents map[string]AgentConfig `yaml:"agents"`
}

// ComplaintsConfig locates the tabular complaints dataset used by the
// geo-analytics agent.
type ComplaintsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Agent names used as registry keys and routing targets.
const (
	AgentGeo        = "geo"
	AgentCompliance = "compliance"
	AgentSummary    = "summary"
	AgentCode       = "code"
	AgentDocument   = "document"
	AgentTask       = "task"
	AgentResearch   = "research"
)

// Default returns a Config with compiled-in defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:        8750,
			MaxBodySize: 10 << 20,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderMock,
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Generation: GenerationConfig{
			Provider: ProviderCanned,
			BaseURL:  "https://api.openai.com/v1",
			Defaults: models.GenerationSettings{
				Model:       "gpt-4o-mini",
				Temperature: 0.7,
				MaxTokens:   1000,
			},
		},
		Vector: VectorConfig{
			Backend:    BackendSQLite,
			SQLitePath: "sibyl.db",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Routing:    DefaultRouting(),
		Complaints: ComplaintsConfig{Path: "data/complaints.csv", Watch: true},
	}
}

// DefaultRouting returns the default routing heuristics. The keyword
// sets and divisors mirror the tuned production values; they are
// exposed as data so operators can adjust them without a rebuild.
func DefaultRouting() RoutingConfig {
	return RoutingConfig{
		Threshold:    0.3,
		DefaultAgent: AgentDocument,
		Agents: map[string]AgentConfig{
			AgentGeo: {
				Enabled: true,
				Keywords: []string{
					"ward", "location", "area", "map", "latitude", "longitude",
					"nearby", "pothole", "complaint", "where", "geographical",
				},
				Divisor: 3.0,
			},
			AgentCompliance: {
				Enabled: true,
				Keywords: []string{
					"compliant", "compliance", "regulation", "legal", "violation",
					"breach", "requirement", "mandatory", "permitted", "allowed",
				},
				Divisor: 3.0,
			},
			AgentSummary: {
				Enabled: true,
				Keywords: []string{
					"summarize", "summary", "overview", "brief", "extract",
					"key points", "highlights", "action items", "main points",
				},
				Divisor: 3.0,
			},
			AgentCode: {
				Enabled: true,
				Keywords: []string{
					"code", "function", "class", "bug", "error", "debug",
					"implement", "refactor", "optimize", "algorithm",
					"syntax", "compile", "test", "api", "method",
					"variable", "parameter", "return", "import",
				},
				Divisor:      5.0,
				ContextBoost: 0.3,
			},
			AgentDocument: {
				Enabled: true,
				Keywords: []string{
					"document", "pdf", "file", "paper", "article", "policy",
					"circular", "guideline", "procedure", "sop", "standard",
					"what does", "according to", "based on", "quote",
				},
				Divisor:      4.0,
				ContextBoost: 0.4,
			},
			AgentTask: {
				Enabled: true,
				Keywords: []string{
					"task", "todo", "plan", "schedule", "deadline",
					"remind", "reminder", "organize", "prioritize",
					"break down", "subtask", "action item", "agenda",
					"productivity", "time management",
				},
				Divisor: 3.0,
			},
			AgentResearch: {
				Enabled: true,
				Keywords: []string{
					"what is", "who is", "how does", "why does",
					"explain", "research", "learn", "study",
					"teach me", "tell me about", "information about",
					"history of", "definition", "meaning",
				},
				Divisor:      3.0,
				ContextBoost: 0.3,
			},
		},
	}
}

// Load reads the YAML file at path (if it exists) over the defaults and
// resolves credentials from the environment. A missing file is not an
// error; a malformed file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
		cfg.Generation.APIKey = key
	}

	return cfg, cfg.Validate()
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking overlap %d must be smaller than size %d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Routing.Threshold < 0 || c.Routing.Threshold > 1 {
		return fmt.Errorf("routing threshold %.2f outside [0,1]", c.Routing.Threshold)
	}
	if _, ok := c.Routing.Agents[c.Routing.DefaultAgent]; !ok {
		return fmt.Errorf("default agent %q has no routing config", c.Routing.DefaultAgent)
	}
	switch c.Vector.Backend {
	case BackendSQLite, BackendPgvector:
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	return nil
}
