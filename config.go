package illustrate

import "fmt"

// Config holds all configuration for the enhancement engine.
type Config struct {
	// Suggestion is the chat model that proposes image slots. Without an
	// API key for a hosted provider, suggestion is disabled and articles
	// pass through with ids assigned but no images.
	Suggestion LLMConfig `json:"suggestion" yaml:"suggestion"`

	// Vision is the optional model that judges candidate images. When
	// unset, the top search result wins by default.
	Vision LLMConfig `json:"vision" yaml:"vision"`

	// Search configures the image search backend.
	Search SearchConfig `json:"search" yaml:"search"`

	// MaxSlots bounds how many image slots are requested per article.
	MaxSlots int `json:"max_slots" yaml:"max_slots"`

	// CandidatesPerSlot is how many search results are fetched per slot
	// for curation to choose from. Capped at 10 by the search API.
	CandidatesPerSlot int `json:"candidates_per_slot" yaml:"candidates_per_slot"`

	// ResolveConcurrency is the number of slots resolved in parallel.
	// 1 resolves sequentially; results always keep slot order.
	ResolveConcurrency int `json:"resolve_concurrency" yaml:"resolve_concurrency"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // xai, openai, groq, gemini, ollama, lmstudio, openrouter, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// SearchConfig configures the image search backend. Both fields are
// required for resolution; without them slots stay unresolved and drop
// at injection.
type SearchConfig struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	EngineID string `json:"engine_id" yaml:"engine_id"`
}

// DefaultConfig returns a Config with Grok defaults for both suggestion
// and curation. API keys and search credentials must still be supplied.
func DefaultConfig() Config {
	return Config{
		Suggestion: LLMConfig{
			Provider: "xai",
			Model:    "grok-3-mini",
		},
		Vision: LLMConfig{
			Provider: "xai",
			Model:    "grok-2-vision-1212",
		},
		MaxSlots:           5,
		CandidatesPerSlot:  5,
		ResolveConcurrency: 1,
	}
}

// validate rejects configurations the engine cannot run with.
func (c *Config) validate() error {
	if c.MaxSlots < 0 {
		return fmt.Errorf("%w: max_slots must not be negative", ErrInvalidConfig)
	}
	if c.CandidatesPerSlot < 0 {
		return fmt.Errorf("%w: candidates_per_slot must not be negative", ErrInvalidConfig)
	}
	if c.ResolveConcurrency < 0 {
		return fmt.Errorf("%w: resolve_concurrency must not be negative", ErrInvalidConfig)
	}
	return nil
}
