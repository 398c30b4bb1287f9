package ai

import (
	"errors"
	"fmt"

	"github.com/hrygo/personaflow/internal/profile"
)

// Config represents the AI configuration of a persona deployment.
type Config struct {
	Embedding    EmbeddingConfig
	LLM          LLMConfig
	Recollection RecollectionConfig
	Orchestrator OrchestratorConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // siliconflow, openai
	Model      string // BAAI/bge-m3
	Dimensions int    // 1024
	APIKey     string
	BaseURL    string
	CacheSize  int // query embeddings kept in memory, 0 disables caching
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider       string // deepseek, openai, siliconflow, anthropic
	Model          string // deepseek-chat
	APIKey         string
	BaseURL        string
	MaxTokens      int     // default: 1024
	Temperature    float32 // default: 0.7
	RequestsPerSec float64 // 0 means unlimited
	MaxConcurrency int     // concurrent backend calls across all turns
}

// RecollectionConfig selects and tunes the recollection backend.
type RecollectionConfig struct {
	Backend        string // chromem, postgres, sqlite
	PersistDir     string // chromem persistence directory, empty keeps it in memory
	RelevanceFloor float64
	Limit          int
}

// OrchestratorConfig tunes the response orchestrator.
type OrchestratorConfig struct {
	SupplementMinRunes     int
	ReflexHistoryTurns     int
	DirectHistoryTurns     int
	SupplementHistoryTurns int
}

// DefaultOrchestratorConfig returns the orchestrator defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		SupplementMinRunes:     180,
		ReflexHistoryTurns:     2,
		DirectHistoryTurns:     6,
		SupplementHistoryTurns: 3,
	}
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{}

	// Embedding configuration
	cfg.Embedding = EmbeddingConfig{
		Provider:   p.EmbeddingProvider,
		Model:      p.EmbeddingModel,
		Dimensions: p.EmbeddingDims,
		CacheSize:  p.EmbeddingCacheSize,
	}

	switch p.EmbeddingProvider {
	case "siliconflow":
		cfg.Embedding.APIKey = p.SiliconFlowAPIKey
		cfg.Embedding.BaseURL = p.SiliconFlowBaseURL
	case "openai":
		cfg.Embedding.APIKey = p.OpenAIAPIKey
		cfg.Embedding.BaseURL = p.OpenAIBaseURL
	}

	// LLM configuration
	cfg.LLM = LLMConfig{
		Provider:       p.LLMProvider,
		Model:          p.LLMModel,
		MaxTokens:      p.LLMMaxTokens,
		Temperature:    p.LLMTemperature,
		RequestsPerSec: p.LLMRequestsPerSec,
		MaxConcurrency: p.LLMMaxConcurrency,
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}

	switch p.LLMProvider {
	case "deepseek":
		cfg.LLM.APIKey = p.DeepSeekAPIKey
		cfg.LLM.BaseURL = p.DeepSeekBaseURL
	case "openai":
		cfg.LLM.APIKey = p.OpenAIAPIKey
		cfg.LLM.BaseURL = p.OpenAIBaseURL
	case "siliconflow":
		cfg.LLM.APIKey = p.SiliconFlowAPIKey
		cfg.LLM.BaseURL = p.SiliconFlowBaseURL
	case "anthropic":
		cfg.LLM.APIKey = p.AnthropicAPIKey
	}

	cfg.Recollection = RecollectionConfig{
		Backend:        p.RecollectionBackend,
		RelevanceFloor: p.RelevanceFloor,
		Limit:          p.RetrievalLimit,
	}
	if p.RecollectionBackend == "chromem" && p.Data != "" && !p.IsDev() {
		cfg.Recollection.PersistDir = p.Data + "/chromem"
	}

	cfg.Orchestrator = DefaultOrchestratorConfig()
	if p.SupplementMinRunes > 0 {
		cfg.Orchestrator.SupplementMinRunes = p.SupplementMinRunes
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	switch c.Recollection.Backend {
	case "chromem", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported recollection backend: %s", c.Recollection.Backend)
	}
	if c.Recollection.Limit <= 0 {
		return errors.New("recollection limit must be positive")
	}

	return nil
}
