package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/xhad/mmrag/internal/types"
)

const (
	ProviderGemini = "gemini"
	ProviderRemote = "remote"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// EmbedderConfig selects and parameterises an embedding strategy.
type EmbedderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // Ollama server URL
	Timeout  time.Duration
	// RatePerSecond paces the per-item fallback of remote providers.
	RatePerSecond float64
	// Dimensions is reported by remote strategies; the vectors themselves
	// come from the provider.
	Dimensions int
}

func (c EmbedderConfig) withDefaults() EmbedderConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" || c.Provider == ProviderRemote {
		c.Provider = ProviderGemini
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	switch c.Provider {
	case ProviderGemini:
		if c.Model == "" {
			c.Model = "text-embedding-004"
		}
		if c.Dimensions == 0 {
			c.Dimensions = 768
		}
	case ProviderOllama:
		if c.Model == "" {
			c.Model = "nomic-embed-text:latest"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Dimensions == 0 {
			c.Dimensions = 768
		}
	}
	return c
}

// NewEmbedder builds the strategy named by config.Provider. The result is
// meant to be created once at startup and shared.
func NewEmbedder(config EmbedderConfig) (types.Embedder, error) {
	config = config.withDefaults()
	switch config.Provider {
	case ProviderGemini:
		return newRemoteEmbedder(config, newGeminiBackend(config)), nil
	case ProviderOllama:
		backend, err := newOllamaBackend(config)
		if err != nil {
			return nil, err
		}
		return newRemoteEmbedder(config, backend), nil
	case ProviderLocal:
		return NewLocalEmbedder(), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", types.ErrInvalidConfig, config.Provider)
	}
}
