package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/xhad/mmrag/internal/types"
)

// ChatConfig represents the configuration for answer generation.
type ChatConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // Ollama server URL
	Timeout  time.Duration
}

const systemPrompt = "You are a helpful assistant. Answer the user using ONLY the provided context. " +
	"Synthesize and summarize, do not copy verbatim unless necessary. " +
	"If the answer is not in the context, say you don't know. " +
	"Prefer concise, direct answers. If the user asks for entities (e.g., animals mentioned), " +
	"list them explicitly."

// NewGenerator returns the remote generator selected by config.Provider,
// or nil for the local extractive mode.
func NewGenerator(config ChatConfig) (types.Generator, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", ProviderLocal:
		return nil, nil
	case ProviderGemini:
		return NewGeminiGenerator(config.APIKey, config.Model), nil
	case ProviderOllama:
		return NewOllamaGenerator(config.BaseURL, config.Model)
	default:
		return nil, fmt.Errorf("%w: unknown chat provider %q", types.ErrInvalidConfig, config.Provider)
	}
}
