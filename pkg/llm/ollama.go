package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

type ollamaBackend struct {
	llm *ollama.LLM
}

func newOllamaBackend(config EmbedderConfig) (*ollamaBackend, error) {
	llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
	}
	return &ollamaBackend{llm: llm}, nil
}

func (b *ollamaBackend) batch(ctx context.Context, texts []string) ([][]float32, error) {
	return b.llm.CreateEmbedding(ctx, texts)
}

func (b *ollamaBackend) single(ctx context.Context, text string) ([]float32, error) {
	out, err := b.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return out[0], nil
}

// OllamaGenerator answers prompts with a local Ollama chat model.
type OllamaGenerator struct {
	llm llms.Model
}

func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	if model == "" {
		model = "mistral" // Default Ollama model
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434" // Default Ollama URL
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return &OllamaGenerator{llm: llm}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := g.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("no response from LLM")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
