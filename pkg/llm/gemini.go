package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xhad/mmrag/internal/types"
	"google.golang.org/genai"
)

const geminiTaskType = "RETRIEVAL_DOCUMENT"

// geminiClient creates the genai client on first use and reuses it.
type geminiClient struct {
	apiKey string
	// unavailable is wrapped into every setup error.
	unavailable error
	once   sync.Once
	client *genai.Client
	err    error
}

func (g *geminiClient) get(ctx context.Context) (*genai.Client, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("%w: missing GOOGLE_API_KEY", g.unavailable)
	}
	g.once.Do(func() {
		g.client, g.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.err != nil {
		return nil, fmt.Errorf("%w: init gemini client: %v", g.unavailable, g.err)
	}
	return g.client, nil
}

type geminiBackend struct {
	model  string
	client *geminiClient
}

func newGeminiBackend(config EmbedderConfig) *geminiBackend {
	return &geminiBackend{
		model:  config.Model,
		client: &geminiClient{apiKey: strings.TrimSpace(config.APIKey), unavailable: types.ErrEmbeddingUnavailable},
	}
}

func (b *geminiBackend) batch(ctx context.Context, texts []string) ([][]float32, error) {
	client, err := b.client.get(ctx)
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	resp, err := client.Models.EmbedContent(ctx, b.model, contents, &genai.EmbedContentConfig{
		TaskType: geminiTaskType,
	})
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			continue
		}
		out = append(out, emb.Values)
	}
	return out, nil
}

func (b *geminiBackend) single(ctx context.Context, text string) ([]float32, error) {
	out, err := b.batch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return out[0], nil
}

// GeminiGenerator answers prompts with a Gemini chat model.
type GeminiGenerator struct {
	model  string
	client *geminiClient
}

func NewGeminiGenerator(apiKey, model string) *GeminiGenerator {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiGenerator{
		model:  model,
		client: &geminiClient{apiKey: strings.TrimSpace(apiKey), unavailable: types.ErrSynthesisDegraded},
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	client, err := g.client.get(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		},
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}
