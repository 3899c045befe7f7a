package types

import (
	"context"

	"github.com/xhad/mmrag/internal/models"
)

// Core interfaces
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimensions() int
}

type VectorStore interface {
	Upsert(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, embedding []float32, topK int, where models.Where) ([]models.SearchHit, error)
	Get(ctx context.Context, where models.Where) ([]models.StoredChunk, error)
	Delete(ctx context.Context, ids []string) error
	Close()
}

// PrefixDeleter is implemented by stores that can drop every chunk whose id
// starts with a prefix in one operation.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}
