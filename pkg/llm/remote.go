package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/metrics"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// embedBackend is the provider specific half of a remote embedder.
type embedBackend interface {
	batch(ctx context.Context, texts []string) ([][]float32, error)
	single(ctx context.Context, text string) ([]float32, error)
}

// remoteEmbedder tries one batched call and falls back to one call per
// text when the batch fails or returns the wrong number of vectors.
type remoteEmbedder struct {
	name    string
	config  EmbedderConfig
	backend embedBackend
	limiter *rate.Limiter
}

func newRemoteEmbedder(config EmbedderConfig, backend embedBackend) *remoteEmbedder {
	return &remoteEmbedder{
		name:    config.Provider + ":" + config.Model,
		config:  config,
		backend: backend,
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), 1),
	}
}

func (e *remoteEmbedder) Name() string {
	return e.name
}

func (e *remoteEmbedder) Dimensions() int {
	return e.config.Dimensions
}

func (e *remoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("embedder", e.name))

	vectors, err := e.callBatch(ctx, texts)
	if err == nil && len(vectors) == len(texts) {
		return vectors, nil
	}
	if errors.Is(err, types.ErrEmbeddingUnavailable) {
		metrics.EmbeddingFailures.Inc()
		return nil, err
	}
	if err != nil {
		logger.Warn("batch embedding failed, retrying per item", zap.Error(err))
	} else {
		logger.Warn("batch embedding count mismatch, retrying per item",
			zap.Int("want", len(texts)), zap.Int("got", len(vectors)))
	}

	vectors = make([][]float32, 0, len(texts))
	for i, text := range texts {
		if err := e.limiter.Wait(ctx); err != nil {
			metrics.EmbeddingFailures.Inc()
			return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, err)
		}
		vec, err := e.callSingle(ctx, text)
		if err != nil {
			metrics.EmbeddingFailures.Inc()
			return nil, fmt.Errorf("%w: embed item %d: %v", types.ErrEmbeddingUnavailable, i, err)
		}
		if len(vec) == 0 {
			continue
		}
		vectors = append(vectors, vec)
	}
	if len(vectors) != len(texts) {
		metrics.EmbeddingFailures.Inc()
		return nil, fmt.Errorf("%w: %w: want %d vectors, got %d",
			types.ErrEmbeddingUnavailable, types.ErrEmbeddingMismatch, len(texts), len(vectors))
	}
	return vectors, nil
}

func (e *remoteEmbedder) callBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := contextWithTimeout(ctx, e.config.Timeout)
	defer cancel()
	return e.backend.batch(ctx, texts)
}

func (e *remoteEmbedder) callSingle(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := contextWithTimeout(ctx, e.config.Timeout)
	defer cancel()
	return e.backend.single(ctx, text)
}

func contextWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
