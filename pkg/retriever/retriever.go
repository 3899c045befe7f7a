package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/llm"
	"github.com/xhad/mmrag/pkg/metrics"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	DefaultTopK = 6
	// overFetch widens the store query so residual filtering still has
	// enough candidates to fill topK.
	overFetch = 3
)

type Synthesizer interface {
	Synthesize(ctx context.Context, question, retrieved string) string
}

type Retriever struct {
	embedder    types.Embedder
	store       types.VectorStore
	synthesizer Synthesizer
}

func New(embedder types.Embedder, store types.VectorStore, synthesizer Synthesizer) *Retriever {
	return &Retriever{
		embedder:    embedder,
		store:       store,
		synthesizer: synthesizer,
	}
}

// Search returns up to topK hits that satisfy scope, best first.
func (r *Retriever) Search(ctx context.Context, question string, topK int, scope models.Scope) ([]models.SearchHit, error) {
	if topK < 1 {
		topK = 1
	}
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, nil
	}

	raw, err := r.store.Query(ctx, vectors[0], topK*overFetch, scope.Pushdown())
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", types.ErrStoreOperation, err)
	}

	hits := make([]models.SearchHit, 0, topK)
	for _, h := range raw {
		if !scope.Keep(h.Metadata) {
			continue
		}
		hits = append(hits, h)
		if len(hits) >= topK {
			break
		}
	}
	logutil.GetLogger(ctx).Debug("retrieved chunks",
		zap.Int("raw", len(raw)), zap.Int("kept", len(hits)), zap.Int("top_k", topK))
	return hits, nil
}

// Ask retrieves context for question and answers it.
func (r *Retriever) Ask(ctx context.Context, question string, topK int, scope models.Scope) (*models.Answer, error) {
	start := time.Now()
	defer func() {
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	hits, err := r.Search(ctx, question, topK, scope)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	retrieved := strings.Join(texts, "\n\n")
	if retrieved == "" {
		metrics.QueriesTotal.WithLabelValues("empty").Inc()
		return &models.Answer{Answer: llm.NoContextAnswer, Contexts: []models.SearchHit{}}, nil
	}

	metrics.QueriesTotal.WithLabelValues("answered").Inc()
	return &models.Answer{
		Answer:   r.synthesizer.Synthesize(ctx, question, retrieved),
		Contexts: hits,
	}, nil
}
