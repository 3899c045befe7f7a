package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/metrics"
	"github.com/xhad/mmrag/pkg/processor"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Indexer turns documents into embedded chunks in a vector store.
type Indexer struct {
	processor processor.Processor
	embedder  types.Embedder
	store     types.VectorStore
}

func New(p processor.Processor, embedder types.Embedder, store types.VectorStore) *Indexer {
	return &Indexer{
		processor: p,
		embedder:  embedder,
		store:     store,
	}
}

// AddDocument chunks and embeds text and upserts the chunks under
// "{docID}-{i}". Chunks left over from a longer earlier version of the
// same document are pruned afterwards, so the document is never absent.
//
// An embedding error is returned wrapped in ErrEmbeddingUnavailable. A
// vector count that does not match the chunk count is a partial failure:
// stats report the chunks but nothing is added and the error is nil.
func (ix *Indexer) AddDocument(ctx context.Context, docID, text string, meta models.Metadata) (models.IndexStats, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))

	text = strings.TrimSpace(text)
	if text == "" {
		return models.IndexStats{}, nil
	}
	pieces := ix.processor.Split(text)
	if len(pieces) == 0 {
		return models.IndexStats{}, nil
	}
	stats := models.IndexStats{Chunks: len(pieces)}

	vectors, err := ix.embedder.Embed(ctx, pieces)
	if err != nil {
		if !errors.Is(err, types.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, err)
		}
		return stats, fmt.Errorf("embed %s: %w", docID, err)
	}
	if len(vectors) != len(pieces) {
		metrics.EmbeddingFailures.Inc()
		logger.Warn("embedding count mismatch, document not indexed",
			zap.Int("chunks", len(pieces)), zap.Int("vectors", len(vectors)))
		return stats, nil
	}

	meta.DocID = docID
	chunks := make([]models.Chunk, len(pieces))
	for i, piece := range pieces {
		m := meta
		m.Chunk = i
		chunks[i] = models.Chunk{
			ID:        models.ChunkID(docID, i),
			Index:     i,
			Text:      piece,
			Embedding: vectors[i],
			Metadata:  m,
		}
	}
	if err := ix.store.Upsert(ctx, chunks); err != nil {
		return stats, fmt.Errorf("%w: upsert %s: %v", types.ErrStoreOperation, docID, err)
	}
	stats.Added = len(chunks)
	metrics.ChunksIndexed.Add(float64(len(chunks)))

	if pruned := ix.prune(ctx, docID, len(chunks)); pruned > 0 {
		logger.Info("pruned stale chunks", zap.Int("count", pruned))
	}
	logger.Debug("document indexed", zap.Int("chunks", stats.Chunks))
	return stats, nil
}

// prune removes chunks of docID whose index is at or beyond n.
func (ix *Indexer) prune(ctx context.Context, docID string, n int) int {
	existing, err := ix.store.Get(ctx, models.Where{DocID: docID})
	if err != nil {
		logutil.GetLogger(ctx).Warn("listing chunks for prune failed",
			zap.String("doc_id", docID), zap.Error(fmt.Errorf("%w: %v", types.ErrStoreOperation, err)))
		return 0
	}
	var stale []string
	for _, c := range existing {
		if c.Metadata.Chunk >= n {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) == 0 {
		return 0
	}
	if err := ix.store.Delete(ctx, stale); err != nil {
		logutil.GetLogger(ctx).Warn("prune failed",
			zap.String("doc_id", docID), zap.Error(fmt.Errorf("%w: %v", types.ErrStoreOperation, err)))
		return 0
	}
	metrics.ChunksPruned.Add(float64(len(stale)))
	return len(stale)
}

// DeleteByPrefix removes every chunk whose id starts with "{docID}-" and
// returns how many were removed. Store errors are logged and reported as 0.
//
// Stores without native prefix deletion are scanned in full, which costs
// O(total chunks) per call.
func (ix *Indexer) DeleteByPrefix(ctx context.Context, docID string) int {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	prefix := docID + "-"

	if pd, ok := ix.store.(types.PrefixDeleter); ok {
		n, err := pd.DeletePrefix(ctx, prefix)
		if err != nil {
			logger.Warn("prefix delete failed", zap.Error(fmt.Errorf("%w: %v", types.ErrStoreOperation, err)))
			return 0
		}
		metrics.ChunksPruned.Add(float64(n))
		return n
	}

	all, err := ix.store.Get(ctx, models.Where{})
	if err != nil {
		logger.Warn("scan for delete failed", zap.Error(fmt.Errorf("%w: %v", types.ErrStoreOperation, err)))
		return 0
	}
	var ids []string
	for _, c := range all {
		if strings.HasPrefix(c.ID, prefix) {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return 0
	}
	if err := ix.store.Delete(ctx, ids); err != nil {
		logger.Warn("delete failed", zap.Error(fmt.Errorf("%w: %v", types.ErrStoreOperation, err)))
		return 0
	}
	metrics.ChunksPruned.Add(float64(len(ids)))
	return len(ids)
}
