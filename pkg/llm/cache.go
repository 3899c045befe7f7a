package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// WrapLruCache memoises embeddings of next. It is used on the query path
// where the same question is often asked twice.
func WrapLruCache(next types.Embedder, size int, ttl time.Duration) types.Embedder {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruEmbedder{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  types.Embedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Name() string {
	return l.next.Name()
}

func (l *lruEmbedder) Dimensions() int {
	return l.next.Dimensions()
}

func (l *lruEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = l.cacheKey(text)
		if cached, ok := l.cache.Get(keys[i]); ok {
			out[i] = cloneEmbedding(cached)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.Int("count", len(texts)))
		return out, nil
	}

	res, err := l.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missTexts) {
		logutil.GetLogger(ctx).Warn("embedding count mismatch, result not cached",
			zap.Int("want", len(missTexts)), zap.Int("got", len(res)))
		return nil, nil
	}
	for j, i := range missIdx {
		out[i] = res[j]
		l.cache.Add(keys[i], cloneEmbedding(res[j]))
	}
	return out, nil
}

func (l *lruEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(l.next.Name() + ":" + text))
	return hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
