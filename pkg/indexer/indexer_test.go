package indexer_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/indexer"
	"github.com/xhad/mmrag/pkg/llm"
	"github.com/xhad/mmrag/pkg/processor"
	"github.com/xhad/mmrag/pkg/store"
)

// recordingStore counts writes on top of the in-memory store.
type recordingStore struct {
	*store.Memory
	upserts int
	getErr  error
	delErr  error
}

func (r *recordingStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	r.upserts++
	return r.Memory.Upsert(ctx, chunks)
}

func (r *recordingStore) Get(ctx context.Context, where models.Where) ([]models.StoredChunk, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.Memory.Get(ctx, where)
}

func (r *recordingStore) Delete(ctx context.Context, ids []string) error {
	if r.delErr != nil {
		return r.delErr
	}
	return r.Memory.Delete(ctx, ids)
}

// prefixStore adds native prefix deletion.
type prefixStore struct {
	*store.Memory
	calls int
	err   error
}

func (p *prefixStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	all, _ := p.Memory.Get(ctx, models.Where{})
	var ids []string
	for _, c := range all {
		if strings.HasPrefix(c.ID, prefix) {
			ids = append(ids, c.ID)
		}
	}
	return len(ids), p.Memory.Delete(ctx, ids)
}

type stubEmbedder struct {
	vectors [][]float32
	err     error
}

func (s stubEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return s.vectors, s.err
}
func (s stubEmbedder) Name() string   { return "stub" }
func (s stubEmbedder) Dimensions() int { return 1 }

func newIndexer(emb types.Embedder, s types.VectorStore) *indexer.Indexer {
	p := processor.NewWithConfig(types.ProcessorConfig{ChunkSize: 4, ChunkOverlap: 1})
	return indexer.New(p, emb, s)
}

func ids(t *testing.T, s types.VectorStore, docID string) []string {
	t.Helper()
	got, err := s.Get(context.Background(), models.Where{DocID: docID})
	require.NoError(t, err)
	out := make([]string, 0, len(got))
	for _, c := range got {
		out = append(out, c.ID)
	}
	sort.Strings(out)
	return out
}

func TestAddDocument_EmptyText(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(llm.NewLocalEmbedder(), s)

	stats, err := ix.AddDocument(context.Background(), "empty.txt", "  \n\t ", models.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, models.IndexStats{Chunks: 0, Added: 0}, stats)
	assert.Equal(t, 0, s.upserts)
	assert.Equal(t, 0, s.Len())
}

func TestAddDocument_Chunks(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(llm.NewLocalEmbedder(), s)

	meta := models.Metadata{Source: models.SourceFile, Path: "doc.txt", Type: models.TypeText}
	stats, err := ix.AddDocument(context.Background(), "doc.txt", "abcdefghij", meta)
	require.NoError(t, err)
	assert.Equal(t, models.IndexStats{Chunks: 4, Added: 4}, stats)
	assert.Equal(t, []string{"doc.txt-0", "doc.txt-1", "doc.txt-2", "doc.txt-3"}, ids(t, s, "doc.txt"))

	got, err := s.Get(context.Background(), models.Where{DocID: "doc.txt"})
	require.NoError(t, err)
	for i, c := range got {
		assert.Equal(t, i, c.Metadata.Chunk)
		assert.Equal(t, "doc.txt", c.Metadata.DocID)
		assert.Equal(t, models.TypeText, c.Metadata.Type)
	}
}

func TestAddDocument_Idempotent(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(llm.NewLocalEmbedder(), s)
	ctx := context.Background()

	_, err := ix.AddDocument(ctx, "doc.txt", "abcdefghij", models.Metadata{})
	require.NoError(t, err)
	before := ids(t, s, "doc.txt")

	stats, err := ix.AddDocument(ctx, "doc.txt", "abcdefghij", models.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Added)
	assert.Equal(t, before, ids(t, s, "doc.txt"))
	assert.Equal(t, 4, s.Len())
}

func TestAddDocument_ShrinkPrunesStaleChunks(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(llm.NewLocalEmbedder(), s)
	ctx := context.Background()

	_, err := ix.AddDocument(ctx, "doc.txt", "abcdefghij", models.Metadata{})
	require.NoError(t, err)
	_, err = ix.AddDocument(ctx, "other.txt", "xyz", models.Metadata{})
	require.NoError(t, err)

	stats, err := ix.AddDocument(ctx, "doc.txt", "abcde", models.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, models.IndexStats{Chunks: 2, Added: 2}, stats)
	assert.Equal(t, []string{"doc.txt-0", "doc.txt-1"}, ids(t, s, "doc.txt"))
	assert.Equal(t, []string{"other.txt-0"}, ids(t, s, "other.txt"))
}

func TestAddDocument_PruneFailureKeepsDocument(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(llm.NewLocalEmbedder(), s)
	ctx := context.Background()

	_, err := ix.AddDocument(ctx, "doc.txt", "abcdefghij", models.Metadata{})
	require.NoError(t, err)

	s.delErr = errors.New("disk full")
	stats, err := ix.AddDocument(ctx, "doc.txt", "abcde", models.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Len(t, ids(t, s, "doc.txt"), 4)
}

func TestAddDocument_EmbeddingCountMismatch(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(stubEmbedder{vectors: [][]float32{{1}}}, s)

	stats, err := ix.AddDocument(context.Background(), "doc.txt", "abcdefghij", models.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, models.IndexStats{Chunks: 4, Added: 0}, stats)
	assert.Equal(t, 0, s.upserts)
}

func TestAddDocument_EmbeddingError(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(stubEmbedder{err: errors.New("quota exceeded")}, s)

	stats, err := ix.AddDocument(context.Background(), "doc.txt", "abcdefghij", models.Metadata{})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
	assert.Equal(t, models.IndexStats{Chunks: 4, Added: 0}, stats)
	assert.Equal(t, 0, s.upserts)
}

func TestDeleteByPrefix_Scan(t *testing.T) {
	s := &recordingStore{Memory: store.NewMemory()}
	ix := newIndexer(llm.NewLocalEmbedder(), s)
	ctx := context.Background()

	_, err := ix.AddDocument(ctx, "doc.txt", "abcdefghij", models.Metadata{})
	require.NoError(t, err)
	_, err = ix.AddDocument(ctx, "other.txt", "xyz", models.Metadata{})
	require.NoError(t, err)

	assert.Equal(t, 4, ix.DeleteByPrefix(ctx, "doc.txt"))
	assert.Empty(t, ids(t, s, "doc.txt"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, ix.DeleteByPrefix(ctx, "doc.txt"))
}

func TestDeleteByPrefix_Native(t *testing.T) {
	s := &prefixStore{Memory: store.NewMemory()}
	ix := newIndexer(llm.NewLocalEmbedder(), s)
	ctx := context.Background()

	_, err := ix.AddDocument(ctx, "doc.txt", "abcdefghij", models.Metadata{})
	require.NoError(t, err)

	assert.Equal(t, 4, ix.DeleteByPrefix(ctx, "doc.txt"))
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 0, s.Len())
}

func TestDeleteByPrefix_StoreErrorsReturnZero(t *testing.T) {
	ctx := context.Background()

	scan := &recordingStore{Memory: store.NewMemory(), getErr: errors.New("locked")}
	assert.Equal(t, 0, newIndexer(llm.NewLocalEmbedder(), scan).DeleteByPrefix(ctx, "doc.txt"))

	native := &prefixStore{Memory: store.NewMemory(), err: errors.New("locked")}
	assert.Equal(t, 0, newIndexer(llm.NewLocalEmbedder(), native).DeleteByPrefix(ctx, "doc.txt"))
}
