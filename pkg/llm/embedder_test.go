package llm

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/mmrag/internal/types"
)

type fakeBackend struct {
	batchOut   [][]float32
	batchErr   error
	singleErr  error
	batchCalls int
	singles    []string
}

func (f *fakeBackend) batch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	return f.batchOut, f.batchErr
}

func (f *fakeBackend) single(_ context.Context, text string) ([]float32, error) {
	f.singles = append(f.singles, text)
	if f.singleErr != nil {
		return nil, f.singleErr
	}
	return []float32{float32(len(text))}, nil
}

func testRemote(backend embedBackend) *remoteEmbedder {
	return newRemoteEmbedder(EmbedderConfig{
		Provider:      ProviderGemini,
		Model:         "test-model",
		Timeout:       time.Second,
		RatePerSecond: 1000,
		Dimensions:    1,
	}, backend)
}

func TestRemoteEmbedder_Batch(t *testing.T) {
	backend := &fakeBackend{batchOut: [][]float32{{1}, {2}}}
	got, err := testRemote(backend).Embed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, got)
	assert.Empty(t, backend.singles)
}

func TestRemoteEmbedder_PerItemFallback(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{"batch count mismatch", &fakeBackend{batchOut: [][]float32{{1}}}},
		{"batch error", &fakeBackend{batchErr: errors.New("batch not supported")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testRemote(tt.backend).Embed(context.Background(), []string{"a", "bb", "ccc"})
			require.NoError(t, err)
			assert.Equal(t, [][]float32{{1}, {2}, {3}}, got)
			assert.Equal(t, []string{"a", "bb", "ccc"}, tt.backend.singles)
		})
	}
}

func TestRemoteEmbedder_FailsWithoutLocalFallback(t *testing.T) {
	backend := &fakeBackend{batchErr: errors.New("down"), singleErr: errors.New("still down")}
	got, err := testRemote(backend).Embed(context.Background(), []string{"a"})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestRemoteEmbedder_Unavailable(t *testing.T) {
	backend := &fakeBackend{batchErr: types.ErrEmbeddingUnavailable}
	_, err := testRemote(backend).Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
	assert.Empty(t, backend.singles)
}

func TestNewEmbedder_GeminiWithoutKey(t *testing.T) {
	emb, err := NewEmbedder(EmbedderConfig{Provider: "remote"})
	require.NoError(t, err)
	assert.Equal(t, "gemini:text-embedding-004", emb.Name())
	assert.Equal(t, 768, emb.Dimensions())

	_, err = emb.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestNewEmbedder_Unknown(t *testing.T) {
	_, err := NewEmbedder(EmbedderConfig{Provider: "word2vec"})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestLocalEmbedder(t *testing.T) {
	emb, err := NewEmbedder(EmbedderConfig{Provider: "local"})
	require.NoError(t, err)
	assert.Equal(t, LocalDimensions, emb.Dimensions())

	texts := []string{"The cat is black.", "The cat is black.", "Quarterly revenue grew", ""}
	vecs, err := emb.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	for i, v := range vecs[:3] {
		assert.Len(t, v, LocalDimensions)
		assert.InDelta(t, 1.0, norm(v), 1e-5, "vector %d", i)
	}
	assert.Equal(t, vecs[0], vecs[1])
	assert.Equal(t, 0.0, norm(vecs[3]))

	similar, _ := emb.Embed(context.Background(), []string{"the black cat"})
	assert.Greater(t, dot(vecs[0], similar[0]), dot(vecs[2], similar[0]))
}

func TestLocalEmbedder_ZeroValueMatchesConstructor(t *testing.T) {
	var zero LocalEmbedder
	a, err := zero.Embed(context.Background(), []string{"Übersicht 2024 report"})
	require.NoError(t, err)
	b, err := NewLocalEmbedder().Embed(context.Background(), []string{"Übersicht 2024 report"})
	require.NoError(t, err)
	assert.Equal(t, b, a)
	assert.InDelta(t, 1.0, norm(a[0]), 1e-5)
}

type countingEmbedder struct {
	calls int
	texts []string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Name() string   { return "counting" }
func (c *countingEmbedder) Dimensions() int { return 1 }

func TestLruCache(t *testing.T) {
	next := &countingEmbedder{}
	cached := WrapLruCache(next, 16, time.Minute)

	first, err := cached.Embed(context.Background(), []string{"question"})
	require.NoError(t, err)
	first[0][0] = 42

	second, err := cached.Embed(context.Background(), []string{"question", "other"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{8}, {5}}, second)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, []string{"question", "other"}, next.texts)

	assert.Same(t, next, WrapLruCache(next, 0, time.Minute))
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
