package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/extractor"
	"github.com/xhad/mmrag/pkg/indexer"
	"github.com/xhad/mmrag/pkg/ingest"
	"github.com/xhad/mmrag/pkg/llm"
	"github.com/xhad/mmrag/pkg/processor"
	"github.com/xhad/mmrag/pkg/store"
)

type recordingIndexer struct {
	docs  map[string]models.Metadata
	texts map[string]string
	err   error
}

func newRecordingIndexer() *recordingIndexer {
	return &recordingIndexer{docs: map[string]models.Metadata{}, texts: map[string]string{}}
}

func (r *recordingIndexer) AddDocument(_ context.Context, docID, text string, meta models.Metadata) (models.IndexStats, error) {
	if r.err != nil {
		return models.IndexStats{Chunks: 1}, r.err
	}
	r.docs[docID] = meta
	r.texts[docID] = text
	return models.IndexStats{Chunks: 1, Added: 1}, nil
}

type fakeExtractor struct {
	text map[string]string
	err  error
}

func (f fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if t := f.text[filepath.Base(path)]; t != "" {
		return t, nil
	}
	return "", types.ErrExtractionEmpty
}

func (f fakeExtractor) YouTube(_ context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if t := f.text[url]; t != "" {
		return t, nil
	}
	return "", types.ErrExtractionEmpty
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIngestPath_Directory(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.txt"), "Hello world.")
	write(t, filepath.Join(dir, "b.md"), "")
	write(t, filepath.Join(dir, "c.xyz"), "ignored")

	mem := store.NewMemory()
	ix := indexer.New(processor.NewWithConfig(types.ProcessorConfig{}), llm.NewLocalEmbedder(), mem)
	var seen []string
	in := ingest.New(ingest.Config{OnProgress: func(p string) { seen = append(seen, p) }},
		extractor.New(extractor.Config{}), ix)

	out, err := in.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	report, ok := out.(*models.DirResult)
	require.True(t, ok)

	assert.Equal(t, dir, report.Path)
	assert.Equal(t, 2, report.FilesScanned)
	assert.Equal(t, 1, report.FilesIngested)
	assert.Equal(t, 1, report.SkippedCount)
	assert.Equal(t, 12, report.TotalChars)
	require.Len(t, report.Results, 2)
	assert.Equal(t, filepath.Join(dir, "a.txt"), report.Results[0].Path)
	assert.Equal(t, 1, *report.Results[0].AddedChunks)
	assert.Equal(t, ingest.SkipNoText, report.Results[1].Skipped)
	assert.Len(t, seen, 2)

	chunks, err := mem.Get(context.Background(), models.Where{DocID: filepath.Join(dir, "a.txt")})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	meta := chunks[0].Metadata
	assert.Equal(t, models.SourceFile, meta.Source)
	assert.Equal(t, "a.txt", meta.Name)
	assert.Equal(t, ".txt", meta.Ext)
	assert.Equal(t, models.TypeText, meta.Type)
	assert.Equal(t, 2, ingest.CountFiles(dir))
}

func TestIngestPath_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Clip.MP3")
	write(t, path, "ID3")

	ix := newRecordingIndexer()
	in := ingest.New(ingest.Config{}, fakeExtractor{text: map[string]string{"Clip.MP3": "  spoken words  "}}, ix)

	out, err := in.IngestPath(context.Background(), path)
	require.NoError(t, err)
	res := out.(*models.FileResult)
	assert.Equal(t, 12, res.Chars)
	assert.Empty(t, res.Skipped)

	assert.Equal(t, "spoken words", ix.texts[path])
	assert.Equal(t, models.Metadata{
		Source: models.SourceFile, Path: path, Name: "Clip.MP3", Ext: ".mp3", Type: models.TypeAudio,
	}, ix.docs[path])
}

func TestIngestPath_Skips(t *testing.T) {
	dir := t.TempDir()
	unsupported := filepath.Join(dir, "notes.xyz")
	write(t, unsupported, "x")
	broken := filepath.Join(dir, "broken.pdf")
	write(t, broken, "x")

	in := ingest.New(ingest.Config{}, fakeExtractor{err: types.ErrToolUnavailable}, newRecordingIndexer())
	ctx := context.Background()

	out, err := in.IngestPath(ctx, unsupported)
	require.NoError(t, err)
	assert.Equal(t, ingest.SkipUnsupported, out.(*models.FileResult).Skipped)

	out, err = in.IngestPath(ctx, filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.Equal(t, ingest.SkipUnsupported, out.(*models.FileResult).Skipped)

	out, err = in.IngestPath(ctx, broken)
	require.NoError(t, err)
	res := out.(*models.FileResult)
	assert.Contains(t, res.Skipped, "extract failed: ")
	assert.Equal(t, 0, res.Chars)
	assert.Nil(t, res.AddedChunks)
}

func TestIngestPath_EmbeddingUnavailableAbortsDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.txt"), "x")
	write(t, filepath.Join(dir, "b.txt"), "x")

	ix := newRecordingIndexer()
	ix.err = types.ErrEmbeddingUnavailable
	in := ingest.New(ingest.Config{}, fakeExtractor{text: map[string]string{"a.txt": "alpha", "b.txt": "beta"}}, ix)

	out, err := in.IngestPath(context.Background(), dir)
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
	report := out.(*models.DirResult)
	assert.Equal(t, 1, report.FilesScanned)
	assert.Equal(t, 0, report.FilesIngested)
	assert.Equal(t, 1, report.SkippedCount)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Skipped, "index failed: ")
	assert.Equal(t, 0, *report.Results[0].AddedChunks)
}

func TestIngestPath_OtherIndexErrorsContinue(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.txt"), "x")
	write(t, filepath.Join(dir, "b.txt"), "x")

	ix := newRecordingIndexer()
	ix.err = errors.New("disk full")
	in := ingest.New(ingest.Config{}, fakeExtractor{text: map[string]string{"a.txt": "alpha", "b.txt": "beta"}}, ix)

	out, err := in.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	report := out.(*models.DirResult)
	assert.Equal(t, 2, report.FilesScanned)
	assert.Equal(t, 2, report.SkippedCount)
}

func TestIngestYouTube(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	ix := newRecordingIndexer()
	in := ingest.New(ingest.Config{}, fakeExtractor{text: map[string]string{url: "a transcript"}}, ix)

	res, err := in.IngestYouTube(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, url, res.YouTube)
	assert.Equal(t, 12, res.Chars)
	assert.Equal(t, 1, *res.AddedChunks)
	assert.Equal(t, models.Metadata{
		Source: models.SourceYouTube, URL: url, Type: models.TypeAudio, Ext: ".yt",
	}, ix.docs[url])

	res, err = in.IngestYouTube(context.Background(), "https://youtu.be/none")
	require.NoError(t, err)
	assert.Equal(t, ingest.SkipNoText, res.Skipped)
	assert.Nil(t, res.AddedChunks)
}
