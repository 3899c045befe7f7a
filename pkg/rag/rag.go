package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/config"
	"github.com/xhad/mmrag/pkg/extractor"
	"github.com/xhad/mmrag/pkg/indexer"
	"github.com/xhad/mmrag/pkg/ingest"
	"github.com/xhad/mmrag/pkg/llm"
	"github.com/xhad/mmrag/pkg/processor"
	"github.com/xhad/mmrag/pkg/retriever"
	"github.com/xhad/mmrag/pkg/store"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Pipeline holds the components shared by the CLI and the server. It is
// built once per process.
type Pipeline struct {
	store     types.VectorStore
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
	ingester  *ingest.Ingester
}

type Option func(*options)

type options struct {
	onProgress func(path string)
	extractor  ingest.Extractor
}

// WithProgress registers a callback invoked before each ingested item.
func WithProgress(fn func(path string)) Option {
	return func(o *options) { o.onProgress = fn }
}

// WithExtractor replaces the external-tool extractor registry.
func WithExtractor(ex ingest.Extractor) Option {
	return func(o *options) { o.extractor = ex }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := logutil.GetLogger(ctx)

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider:      cfg.Embedding.Provider,
		Model:         cfg.Embedding.Model,
		APIKey:        cfg.Embedding.APIKey,
		BaseURL:       cfg.Embedding.BaseURL,
		Timeout:       time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		RatePerSecond: cfg.Embedding.RatePerSecond,
		Dimensions:    cfg.Store.VectorDim,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	generator, err := llm.NewGenerator(llm.ChatConfig{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		APIKey:   cfg.Chat.APIKey,
		BaseURL:  cfg.Chat.BaseURL,
		Timeout:  time.Duration(cfg.Chat.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	vs, err := store.New(ctx, store.VectorStoreConfig{
		Type:       cfg.Store.Type,
		Dir:        cfg.Store.Dir,
		Collection: cfg.Store.Collection,
		ConnString: cfg.Store.URL,
		VectorDim:  cfg.Store.VectorDim,
		BatchSize:  cfg.Store.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	proc := processor.NewWithConfig(types.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	ix := indexer.New(proc, embedder, vs)

	queryEmbedder := llm.WrapLruCache(embedder, cfg.Embedding.CacheSize,
		time.Duration(cfg.Embedding.CacheTTLSeconds)*time.Second)
	synth := llm.NewSynthesizer(generator, time.Duration(cfg.Chat.TimeoutSeconds)*time.Second)
	rt := retriever.New(queryEmbedder, vs, synth)

	ex := o.extractor
	if ex == nil {
		ex = extractor.New(extractor.Config{
			PdfToText:    cfg.Tools.PdfToText,
			Tesseract:    cfg.Tools.Tesseract,
			FFmpeg:       cfg.Tools.FFmpeg,
			Whisper:      cfg.Tools.Whisper,
			WhisperModel: cfg.Tools.WhisperModel,
			YtDlp:        cfg.Tools.YtDlp,
			YTLangs:      cfg.Tools.YTLangs,
			YTCookies:    cfg.Tools.YTCookies,
			Timeout:      time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		})
	}
	in := ingest.New(ingest.Config{OnProgress: o.onProgress}, ex, ix)

	logger.Info("pipeline ready",
		zap.String("embedder", embedder.Name()),
		zap.String("chat", cfg.Chat.Provider),
		zap.String("store", cfg.Store.Type),
		zap.String("collection", cfg.Store.Collection))

	return &Pipeline{store: vs, indexer: ix, retriever: rt, ingester: in}, nil
}

// Ingest indexes a file or directory tree.
func (p *Pipeline) Ingest(ctx context.Context, path string) (any, error) {
	return p.ingester.IngestPath(ctx, path)
}

func (p *Pipeline) IngestYouTube(ctx context.Context, url string) (*models.YouTubeResult, error) {
	return p.ingester.IngestYouTube(ctx, url)
}

// AddDocument indexes already extracted text.
func (p *Pipeline) AddDocument(ctx context.Context, docID, text string, meta models.Metadata) (models.IndexStats, error) {
	return p.indexer.AddDocument(ctx, docID, text, meta)
}

func (p *Pipeline) Ask(ctx context.Context, question string, topK int, scope models.Scope) (*models.Answer, error) {
	return p.retriever.Ask(ctx, question, topK, scope)
}

// Delete removes every chunk of docID and returns how many were removed.
func (p *Pipeline) Delete(ctx context.Context, docID string) int {
	return p.indexer.DeleteByPrefix(ctx, docID)
}

func (p *Pipeline) Close() {
	p.store.Close()
}
