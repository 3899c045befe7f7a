package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/extractor"
	"github.com/xhad/mmrag/pkg/metrics"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Skip reasons reported in results.
const (
	SkipUnsupported = "unsupported or not a file"
	SkipNoText      = "no text extracted"
	skipFailedFmt   = "extract failed: %v"
)

type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
	YouTube(ctx context.Context, url string) (string, error)
}

type Indexer interface {
	AddDocument(ctx context.Context, docID, text string, meta models.Metadata) (models.IndexStats, error)
}

type Config struct {
	// OnProgress is called before each file is processed.
	OnProgress func(path string)
}

// Ingester feeds files and YouTube videos through extraction and indexing.
type Ingester struct {
	config    Config
	extractor Extractor
	indexer   Indexer
}

func New(config Config, extractor Extractor, indexer Indexer) *Ingester {
	return &Ingester{config: config, extractor: extractor, indexer: indexer}
}

// CountFiles returns how many supported files IngestPath would visit.
func CountFiles(path string) int {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return 1
	}
	n := 0
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() && extractor.SupportedExt(filepath.Ext(p)) {
			n++
		}
		return nil
	})
	return n
}

// IngestPath ingests a single file, returning a models.FileResult, or a
// directory tree, returning a models.DirResult. Files are independent: only
// an unavailable embedding provider stops a directory run, in which case
// the partial report is returned with the error.
func (in *Ingester) IngestPath(ctx context.Context, path string) (any, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return in.ingestDir(ctx, path)
	}
	res, err := in.ingestFile(ctx, path)
	return res, err
}

func (in *Ingester) ingestDir(ctx context.Context, root string) (*models.DirResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("dir", root))
	report := &models.DirResult{Path: root, Results: []models.FileResult{}}

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk error", zap.String("path", p), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() && extractor.SupportedExt(filepath.Ext(p)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", root, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := in.ingestFile(ctx, f)
		report.Results = append(report.Results, *res)
		report.FilesScanned++
		report.TotalChars += res.Chars
		if res.Skipped != "" {
			report.SkippedCount++
		} else {
			report.FilesIngested++
		}
		if err != nil {
			return report, err
		}
	}
	logger.Info("directory ingested",
		zap.Int("files_scanned", report.FilesScanned),
		zap.Int("files_ingested", report.FilesIngested),
		zap.Int("skipped", report.SkippedCount))
	return report, nil
}

func (in *Ingester) ingestFile(ctx context.Context, path string) (*models.FileResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("path", path))
	if in.config.OnProgress != nil {
		in.config.OnProgress(path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	info, err := os.Stat(path)
	if !extractor.SupportedExt(ext) || err != nil || !info.Mode().IsRegular() {
		return in.skipped(ctx, path, "unsupported", SkipUnsupported), nil
	}

	text, err := in.extractor.Extract(ctx, path)
	switch {
	case errors.Is(err, types.ErrExtractionEmpty):
		return in.skipped(ctx, path, "empty", SkipNoText), nil
	case err != nil:
		logger.Warn("extraction failed", zap.Error(err))
		return in.skipped(ctx, path, "failed", fmt.Sprintf(skipFailedFmt, err)), nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return in.skipped(ctx, path, "empty", SkipNoText), nil
	}

	meta := models.Metadata{
		Source: models.SourceFile,
		Path:   path,
		Name:   filepath.Base(path),
		Ext:    ext,
		Type:   extractor.TypeForExt(ext),
	}
	stats, err := in.indexer.AddDocument(ctx, path, text, meta)
	res := &models.FileResult{Path: path, Chars: utf8.RuneCountInString(text), AddedChunks: &stats.Added}
	if err != nil {
		metrics.FilesTotal.WithLabelValues("error").Inc()
		res.Skipped = fmt.Sprintf("index failed: %v", err)
		if errors.Is(err, types.ErrEmbeddingUnavailable) {
			return res, err
		}
		logger.Warn("indexing failed", zap.Error(err))
		return res, nil
	}
	metrics.FilesTotal.WithLabelValues("ingested").Inc()
	logger.Info("file ingested", zap.Int("chars", res.Chars), zap.Int("chunks", stats.Added))
	return res, nil
}

func (in *Ingester) skipped(ctx context.Context, path, outcome, reason string) *models.FileResult {
	metrics.FilesTotal.WithLabelValues("skipped_" + outcome).Inc()
	logutil.GetLogger(ctx).Warn("file skipped", zap.String("path", path), zap.String("reason", reason))
	return &models.FileResult{Path: path, Chars: 0, Skipped: reason}
}

// IngestYouTube indexes the transcript of a YouTube video under its URL.
func (in *Ingester) IngestYouTube(ctx context.Context, url string) (*models.YouTubeResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("url", url))
	if in.config.OnProgress != nil {
		in.config.OnProgress(url)
	}

	text, err := in.extractor.YouTube(ctx, url)
	switch {
	case errors.Is(err, types.ErrExtractionEmpty):
		metrics.FilesTotal.WithLabelValues("skipped_empty").Inc()
		return &models.YouTubeResult{YouTube: url, Skipped: SkipNoText}, nil
	case err != nil:
		logger.Warn("youtube extraction failed", zap.Error(err))
		metrics.FilesTotal.WithLabelValues("skipped_failed").Inc()
		return &models.YouTubeResult{YouTube: url, Skipped: fmt.Sprintf(skipFailedFmt, err)}, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.FilesTotal.WithLabelValues("skipped_empty").Inc()
		return &models.YouTubeResult{YouTube: url, Skipped: SkipNoText}, nil
	}

	meta := models.Metadata{
		Source: models.SourceYouTube,
		URL:    url,
		Type:   models.TypeAudio,
		Ext:    ".yt",
	}
	stats, err := in.indexer.AddDocument(ctx, url, text, meta)
	res := &models.YouTubeResult{YouTube: url, Chars: utf8.RuneCountInString(text), AddedChunks: &stats.Added}
	if err != nil {
		metrics.FilesTotal.WithLabelValues("error").Inc()
		return res, err
	}
	metrics.FilesTotal.WithLabelValues("ingested").Inc()
	logger.Info("youtube ingested", zap.Int("chars", res.Chars), zap.Int("chunks", stats.Added))
	return res, nil
}
