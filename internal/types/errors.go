package types

import "errors"

var (
	// ErrExtractionEmpty means a file produced no usable text.
	ErrExtractionEmpty = errors.New("extraction produced no text")
	// ErrUnsupportedFormat means no extractor handles the file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrToolUnavailable means an external converter is not installed.
	ErrToolUnavailable = errors.New("external tool unavailable")
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingUnavailable means the configured embedding provider cannot
	// be reached or is not configured. There is no silent fallback.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrEmbeddingMismatch    = errors.New("embedding count mismatch")

	ErrSynthesisDegraded = errors.New("synthesis degraded to extractive")
	ErrStoreOperation    = errors.New("vector store operation failed")
	ErrInvalidConfig     = errors.New("invalid configuration")
)
