package processor

import (
	"strings"

	"github.com/xhad/mmrag/internal/types"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

type Processor struct {
	config types.ProcessorConfig
}

func NewWithConfig(config types.ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	return Processor{
		config: config,
	}
}

func (p Processor) Config() types.ProcessorConfig {
	return p.config
}

// Split cuts text into the configured fixed windows.
func (p Processor) Split(text string) []string {
	return Chunk(text, p.config.ChunkSize, p.config.ChunkOverlap)
}

// Chunk splits text into windows of size characters starting every
// size-overlap characters. The last window may be shorter. Offsets are
// counted in runes so a multi-byte character is never cut in half.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
