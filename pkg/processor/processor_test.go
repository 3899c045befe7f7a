package processor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/processor"
)

func TestChunk_FixedWindows(t *testing.T) {
	got := processor.Chunk("abcdefghij", 4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij", "j"}, got)
}

func TestChunk_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"blank text", "   \n\t ", 4, 1, nil},
		{"empty text", "", 4, 1, nil},
		{"non positive size", "abc", 0, 0, nil},
		{"shorter than size", "abc", 10, 2, []string{"abc"}},
		{"no overlap", "abcdef", 3, 0, []string{"abc", "def"}},
		{"overlap clamped to step one", "abc", 2, 5, []string{"ab", "bc", "c"}},
		{"multibyte runes", "héllo", 2, 0, []string{"hé", "ll", "o"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, processor.Chunk(tt.text, tt.size, tt.overlap))
		})
	}
}

func TestChunk_OffsetsAndReconstruction(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20)
	size, overlap := 50, 12
	step := size - overlap

	chunks := processor.Chunk(text, size, overlap)
	runes := []rune(text)
	require.Len(t, chunks, (len(runes)+step-1)/step)

	for i, c := range chunks {
		start := i * step
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		assert.Equal(t, string(runes[start:end]), c, "chunk %d", i)
	}

	// consecutive windows share exactly overlap characters
	for i := 0; i+1 < len(chunks); i++ {
		cur, next := []rune(chunks[i]), []rune(chunks[i+1])
		if len(cur) < size {
			continue
		}
		shared := overlap
		if len(next) < shared {
			shared = len(next)
		}
		assert.Equal(t, string(cur[len(cur)-overlap:len(cur)-overlap+shared]), string(next[:shared]))
	}

	var rebuilt strings.Builder
	for i, c := range chunks {
		r := []rune(c)
		if i+1 < len(chunks) {
			r = r[:step]
		}
		rebuilt.WriteString(string(r))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunk_Deterministic(t *testing.T) {
	text := "Alpha beta gamma delta epsilon zeta eta theta."
	assert.Equal(t, processor.Chunk(text, 7, 3), processor.Chunk(text, 7, 3))
}

func TestProcessor_Split(t *testing.T) {
	p := processor.NewWithConfig(types.ProcessorConfig{ChunkSize: 4, ChunkOverlap: 1})
	assert.Equal(t, []string{"abcd", "defg", "ghij", "j"}, p.Split("abcdefghij"))

	defaults := processor.NewWithConfig(types.ProcessorConfig{})
	assert.Equal(t, processor.DefaultChunkSize, defaults.Config().ChunkSize)
	assert.Len(t, defaults.Split(strings.Repeat("x", 1000)), 2)
}
