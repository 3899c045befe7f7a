package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/xhad/mmrag/internal/types"
)

const (
	TypeSQLite   = "sqlite"
	TypePgvector = "pgvector"
	TypeMemory   = "memory"
)

type VectorStoreConfig struct {
	Type       string
	Dir        string // sqlite data directory
	Collection string
	ConnString string // pgvector
	VectorDim  int
	BatchSize  int
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New opens the backend named by config.Type. The returned store is shared
// by every caller in the process.
func New(ctx context.Context, config VectorStoreConfig) (types.VectorStore, error) {
	if config.Collection == "" {
		config.Collection = "documents"
	}
	if !identRe.MatchString(config.Collection) {
		return nil, fmt.Errorf("%w: collection name %q", types.ErrInvalidConfig, config.Collection)
	}
	switch strings.ToLower(config.Type) {
	case "", TypeSQLite:
		return NewSQLite(config)
	case TypePgvector:
		return NewWithConfig(ctx, config)
	case TypeMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", types.ErrInvalidConfig, config.Type)
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(-1)
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// escapeLike escapes LIKE wildcards so prefix matches are literal.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
