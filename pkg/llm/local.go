package llm

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const (
	LocalDimensions = 384

	wordWeight    float32 = 1.0
	trigramWeight float32 = 0.5
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// LocalEmbedder is an offline feature-hashing embedder. Words and their
// character trigrams are hashed into signed buckets and the result is
// L2-normalised, so texts sharing vocabulary land close in cosine space.
type LocalEmbedder struct{}

func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{}
}

func (e *LocalEmbedder) Name() string {
	return "local:hashing-384"
}

func (e *LocalEmbedder) Dimensions() int {
	return LocalDimensions
}

func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, e.vector(text))
	}
	return out, nil
}

func (e *LocalEmbedder) vector(text string) []float32 {
	vec := make([]float32, LocalDimensions)
	for _, word := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		addFeature(vec, "w:"+word, wordWeight)
		runes := []rune("^" + word + "$")
		for i := 0; i+3 <= len(runes); i++ {
			addFeature(vec, "t:"+string(runes[i:i+3]), trigramWeight)
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()
	idx := int(sum % LocalDimensions)
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
