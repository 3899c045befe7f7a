package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/metrics"
	"github.com/xhad/mmrag/pkg/processor"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const NoContextAnswer = "No relevant context found."

var keywordRe = regexp.MustCompile(`[a-zA-Z]+`)

// Synthesizer turns retrieved context into an answer. With a generator it
// asks the model once and degrades to Extractive on any failure.
type Synthesizer struct {
	generator types.Generator
	timeout   time.Duration
}

func NewSynthesizer(generator types.Generator, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Synthesizer{generator: generator, timeout: timeout}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question, retrieved string) string {
	if s.generator == nil || strings.TrimSpace(retrieved) == "" {
		return Extractive(question, retrieved)
	}

	answer, err := s.generate(ctx, question, retrieved)
	if err == nil && answer != "" {
		return answer
	}
	if err == nil {
		err = errors.New("empty answer")
	}
	metrics.SynthesisFallbacks.Inc()
	logutil.GetLogger(ctx).Warn("remote synthesis failed, using extractive answer",
		zap.Error(fmt.Errorf("%w: %v", types.ErrSynthesisDegraded, err)))
	return Extractive(question, retrieved)
}

func (s *Synthesizer) generate(ctx context.Context, question, retrieved string) (string, error) {
	ctx, cancel := contextWithTimeout(ctx, s.timeout)
	defer cancel()
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", retrieved, question)
	return s.generator.Generate(ctx, systemPrompt, prompt)
}

// Extractive picks the context sentences that mention the question's
// keywords most often. It needs no model and is deterministic.
func Extractive(question, context string) string {
	context = strings.TrimSpace(context)
	if context == "" {
		return NoContextAnswer
	}
	sentences := processor.DedupeSentences(processor.SplitSentences(context))

	var keywords []string
	for _, w := range keywordRe.FindAllString(question, -1) {
		if len(w) >= 4 {
			keywords = append(keywords, strings.ToLower(w))
		}
	}
	if len(keywords) == 0 {
		return processor.Truncate(strings.Join(firstN(sentences, 2), " "), 600)
	}

	type scored struct {
		score    int
		sentence string
	}
	ranked := make([]scored, 0, len(sentences))
	for _, s := range sentences {
		lower := strings.ToLower(s)
		score := 0
		for _, k := range keywords {
			score += strings.Count(lower, k)
		}
		ranked = append(ranked, scored{score: score, sentence: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	var best []string
	for _, r := range firstN(ranked, 3) {
		if r.score > 0 {
			best = append(best, r.sentence)
		}
	}
	if len(best) == 0 {
		best = firstN(sentences, 2)
	}
	return processor.Truncate(strings.Join(best, " "), 800)
}

func firstN[T any](items []T, n int) []T {
	if len(items) < n {
		return items
	}
	return items[:n]
}
