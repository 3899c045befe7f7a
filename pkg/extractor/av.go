package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/processor"
)

// avExtractor transcribes audio and video: ffmpeg converts the input to
// 16 kHz mono wav, then the whisper CLI writes a txt transcript.
type avExtractor struct {
	config Config
	runner Runner
}

func (e *avExtractor) Extract(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	tmp, err := os.MkdirTemp("", "mmrag-av-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	defer os.RemoveAll(tmp)

	wav := filepath.Join(tmp, "audio.wav")
	if _, err := e.runner.Run(ctx, e.config.FFmpeg,
		"-y", "-i", path, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", wav); err != nil {
		return "", err
	}
	return e.transcribe(ctx, wav, tmp)
}

func (e *avExtractor) transcribe(ctx context.Context, wav, outDir string) (string, error) {
	_, err := e.runner.Run(ctx, e.config.Whisper, wav,
		"--model", e.config.WhisperModel,
		"--output_format", "txt",
		"--output_dir", outDir,
		"--temperature", "0",
		"--beam_size", "5",
		"--condition_on_previous_text", "False",
		"--no_speech_threshold", "0.6",
		"--fp16", "False",
	)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(wav), filepath.Ext(wav)) + ".txt"
	data, err := os.ReadFile(filepath.Join(outDir, name))
	if err != nil {
		return "", fmt.Errorf("%w: read transcript: %v", types.ErrExtractionFailed, err)
	}
	return postprocessTranscript(string(data)), nil
}

// postprocessTranscript cleans a transcript and drops repeated sentences,
// which speech recognition tends to produce on silence.
func postprocessTranscript(text string) string {
	sentences := processor.DedupeSentences(processor.SplitSentences(processor.Clean(text)))
	return strings.TrimSpace(strings.Join(sentences, " "))
}
