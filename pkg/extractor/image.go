package extractor

import (
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	"github.com/xhad/mmrag/internal/types"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Page segmentation modes tried in order. Very wide images are most likely
// a single line of text.
var (
	blockPSMs      = []int{6, 3, 4, 7}
	singleLinePSMs = []int{7, 6, 3}
)

type imageExtractor struct {
	bin    string
	runner Runner
}

func (e *imageExtractor) Extract(ctx context.Context, path string) (string, error) {
	psms := blockPSMs
	if aspect, ok := aspectRatio(path); ok && aspect > 6.0 {
		psms = singleLinePSMs
	}

	var parts []string
	var lastErr error
	for _, psm := range psms {
		out, err := e.runner.Run(ctx, e.bin, path, "stdout", "-l", "eng", "--oem", "3", "--psm", strconv.Itoa(psm))
		if err != nil {
			if errors.Is(err, types.ErrToolUnavailable) {
				return "", err
			}
			logutil.GetLogger(ctx).Debug("ocr pass failed", zap.Int("psm", psm), zap.Error(err))
			lastErr = err
			continue
		}
		if strings.TrimSpace(string(out)) != "" {
			parts = append(parts, string(out))
		}
	}
	if len(parts) == 0 && lastErr != nil {
		return "", lastErr
	}
	return mergeLines(parts), nil
}

func aspectRatio(path string) (float64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Height == 0 {
		return 0, false
	}
	return float64(cfg.Width) / float64(cfg.Height), true
}

// mergeLines keeps the first occurrence of every line across OCR passes,
// comparing case-insensitively with whitespace collapsed.
func mergeLines(parts []string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range parts {
		for _, line := range strings.Split(part, "\n") {
			norm := strings.Join(strings.Fields(line), " ")
			if norm == "" {
				continue
			}
			key := strings.ToLower(norm)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, norm)
		}
	}
	return strings.Join(out, "\n")
}
