package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xhad/mmrag/internal/types"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// extractText reads plain text and markdown. UTF-16 files are recognised by
// their byte order mark; undecodable bytes are dropped.
func extractText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	return decodeText(data)
}

func decodeText(data []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", types.ErrExtractionFailed, err)
	}
	return strings.ReplaceAll(string(out), "\uFFFD", ""), nil
}
