package extractor

import (
	"context"
	"fmt"
	neturl "net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xhad/mmrag/internal/types"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Captions at or below this many characters are treated as missing.
const minCaptionChars = 30

// youtubeExtractor prefers published captions and falls back to
// transcribing the best audio stream.
type youtubeExtractor struct {
	config Config
	runner Runner
}

func (e *youtubeExtractor) Extract(ctx context.Context, url string) (string, error) {
	if err := checkVideoURL(url); err != nil {
		return "", err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("url", url))
	tmp, err := os.MkdirTemp("", "mmrag-yt-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	defer os.RemoveAll(tmp)

	captions, err := e.captions(ctx, url, tmp)
	if err != nil {
		logger.Debug("captions unavailable", zap.Error(err))
	}
	if utf8.RuneCountInString(captions) > minCaptionChars {
		return captions, nil
	}

	logger.Info("no usable captions, transcribing audio")
	audio, err := e.downloadAudio(ctx, url, tmp)
	if err != nil {
		return "", err
	}
	av := &avExtractor{config: e.config, runner: e.runner}
	return av.Extract(ctx, audio)
}

func checkVideoURL(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: not an http(s) URL: %q", types.ErrUnsupportedFormat, raw)
	}
	return nil
}

func (e *youtubeExtractor) baseArgs() []string {
	args := []string{"--quiet", "--no-warnings", "--no-playlist", "--no-check-certificates"}
	if e.config.YTCookies != "" {
		if _, err := os.Stat(e.config.YTCookies); err == nil {
			args = append(args, "--cookies", e.config.YTCookies)
		}
	}
	return args
}

// captions downloads manual subtitles, or auto-generated ones when no
// manual track exists, in the preferred languages.
func (e *youtubeExtractor) captions(ctx context.Context, url, dir string) (string, error) {
	args := append(e.baseArgs(),
		"--skip-download",
		"--write-subs", "--write-auto-subs",
		"--sub-langs", strings.Join(e.config.YTLangs, ","),
		"--sub-format", "vtt",
		"-o", filepath.Join(dir, "subs.%(ext)s"),
		"--", url,
	)
	if _, err := e.runner.Run(ctx, e.config.YtDlp, args...); err != nil {
		return "", err
	}
	files, err := filepath.Glob(filepath.Join(dir, "subs.*.vtt"))
	if err != nil || len(files) == 0 {
		return "", fmt.Errorf("no subtitle files written")
	}
	sort.SliceStable(files, func(i, j int) bool {
		return e.langRank(files[i]) < e.langRank(files[j])
	})
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		if text := parseVTT(string(data)); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", nil
}

func (e *youtubeExtractor) langRank(file string) int {
	lang := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(file), "subs."), ".vtt")
	for i, l := range e.config.YTLangs {
		if strings.EqualFold(l, lang) {
			return i
		}
	}
	return len(e.config.YTLangs)
}

func (e *youtubeExtractor) downloadAudio(ctx context.Context, url, dir string) (string, error) {
	args := append(e.baseArgs(),
		"-f", "bestaudio/best",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		"--", url,
	)
	if _, err := e.runner.Run(ctx, e.config.YtDlp, args...); err != nil {
		return "", err
	}
	files, _ := filepath.Glob(filepath.Join(dir, "audio.*"))
	if len(files) == 0 {
		return "", fmt.Errorf("%w: yt-dlp produced no audio", types.ErrExtractionFailed)
	}
	return files[0], nil
}

var vttTagRe = regexp.MustCompile(`<[^>]*>`)

// parseVTT returns the cue text of a WebVTT file. Auto-generated tracks
// repeat each line in the following cue, so consecutive duplicates are
// dropped.
func parseVTT(data string) string {
	var lines []string
	last := ""
	skipBlock := false
	for _, raw := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			skipBlock = false
			continue
		case skipBlock:
			continue
		case strings.HasPrefix(line, "WEBVTT"),
			strings.HasPrefix(line, "Kind:"),
			strings.HasPrefix(line, "Language:"):
			continue
		case strings.HasPrefix(line, "NOTE"), strings.HasPrefix(line, "STYLE"), strings.HasPrefix(line, "REGION"):
			skipBlock = true
			continue
		case strings.Contains(line, "-->"):
			continue
		case isCueNumber(line):
			continue
		}
		text := strings.Join(strings.Fields(vttTagRe.ReplaceAllString(line, "")), " ")
		text = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ").Replace(text)
		if text == "" || text == last {
			continue
		}
		lines = append(lines, text)
		last = text
	}
	return strings.Join(lines, " ")
}

func isCueNumber(line string) bool {
	for _, r := range line {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
