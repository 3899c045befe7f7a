package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
	"github.com/xhad/mmrag/pkg/processor"
)

// Supported extensions (lower case) mapped to their modality.
var extTypes = map[string]string{
	".pdf": models.TypeText, ".docx": models.TypeText, ".pptx": models.TypeText, ".ppt": models.TypeText,
	".md": models.TypeText, ".txt": models.TypeText, ".html": models.TypeText, ".htm": models.TypeText,
	".png": models.TypeImage, ".jpg": models.TypeImage, ".jpeg": models.TypeImage,
	".bmp": models.TypeImage, ".tif": models.TypeImage, ".tiff": models.TypeImage,
	".mp3": models.TypeAudio, ".wav": models.TypeAudio, ".m4a": models.TypeAudio,
	".mp4": models.TypeVideo, ".mov": models.TypeVideo, ".mkv": models.TypeVideo,
}

// SupportedExt reports whether files with ext can be ingested.
func SupportedExt(ext string) bool {
	_, ok := extTypes[strings.ToLower(ext)]
	return ok
}

// TypeForExt returns the modality of ext, defaulting to text.
func TypeForExt(ext string) string {
	if t, ok := extTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return models.TypeText
}

type Config struct {
	PdfToText    string
	Tesseract    string
	FFmpeg       string
	Whisper      string
	WhisperModel string
	YtDlp        string
	YTLangs      []string
	YTCookies    string
	// Timeout bounds every external tool invocation.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PdfToText == "" {
		c.PdfToText = "pdftotext"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.FFmpeg == "" {
		c.FFmpeg = "ffmpeg"
	}
	if c.Whisper == "" {
		c.Whisper = "whisper"
	}
	if c.WhisperModel == "" {
		c.WhisperModel = "base"
	}
	if c.YtDlp == "" {
		c.YtDlp = "yt-dlp"
	}
	if len(c.YTLangs) == 0 {
		c.YTLangs = []string{"en", "en-US", "en-GB"}
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
	return c
}

// Registry dispatches a file to the extractor for its extension.
type Registry struct {
	config Config
	runner Runner
	byExt  map[string]types.Extractor
}

func New(config Config) *Registry {
	return NewWithRunner(config, ExecRunner{})
}

// NewWithRunner is New with a custom way to invoke external tools.
func NewWithRunner(config Config, runner Runner) *Registry {
	config = config.withDefaults()
	r := &Registry{config: config, runner: runner, byExt: make(map[string]types.Extractor)}

	text := extractorFunc(extractText)
	html := extractorFunc(extractHTML)
	office := extractorFunc(extractDocx)
	slides := extractorFunc(extractPptx)
	pdf := &pdfExtractor{bin: config.PdfToText, runner: runner}
	image := &imageExtractor{bin: config.Tesseract, runner: runner}
	av := &avExtractor{config: config, runner: runner}

	for _, ext := range []string{".txt", ".md"} {
		r.byExt[ext] = text
	}
	for _, ext := range []string{".html", ".htm"} {
		r.byExt[ext] = html
	}
	r.byExt[".docx"] = office
	r.byExt[".pptx"] = slides
	r.byExt[".ppt"] = slides
	r.byExt[".pdf"] = pdf
	for _, ext := range models.ImageExts {
		r.byExt[ext] = image
	}
	for _, ext := range append(append([]string{}, models.AudioExts...), models.VideoExts...) {
		r.byExt[ext] = av
	}
	return r
}

// Extract returns the cleaned text of the file at path. An empty result
// is reported as ErrExtractionEmpty.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	ex, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, ext)
	}
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	text, err := ex.Extract(ctx, path)
	if err != nil {
		return "", err
	}
	text = processor.Clean(processor.SanitizeUTF8(text))
	if text == "" {
		return "", types.ErrExtractionEmpty
	}
	return text, nil
}

// YouTube returns the transcript of a YouTube video.
func (r *Registry) YouTube(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	yt := &youtubeExtractor{config: r.config, runner: r.runner}
	text, err := yt.Extract(ctx, url)
	if err != nil {
		return "", err
	}
	text = processor.Clean(text)
	if text == "" {
		return "", types.ErrExtractionEmpty
	}
	return text, nil
}

type extractorFunc func(ctx context.Context, path string) (string, error)

func (f extractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
