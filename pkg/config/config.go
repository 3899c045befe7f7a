package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xhad/mmrag/pkg/processor"
	"gopkg.in/yaml.v3"
)

type EmbeddingConfig struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	// Query embeddings are cached in an LRU of this size.
	CacheSize       int `yaml:"cache_size"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type ChatConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StoreConfig struct {
	Type       string `yaml:"type"`
	Dir        string `yaml:"dir"`
	Collection string `yaml:"collection"`
	URL        string `yaml:"url"`
	VectorDim  int    `yaml:"vector_dim"`
	BatchSize  int    `yaml:"batch_size"`
}

type ProcessorConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type ToolsConfig struct {
	PdfToText      string   `yaml:"pdftotext"`
	Tesseract      string   `yaml:"tesseract"`
	FFmpeg         string   `yaml:"ffmpeg"`
	Whisper        string   `yaml:"whisper"`
	WhisperModel   string   `yaml:"whisper_model"`
	YtDlp          string   `yaml:"yt_dlp"`
	YTLangs        []string `yaml:"yt_langs"`
	YTCookies      string   `yaml:"yt_cookies"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	IngestRoot     string   `yaml:"ingest_root"`
}

type LogConfig struct {
	File      string `yaml:"file"`
	Level     string `yaml:"level"`
	FileCount int    `yaml:"file_count"`
	FileSize  int    `yaml:"file_size"`
	KeepDays  int    `yaml:"keep_days"`
	Console   bool   `yaml:"console"`
}

type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Store     StoreConfig     `yaml:"store"`
	Processor ProcessorConfig `yaml:"processor"`
	Tools     ToolsConfig     `yaml:"tools"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// .env never overrides variables already set in the environment
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/mmrag/config.yaml"),
			"/etc/mmrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	// Seeded before the file and environment so an explicit zero survives.
	config := &Config{
		Processor: ProcessorConfig{
			ChunkSize:    processor.DefaultChunkSize,
			ChunkOverlap: processor.DefaultChunkOverlap,
		},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	e := &config.Embedding
	e.Provider = strings.ToLower(strings.TrimSpace(e.Provider))
	if e.Provider == "" || e.Provider == "remote" {
		e.Provider = "gemini"
	}
	if e.TimeoutSeconds == 0 {
		e.TimeoutSeconds = 60
	}
	if e.RatePerSecond == 0 {
		e.RatePerSecond = 5
	}
	if e.CacheSize == 0 {
		e.CacheSize = 1024
	}
	if e.CacheTTLSeconds == 0 {
		e.CacheTTLSeconds = 600
	}
	if e.Provider == "ollama" && e.BaseURL == "" {
		e.BaseURL = "http://localhost:11434"
	}

	c := &config.Chat
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "local"
	}
	if c.APIKey == "" {
		c.APIKey = e.APIKey
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
	if c.Provider == "ollama" {
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Model == "" {
			c.Model = "mistral"
		}
	}

	s := &config.Store
	if s.Type == "" {
		s.Type = "sqlite"
	}
	if s.Dir == "" {
		s.Dir = "./data/store"
	}
	if s.Collection == "" {
		s.Collection = "multimodal_" + e.Provider
	}
	if s.VectorDim == 0 {
		s.VectorDim = 768
		if e.Provider == "local" {
			s.VectorDim = 384
		}
	}
	if s.BatchSize == 0 {
		s.BatchSize = 100
	}

	if config.Tools.TimeoutSeconds == 0 {
		config.Tools.TimeoutSeconds = 600
	}
	if config.Tools.WhisperModel == "" {
		config.Tools.WhisperModel = "base"
	}
	if len(config.Tools.YTLangs) == 0 {
		config.Tools.YTLangs = []string{"en", "en-US", "en-GB"}
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.File == "" {
		config.Log.File = "./data/mmrag.log"
	}
	if config.Log.FileCount == 0 {
		config.Log.FileCount = 5
	}
	if config.Log.FileSize == 0 {
		config.Log.FileSize = 100
	}
	if config.Log.KeepDays == 0 {
		config.Log.KeepDays = 7
	}
}

func mergeWithEnv(config *Config) error {
	setString(&config.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&config.Embedding.Model, "MODEL_GEMINI")
	setString(&config.Embedding.APIKey, "GOOGLE_API_KEY")
	setString(&config.Chat.APIKey, "GOOGLE_API_KEY")
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		config.Chat.BaseURL = baseURL
	}
	setString(&config.Chat.Provider, "CHAT_PROVIDER")
	setString(&config.Chat.Model, "CHAT_MODEL")
	setString(&config.Store.Type, "STORE_TYPE")
	setString(&config.Store.Dir, "CHROMA_DIR")
	setString(&config.Store.Dir, "STORE_DIR")
	setString(&config.Store.Collection, "COLLECTION_NAME")
	setString(&config.Store.URL, "DATABASE_URL")
	setString(&config.Tools.FFmpeg, "FFMPEG_BIN")
	setString(&config.Tools.WhisperModel, "WHISPER_MODEL")
	setString(&config.Tools.Tesseract, "TESSERACT_CMD")
	if langs := os.Getenv("YT_LANGS"); langs != "" {
		config.Tools.YTLangs = splitList(langs)
	}
	setString(&config.Log.Level, "LOG_LEVEL")

	if err := setInt(&config.Processor.ChunkSize, "CHUNK_SIZE"); err != nil {
		return err
	}
	return setInt(&config.Processor.ChunkOverlap, "CHUNK_OVERLAP")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
