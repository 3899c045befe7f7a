package config

import (
	"fmt"
	"net/url"
	"regexp"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var collectionRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate embedding config
	switch c.Embedding.Provider {
	case "gemini":
		if c.Embedding.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "embedding.api_key",
				Message: "GOOGLE_API_KEY is required for the gemini provider",
			})
		}
	case "ollama", "local":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q (gemini, remote, ollama, local)", c.Embedding.Provider),
		})
	}

	if c.Embedding.RatePerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_per_second",
			Message: "rate_per_second must be positive",
		})
	}

	// Validate chat config
	switch c.Chat.Provider {
	case "gemini":
		if c.Chat.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "chat.api_key",
				Message: "GOOGLE_API_KEY is required for the gemini chat provider",
			})
		}
	case "ollama", "local":
	default:
		errors = append(errors, ValidationError{
			Field:   "chat.provider",
			Message: fmt.Sprintf("unknown provider %q (gemini, ollama, local)", c.Chat.Provider),
		})
	}

	for _, f := range []struct{ field, raw string }{
		{"embedding.base_url", c.Embedding.BaseURL},
		{"chat.base_url", c.Chat.BaseURL},
	} {
		if f.raw == "" {
			continue
		}
		if u, err := url.Parse(f.raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Message: "invalid Ollama base URL",
			})
		}
	}

	// Validate store config
	switch c.Store.Type {
	case "sqlite", "memory":
	case "pgvector":
		if c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "DATABASE_URL is required for the pgvector store",
			})
		} else if _, err := url.Parse(c.Store.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.type",
			Message: fmt.Sprintf("unknown store type %q (sqlite, pgvector, memory)", c.Store.Type),
		})
	}

	if !collectionRe.MatchString(c.Store.Collection) {
		errors = append(errors, ValidationError{
			Field:   "store.collection",
			Message: "collection must be a letter or underscore followed by letters, digits or underscores",
		})
	}

	if c.Store.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Store.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	// an overlap at or above chunk_size is clamped by the chunker to a step of 1
	if c.Processor.ChunkOverlap < 0 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative",
		})
	}

	if c.Tools.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "tools.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown log level %q", c.Log.Level),
		})
	}

	return errors
}
