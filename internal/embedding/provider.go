package embedding

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/docconvert/internal/config"
)

// Provider turns a batch of non-empty texts into vectors, one per input in order.
type Provider interface {
	Name() string
	GenerateEmbedding(ctx context.Context, model string, input []string) ([][]float32, error)
}

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// DimensionsFor returns the vector width of a known model, or 0.
func DimensionsFor(model string) int {
	return knownDimensions[model]
}

func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires OPENAI_API_KEY")
		}
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
