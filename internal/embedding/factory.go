package embedding

import (
	"fmt"

	"github.com/kagent-dev/memoryanchor/internal/env"
)

// NewFromEnv selects an Embedder per MA_EMBEDDING_PROVIDER, matching
// vectorindex/factory's discipline of no silent fallback between modes:
// an unrecognized provider, or an "openai" provider that fails to
// construct (missing OPENAI_API_KEY), is a hard error rather than a
// silent downgrade to the hash-based default.
func NewFromEnv(dim int) (Embedder, error) {
	switch p := env.EmbeddingProvider.Get(); p {
	case "", "hash":
		return New(dim), nil
	case "openai":
		provider, err := NewOpenAIProvider(OpenAIConfig{
			Model:   env.EmbeddingOpenAIModel.Get(),
			BaseURL: env.EmbeddingOpenAIBase.Get(),
		}, dim)
		if err != nil {
			return nil, fmt.Errorf("openai embedding provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown MA_EMBEDDING_PROVIDER %q", p)
	}
}
