package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openAIModelTagPrefix prefixes the model name in OpenAIProvider.ModelTag,
// which is distinct per model since OpenAI's embedding models are not
// interchangeable vector spaces.
const openAIModelTagPrefix = "openai-"

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	// Model is the OpenAI embeddings model, e.g. "text-embedding-3-small".
	// Defaults to "text-embedding-3-small" when empty.
	Model string
	// BaseURL optionally overrides the API base, for OpenAI-compatible
	// gateways or proxies.
	BaseURL string
}

// OpenAIProvider embeds text via OpenAI's Embeddings API. Grounded on the
// teacher's AnthropicModel client-construction shape in
// go/adk/pkg/models/anthropic.go (env-sourced API key, functional
// options, a dedicated config struct, fail-fast on a missing key) but
// wired to OpenAI's embeddings endpoint rather than Anthropic's chat
// completions, since Anthropic does not expose an embeddings API.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider builds an OpenAIProvider, reading its API key from
// OPENAI_API_KEY. Returns an error if the key is unset, the same
// fail-fast contract AnthropicModel uses for ANTHROPIC_API_KEY.
func NewOpenAIProvider(cfg OpenAIConfig, dim int) (*OpenAIProvider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	if dim <= 0 {
		dim = DefaultDimension
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dim,
	}, nil
}

// Dimension returns the vector width this provider produces.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

// ModelTag identifies this provider's model for vector-space comparison.
func (p *OpenAIProvider) ModelTag() string { return openAIModelTagPrefix + p.model }

// Embed calls the Embeddings API for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch calls the Embeddings API once for the whole batch rather
// than per item, matching the batched-request shape the teacher's other
// model clients favor for latency.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(p.model),
		Dimensions:     openai.Int(int64(p.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}
