package refiner

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kagent-dev/memoryanchor/internal/env"
)

// LLMProvider performs the final prose-compression step when a real LLM
// backend is configured, mirroring llm_provider.py's LLMProvider.complete
// contract (name, is_available, complete). Refine falls back to
// localFallbackCompress when LLM is nil or Complete errors — the same
// "优雅降级到本地处理" (graceful degradation to local processing) the
// Python provider docstring describes.
type LLMProvider interface {
	Name() string
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// AnthropicProvider implements LLMProvider over Claude, grounded on
// original_source/backend/services/llm_provider.py's AnthropicProvider
// and on the teacher's own client-construction shape in
// go/adk/pkg/models/anthropic.go (env-sourced API key, functional
// options, fail-fast on a missing key).
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

const defaultRefineSystemPrompt = "You are a helpful assistant that summarizes and refines information."

// NewAnthropicProvider builds an AnthropicProvider, reading its API key
// from ANTHROPIC_API_KEY. Returns an error if the key is unset, matching
// AnthropicModel's fail-fast contract in go/adk/pkg/models/anthropic.go.
func NewAnthropicProvider(model string) (*AnthropicProvider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}
	if model == "" {
		model = "claude-3-haiku-20240307"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{client: client, model: model}, nil
}

// Name identifies this provider in Refine's result metadata.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete asks Claude to compress prompt, mirroring
// AnthropicProvider.complete's messages.create call. Refine passes its
// character limit as maxTokens; the request's token cap is that value
// divided by 4, with a floor of 64.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	tokens := int64(maxTokens / 4) // rough chars-to-tokens budget at 4 chars per token
	if tokens < 64 {
		tokens = 64
	}
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: tokens,
		System: []anthropic.TextBlockParam{
			{Text: defaultRefineSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic complete: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("anthropic complete: empty response")
	}
	return msg.Content[0].Text, nil
}

// NewFromEnv builds a Refiner with memory_refiner.py's defaults and
// whichever LLMProvider MA_REFINE_LLM_PROVIDER selects. "none" (the
// default) keeps the deterministic local-fallback-only behavior of New;
// an unrecognized or misconfigured provider is a hard error, the same
// no-silent-fallback discipline vectorindex/factory and
// embedding.NewFromEnv use.
func NewFromEnv() (*Refiner, error) {
	r := New()
	switch p := env.RefineLLMProvider.Get(); p {
	case "", "none":
		return r, nil
	case "anthropic":
		provider, err := NewAnthropicProvider(env.RefineLLMModel.Get())
		if err != nil {
			return nil, fmt.Errorf("anthropic refine provider: %w", err)
		}
		r.LLM = provider
		return r, nil
	default:
		return nil, fmt.Errorf("unknown MA_REFINE_LLM_PROVIDER %q", p)
	}
}
