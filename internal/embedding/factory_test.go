package embedding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/memoryanchor/internal/embedding"
)

func TestNewFromEnv_DefaultsToHashProvider(t *testing.T) {
	t.Setenv("MA_EMBEDDING_PROVIDER", "")
	e, err := embedding.NewFromEnv(embedding.DefaultDimension)
	require.NoError(t, err)
	assert.Equal(t, embedding.DefaultDimension, e.Dimension())
}

func TestNewFromEnv_UnknownProviderErrors(t *testing.T) {
	t.Setenv("MA_EMBEDDING_PROVIDER", "cohere")
	_, err := embedding.NewFromEnv(embedding.DefaultDimension)
	assert.Error(t, err)
}

func TestNewFromEnv_OpenAIWithoutAPIKeyErrors(t *testing.T) {
	t.Setenv("MA_EMBEDDING_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := embedding.NewFromEnv(embedding.DefaultDimension)
	assert.Error(t, err)
}

func TestNewOpenAIProvider_DefaultsModelAndDimension(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	p, err := embedding.NewOpenAIProvider(embedding.OpenAIConfig{}, 0)
	require.NoError(t, err)
	assert.Equal(t, embedding.DefaultDimension, p.Dimension())
	assert.Equal(t, "openai-text-embedding-3-small", p.ModelTag())
}
