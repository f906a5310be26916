package embedding_test

import (
	"context"
	"testing"

	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_Deterministic(t *testing.T) {
	p := embedding.New(embedding.DefaultDimension)
	ctx := context.Background()

	v1, err := p.Embed(ctx, "the patient went for a walk in the park")
	require.NoError(t, err)
	v2, err := p.Embed(ctx, "the patient went for a walk in the park")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, embedding.DefaultDimension)
}

func TestEmbed_DifferentTextDiffers(t *testing.T) {
	p := embedding.New(16)
	ctx := context.Background()

	v1, err := p.Embed(ctx, "alpha")
	require.NoError(t, err)
	v2, err := p.Embed(ctx, "beta")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	p := embedding.New(16)
	ctx := context.Background()

	texts := []string{"one", "two", "three"}
	vecs, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i])
	}
}

func TestCosineSimilarity_Identical(t *testing.T) {
	p := embedding.New(32)
	v, err := p.Embed(context.Background(), "same text")
	require.NoError(t, err)

	sim := embedding.CosineSimilarity(v, v)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarity_MismatchedLength(t *testing.T) {
	assert.Equal(t, 0.0, embedding.CosineSimilarity([]float32{1, 2}, []float32{1}))
}
