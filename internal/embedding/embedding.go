// Package embedding implements the Embedding Provider: a pure,
// deterministic text -> fixed-dimension dense vector function. The model
// choice is an implementation detail; this package guarantees the same
// text always yields the same vector, which is all the Memory Kernel
// requires, and names its scheme with a model tag. The tag is not
// persisted with vectors, so the index itself does not detect a swap.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DefaultDimension is the fixed vector width used across the store.
const DefaultDimension = 384

// ModelTag identifies the hash-based embedding scheme. It is not stored
// with vectors or payloads; nothing in the index compares it.
const ModelTag = "hash-sha256-v1"

// Embedder is the seam between the Memory Kernel and whichever embedding
// scheme is configured: the deterministic Provider below for offline
// development and tests, or an LLM-backed provider such as
// OpenAIProvider for real semantic recall. Every implementation must be
// stable for a fixed model configuration (same text -> same vector) and
// report a dimension matching what it actually produces.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Provider embeds text into fixed-dimension vectors.
type Provider struct {
	dimension int
}

// New returns a Provider with the given dimension, or DefaultDimension
// when dim <= 0.
func New(dim int) *Provider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Provider{dimension: dim}
}

// Dimension returns the vector width this provider produces.
func (p *Provider) Dimension() int { return p.dimension }

// Embed converts text into a unit-normalized dense vector. Deterministic:
// identical text always yields an identical vector, which is the only
// property the kernel and vector index rely on (the same "model" must be
// used for queries and stored items).
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	vec := make([]float32, p.dimension)
	block := []byte(text)
	counter := uint32(0)
	for i := 0; i < p.dimension; i++ {
		if i%8 == 0 {
			counter++
		}
		h := sha256.New()
		h.Write(block)
		var ctrBytes [4]byte
		binary.BigEndian.PutUint32(ctrBytes[:], counter)
		h.Write(ctrBytes[:])
		sum := h.Sum(nil)
		byteIdx := (i % 8) * 4
		raw := binary.BigEndian.Uint32(sum[byteIdx : byteIdx+4])
		// Map to [-1, 1].
		vec[i] = float32(raw)/float32(math.MaxUint32)*2 - 1
	}
	return normalize(vec), nil
}

// EmbedBatch embeds each text independently, preserving order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, used by the embedded vector index implementation.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
