// Package refiner implements the "refine_memory" summarization helper
// (spec.md §6: `refine_memory(query, memories[])`), grounded on
// original_source/backend/services/memory_refiner.py's CoDA-inspired
// Observation Masking strategy: the most recent N memories are kept
// verbatim, older ones are compressed to a short snippet, the set is
// formatted into one block of text, and the formatted block is then
// compressed by whichever LLMProvider is configured — an
// anthropic-sdk-go-backed provider grounded on
// original_source/backend/services/llm_provider.py's AnthropicProvider,
// or, when none is configured or the call fails,
// llm_provider.py's LocalFallbackProvider "keep head and tail, elide
// the middle" strategy (see internal/refiner/llm.go and DESIGN.md).
package refiner

import (
	"context"
	"fmt"
	"strings"
)

// Memory is one candidate passed to Refine, the Go shape of the
// {"content", "layer", "score"} dicts memory_refiner.py accepts.
type Memory struct {
	Content string  `json:"content"`
	Layer   string  `json:"layer,omitempty"`
	Score   float64 `json:"score,omitempty"`
	masked  bool
}

// Result mirrors memory_refiner.py's RefineResult dataclass.
type Result struct {
	Success         bool           `json:"success"`
	OriginalCount   int            `json:"original_count"`
	RefinedContent  string         `json:"refined_content"`
	EstimatedTokens int            `json:"estimated_tokens"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Refiner holds the Observation Masking tunables and an optional
// LLMProvider for the final compression step.
type Refiner struct {
	KeepRecent    int
	MaxInputChars int
	// LLM performs the final compression via a real model when set; nil
	// means always use the deterministic local-fallback strategy, which
	// is also where Refine lands if an LLM call errors.
	LLM LLMProvider
}

// New builds a Refiner with memory_refiner.py's defaults
// (keep_recent=3, max_input_chars=10000) and no LLM provider — the
// deterministic local-fallback compression only. Use NewFromEnv to pick
// up a configured LLM provider.
func New() *Refiner {
	return &Refiner{KeepRecent: 3, MaxInputChars: 10000}
}

// Refine implements MemoryRefiner.refine: empty input short-circuits,
// otherwise Observation Masking runs, the result is formatted, and the
// formatted block is compressed — by r.LLM when configured and the
// block exceeds the limit, by the local-fallback strategy otherwise or
// if the LLM call fails.
func (r *Refiner) Refine(ctx context.Context, query string, memories []Memory, maxOutputChars int) Result {
	if len(memories) == 0 {
		return Result{
			Success:       true,
			OriginalCount: 0,
			Metadata:      map[string]any{"reason": "empty_input", "query": query},
		}
	}

	masked := r.applyObservationMasking(memories)
	formatted := r.formatMemories(masked)

	limit := maxOutputChars
	if limit <= 0 {
		limit = r.MaxInputChars
	}

	refined := formatted
	provider := "none"
	if len(formatted) > limit {
		if r.LLM != nil {
			if out, err := r.LLM.Complete(ctx, formatted, limit); err == nil {
				refined = out
				provider = r.LLM.Name()
			} else {
				refined = localFallbackCompress(formatted, limit)
				provider = "local_fallback"
			}
		} else {
			refined = localFallbackCompress(formatted, limit)
			provider = "local_fallback"
		}
	}

	return Result{
		Success:         true,
		OriginalCount:   len(memories),
		RefinedContent:  refined,
		EstimatedTokens: estimateTokens(refined),
		Metadata: map[string]any{
			"query":       query,
			"keep_recent": r.KeepRecent,
			"masked":      len(memories) - min(len(memories), r.KeepRecent),
			"provider":    provider,
		},
	}
}

// applyObservationMasking keeps the first KeepRecent memories
// unchanged and compresses the rest, matching
// MemoryRefiner._apply_observation_masking's keep-the-front semantics
// (callers pass memories most-recent-first).
func (r *Refiner) applyObservationMasking(memories []Memory) []Memory {
	out := make([]Memory, len(memories))
	copy(out, memories)
	if len(out) <= r.KeepRecent {
		return out
	}
	for i := r.KeepRecent; i < len(out); i++ {
		out[i].Content = compressSingle(out[i].Content, 100)
		out[i].masked = true
	}
	return out
}

// compressSingle mirrors _compress_single_memory: short content passes
// through, long content truncates at max_len with a trailing ellipsis.
func compressSingle(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}

// formatMemories mirrors _format_memories's "Memory N [layer] ..."
// readable block, marking masked entries [COMPRESSED].
func (r *Refiner) formatMemories(memories []Memory) string {
	var b strings.Builder
	for i, m := range memories {
		layer := m.Layer
		if layer == "" {
			layer = "unknown"
		}
		fmt.Fprintf(&b, "Memory %d [%s]", i+1, layer)
		if m.Score != 0 {
			fmt.Fprintf(&b, " (score: %.2f)", m.Score)
		}
		if m.masked {
			b.WriteString(" [COMPRESSED]")
		}
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// localFallbackCompress mirrors LocalFallbackProvider._simple_compress:
// keep the head and tail, elide the middle.
func localFallbackCompress(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	half := maxChars / 2
	return text[:half] + "\n\n[... content omitted ...]\n\n" + text[len(text)-half:]
}

// estimateTokens mirrors _estimate_tokens's rough 2.5-chars-per-token
// heuristic.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) * 10 / 25
	if n < 1 {
		n = 1
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
