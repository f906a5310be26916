// Package budget implements the Context Budget Manager (§4.F): per-layer
// token accounting and score-ordered truncation, ported from
// original_source/backend/core/context_budget.py's ContextBudgetManager.
package budget

import (
	"sort"
	"sync"

	"github.com/kagent-dev/memoryanchor/internal/env"
	"github.com/kagent-dev/memoryanchor/internal/layer"
)

// metadataOverhead is the fixed per-item token charge for layer,
// category, timestamp, etc. — matches the Python original exactly.
const metadataOverhead = 20

// charsPerToken is the character-to-token estimation ratio, reasonable
// for mixed-language content without pulling in a tokenizer dependency.
const charsPerToken = 4.0

// Limits holds the per-layer and total token ceilings.
type Limits struct {
	L0    int
	L1    int
	L2    int
	L3    int
	L4    int
	Total int
}

// DefaultLimits mirrors the Python defaults, overridable via env vars
// MA_BUDGET_L0 .. MA_BUDGET_TOTAL.
func DefaultLimits() Limits {
	return Limits{
		L0:    env.BudgetL0.Get(),
		L1:    env.BudgetL1.Get(),
		L2:    env.BudgetL2.Get(),
		L3:    env.BudgetL3.Get(),
		L4:    env.BudgetL4.Get(),
		Total: env.BudgetTotal.Get(),
	}
}

func (l Limits) limitFor(ly layer.Layer) (int, bool) {
	switch ly {
	case layer.IdentitySchema:
		return l.L0, true
	case layer.ActiveContext:
		return l.L1, true
	case layer.EventLog:
		return l.L2, true
	case layer.VerifiedFact:
		return l.L3, true
	case layer.OperationalKnowledge:
		return l.L4, true
	default:
		return 0, false
	}
}

// Usage tracks allocation state for one layer.
type Usage struct {
	Layer     layer.Layer
	Allocated int
	Limit     int
	ItemCount int
	Truncated int
}

// Remaining returns the unallocated portion of the layer's limit.
func (u Usage) Remaining() int {
	if u.Limit-u.Allocated < 0 {
		return 0
	}
	return u.Limit - u.Allocated
}

// UsageRatio returns allocated/limit, or 0 if limit is 0.
func (u Usage) UsageRatio() float64 {
	if u.Limit <= 0 {
		return 0
	}
	return float64(u.Allocated) / float64(u.Limit)
}

// Report summarizes usage across all layers for get_report().
type Report struct {
	Layers        map[layer.Layer]Usage
	TotalAllocated int
	TotalLimit    int
}

// IsOverBudget reports whether total allocation exceeds TotalLimit.
func (r Report) IsOverBudget() bool { return r.TotalAllocated > r.TotalLimit }

// Scored is the minimal shape truncate_to_fit needs: content for token
// estimation and an optional relevance score.
type Scored struct {
	Content string
	Score   float64
}

// Manager is the ContextBudgetManager port. Safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	limits Limits
	usage  map[layer.Layer]Usage
}

// New builds a Manager with the given limits (DefaultLimits() when the
// caller wants env-driven defaults).
func New(limits Limits) *Manager {
	m := &Manager{limits: limits}
	m.initUsage()
	return m
}

func (m *Manager) initUsage() {
	m.usage = make(map[layer.Layer]Usage, len(layer.All()))
	for _, l := range layer.All() {
		limit, _ := m.limits.limitFor(l)
		m.usage[l] = Usage{Layer: l, Limit: limit}
	}
}

// Reset clears all allocation state back to zero.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initUsage()
}

// EstimateTokens estimates the token cost of raw content.
func (m *Manager) EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	n := int(float64(len([]rune(content))) / charsPerToken)
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateMemoryTokens estimates the token cost of a full memory item,
// content plus the fixed per-item metadata overhead.
func (m *Manager) EstimateMemoryTokens(s Scored) int {
	return m.EstimateTokens(s.Content) + metadataOverhead
}

// CanAllocate reports whether n additional tokens fit within both the
// layer's limit and the total ceiling. An unknown layer is unlimited.
func (m *Manager) CanAllocate(l layer.Layer, tokens int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canAllocateLocked(l, tokens)
}

func (m *Manager) canAllocateLocked(l layer.Layer, tokens int) bool {
	usage, ok := m.usage[l]
	if !ok {
		return true
	}
	if usage.Allocated+tokens > usage.Limit {
		return false
	}
	total := tokens
	for _, u := range m.usage {
		total += u.Allocated
	}
	return total <= m.limits.Total
}

// Allocate charges tokens (and items, default 1) against a layer,
// succeeding only if CanAllocate would return true.
func (m *Manager) Allocate(l layer.Layer, tokens int, items int) bool {
	if items <= 0 {
		items = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canAllocateLocked(l, tokens) {
		return false
	}
	usage, ok := m.usage[l]
	if !ok {
		return true
	}
	usage.Allocated += tokens
	usage.ItemCount += items
	m.usage[l] = usage
	return true
}

// TruncateToFit sorts items by descending score (unscored = 0),
// unconditionally keeps the first preserveFirst items in that sorted
// order, then greedily admits items whose estimated tokens fit the
// layer's remaining budget. Returns the kept items and the truncated
// count, and charges the kept tokens against the layer.
func (m *Manager) TruncateToFit(items []Scored, l layer.Layer, preserveFirst int) ([]Scored, int) {
	if len(items) == 0 {
		return nil, 0
	}

	m.mu.Lock()
	usage, ok := m.usage[l]
	m.mu.Unlock()
	if !ok {
		return items, 0
	}

	sorted := make([]Scored, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	remaining := usage.Remaining()
	result := make([]Scored, 0, len(sorted))
	usedTokens := 0
	truncated := 0

	for i, item := range sorted {
		tokens := m.EstimateMemoryTokens(item)
		if i < preserveFirst {
			result = append(result, item)
			usedTokens += tokens
			continue
		}
		if usedTokens+tokens <= remaining {
			result = append(result, item)
			usedTokens += tokens
		} else {
			truncated++
		}
	}

	if len(result) > 0 {
		m.Allocate(l, usedTokens, len(result))
	}
	m.mu.Lock()
	usage = m.usage[l]
	usage.Truncated = truncated
	m.usage[l] = usage
	m.mu.Unlock()

	return result, truncated
}

// GetReport returns a snapshot of all layers' usage plus the total.
func (m *Manager) GetReport() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	layers := make(map[layer.Layer]Usage, len(m.usage))
	total := 0
	for l, u := range m.usage {
		layers[l] = u
		total += u.Allocated
	}
	return Report{Layers: layers, TotalAllocated: total, TotalLimit: m.limits.Total}
}
