package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kagent-dev/memoryanchor/internal/budget"
	"github.com/kagent-dev/memoryanchor/internal/layer"
)

func testLimits() budget.Limits {
	return budget.Limits{L0: 500, L1: 200, L2: 500, L3: 40, L4: 300, Total: 4000}
}

func TestEstimateTokens_CharsPerTokenFour(t *testing.T) {
	m := budget.New(testLimits())
	assert.Equal(t, 1, m.EstimateTokens("hi"))
	assert.Equal(t, 5, m.EstimateTokens("this is twenty chars"))
	assert.Equal(t, 0, m.EstimateTokens(""))
}

func TestEstimateMemoryTokens_IncludesOverhead(t *testing.T) {
	m := budget.New(testLimits())
	base := m.EstimateTokens("short")
	assert.Equal(t, base+20, m.EstimateMemoryTokens(budget.Scored{Content: "short"}))
}

func TestCanAllocate_RespectsLayerAndTotal(t *testing.T) {
	m := budget.New(budget.Limits{L3: 10, Total: 10})
	assert.True(t, m.CanAllocate(layer.VerifiedFact, 10))
	assert.False(t, m.CanAllocate(layer.VerifiedFact, 11))
}

func TestCanAllocate_UnknownLayerUnlimited(t *testing.T) {
	m := budget.New(testLimits())
	assert.True(t, m.CanAllocate(layer.Layer("nonsense"), 1_000_000))
}

func TestAllocate_MutatesCounters(t *testing.T) {
	m := budget.New(budget.Limits{L3: 100, Total: 100})
	assert.True(t, m.Allocate(layer.VerifiedFact, 30, 1))
	report := m.GetReport()
	assert.Equal(t, 30, report.Layers[layer.VerifiedFact].Allocated)
	assert.Equal(t, 1, report.Layers[layer.VerifiedFact].ItemCount)
}

func TestTruncateToFit_SortsByScoreDescending(t *testing.T) {
	m := budget.New(budget.Limits{L3: 10000, Total: 10000})
	items := []budget.Scored{
		{Content: "low", Score: 0.1},
		{Content: "high", Score: 0.9},
		{Content: "mid", Score: 0.5},
	}
	kept, truncated := m.TruncateToFit(items, layer.VerifiedFact, 0)
	assert.Equal(t, 0, truncated)
	assert.Equal(t, "high", kept[0].Content)
	assert.Equal(t, "mid", kept[1].Content)
	assert.Equal(t, "low", kept[2].Content)
}

func TestTruncateToFit_PreserveFirstIsUnconditional(t *testing.T) {
	// The budget is smaller than a single item, so nothing would be kept
	// without preserve_first; preserve_first=1 keeps the top-scored item
	// anyway. The low-score item is placed first in the input to show that
	// preservation applies to the sorted order, not the input order.
	limits := budget.Limits{L3: 20, Total: 20} // less than one item (5 content tokens + 20 overhead = 25)
	m := budget.New(limits)

	items := []budget.Scored{
		{Content: "aaaaaaaaaaaaaaaaaaaaa", Score: 0.1}, // 21 chars -> 5 tokens, low score
		{Content: "bbbbbbbbbbbbbbbbbbbbb", Score: 0.9}, // 21 chars -> 5 tokens, high score
	}
	kept, truncated := m.TruncateToFit(items, layer.VerifiedFact, 1)
	// preserve_first=1 keeps index 0 of the SORTED list (highest score
	// first), so "bbb..." is preserved regardless of budget.
	assert.Len(t, kept, 1)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbb", kept[0].Content)
	assert.Equal(t, 1, truncated)
}

func TestTruncateToFit_GreedyAdmitsWithinRemainingBudget(t *testing.T) {
	m := budget.New(budget.Limits{L3: 46, Total: 46}) // room for 2 items (44 tokens)
	items := []budget.Scored{
		{Content: "aaaaaaaaaa", Score: 0.9}, // 10 chars -> 2 tokens + 20 = 22
		{Content: "bbbbbbbbbb", Score: 0.5}, // 22
		{Content: "cccccccccc", Score: 0.1}, // 22, should be truncated
	}
	kept, truncated := m.TruncateToFit(items, layer.VerifiedFact, 0)
	assert.Len(t, kept, 2)
	assert.Equal(t, 1, truncated)
}

func TestReset_ClearsAllocations(t *testing.T) {
	m := budget.New(budget.Limits{L3: 100, Total: 100})
	m.Allocate(layer.VerifiedFact, 50, 1)
	m.Reset()
	report := m.GetReport()
	assert.Equal(t, 0, report.Layers[layer.VerifiedFact].Allocated)
}

func TestIsOverBudget(t *testing.T) {
	m := budget.New(budget.Limits{L3: 100, Total: 10})
	m.Allocate(layer.VerifiedFact, 5, 1)
	report := m.GetReport()
	assert.False(t, report.IsOverBudget())
}
