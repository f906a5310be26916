package kernel_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kagent-dev/memoryanchor/internal/budget"
	"github.com/kagent-dev/memoryanchor/internal/conflict"
	"github.com/kagent-dev/memoryanchor/internal/config"
	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/kagent-dev/memoryanchor/internal/identitystore"
	"github.com/kagent-dev/memoryanchor/internal/kernel"
	"github.com/kagent-dev/memoryanchor/internal/opsindex"
	"github.com/kagent-dev/memoryanchor/internal/pendingqueue"
	"github.com/kagent-dev/memoryanchor/internal/safety"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex/embedded"
	"github.com/kagent-dev/memoryanchor/internal/workingmemory"
)

func newKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	ctx := context.Background()

	index := embedded.New("")
	require.NoError(t, index.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	pending, err := pendingqueue.Open(db)
	require.NoError(t, err)
	identity, err := identitystore.Open(db)
	require.NoError(t, err)

	return kernel.New(kernel.Deps{
		Index:      index,
		Collection: ":memory:",
		Embedder:   embedding.New(embedding.DefaultDimension),
		Pending:    pending,
		Identity:   identity,
		Cache:      workingmemory.New(0),
		Budget:     budget.New(budget.DefaultLimits()),
		Safety:     safety.New(safety.Config{Enabled: true, MaxLength: 5000, PIIAction: safety.ActionRedact, SensitiveWordAction: safety.ActionWarn}),
		Conflict:   conflict.New(index, conflict.Config{SimilarityThreshold: 0.0, TemporalOverlapDays: 7, ConfidenceDiffThresh: 0.3, Enabled: true}),
		Constitution: &config.Constitution{
			Project: "demo",
			Items:   []config.ConstitutionItem{{ID: "tone", Content: "always answer in a friendly tone", Category: "style"}},
		},
		ProjectID: "demo",
		Logger:    zap.NewNop(),
	})
}

// newKernelWithOps builds the same kernel as newKernel but with the
// operational_knowledge markdown export wired, for tests of §4.P's
// dual-write behavior.
func newKernelWithOps(t *testing.T) (*kernel.Kernel, *opsindex.Index) {
	t.Helper()
	ctx := context.Background()

	index := embedded.New("")
	require.NoError(t, index.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	pending, err := pendingqueue.Open(db)
	require.NoError(t, err)
	identity, err := identitystore.Open(db)
	require.NoError(t, err)

	ops := opsindex.New(t.TempDir())
	k := kernel.New(kernel.Deps{
		Index:      index,
		Collection: ":memory:",
		Embedder:   embedding.New(embedding.DefaultDimension),
		Pending:    pending,
		Identity:   identity,
		Cache:      workingmemory.New(0),
		Budget:     budget.New(budget.DefaultLimits()),
		Safety:     safety.New(safety.Config{Enabled: true, MaxLength: 5000, PIIAction: safety.ActionRedact, SensitiveWordAction: safety.ActionWarn}),
		Conflict:   conflict.New(index, conflict.Config{SimilarityThreshold: 0.0, TemporalOverlapDays: 7, ConfidenceDiffThresh: 0.3, Enabled: true}),
		Constitution: &config.Constitution{
			Project: "demo",
		},
		ProjectID: "demo",
		Logger:    zap.NewNop(),
		Ops:       ops,
	})
	return k, ops
}

func TestAddMemory_OperationalKnowledge_ExportsMarkdownAndIsSearchable(t *testing.T) {
	ctx := context.Background()
	k, _ := newKernelWithOps(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content: "restart qdrant with docker compose up -d qdrant",
		Layer:   "operational_knowledge",
		Source:  "caregiver",
	})
	require.NoError(t, err)
	require.Equal(t, kernel.StatusSaved, res.Status)

	result, err := k.SearchOperations("qdrant", false)
	require.NoError(t, err)
	assert.True(t, result.Found)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, res.ID.String(), result.Matches[0].ID)
}

func TestDeleteMemory_RemovesMarkdownExport(t *testing.T) {
	ctx := context.Background()
	k, _ := newKernelWithOps(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content: "restart qdrant",
		Layer:   "operational_knowledge",
		Source:  "caregiver",
	})
	require.NoError(t, err)

	require.NoError(t, k.DeleteMemory(ctx, *res.ID))

	result, err := k.SearchOperations("qdrant", false)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestSearchOperations_WithoutOpsWiredReturnsError(t *testing.T) {
	k := newKernel(t)
	_, err := k.SearchOperations("anything", false)
	assert.Error(t, err)
}

func TestAddMemory_CaregiverSavesDirectly(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content:    "patient takes medication at 8am",
		Layer:      "verified_fact",
		Confidence: 1.0,
		Source:     string(kernel.SourceCaregiver),
		CreatedBy:  "caregiver1",
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.StatusSaved, res.Status)
	require.NotNil(t, res.ID)
}

func TestAddMemory_AIExtraction_HighConfidenceSaves(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content:    "patient mentioned liking jazz music",
		Layer:      "verified_fact",
		Confidence: 0.95,
		Source:     string(kernel.SourceAIExtraction),
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.StatusSaved, res.Status)
}

func TestAddMemory_AIExtraction_MidConfidenceGoesPending(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content:    "patient might prefer tea over coffee",
		Layer:      "verified_fact",
		Confidence: 0.8,
		Source:     string(kernel.SourceAIExtraction),
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.StatusPendingApproval, res.Status)
	assert.True(t, res.RequiresApproval)
}

func TestAddMemory_AIExtraction_LowConfidenceRejected(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content:    "uncertain guess about patient",
		Layer:      "verified_fact",
		Confidence: 0.3,
		Source:     string(kernel.SourceAIExtraction),
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.StatusRejectedLowConf, res.Status)
	assert.Nil(t, res.ID)
}

func TestAddMemory_RejectsIdentityLayer(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	_, err := k.AddMemory(ctx, kernel.AddRequest{
		Content: "new identity fact", Layer: "identity_schema", Source: string(kernel.SourceUser),
	})
	assert.Error(t, err)
}

func TestGetConstitution_MergesYAMLAndIndex_YAMLWins(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	results, err := k.GetConstitution(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "always answer in a friendly tone", results[0].Content)
	assert.True(t, results[0].IsConstitution)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestSearchMemory_ExplicitL0ReturnsConstitutionOnly(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	results, err := k.SearchMemory(ctx, kernel.SearchRequest{Query: "anything", Layer: "identity_schema", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsConstitution)
}

func TestSearchMemory_IncludeConstitutionPrependsIdentity(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	_, err := k.AddMemory(ctx, kernel.AddRequest{
		Content: "patient enjoys painting", Layer: "verified_fact", Confidence: 1.0, Source: string(kernel.SourceCaregiver),
	})
	require.NoError(t, err)

	results, err := k.SearchMemory(ctx, kernel.SearchRequest{
		Query: "patient enjoys painting", Layer: "verified_fact", Limit: 10, IncludeConstitution: true, MinScore: 0,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)
	assert.True(t, results[0].IsConstitution)
}

func TestLogEventAndPromoteToFact(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.LogEvent(ctx, "went to the clinic", nil, "community clinic", []string{"daughter"}, "", "caregiver1", 0)
	require.NoError(t, err)
	require.NotNil(t, res.ID)

	fact, err := k.PromoteEventToFact(ctx, *res.ID, "caregiver1", "confirmed by family")
	require.NoError(t, err)
	assert.Equal(t, "verified_fact", string(fact.Layer))
	assert.Contains(t, fact.Content, "confirmed by family")

	again, err := k.PromoteEventToFact(ctx, *res.ID, "caregiver1", "")
	require.NoError(t, err)
	assert.Equal(t, fact.ID, again.ID)
}

func TestApprovePending_PromotesIntoIndex(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content: "patient seems to enjoy gardening", Layer: "verified_fact",
		Confidence: 0.75, Source: string(kernel.SourceAIExtraction),
	})
	require.NoError(t, err)
	require.Equal(t, kernel.StatusPendingApproval, res.Status)

	require.NoError(t, k.ApprovePending(ctx, res.ID.String()))

	results, err := k.SearchMemory(ctx, kernel.SearchRequest{Query: "gardening", Layer: "verified_fact", Limit: 10, MinScore: 0})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestGetPendingStats_ReflectsQueuedMemory(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content: "patient mentioned a dog named Rex", Layer: "verified_fact",
		Confidence: 0.73, Source: string(kernel.SourceAIExtraction),
	})
	require.NoError(t, err)
	require.Equal(t, kernel.StatusPendingApproval, res.Status)

	stats, err := k.GetPendingStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total)
	assert.EqualValues(t, 1, stats.ByLayer["verified_fact"])
	assert.InDelta(t, 0.73, stats.AvgConfidence, 0.01)

	require.NoError(t, k.ApprovePending(ctx, res.ID.String()))

	stats, err = k.GetPendingStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Total)
}

func TestActiveContext_SetGetClear(t *testing.T) {
	k := newKernel(t)

	k.SetActiveContext("session-1", "summary", "discussing medication schedule", 0)
	got := k.GetActiveContext("session-1", "summary", nil)
	assert.Equal(t, "discussing medication schedule", got)

	k.ClearActiveContext("session-1")
	assert.Nil(t, k.GetActiveContext("session-1", "summary", nil))
}

func TestRejectPending_NoIndexSideEffect(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t)

	res, err := k.AddMemory(ctx, kernel.AddRequest{
		Content: "patient might dislike loud noises", Layer: "verified_fact",
		Confidence: 0.72, Source: string(kernel.SourceAIExtraction),
	})
	require.NoError(t, err)
	require.Equal(t, kernel.StatusPendingApproval, res.Status)

	require.NoError(t, k.RejectPending(ctx, res.ID.String()))

	stats, err := k.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}
