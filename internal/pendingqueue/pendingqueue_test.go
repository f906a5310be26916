package pendingqueue_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
	"github.com/kagent-dev/memoryanchor/internal/pendingqueue"
)

func newStore(t *testing.T) *pendingqueue.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	s, err := pendingqueue.Open(db)
	require.NoError(t, err)
	return s
}

func TestTryLock_OnlyOneWinner(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "maybe lived in Shanghai", Layer: "verified_fact", Confidence: 0.75}
	require.NoError(t, s.Insert(ctx, rec))

	locked, err := s.TryLock(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	assert.Equal(t, pendingqueue.StatusProcessing, locked.Status)

	second, err := s.TryLock(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestUnlock_RestoresPending(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "x", Layer: "verified_fact", Confidence: 0.8}
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.TryLock(ctx, rec.ID)
	require.NoError(t, err)

	require.NoError(t, s.Unlock(ctx, rec.ID))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, pendingqueue.StatusPending, got.Status)
}

func TestMarkApproved_RequiresProcessing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "x", Layer: "verified_fact", Confidence: 0.8}
	require.NoError(t, s.Insert(ctx, rec))

	err := s.MarkApproved(ctx, rec.ID)
	assert.Error(t, err)

	_, err = s.TryLock(ctx, rec.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkApproved(ctx, rec.ID))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, pendingqueue.StatusApproved, got.Status)
}

func TestMarkRejected_FromPendingOnly(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "x", Layer: "verified_fact", Confidence: 0.8}
	require.NoError(t, s.Insert(ctx, rec))
	require.NoError(t, s.MarkRejected(ctx, rec.ID))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, pendingqueue.StatusRejected, got.Status)
}

func TestDelete_RejectsPendingRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "x", Layer: "verified_fact", Confidence: 0.8}
	require.NoError(t, s.Insert(ctx, rec))

	err := s.Delete(ctx, rec.ID)
	assert.Error(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, pendingqueue.StatusPending, got.Status)
}

func TestDelete_RejectsProcessingRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "x", Layer: "verified_fact", Confidence: 0.8}
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.TryLock(ctx, rec.ID)
	require.NoError(t, err)

	assert.Error(t, s.Delete(ctx, rec.ID))
}

func TestDelete_SucceedsFromApproved(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "x", Layer: "verified_fact", Confidence: 0.8}
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.TryLock(ctx, rec.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkApproved(ctx, rec.ID))

	require.NoError(t, s.Delete(ctx, rec.ID))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, pendingqueue.StatusDeleted, got.Status)
}

func TestDelete_SucceedsFromRejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec := &pendingqueue.Record{Content: "x", Layer: "verified_fact", Confidence: 0.8}
	require.NoError(t, s.Insert(ctx, rec))
	require.NoError(t, s.MarkRejected(ctx, rec.ID))

	require.NoError(t, s.Delete(ctx, rec.ID))
}

func TestDelete_MissingIDReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.Delete(ctx, "does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStats_CountsByLayerAndAveragesConfidence(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Insert(ctx, &pendingqueue.Record{Content: "a", Layer: "verified_fact", Confidence: 0.6}))
	require.NoError(t, s.Insert(ctx, &pendingqueue.Record{Content: "b", Layer: "verified_fact", Confidence: 0.8}))
	require.NoError(t, s.Insert(ctx, &pendingqueue.Record{Content: "c", Layer: "event_log", Confidence: 0.7}))

	approved := &pendingqueue.Record{Content: "d", Layer: "event_log", Confidence: 0.9}
	require.NoError(t, s.Insert(ctx, approved))
	_, err := s.TryLock(ctx, approved.ID)
	require.NoError(t, err)
	require.NoError(t, s.MarkApproved(ctx, approved.ID))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.ByLayer["verified_fact"])
	assert.EqualValues(t, 1, stats.ByLayer["event_log"])
	assert.InDelta(t, 0.7, stats.AvgConfidence, 0.01)
}

func TestStats_EmptyQueueReturnsZeroAverage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Total)
	assert.Equal(t, float64(0), stats.AvgConfidence)
}

func TestList_OrderedByConfidenceThenCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	low := &pendingqueue.Record{Content: "low", Layer: "verified_fact", Confidence: 0.71}
	high := &pendingqueue.Record{Content: "high", Layer: "verified_fact", Confidence: 0.89}
	require.NoError(t, s.Insert(ctx, low))
	require.NoError(t, s.Insert(ctx, high))

	rows, err := s.List(ctx, pendingqueue.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, high.ID, rows[0].ID)
	assert.Equal(t, low.ID, rows[1].ID)
}
