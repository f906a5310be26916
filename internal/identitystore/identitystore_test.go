package identitystore_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kagent-dev/memoryanchor/internal/identitystore"
)

func newStore(t *testing.T) *identitystore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	s, err := identitystore.Open(db)
	require.NoError(t, err)
	return s
}

func TestPropose_StartsAtPendingWithNoApprovals(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	c, err := s.Propose(ctx, identitystore.ChangeCreate, "identity layer: name is Li Lei", "initial setup", "", "name", "alice")
	require.NoError(t, err)
	assert.Equal(t, identitystore.StatusPending, c.Status)
	assert.Equal(t, 0, c.ApprovalsCount)
	assert.Equal(t, identitystore.DefaultApprovalsNeeded, c.ApprovalsNeeded)
	assert.Empty(t, c.Approvals())
}

func TestAppendApproval_IncrementsMonotonically(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	c, err := s.Propose(ctx, identitystore.ChangeCreate, "content", "reason", "", "cat", "alice")
	require.NoError(t, err)

	updated, err := s.AppendApproval(ctx, c.ID, "bob", "looks right")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ApprovalsCount)
	assert.Len(t, updated.Approvals(), 1)

	updated, err = s.AppendApproval(ctx, c.ID, "carol", "")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ApprovalsCount)
}

func TestAppendApproval_RejectsNonPending(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	c, err := s.Propose(ctx, identitystore.ChangeCreate, "content", "reason", "", "cat", "alice")
	require.NoError(t, err)
	require.NoError(t, s.MarkRejected(ctx, c.ID))

	_, err = s.AppendApproval(ctx, c.ID, "bob", "")
	assert.Error(t, err)
}

func TestMarkApplied_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	c, err := s.Propose(ctx, identitystore.ChangeCreate, "content", "reason", "", "cat", "alice")
	require.NoError(t, err)

	require.NoError(t, s.MarkApplied(ctx, c.ID))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, identitystore.StatusApplied, got.Status)
	assert.NotNil(t, got.AppliedAt)

	assert.Error(t, s.MarkApplied(ctx, c.ID))
}

func TestListPending_OrderedMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.Propose(ctx, identitystore.ChangeCreate, "a", "r", "", "cat", "alice")
	require.NoError(t, err)
	second, err := s.Propose(ctx, identitystore.ChangeCreate, "b", "r", "", "cat", "alice")
	require.NoError(t, err)

	rows, err := s.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	_ = first
	assert.Equal(t, second.ID, rows[0].ID)
}
