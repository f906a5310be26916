package embedded_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex/embedded"
)

func newStore(t *testing.T) *embedded.Store {
	t.Helper()
	s := embedded.New("")
	require.NoError(t, s.EnsureCollection(context.Background(), ":memory:", embedding.DefaultDimension, true))
	return s
}

func TestUpsertAndRetrieveByID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb := embedding.New(16)

	item := model.New("remember to water the plants", layer.ActiveContext)
	vec, err := emb.Embed(ctx, item.Content)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, ":memory:", item, vec))

	got, err := s.RetrieveByID(ctx, ":memory:", item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.Content, got.Content)
	assert.Equal(t, layer.ActiveContext, got.Layer)
}

func TestQuery_OnlyActiveAndExpiredExclusion(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb := embedding.New(16)

	active := model.New("active memory", layer.VerifiedFact)
	inactive := model.New("inactive memory", layer.VerifiedFact)
	inactive.IsActive = false

	for _, it := range []*model.MemoryItem{active, inactive} {
		vec, err := emb.Embed(ctx, it.Content)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(ctx, ":memory:", it, vec))
	}

	queryVec, err := emb.Embed(ctx, "active memory")
	require.NoError(t, err)

	hits, err := s.Query(ctx, ":memory:", queryVec, 10, vectorindex.Filter{OnlyActive: true, ExcludeExpired: true})
	require.NoError(t, err)

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Item.ID.String())
	}
	assert.Contains(t, ids, active.ID.String())
	assert.NotContains(t, ids, inactive.ID.String())
}

func TestAgentFilter_OnlyAppliesToEventLog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb := embedding.New(16)

	factItem := model.New("fact from agent A", layer.VerifiedFact)
	factItem.AgentID = "agent-a"
	eventItem := model.New("event from agent B", layer.EventLog)
	eventItem.AgentID = "agent-b"

	for _, it := range []*model.MemoryItem{factItem, eventItem} {
		vec, err := emb.Embed(ctx, it.Content)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(ctx, ":memory:", it, vec))
	}

	agentB := "agent-b"
	factLayer := layer.VerifiedFact
	vec, err := emb.Embed(ctx, "fact from agent A")
	require.NoError(t, err)

	// agent_id filter must be ignored when layer != event_log: the fact
	// from agent-a is returned even though the filter names agent-b, and
	// the layer filter alone excludes the event.
	hits, err := s.Query(ctx, ":memory:", vec, 10, vectorindex.Filter{
		Layer:      &factLayer,
		AgentID:    &agentB,
		OnlyActive: true,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, factItem.ID, hits[0].Item.ID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb := embedding.New(16)

	item := model.New("to be deleted", layer.ActiveContext)
	vec, err := emb.Embed(ctx, item.Content)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, ":memory:", item, vec))

	require.NoError(t, s.Delete(ctx, ":memory:", item.ID))

	got, err := s.RetrieveByID(ctx, ":memory:", item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRetrieveByID_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	got, err := s.RetrieveByID(ctx, ":memory:", uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb := embedding.New(16)

	for _, l := range []layer.Layer{layer.VerifiedFact, layer.VerifiedFact, layer.EventLog} {
		item := model.New("item", l)
		vec, err := emb.Embed(ctx, item.Content)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(ctx, ":memory:", item, vec))
	}

	stats, err := s.Stats(ctx, ":memory:")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByLayer[layer.VerifiedFact])
	assert.Equal(t, int64(1), stats.ByLayer[layer.EventLog])
}
