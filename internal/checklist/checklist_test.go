package checklist_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/memoryanchor/internal/checklist"
)

func TestCreate_DefaultsScopeAndPriority(t *testing.T) {
	s := checklist.New()
	item := s.Create("proj1", "write tests", "", 0, nil)
	assert.Equal(t, checklist.ScopeProject, item.Scope)
	assert.Equal(t, checklist.PriorityNormal, item.Priority)
	assert.Equal(t, checklist.StatusOpen, item.Status)
}

func TestListOpen_SortsByPriorityThenCreation(t *testing.T) {
	s := checklist.New()
	s.Create("proj1", "low priority thing", checklist.ScopeProject, checklist.PriorityLow, nil)
	critical := s.Create("proj1", "critical thing", checklist.ScopeProject, checklist.PriorityCritical, nil)

	open := s.ListOpen(checklist.ScopeProject, 10)
	require.Len(t, open, 2)
	assert.Equal(t, critical.ID, open[0].ID)
}

func TestListOpen_ExcludesDoneItems(t *testing.T) {
	s := checklist.New()
	item := s.Create("proj1", "finish report", checklist.ScopeProject, checklist.PriorityNormal, nil)

	synced := s.SyncFromPlan(map[string]checklist.Status{
		fmt.Sprintf("ma:%s", item.ID): checklist.StatusDone,
	})
	require.Len(t, synced, 1)
	assert.Equal(t, checklist.StatusDone, synced[0].Status)
	require.NotNil(t, synced[0].CompletedAt)

	assert.Empty(t, s.ListOpen(checklist.ScopeProject, 0))
}

func TestSyncFromPlan_UnknownIDIsSkipped(t *testing.T) {
	s := checklist.New()
	synced := s.SyncFromPlan(map[string]checklist.Status{"ma:not-a-real-id": checklist.StatusDone})
	assert.Empty(t, synced)
}

func TestBriefing_GroupsByPriority(t *testing.T) {
	s := checklist.New()
	s.Create("proj1", "urgent fix", checklist.ScopeProject, checklist.PriorityCritical, nil)
	s.Create("proj1", "nice to have", checklist.ScopeProject, checklist.PriorityBacklog, nil)

	text := s.Briefing(checklist.ScopeProject, 0)
	assert.Contains(t, text, "Priority 1:")
	assert.Contains(t, text, "urgent fix")
	assert.Contains(t, text, "Priority 5:")
}

func TestBriefing_EmptyChecklist(t *testing.T) {
	s := checklist.New()
	assert.Contains(t, s.Briefing(checklist.ScopeProject, 0), "no open items")
}
