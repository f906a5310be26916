// Package checklist is a minimal stand-in for the "subsystem external to
// core" checklist tools named in spec.md §6 (get_checklist_briefing,
// sync_plan_to_checklist, create_checklist_item): an in-process,
// cross-session-persistent-in-name-only todo tracker that cooperates
// with an external planning tool via item ids, not one of the eleven
// Memory Kernel components. Grounded on
// original_source/backend/services/checklist_service.py's
// create_item/get_briefing/_list_open_items shape, simplified from its
// Qdrant-backed collection-per-project store to a single in-memory
// store per §1's "treat as external collaborators" scoping — SPEC_FULL
// §6 calls for exactly this as "minimal pass-through adapters", not the
// original's full vector-backed implementation.
package checklist

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a checklist item's lifecycle state.
type Status string

const (
	StatusOpen    Status = "open"
	StatusDone    Status = "done"
	StatusSnoozed Status = "snoozed"
)

// Scope bounds how widely a checklist item applies.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeRepo    Scope = "repo"
	ScopeGlobal  Scope = "global"
)

// Priority mirrors the original's 1 (critical) .. 5 (backlog) scale,
// lower is more urgent.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
	PriorityBacklog  = 5
)

// Item is one checklist entry.
type Item struct {
	ID          uuid.UUID  `json:"id"`
	Content     string     `json:"content"`
	Status      Status     `json:"status"`
	Scope       Scope      `json:"scope"`
	Priority    int        `json:"priority"`
	Tags        []string   `json:"tags,omitempty"`
	ProjectID   string     `json:"project_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store is a process-local checklist, guarded by a single RWMutex in
// the same spirit as internal/workingmemory's cache.
type Store struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Item
}

// New returns an empty Store.
func New() *Store {
	return &Store{items: make(map[uuid.UUID]*Item)}
}

// Create adds a new open checklist item.
func (s *Store) Create(projectID, content string, scope Scope, priority int, tags []string) *Item {
	if scope == "" {
		scope = ScopeProject
	}
	if priority == 0 {
		priority = PriorityNormal
	}
	now := time.Now().UTC()
	item := &Item{
		ID:        uuid.New(),
		Content:   content,
		Status:    StatusOpen,
		Scope:     scope,
		Priority:  priority,
		Tags:      tags,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()
	return item
}

// ListOpen returns every non-done item in scope (or every scope, if
// scope is empty), sorted by priority then creation time, capped at
// limit (0 means unlimited).
func (s *Store) ListOpen(scope Scope, limit int) []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []*Item
	for _, it := range s.items {
		if it.Status == StatusDone {
			continue
		}
		if scope != "" && it.Scope != scope {
			continue
		}
		open = append(open, it)
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].Priority != open[j].Priority {
			return open[i].Priority < open[j].Priority
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open
}

// SyncFromPlan applies a plan skill's completion report: each id that
// resolves to a known item has its status updated, and the updated
// items are returned. Unknown ids are silently skipped, since a plan
// may reference items from a checklist the caller restarted.
func (s *Store) SyncFromPlan(updates map[string]Status) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	var synced []Item
	for rawID, status := range updates {
		id, err := uuid.Parse(strings.TrimPrefix(rawID, "ma:"))
		if err != nil {
			continue
		}
		item, ok := s.items[id]
		if !ok {
			continue
		}
		item.Status = status
		item.UpdatedAt = time.Now().UTC()
		if status == StatusDone {
			completed := item.UpdatedAt
			item.CompletedAt = &completed
		}
		synced = append(synced, *item)
	}
	return synced
}

// Briefing renders the open items in scope as a short markdown summary
// grouped by priority, mirroring get_briefing's session-start report.
func (s *Store) Briefing(scope Scope, limit int) string {
	items := s.ListOpen(scope, limit)
	if len(items) == 0 {
		return "Checklist briefing: no open items."
	}

	byPriority := make(map[int][]*Item)
	for _, it := range items {
		byPriority[it.Priority] = append(byPriority[it.Priority], it)
	}

	var b strings.Builder
	b.WriteString("Checklist briefing\n\n")
	for _, p := range []int{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow, PriorityBacklog} {
		group := byPriority[p]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Priority %d:\n", p)
		for _, it := range group {
			fmt.Fprintf(&b, "- (ma:%s) %s\n", it.ID, it.Content)
		}
	}
	return b.String()
}
