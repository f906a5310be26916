// Package model defines the persisted entities shared across the vector
// index, the durable stores, and both frontends.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/kagent-dev/memoryanchor/internal/layer"
)

// Category is a free-form classification tag; the closed set below is
// advisory, unrecognized values pass through unchanged.
type Category string

const (
	CategoryPerson  Category = "person"
	CategoryPlace   Category = "place"
	CategoryEvent   Category = "event"
	CategoryItem    Category = "item"
	CategoryRoutine Category = "routine"
)

// MemoryItem is the central entity persisted in the vector index.
type MemoryItem struct {
	ID         uuid.UUID  `json:"id"`
	Content    string     `json:"content"`
	Layer      layer.Layer `json:"layer"`
	Category   string     `json:"category,omitempty"`
	IsActive   bool       `json:"is_active"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source,omitempty"`
	AgentID    string     `json:"agent_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Priority   int        `json:"priority"`
	CreatedBy  string     `json:"created_by,omitempty"`

	SessionID    string   `json:"session_id,omitempty"`
	RelatedFiles []string `json:"related_files,omitempty"`

	// L2 episodic fields.
	EventWhen *time.Time `json:"event_when,omitempty"`
	EventWhere string    `json:"event_where,omitempty"`
	EventWho   []string  `json:"event_who,omitempty"`

	// Promotion markers left on an event after it is promoted to L3.
	PromotedToFact  bool       `json:"promoted_to_fact,omitempty"`
	PromotedAt      *time.Time `json:"promoted_at,omitempty"`
	PromotedFactID  *uuid.UUID `json:"promoted_fact_id,omitempty"`
}

// DefaultPriority matches the spec's "lower is higher-priority" default.
const DefaultPriority = 100

// Expired reports whether the item's TTL has passed relative to now.
func (m *MemoryItem) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// New constructs a MemoryItem with the spec's defaults applied.
func New(content string, l layer.Layer) *MemoryItem {
	now := time.Now().UTC()
	return &MemoryItem{
		ID:         uuid.New(),
		Content:    content,
		Layer:      l,
		IsActive:   true,
		Confidence: 1.0,
		CreatedAt:  now,
		UpdatedAt:  now,
		Priority:   DefaultPriority,
	}
}

// SearchResult is the public shape returned by SearchMemory.
type SearchResult struct {
	ID             uuid.UUID  `json:"id"`
	Content        string     `json:"content"`
	Layer          layer.Layer `json:"layer"`
	Category       string     `json:"category,omitempty"`
	Score          float64    `json:"score"`
	Confidence     float64    `json:"confidence"`
	Source         string     `json:"source,omitempty"`
	AgentID        string     `json:"agent_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	EventWhen      *time.Time `json:"event_when,omitempty"`
	EventWhere     string     `json:"event_where,omitempty"`
	EventWho       []string   `json:"event_who,omitempty"`
	IsConstitution bool       `json:"is_constitution"`
}

// FromItem materializes a public search result shape from a vector hit.
func FromItem(item *MemoryItem, score float64, isConstitution bool) SearchResult {
	return SearchResult{
		ID:             item.ID,
		Content:        item.Content,
		Layer:          item.Layer,
		Category:       item.Category,
		Score:          ClampScore(score),
		Confidence:     item.Confidence,
		Source:         item.Source,
		AgentID:        item.AgentID,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
		EventWhen:      item.EventWhen,
		EventWhere:     item.EventWhere,
		EventWho:       item.EventWho,
		IsConstitution: isConstitution,
	}
}

// ClampScore clamps a similarity score to [0,1] as required of every
// vector index implementation.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
