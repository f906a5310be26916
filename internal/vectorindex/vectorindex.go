// Package vectorindex defines the stable internal contract for the
// Vector Index Adapter (§4.B) and the two conforming deployment modes:
// remote (Postgres + pgvector) and embedded (file-backed sqlite).
package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
)

// Filter is an AND-of-equality set over payload fields, plus the
// mandatory only_active / expiry / agent_id rules from §4.B.
type Filter struct {
	Layer          *layer.Layer
	Category       *string
	AgentID        *string
	OnlyActive     bool
	ExcludeExpired bool
}

// Hit is a single scored result from Query.
type Hit struct {
	Item  model.MemoryItem
	Score float64
}

// Index is the stable contract every deployment mode implements
// identically, including the three mandatory filter rules:
//  1. only_active defaults on for user-facing queries.
//  2. expired items are excluded from every query and listing path.
//  3. agent_id filtering applies only when layer == event_log.
type Index interface {
	// EnsureCollection is idempotent; it creates the backing collection
	// for a project if it does not already exist.
	EnsureCollection(ctx context.Context, collection string, dim int, cosine bool) error

	// Upsert is idempotent by item.ID.
	Upsert(ctx context.Context, collection string, item *model.MemoryItem, vector []float32) error

	// Query returns the top-k items by cosine score, subject to filter.
	Query(ctx context.Context, collection string, vector []float32, k int, filter Filter) ([]Hit, error)

	// Scroll enumerates items stably; offset is opaque and returned by a
	// prior call, nil means "start from the beginning".
	Scroll(ctx context.Context, collection string, filter Filter, limit int, offset *int) ([]model.MemoryItem, *int, error)

	RetrieveByID(ctx context.Context, collection string, id uuid.UUID) (*model.MemoryItem, error)

	// SetPayload patches an existing item; fields not present in patch
	// are left untouched.
	SetPayload(ctx context.Context, collection string, id uuid.UUID, patch map[string]any) error

	Delete(ctx context.Context, collection string, id uuid.UUID) error

	Stats(ctx context.Context, collection string) (Stats, error)
}

// Stats summarizes a collection for get_stats().
type Stats struct {
	Total   int64
	ByLayer map[layer.Layer]int64
}

// normalizeAgentFilter enforces mandatory rule 3: agent_id only applies
// when the layer filter is exactly event_log. Neither implementation
// calls it; embedded and remote each define an identical
// effectiveAgentFilter.
func normalizeAgentFilter(f Filter) *string {
	if f.Layer != nil && *f.Layer == layer.EventLog {
		return f.AgentID
	}
	return nil
}

// ErrUnknownMode is returned (wrapped) by factory.New when the configured mode is neither
// "remote" nor "embedded" — there is no silent fallback between modes.
var ErrUnknownMode = fmt.Errorf("vectorindex: unknown mode")
