// Package kernel implements the Memory Kernel (§4.I): the orchestration
// layer tying the embedding provider, vector index, pending queue,
// safety filter, conflict detector, budget manager, and working-memory
// cache into the six public operations (add/search/get_constitution/
// log_event/search_events/promote_event_to_fact) plus the thin
// pass-throughs (delete/update_status/get_stats) and the two pending-
// queue approval entry points from §4.K.
package kernel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
	"github.com/kagent-dev/memoryanchor/internal/approval"
	"github.com/kagent-dev/memoryanchor/internal/budget"
	"github.com/kagent-dev/memoryanchor/internal/conflict"
	"github.com/kagent-dev/memoryanchor/internal/config"
	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/kagent-dev/memoryanchor/internal/env"
	"github.com/kagent-dev/memoryanchor/internal/identitystore"
	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/opsindex"
	"github.com/kagent-dev/memoryanchor/internal/pendingqueue"
	"github.com/kagent-dev/memoryanchor/internal/safety"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
	"github.com/kagent-dev/memoryanchor/internal/workingmemory"
)

// Source is the closed set of memory-item provenance tags from §3.
type Source string

const (
	SourceCaregiver    Source = "caregiver"
	SourceUser         Source = "user"
	SourceAIExtraction Source = "ai_extraction"
	SourceExternalAI   Source = "external_ai"
	SourcePromoted     Source = "promoted_from_event"
)

// Status is the closed set of add_memory outcomes.
type Status string

const (
	StatusSaved            Status = "saved"
	StatusPendingApproval  Status = "pending_approval"
	StatusRejectedLowConf  Status = "rejected_low_confidence"
)

// AddRequest is the input to AddMemory.
type AddRequest struct {
	Content           string
	Layer             string
	Category          string
	Confidence        float64
	Source            string
	AgentID           string
	CreatedBy         string
	SessionID         string
	RelatedFiles      []string
	TTLDays           int
	RequiresApproval  bool
	EventWhen         *time.Time
	EventWhere        string
	EventWho          []string
}

// AddResult is the return shape of AddMemory, per §4.I step 8.
type AddResult struct {
	ID               *uuid.UUID
	Status           Status
	Layer            layer.Layer
	Confidence       float64
	RequiresApproval bool
	Reason           string
	SafetyWarnings   []string
	Conflicts        []conflict.Result
}

// SearchRequest is the input to SearchMemory.
type SearchRequest struct {
	Query               string
	Layer               string
	Category            string
	Limit               int
	MinScore            float64
	IncludeConstitution bool
	AgentID             string
}

// Kernel is the process-wide orchestration singleton (§5).
type Kernel struct {
	index      vectorindex.Index
	collection string
	embedder   embedding.Embedder
	pending    *pendingqueue.Store
	identity   *identitystore.Store
	approvals  *approval.Workflow
	cache      *workingmemory.Cache
	budgetMgr  *budget.Manager
	safetyF    *safety.Filter
	conflictD  *conflict.Detector
	constYAML  []config.ConstitutionItem
	projectID  string
	logger     *zap.Logger
	ops        *opsindex.Index

	mu sync.Mutex
}

// Deps bundles the Kernel's collaborators, constructed by the caller
// (cmd/memoryanchord) from config + factory-selected vector index.
type Deps struct {
	Index        vectorindex.Index
	Collection   string
	Embedder     embedding.Embedder
	Pending      *pendingqueue.Store
	Identity     *identitystore.Store
	Cache        *workingmemory.Cache
	Budget       *budget.Manager
	Safety       *safety.Filter
	Conflict     *conflict.Detector
	Constitution *config.Constitution
	ProjectID    string
	Logger       *zap.Logger
	Ops          *opsindex.Index
}

var (
	singleton     *Kernel
	singletonOnce sync.Once
)

// New builds a Kernel from its dependencies. Most callers should use
// Singleton instead; New is exposed directly for tests that want an
// isolated instance.
func New(d Deps) *Kernel {
	var items []config.ConstitutionItem
	if d.Constitution != nil {
		items = d.Constitution.Items
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	approvals := approval.New(d.Identity, approval.KernelApplier{
		Index:      d.Index,
		Collection: d.Collection,
		Embed:      d.Embedder.Embed,
	})
	return &Kernel{
		index:      d.Index,
		collection: d.Collection,
		embedder:   d.Embedder,
		pending:    d.Pending,
		identity:   d.Identity,
		approvals:  approvals,
		cache:      d.Cache,
		budgetMgr:  d.Budget,
		safetyF:    d.Safety,
		conflictD:  d.Conflict,
		constYAML:  items,
		projectID:  d.ProjectID,
		logger:     logger,
		ops:        d.Ops,
	}
}

// Singleton returns the process-wide Kernel, constructing it on first
// use via the supplied factory. Concurrent first-callers are safe
// (sync.Once double-checked init); exactly one instance is ever built.
func Singleton(build func() Deps) *Kernel {
	singletonOnce.Do(func() {
		singleton = New(build())
	})
	return singleton
}

// Approvals exposes the identity-change workflow for the HTTP/MCP
// frontends (propose/approve/list are thin pass-throughs there).
func (k *Kernel) Approvals() *approval.Workflow { return k.approvals }

// AddMemory implements §4.I add_memory.
func (k *Kernel) AddMemory(ctx context.Context, req AddRequest) (AddResult, error) {
	l, ok := layer.Normalize(req.Layer)
	if !ok {
		return AddResult{}, fmt.Errorf("%w: unknown layer %q", apperr.ErrValidation, req.Layer)
	}

	// Identity protection: only the approval workflow's privileged apply
	// path may write L0; this entry point always rejects it.
	if l == layer.IdentitySchema {
		return AddResult{}, fmt.Errorf("%w: identity_schema writes must go through propose_constitution_change", apperr.ErrPermission)
	}

	content := req.Content
	var warnings []string
	if k.safetyF != nil {
		result := k.safetyF.Check(content)
		if result.IsBlocked() {
			return AddResult{
				Status: StatusRejectedLowConf,
				Layer:  l,
				Reason: strings.Join(result.BlockedReasons, "; "),
			}, nil
		}
		content = result.FilteredContent
		warnings = result.Warnings
	}

	source := Source(req.Source)
	requiresApproval := req.RequiresApproval
	var status Status

	switch source {
	case SourceAIExtraction, SourceExternalAI:
		switch {
		case req.Confidence >= env.ConfidenceSavedThreshold.Get():
			status = StatusSaved
		case req.Confidence >= env.ConfidencePendingFloor.Get():
			status = StatusPendingApproval
			requiresApproval = true
		default:
			return AddResult{
				Status:     StatusRejectedLowConf,
				Layer:      l,
				Confidence: req.Confidence,
				Reason:     "confidence below threshold",
			}, nil
		}
	default:
		if requiresApproval {
			status = StatusPendingApproval
		} else {
			status = StatusSaved
		}
	}

	item := model.New(content, l)
	item.Category = req.Category
	item.Confidence = req.Confidence
	item.Source = req.Source
	item.AgentID = req.AgentID
	item.CreatedBy = req.CreatedBy
	item.SessionID = req.SessionID
	item.RelatedFiles = req.RelatedFiles
	item.EventWhen = req.EventWhen
	item.EventWhere = req.EventWhere
	item.EventWho = req.EventWho
	if req.TTLDays > 0 && req.EventWhen != nil {
		expires := req.EventWhen.AddDate(0, 0, req.TTLDays)
		item.ExpiresAt = &expires
	}

	var conflicts []conflict.Result
	vec, err := k.embedder.Embed(ctx, content)
	if err != nil {
		return AddResult{}, fmt.Errorf("embed: %w", err)
	}
	if k.conflictD != nil {
		all, err := k.conflictD.DetectAll(ctx, k.collection, vec, conflict.Candidate{
			Content:    content,
			Layer:      l,
			Confidence: req.Confidence,
			CreatedBy:  req.CreatedBy,
			ValidAt:    req.EventWhen,
		})
		if err == nil {
			conflicts = all
		}
	}

	switch status {
	case StatusPendingApproval:
		record := &pendingqueue.Record{
			ID:         item.ID.String(),
			Content:    content,
			Layer:      string(l),
			Category:   req.Category,
			Confidence: req.Confidence,
			Source:     req.Source,
			AgentID:    req.AgentID,
			ExpiresAt:  item.ExpiresAt,
			Priority:   item.Priority,
			CreatedBy:  req.CreatedBy,
		}
		if err := k.pending.Insert(ctx, record); err != nil {
			return AddResult{}, fmt.Errorf("insert pending: %w", err)
		}
		return AddResult{
			ID:               &item.ID,
			Status:           StatusPendingApproval,
			Layer:            l,
			Confidence:       req.Confidence,
			RequiresApproval: true,
			SafetyWarnings:   warnings,
			Conflicts:        conflicts,
		}, nil

	default: // StatusSaved
		if err := k.index.Upsert(ctx, k.collection, item, vec); err != nil {
			return AddResult{}, fmt.Errorf("upsert: %w", err)
		}
		if l == layer.OperationalKnowledge && k.ops != nil {
			if err := k.ops.Export(item); err != nil {
				k.logger.Warn("operational_knowledge markdown export failed", zap.String("id", item.ID.String()), zap.Error(err))
			}
		}
		return AddResult{
			ID:             &item.ID,
			Status:         StatusSaved,
			Layer:          l,
			Confidence:     req.Confidence,
			SafetyWarnings: warnings,
			Conflicts:      conflicts,
		}, nil
	}
}

// SearchMemory implements §4.I search_memory.
func (k *Kernel) SearchMemory(ctx context.Context, req SearchRequest) ([]model.SearchResult, error) {
	var explicitLayer *layer.Layer
	if req.Layer != "" {
		l, ok := layer.Normalize(req.Layer)
		if !ok {
			return nil, fmt.Errorf("%w: unknown layer %q", apperr.ErrValidation, req.Layer)
		}
		explicitLayer = &l
	}

	if explicitLayer != nil && *explicitLayer == layer.IdentitySchema {
		return k.GetConstitution(ctx)
	}

	var identityResults []model.SearchResult
	if req.IncludeConstitution {
		var err error
		identityResults, err = k.GetConstitution(ctx)
		if err != nil {
			return nil, err
		}
	}

	if req.Limit <= 0 {
		req.Limit = 10
	}

	vec, err := k.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	var hits []vectorindex.Hit
	switch {
	case explicitLayer != nil && *explicitLayer == layer.VerifiedFact:
		l := layer.VerifiedFact
		h, err := k.index.Query(ctx, k.collection, vec, req.Limit, k.buildFilter(&l, req.Category, "", true))
		if err != nil {
			return nil, err
		}
		hits = h

	case explicitLayer != nil && *explicitLayer == layer.EventLog:
		l := layer.EventLog
		h, err := k.index.Query(ctx, k.collection, vec, req.Limit, k.buildFilter(&l, req.Category, req.AgentID, true))
		if err != nil {
			return nil, err
		}
		hits = h

	default:
		l3 := layer.VerifiedFact
		l3Hits, err := k.index.Query(ctx, k.collection, vec, req.Limit, k.buildFilter(&l3, req.Category, "", true))
		if err != nil {
			return nil, err
		}
		l2 := layer.EventLog
		l2Hits, err := k.index.Query(ctx, k.collection, vec, req.Limit, k.buildFilter(&l2, req.Category, req.AgentID, true))
		if err != nil {
			return nil, err
		}
		hits = append(l3Hits, l2Hits...)
	}

	var nonIdentity []model.SearchResult
	for _, h := range hits {
		if h.Score < req.MinScore {
			continue
		}
		if h.Item.Layer == layer.IdentitySchema {
			continue
		}
		nonIdentity = append(nonIdentity, model.FromItem(&h.Item, h.Score, false))
	}

	sort.SliceStable(nonIdentity, func(i, j int) bool {
		return nonIdentity[i].Score > nonIdentity[j].Score
	})
	if len(nonIdentity) > req.Limit {
		nonIdentity = nonIdentity[:req.Limit]
	}

	if k.budgetMgr != nil {
		nonIdentity = k.fitToBudget(nonIdentity)
	}

	return append(identityResults, nonIdentity...), nil
}

// fitToBudget applies the Context Budget Manager per layer (§4.F),
// dropping results that would exceed that layer's token ceiling while
// always admitting results by descending score first. Allocation is
// cleared at the start of each call, so the ceilings apply per search.
func (k *Kernel) fitToBudget(results []model.SearchResult) []model.SearchResult {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.budgetMgr.Reset()

	byLayer := make(map[layer.Layer][]model.SearchResult)
	for _, r := range results {
		byLayer[r.Layer] = append(byLayer[r.Layer], r)
	}

	var out []model.SearchResult
	for l, group := range byLayer {
		scored := make([]budget.Scored, len(group))
		for i, r := range group {
			scored[i] = budget.Scored{Content: r.Content, Score: r.Score}
		}
		kept, _ := k.budgetMgr.TruncateToFit(scored, l, 0)
		keptContent := make(map[string]struct{}, len(kept))
		for _, s := range kept {
			keptContent[s.Content] = struct{}{}
		}
		for _, r := range group {
			if _, ok := keptContent[r.Content]; ok {
				out = append(out, r)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (k *Kernel) buildFilter(l *layer.Layer, category, agentID string, onlyActive bool) vectorindex.Filter {
	f := vectorindex.Filter{Layer: l, OnlyActive: onlyActive, ExcludeExpired: true}
	if category != "" {
		f.Category = &category
	}
	if agentID != "" {
		f.AgentID = &agentID
	}
	return f
}

// constitutionNamespace is the fixed namespace every stable constitution
// item id is derived from via UUIDv5(namespace, project+":constitution:"+item_id).
var constitutionNamespace = uuid.NameSpaceURL

// GetConstitution implements §4.I get_constitution: YAML source first
// (wins on exact-content dedup), then indexed L0 items up to the cap.
func (k *Kernel) GetConstitution(ctx context.Context) ([]model.SearchResult, error) {
	seen := make(map[string]struct{})
	var out []model.SearchResult

	for _, item := range k.constYAML {
		id := uuid.NewSHA1(constitutionNamespace, []byte(k.projectID+":constitution:"+item.ID))
		seen[item.Content] = struct{}{}
		out = append(out, model.SearchResult{
			ID:             id,
			Content:        item.Content,
			Layer:          layer.IdentitySchema,
			Category:       item.Category,
			Score:          1.0,
			Confidence:     1.0,
			IsConstitution: true,
		})
	}

	l := layer.IdentitySchema
	maxItems := env.MaxConstitutionItems.Get()
	items, _, err := k.index.Scroll(ctx, k.collection, vectorindex.Filter{Layer: &l, OnlyActive: true, ExcludeExpired: true}, maxItems, nil)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if _, dup := seen[item.Content]; dup {
			continue
		}
		out = append(out, model.FromItem(&item, 1.0, true))
	}
	return out, nil
}

// LogEvent implements §4.I log_event: a convenience wrapper over
// AddMemory that writes into L2, enriching the persisted content with a
// trailing bracketed location/participant annotation.
func (k *Kernel) LogEvent(ctx context.Context, content string, when *time.Time, where string, who []string, agentID, createdBy string, ttlDays int) (AddResult, error) {
	enriched := content
	if where != "" || len(who) > 0 {
		var parts []string
		if where != "" {
			parts = append(parts, "地点:"+where)
		}
		if len(who) > 0 {
			parts = append(parts, "人物:"+strings.Join(who, ","))
		}
		enriched = fmt.Sprintf("%s [%s]", content, strings.Join(parts, "; "))
	}

	return k.AddMemory(ctx, AddRequest{
		Content:    enriched,
		Layer:      string(layer.EventLog),
		Confidence: 1.0,
		Source:     string(SourceUser),
		AgentID:    agentID,
		CreatedBy:  createdBy,
		EventWhen:  when,
		EventWhere: where,
		EventWho:   who,
		TTLDays:    ttlDays,
	})
}

// SearchEvents implements §4.I search_events by delegating to
// SearchMemory with layer=event_log, prefixing where/who as synonym
// hints onto the query string. Time-range filtering is not implemented:
// SearchEvents takes no time range (see SPEC_FULL.md §9).
func (k *Kernel) SearchEvents(ctx context.Context, query string, where string, who []string, limit int, agentID string) ([]model.SearchResult, error) {
	q := query
	var hints []string
	if where != "" {
		hints = append(hints, where)
	}
	hints = append(hints, who...)
	if len(hints) > 0 {
		q = strings.Join(hints, " ") + " " + query
	}

	return k.SearchMemory(ctx, SearchRequest{
		Query:   q,
		Layer:   string(layer.EventLog),
		Limit:   limit,
		AgentID: agentID,
	})
}

// PromoteEventToFact implements §4.I promote_event_to_fact.
func (k *Kernel) PromoteEventToFact(ctx context.Context, eventID uuid.UUID, verifiedBy, notes string) (*model.MemoryItem, error) {
	event, err := k.index.RetrieveByID(ctx, k.collection, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", apperr.ErrNotFound, eventID)
	}
	if event.Layer == layer.VerifiedFact {
		return event, nil
	}
	if event.PromotedToFact {
		existing, err := k.index.RetrieveByID(ctx, k.collection, *event.PromotedFactID)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	content := event.Content
	if notes != "" {
		content = fmt.Sprintf("%s (verified: %s)", content, notes)
	}

	fact := model.New(content, layer.VerifiedFact)
	fact.Confidence = 1.0
	fact.Source = string(SourcePromoted)
	fact.CreatedBy = verifiedBy
	fact.Category = event.Category

	vec, err := k.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}
	if err := k.index.Upsert(ctx, k.collection, fact, vec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	patch := map[string]any{
		"promoted_to_fact": true,
		"promoted_at":      now,
		"promoted_fact_id": fact.ID.String(),
	}
	if err := k.index.SetPayload(ctx, k.collection, eventID, patch); err != nil {
		k.logger.Error("promote_event_to_fact: failed to mark source event promoted",
			zap.String("event_id", eventID.String()), zap.Error(err))
		return nil, err
	}

	return fact, nil
}

// activeContextKeyPrefix is prepended to every working-memory cache key
// L1 content is stored under for a given session; a session may hold multiple keyed
// entries (e.g. "summary", "open_task") under its own namespace.
const activeContextKeyPrefix = "active_context:"

// SetActiveContext implements L1's write rule: in-process only, never
// persisted, scoped by session id, TTL-bounded.
func (k *Kernel) SetActiveContext(sessionID, key string, value any, ttl time.Duration) {
	k.cache.Set(sessionID, activeContextKeyPrefix+key, value, ttl)
}

// GetActiveContext reads back an L1 value, or def if absent/expired.
func (k *Kernel) GetActiveContext(sessionID, key string, def any) any {
	return k.cache.Get(sessionID, activeContextKeyPrefix+key, def)
}

// ClearActiveContext drops all L1 entries for a session.
func (k *Kernel) ClearActiveContext(sessionID string) {
	k.cache.ClearSession(sessionID)
}

// DeleteMemory is a thin pass-through to the vector index adapter.
func (k *Kernel) DeleteMemory(ctx context.Context, id uuid.UUID) error {
	if err := k.index.Delete(ctx, k.collection, id); err != nil {
		return err
	}
	if k.ops != nil {
		if err := k.ops.Remove(id); err != nil {
			k.logger.Warn("operational_knowledge markdown removal failed", zap.String("id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// SearchOperations implements §6's search_operations tool: a keyword
// match over the operational_knowledge markdown export, not a vector
// search, per §4.P.
func (k *Kernel) SearchOperations(query string, includeContent bool) (opsindex.SearchResult, error) {
	if k.ops == nil {
		return opsindex.SearchResult{}, fmt.Errorf("%w: operations index not configured", apperr.ErrNotFound)
	}
	return k.ops.Search(query, includeContent)
}

// UpdateMemoryStatus is a thin pass-through toggling is_active.
func (k *Kernel) UpdateMemoryStatus(ctx context.Context, id uuid.UUID, isActive bool) error {
	return k.index.SetPayload(ctx, k.collection, id, map[string]any{"is_active": isActive})
}

// GetStats is a thin pass-through to the vector index adapter.
func (k *Kernel) GetStats(ctx context.Context) (vectorindex.Stats, error) {
	return k.index.Stats(ctx, k.collection)
}

// GetPendingStats is a thin pass-through to §4.C's `stats()` over the
// pending-approval queue, distinct from GetStats's indexed-memory view.
func (k *Kernel) GetPendingStats(ctx context.Context) (pendingqueue.Stats, error) {
	return k.pending.Stats(ctx)
}

// ApprovePending implements §4.K's exact four-step sequence.
func (k *Kernel) ApprovePending(ctx context.Context, id string) error {
	record, err := k.pending.TryLock(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: pending record %s already processed or locked", apperr.ErrConflict, id)
	}

	itemID, err := uuid.Parse(record.ID)
	if err != nil {
		itemID = uuid.New()
	}
	item := &model.MemoryItem{
		ID:         itemID,
		Content:    record.Content,
		Layer:      layer.Layer(record.Layer),
		Category:   record.Category,
		IsActive:   true,
		Confidence: record.Confidence,
		Source:     record.Source,
		AgentID:    record.AgentID,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  time.Now().UTC(),
		ExpiresAt:  record.ExpiresAt,
		Priority:   record.Priority,
		CreatedBy:  record.CreatedBy,
	}

	vec, err := k.embedder.Embed(ctx, record.Content)
	if err != nil {
		_ = k.pending.Unlock(ctx, id)
		return fmt.Errorf("embed: %w", err)
	}

	if err := k.index.Upsert(ctx, k.collection, item, vec); err != nil {
		k.compensate(ctx, id, itemID, false)
		return fmt.Errorf("upsert: %w", err)
	}

	if err := k.pending.MarkApproved(ctx, id); err != nil {
		k.compensate(ctx, id, itemID, true)
		return fmt.Errorf("mark approved: %w", err)
	}
	if err := k.pending.Delete(ctx, id); err != nil {
		// The record is already approved; a failed soft-delete here is
		// logged but not compensated further — the queue row is inert.
		k.logger.Error("approve_pending: failed to delete approved queue row",
			zap.String("id", id), zap.Error(err))
	}
	return nil
}

// compensate performs the best-effort rollback from §4.K step 4: soft-
// delete the just-upserted item (if it was upserted), then unlock the
// queue row back to pending. Compensation failure is logged distinctly.
func (k *Kernel) compensate(ctx context.Context, pendingID string, itemID uuid.UUID, itemWasUpserted bool) {
	if itemWasUpserted {
		if err := k.index.SetPayload(ctx, k.collection, itemID, map[string]any{"is_active": false}); err != nil {
			k.logger.Error("approve_pending: compensation failed to soft-delete indexed item",
				zap.String("manual_cleanup_required", "true"),
				zap.String("pending_id", pendingID), zap.String("item_id", itemID.String()), zap.Error(err))
		}
	}
	if err := k.pending.Unlock(ctx, pendingID); err != nil {
		k.logger.Error("approve_pending: compensation failed to unlock pending record",
			zap.String("manual_cleanup_required", "true"),
			zap.String("pending_id", pendingID), zap.Error(err))
	}
}

// RejectPending implements §4.K's single atomic transition: pending ->
// rejected directly, with no vector-index side effect and no
// intermediate processing state.
func (k *Kernel) RejectPending(ctx context.Context, id string) error {
	return k.pending.MarkRejected(ctx, id)
}
