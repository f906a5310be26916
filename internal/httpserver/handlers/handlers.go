// Package handlers implements the HTTP handler surface for the Memory
// Kernel's JSON API, mirrored from the teacher's one-handler-struct-per-
// resource style in go/controller/internal/httpserver/handlers, adapted
// to a single *Handlers struct since every route here is a thin
// wrapper over one shared *kernel.Kernel rather than a Kubernetes client.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
	"github.com/kagent-dev/memoryanchor/internal/checklist"
	"github.com/kagent-dev/memoryanchor/internal/gating"
	"github.com/kagent-dev/memoryanchor/internal/identitystore"
	"github.com/kagent-dev/memoryanchor/internal/kernel"
	"github.com/kagent-dev/memoryanchor/internal/refiner"
)

// Handlers bundles the kernel, checklist subsystem, and logger every
// handler method needs.
type Handlers struct {
	kernel    *kernel.Kernel
	checklist *checklist.Store
	logger    *zap.Logger
}

// New builds a Handlers.
func New(k *kernel.Kernel, cl *checklist.Store, logger *zap.Logger) *Handlers {
	return &Handlers{kernel: k, checklist: cl, logger: logger}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: invalid id %q", apperr.ErrValidation, raw)
	}
	return id, nil
}

// Healthz is a liveness probe. AuthMiddleware skips it, so it is
// unauthenticated; LoggingMiddleware logs it like every other route.
func Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type addMemoryRequest struct {
	Content          string     `json:"content"`
	Layer            string     `json:"layer"`
	Category         string     `json:"category,omitempty"`
	Confidence       float64    `json:"confidence"`
	Source           string     `json:"source"`
	AgentID          string     `json:"agent_id,omitempty"`
	CreatedBy        string     `json:"created_by,omitempty"`
	SessionID        string     `json:"session_id,omitempty"`
	RelatedFiles     []string   `json:"related_files,omitempty"`
	TTLDays          int        `json:"ttl_days,omitempty"`
	RequiresApproval bool       `json:"requires_approval,omitempty"`
}

func (h *Handlers) AddMemory(w http.ResponseWriter, r *http.Request) {
	var req addMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	res, err := h.kernel.AddMemory(r.Context(), kernel.AddRequest{
		Content:          req.Content,
		Layer:            req.Layer,
		Category:         req.Category,
		Confidence:       req.Confidence,
		Source:           req.Source,
		AgentID:          req.AgentID,
		CreatedBy:        req.CreatedBy,
		SessionID:        req.SessionID,
		RelatedFiles:     req.RelatedFiles,
		TTLDays:          req.TTLDays,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

type searchMemoryRequest struct {
	Query               string  `json:"query"`
	Layer               string  `json:"layer,omitempty"`
	Category            string  `json:"category,omitempty"`
	Limit               int     `json:"limit,omitempty"`
	MinScore            float64 `json:"min_score,omitempty"`
	IncludeConstitution bool    `json:"include_constitution,omitempty"`
	AgentID             string  `json:"agent_id,omitempty"`
}

func (h *Handlers) SearchMemory(w http.ResponseWriter, r *http.Request) {
	var req searchMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	results, err := h.kernel.SearchMemory(r.Context(), kernel.SearchRequest{
		Query:               req.Query,
		Layer:               req.Layer,
		Category:            req.Category,
		Limit:               req.Limit,
		MinScore:            req.MinScore,
		IncludeConstitution: req.IncludeConstitution,
		AgentID:             req.AgentID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handlers) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if !gating.IsConfirmed(r.URL.Query().Get("confirmation")) {
		respondError(w, fmt.Errorf("%w: delete_memory requires a ?confirmation= phrase, e.g. \"confirm delete\"", apperr.ErrValidation))
		return
	}
	if err := h.kernel.DeleteMemory(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type updateMemoryStatusRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *Handlers) UpdateMemoryStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req updateMemoryStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.kernel.UpdateMemoryStatus(r.Context(), id, req.IsActive); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handlers) GetConstitution(w http.ResponseWriter, r *http.Request) {
	results, err := h.kernel.GetConstitution(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

type logEventRequest struct {
	Content   string    `json:"content"`
	When      *time.Time `json:"when,omitempty"`
	Where     string    `json:"where,omitempty"`
	Who       []string  `json:"who,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	TTLDays   int       `json:"ttl_days,omitempty"`
}

func (h *Handlers) LogEvent(w http.ResponseWriter, r *http.Request) {
	var req logEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	res, err := h.kernel.LogEvent(r.Context(), req.Content, req.When, req.Where, req.Who, req.AgentID, req.CreatedBy, req.TTLDays)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

type searchEventsRequest struct {
	Query   string   `json:"query"`
	Where   string   `json:"where,omitempty"`
	Who     []string `json:"who,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	AgentID string   `json:"agent_id,omitempty"`
}

func (h *Handlers) SearchEvents(w http.ResponseWriter, r *http.Request) {
	var req searchEventsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	results, err := h.kernel.SearchEvents(r.Context(), req.Query, req.Where, req.Who, req.Limit, req.AgentID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

type promoteEventRequest struct {
	VerifiedBy string `json:"verified_by"`
	Notes      string `json:"notes,omitempty"`
}

func (h *Handlers) PromoteEventToFact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req promoteEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	fact, err := h.kernel.PromoteEventToFact(r.Context(), id, req.VerifiedBy, req.Notes)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fact)
}

type searchOperationsRequest struct {
	Query          string `json:"query"`
	IncludeContent bool   `json:"include_content,omitempty"`
}

// SearchOperations implements §6's search_operations endpoint: a
// keyword match over the operational_knowledge markdown export, per
// §4.P.
func (h *Handlers) SearchOperations(w http.ResponseWriter, r *http.Request) {
	var req searchOperationsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	result, err := h.kernel.SearchOperations(req.Query, req.IncludeContent)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type refineMemoryRequest struct {
	Query          string           `json:"query"`
	Memories       []refiner.Memory `json:"memories"`
	MaxOutputChars int              `json:"max_output_chars,omitempty"`
}

// RefineMemory implements the refine_memory summarization helper over
// HTTP, the same Observation-Masking semantics the MCP tool exposes.
func (h *Handlers) RefineMemory(w http.ResponseWriter, r *http.Request) {
	var req refineMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Query == "" {
		respondError(w, fmt.Errorf("%w: query is required", apperr.ErrValidation))
		return
	}
	rf, err := refiner.NewFromEnv()
	if err != nil {
		respondError(w, err)
		return
	}
	result := rf.Refine(r.Context(), req.Query, req.Memories, req.MaxOutputChars)
	respondJSON(w, http.StatusOK, result)
}

type createChecklistItemRequest struct {
	ProjectID string   `json:"project_id,omitempty"`
	Content   string   `json:"content"`
	Scope     string   `json:"scope,omitempty"`
	Priority  int      `json:"priority,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// CreateChecklistItem implements the checklist subsystem's
// create_checklist_item, one of spec.md §1's external collaborators
// still listed in §6's tool table.
func (h *Handlers) CreateChecklistItem(w http.ResponseWriter, r *http.Request) {
	var req createChecklistItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	item := h.checklist.Create(req.ProjectID, req.Content, checklist.Scope(req.Scope), req.Priority, req.Tags)
	respondJSON(w, http.StatusCreated, item)
}

// GetChecklistBriefing implements get_checklist_briefing.
func (h *Handlers) GetChecklistBriefing(w http.ResponseWriter, r *http.Request) {
	scope := checklist.Scope(r.URL.Query().Get("scope"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &limit)
	}
	respondJSON(w, http.StatusOK, map[string]string{"briefing": h.checklist.Briefing(scope, limit)})
}

type syncPlanToChecklistRequest struct {
	Updates map[string]checklist.Status `json:"updates"`
}

// SyncPlanToChecklist implements sync_plan_to_checklist.
func (h *Handlers) SyncPlanToChecklist(w http.ResponseWriter, r *http.Request) {
	var req syncPlanToChecklistRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checklist.SyncFromPlan(req.Updates))
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.kernel.GetStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetPendingStats implements §4.C's pending-queue `stats()`, distinct
// from GetStats's indexed-memory view.
func (h *Handlers) GetPendingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.kernel.GetPendingStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type proposeChangeRequest struct {
	ChangeType      string `json:"change_type"`
	ProposedContent string `json:"proposed_content"`
	Reason          string `json:"reason"`
	TargetID        string `json:"target_id,omitempty"`
	Category        string `json:"category,omitempty"`
	Proposer        string `json:"proposer"`
}

func (h *Handlers) ProposeChange(w http.ResponseWriter, r *http.Request) {
	var req proposeChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	change, err := h.kernel.Approvals().Propose(r.Context(),
		identitystore.ChangeType(req.ChangeType), req.ProposedContent, req.Reason, req.TargetID, req.Category, req.Proposer)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, change)
}

type decideChangeRequest struct {
	Approver string `json:"approver"`
	Comment  string `json:"comment,omitempty"`
}

func (h *Handlers) ApproveChange(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req decideChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	change, err := h.kernel.Approvals().Approve(r.Context(), id, req.Approver, req.Comment)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, change)
}

func (h *Handlers) RejectChange(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.kernel.Approvals().Reject(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *Handlers) ApprovePending(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.kernel.ApprovePending(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *Handlers) RejectPending(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.kernel.RejectPending(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
