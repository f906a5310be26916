// Package approval implements the Identity-Change Workflow (§4.J): a
// propose -> pending -> applied/rejected state machine over
// internal/identitystore, applying approved changes against the vector
// index via the kernel's privileged L0 write path.
package approval

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
	"github.com/kagent-dev/memoryanchor/internal/identitystore"
	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
)

// Applier performs the privileged L0 write that bypasses the kernel's
// normal identity-layer permission guard. The kernel supplies this so
// approval never needs its own copy of the upsert/delete logic.
type Applier interface {
	ApplyIdentityUpsert(ctx context.Context, id uuid.UUID, content, category string) error
	ApplyIdentityDelete(ctx context.Context, id uuid.UUID) error
}

// KernelApplier adapts a vector index directly into an Applier, used
// when the kernel has not layered any additional policy on top.
type KernelApplier struct {
	Index      vectorindex.Index
	Collection string
	Embed      func(ctx context.Context, content string) ([]float32, error)
}

func (k KernelApplier) ApplyIdentityUpsert(ctx context.Context, id uuid.UUID, content, category string) error {
	vec, err := k.Embed(ctx, content)
	if err != nil {
		return err
	}
	item := model.New(content, layer.IdentitySchema)
	item.ID = id
	item.Category = category
	item.Confidence = 1.0
	return k.Index.Upsert(ctx, k.Collection, item, vec)
}

func (k KernelApplier) ApplyIdentityDelete(ctx context.Context, id uuid.UUID) error {
	return k.Index.Delete(ctx, k.Collection, id)
}

// Workflow drives the N-of-M approval state machine.
type Workflow struct {
	store   *identitystore.Store
	applier Applier
}

// New builds a Workflow over the given durable store and apply target.
func New(store *identitystore.Store, applier Applier) *Workflow {
	return &Workflow{store: store, applier: applier}
}

// Propose appends a new pending identity-change record.
func (w *Workflow) Propose(ctx context.Context, changeType identitystore.ChangeType, proposedContent, reason, targetID, category, proposer string) (*identitystore.Change, error) {
	switch changeType {
	case identitystore.ChangeCreate, identitystore.ChangeUpdate, identitystore.ChangeDelete:
	default:
		return nil, fmt.Errorf("%w: unknown change_type %q", apperr.ErrValidation, changeType)
	}
	return w.store.Propose(ctx, changeType, proposedContent, reason, targetID, category, proposer)
}

// GetChange fetches a single identity-change record.
func (w *Workflow) GetChange(ctx context.Context, id string) (*identitystore.Change, error) {
	return w.store.Get(ctx, id)
}

// ListPending lists pending identity-change records, most recent first.
func (w *Workflow) ListPending(ctx context.Context, limit int) ([]identitystore.Change, error) {
	return w.store.ListPending(ctx, limit)
}

// ListChanges lists identity-change records optionally filtered by status.
func (w *Workflow) ListChanges(ctx context.Context, status *identitystore.Status, limit int) ([]identitystore.Change, error) {
	return w.store.ListChanges(ctx, status, limit)
}

// Approve appends an approval; once approvals_count reaches
// approvals_needed (default 3), it applies the change before marking it
// applied, exactly per §4.J's ordering. If apply fails, the record stays
// pending with the approval already recorded. A later Approve call
// appends one more approval (approvers are not de-duplicated) and runs
// apply again.
func (w *Workflow) Approve(ctx context.Context, id, approver, comment string) (*identitystore.Change, error) {
	updated, err := w.store.AppendApproval(ctx, id, approver, comment)
	if err != nil {
		return nil, err
	}

	if updated.ApprovalsCount < updated.ApprovalsNeeded {
		return updated, nil
	}

	if err := w.apply(ctx, updated); err != nil {
		return updated, fmt.Errorf("approval recorded but apply failed: %w", err)
	}

	if err := w.store.MarkApplied(ctx, id); err != nil {
		return updated, err
	}

	applied, err := w.store.Get(ctx, id)
	if err != nil {
		return updated, err
	}
	return applied, nil
}

// Reject transitions a pending change directly to rejected.
func (w *Workflow) Reject(ctx context.Context, id string) error {
	return w.store.MarkRejected(ctx, id)
}

// apply performs the per-change-type mutation against the vector index,
// per §4.J's apply semantics. Idempotent under retry: re-applying a
// create/update with the same target_id re-upserts the same content,
// and re-applying a delete on an already-absent id succeeds, since the
// index's Delete of a missing row returns no error.
func (w *Workflow) apply(ctx context.Context, c *identitystore.Change) error {
	switch c.ChangeType {
	case identitystore.ChangeCreate:
		id := uuid.New()
		if c.TargetID != "" {
			parsed, err := uuid.Parse(c.TargetID)
			if err == nil {
				id = parsed
			}
		}
		return w.applier.ApplyIdentityUpsert(ctx, id, c.ProposedContent, c.Category)

	case identitystore.ChangeUpdate:
		targetID, err := uuid.Parse(c.TargetID)
		if err != nil {
			return fmt.Errorf("%w: update change has invalid target_id", apperr.ErrValidation)
		}
		_ = w.applier.ApplyIdentityDelete(ctx, targetID) // best-effort; upsert below is authoritative
		return w.applier.ApplyIdentityUpsert(ctx, targetID, c.ProposedContent, c.Category)

	case identitystore.ChangeDelete:
		targetID, err := uuid.Parse(c.TargetID)
		if err != nil {
			return fmt.Errorf("%w: delete change has invalid target_id", apperr.ErrValidation)
		}
		// Delete on an already-absent row is a no-op at the store layer,
		// which is exactly what idempotent re-apply requires.
		return w.applier.ApplyIdentityDelete(ctx, targetID)

	default:
		return fmt.Errorf("%w: unknown change_type %q", apperr.ErrValidation, c.ChangeType)
	}
}
