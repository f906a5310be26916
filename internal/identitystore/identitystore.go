// Package identitystore implements the durable Identity-Change Store
// (§4.D): a keyed table of identity-change records with atomic
// append-to-approvals and status transition, backing the N-of-M
// approval workflow in internal/approval.
package identitystore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
	"github.com/kagent-dev/memoryanchor/internal/env"
)

// ChangeType is the closed set of identity-change kinds.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Status is the closed set of identity-change lifecycle states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Approval records a single approve() call.
type Approval struct {
	Approver   string    `json:"approver"`
	Comment    string    `json:"comment,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

// Change is a durable Identity-Change Record.
type Change struct {
	ID               string `gorm:"primaryKey"`
	ChangeType       ChangeType
	ProposedContent  string
	Reason           string
	TargetID         string
	Category         string
	Status           Status `gorm:"index"`
	ApprovalsCount   int
	ApprovalsNeeded  int
	ApprovalsJSON    string
	Proposer         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	AppliedAt        *time.Time
}

func (Change) TableName() string { return "constitution_changes" }

// Approvals decodes the stored approvals list.
func (c *Change) Approvals() []Approval {
	var out []Approval
	if c.ApprovalsJSON == "" {
		return out
	}
	_ = json.Unmarshal([]byte(c.ApprovalsJSON), &out)
	return out
}

func (c *Change) setApprovals(a []Approval) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	c.ApprovalsJSON = string(b)
	return nil
}

// DefaultApprovalsNeeded matches §3's default N-of-M threshold.
const DefaultApprovalsNeeded = 3

// Store is the GORM-backed Identity-Change Store.
type Store struct {
	db *gorm.DB
}

// Open runs the migration and returns a ready Store.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Change{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Propose appends a new pending record with approvals = [].
func (s *Store) Propose(ctx context.Context, changeType ChangeType, proposedContent, reason, targetID, category, proposer string) (*Change, error) {
	now := time.Now().UTC()
	c := &Change{
		ID:              uuid.New().String(),
		ChangeType:      changeType,
		ProposedContent: proposedContent,
		Reason:          reason,
		TargetID:        targetID,
		Category:        category,
		Status:          StatusPending,
		ApprovalsNeeded: env.ApprovalsNeeded.Get(),
		Proposer:        proposer,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.setApprovals(nil); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Get fetches a change by id, returning nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*Change, error) {
	var c Change
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListPending returns pending changes, most recent first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]Change, error) {
	status := StatusPending
	return s.ListChanges(ctx, &status, limit)
}

// ListChanges returns changes optionally filtered by status, most
// recent first.
func (s *Store) ListChanges(ctx context.Context, status *Status, limit int) ([]Change, error) {
	q := s.db.WithContext(ctx).Model(&Change{}).Order("created_at desc")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Change
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AppendApproval atomically appends an approval and increments
// approvals_count within a single transaction, so both mutate together.
// It returns the updated record; the caller decides whether the
// approvals_needed threshold has now been crossed and must apply before
// calling MarkApplied.
func (s *Store) AppendApproval(ctx context.Context, id, approver, comment string) (*Change, error) {
	var updated *Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Change
		if err := tx.Where("id = ? AND status = ?", id, StatusPending).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrConflict
			}
			return err
		}

		approvals := c.Approvals()
		approvals = append(approvals, Approval{Approver: approver, Comment: comment, ApprovedAt: time.Now().UTC()})
		if err := c.setApprovals(approvals); err != nil {
			return err
		}
		c.ApprovalsCount = len(approvals)
		c.UpdatedAt = time.Now().UTC()

		if err := tx.Save(&c).Error; err != nil {
			return err
		}
		updated = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkApplied sets status=applied, applied_at=now. Called only after a
// successful apply, per §4.J ordering (apply before persisting).
func (s *Store) MarkApplied(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Change{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{"status": StatusApplied, "applied_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return apperr.ErrConflict
	}
	return nil
}

// MarkRejected transitions a pending change to rejected.
func (s *Store) MarkRejected(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Change{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{"status": StatusRejected, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return apperr.ErrConflict
	}
	return nil
}
