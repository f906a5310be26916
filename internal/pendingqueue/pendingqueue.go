// Package pendingqueue implements the durable staging table for
// medium-confidence observations awaiting human approval (§4.C),
// grounded on the same GORM storage strategy as internal/vectorindex.
package pendingqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
)

// Status is the closed set of pending-record states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusDeleted    Status = "deleted"
)

// Record is a single pending-approval observation.
type Record struct {
	ID         string `gorm:"primaryKey"`
	Content    string
	Layer      string `gorm:"index"`
	Category   string
	Confidence float64
	Source     string
	AgentID    string
	ExpiresAt  *time.Time
	Priority   int
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Status     Status `gorm:"index"`
}

func (Record) TableName() string { return "pending_memory" }

// Filter restricts List results.
type Filter struct {
	Layer         *string
	MinConfidence *float64
	Status        *Status
}

// Store is the GORM-backed Pending Queue Store.
type Store struct {
	db *gorm.DB
}

// Open runs the migration and returns a ready Store.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Insert creates a new pending record with status=pending.
func (s *Store) Insert(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Status = StatusPending
	return s.db.WithContext(ctx).Create(r).Error
}

// Get fetches a record by ID, returning nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns pending records matching filter, ordered by confidence
// desc then created_at desc, per §4.C.
func (s *Store) List(ctx context.Context, f Filter, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&Record{})
	if f.Layer != nil {
		q = q.Where("layer = ?", *f.Layer)
	}
	if f.MinConfidence != nil {
		q = q.Where("confidence >= ?", *f.MinConfidence)
	}
	status := StatusPending
	if f.Status != nil {
		status = *f.Status
	}
	q = q.Where("status = ?", status).Order("confidence desc, created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Record
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TryLock is the only admissible way to begin approval: an atomic
// compare-and-set UPDATE ... WHERE id=? AND status='pending'. Returns the
// locked record, or nil if the row was not in status=pending (already
// processed or being processed concurrently).
func (s *Store) TryLock(ctx context.Context, id string) (*Record, error) {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{"status": StatusProcessing, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// Unlock returns a processing row to pending, used for compensation.
func (s *Store) Unlock(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]any{"status": StatusPending, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return apperr.ErrConflict
	}
	return nil
}

// MarkApproved transitions a processing row to approved.
func (s *Store) MarkApproved(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]any{"status": StatusApproved, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return apperr.ErrConflict
	}
	return nil
}

// MarkRejected transitions a pending row directly to rejected.
func (s *Store) MarkRejected(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Record{}).
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

// Delete soft-deletes by marking status=deleted, permitted only from
// status=approved or status=rejected per §4.C; a pending or processing
// row rejects the delete with ErrConflict, the same CAS pattern TryLock
// and MarkApproved/MarkRejected use.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND status IN ?", id, []Status{StatusApproved, StatusRejected}).
		Updates(map[string]any{"status": StatusDeleted, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		if r, err := s.Get(ctx, id); err == nil && r == nil {
			return apperr.ErrNotFound
		}
		return apperr.ErrConflict
	}
	return nil
}

// Stats implements §4.C's `stats() → {total, by_layer, avg_confidence}`
// over the pending queue's non-terminal (status=pending) rows.
type Stats struct {
	Total         int64            `json:"total"`
	ByLayer       map[string]int64 `json:"by_layer"`
	AvgConfidence float64          `json:"avg_confidence"`
}

// Stats returns the total pending count, a per-layer breakdown, and the
// average confidence across pending rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Record{}).Where("status = ?", StatusPending).Count(&total).Error; err != nil {
		return Stats{}, err
	}

	var layerCounts []struct {
		Layer string
		Count int64
	}
	if err := s.db.WithContext(ctx).Model(&Record{}).
		Where("status = ?", StatusPending).
		Select("layer, count(*) as count").
		Group("layer").
		Scan(&layerCounts).Error; err != nil {
		return Stats{}, err
	}
	byLayer := make(map[string]int64, len(layerCounts))
	for _, lc := range layerCounts {
		byLayer[lc.Layer] = lc.Count
	}

	var avgConfidence float64
	if total > 0 {
		var row struct{ Avg float64 }
		if err := s.db.WithContext(ctx).Model(&Record{}).
			Where("status = ?", StatusPending).
			Select("avg(confidence) as avg").
			Scan(&row).Error; err != nil {
			return Stats{}, err
		}
		avgConfidence = row.Avg
	}

	return Stats{Total: total, ByLayer: byLayer, AvgConfidence: avgConfidence}, nil
}
