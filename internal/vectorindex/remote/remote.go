// Package remote implements the server-backed vector index mode:
// Postgres plus the pgvector extension via github.com/pgvector/pgvector-go,
// with real ORDER BY vector distance ("<=>") instead of an in-process
// scan. Grounded on the teacher's internal/database.Manager postgres
// path, extended with a pgvector column per the teacher's go.mod
// dependency on pgvector-go.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
)

type row struct {
	ID         string `gorm:"primaryKey"`
	Collection string `gorm:"index"`
	Content    string
	Layer      string `gorm:"index"`
	Category   string
	IsActive   bool `gorm:"index"`
	Confidence float64
	Source     string
	AgentID    string `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  *time.Time `gorm:"index"`
	Priority   int
	CreatedBy  string

	SessionID    string
	RelatedFiles string

	EventWhen  *time.Time
	EventWhere string
	EventWho   string

	PromotedToFact bool
	PromotedAt     *time.Time
	PromotedFactID string

	Vector pgvector.Vector `gorm:"type:vector(384)"`
}

func (row) TableName() string { return "memory_items" }

// Store is a Postgres+pgvector backed Index. Every collection maps to a
// row range in a single shared table, partitioned by the `collection`
// column — every method filters on it, so one Postgres database serves
// many projects' isolated collections, matching the teacher's
// single-database-per-deployment convention without losing per-project
// isolation.
type Store struct {
	db  *gorm.DB
	dim int
}

// Open establishes the connection and verifies pgvector is usable,
// failing fast rather than silently degrading to a non-vector mode.
func Open(ctx context.Context, dsn string, dim int) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", apperr.ErrRemoteIndex, err)
	}
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("%w: pgvector extension unavailable: %v", apperr.ErrRemoteIndex, err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&row{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", apperr.ErrRemoteIndex, err)
	}
	return &Store{db: db, dim: dim}, nil
}

func (s *Store) EnsureCollection(ctx context.Context, collection string, dim int, cosine bool) error {
	return s.db.WithContext(ctx).Exec(
		`CREATE INDEX IF NOT EXISTS idx_memory_items_vector ON memory_items
		 USING hnsw (vector vector_cosine_ops)`).Error
}

func toRow(collection string, item *model.MemoryItem, vector []float32) (*row, error) {
	filesJSON, err := json.Marshal(item.RelatedFiles)
	if err != nil {
		return nil, err
	}
	whoJSON, err := json.Marshal(item.EventWho)
	if err != nil {
		return nil, err
	}
	var promotedFactID string
	if item.PromotedFactID != nil {
		promotedFactID = item.PromotedFactID.String()
	}
	return &row{
		ID:             item.ID.String(),
		Collection:     collection,
		Content:        item.Content,
		Layer:          string(item.Layer),
		Category:       item.Category,
		IsActive:       item.IsActive,
		Confidence:     item.Confidence,
		Source:         item.Source,
		AgentID:        item.AgentID,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
		ExpiresAt:      item.ExpiresAt,
		Priority:       item.Priority,
		CreatedBy:      item.CreatedBy,
		SessionID:      item.SessionID,
		RelatedFiles:   string(filesJSON),
		EventWhen:      item.EventWhen,
		EventWhere:     item.EventWhere,
		EventWho:       string(whoJSON),
		PromotedToFact: item.PromotedToFact,
		PromotedAt:     item.PromotedAt,
		PromotedFactID: promotedFactID,
		Vector:         pgvector.NewVector(vector),
	}, nil
}

func fromRow(r *row) (*model.MemoryItem, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	var files []string
	if r.RelatedFiles != "" {
		if err := json.Unmarshal([]byte(r.RelatedFiles), &files); err != nil {
			return nil, err
		}
	}
	var who []string
	if r.EventWho != "" {
		if err := json.Unmarshal([]byte(r.EventWho), &who); err != nil {
			return nil, err
		}
	}
	var promotedFactID *uuid.UUID
	if r.PromotedFactID != "" {
		if parsed, err := uuid.Parse(r.PromotedFactID); err == nil {
			promotedFactID = &parsed
		}
	}
	return &model.MemoryItem{
		ID:             id,
		Content:        r.Content,
		Layer:          layer.Layer(r.Layer),
		Category:       r.Category,
		IsActive:       r.IsActive,
		Confidence:     r.Confidence,
		Source:         r.Source,
		AgentID:        r.AgentID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ExpiresAt:      r.ExpiresAt,
		Priority:       r.Priority,
		CreatedBy:      r.CreatedBy,
		SessionID:      r.SessionID,
		RelatedFiles:   files,
		EventWhen:      r.EventWhen,
		EventWhere:     r.EventWhere,
		EventWho:       who,
		PromotedToFact: r.PromotedToFact,
		PromotedAt:     r.PromotedAt,
		PromotedFactID: promotedFactID,
	}, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, item *model.MemoryItem, vector []float32) error {
	r, err := toRow(collection, item, vector)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(r).Error
}

func applyFilterQuery(db *gorm.DB, collection string, f vectorindex.Filter) *gorm.DB {
	q := db.Where("collection = ?", collection)
	if f.OnlyActive {
		q = q.Where("is_active = ?", true)
	}
	if f.ExcludeExpired {
		q = q.Where("expires_at IS NULL OR expires_at >= ?", time.Now().UTC())
	}
	if f.Layer != nil {
		q = q.Where("layer = ?", string(*f.Layer))
	}
	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if agentID := effectiveAgentFilter(f); agentID != nil {
		q = q.Where("agent_id = ?", *agentID)
	}
	return q
}

func effectiveAgentFilter(f vectorindex.Filter) *string {
	if f.Layer != nil && *f.Layer == layer.EventLog {
		return f.AgentID
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	var rows []row
	q := applyFilterQuery(s.db.WithContext(ctx), collection, filter).
		Order(fmt.Sprintf("vector <=> '%s'", pgvector.NewVector(vector).String())).
		Limit(k)
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: query: %v", apperr.ErrRemoteIndex, err)
	}

	hits := make([]vectorindex.Hit, 0, len(rows))
	for i := range rows {
		item, err := fromRow(&rows[i])
		if err != nil {
			continue
		}
		distance := cosineDistance(vector, []float32(rows[i].Vector.Slice()))
		score := model.ClampScore(1 - distance)
		hits = append(hits, vectorindex.Hit{Item: *item, Score: score})
	}
	return hits, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(sqrt(na)*sqrt(nb))
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 40; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

func (s *Store) Scroll(ctx context.Context, collection string, filter vectorindex.Filter, limit int, offset *int) ([]model.MemoryItem, *int, error) {
	off := 0
	if offset != nil {
		off = *offset
	}

	var rows []row
	q := applyFilterQuery(s.db.WithContext(ctx), collection, filter).Order("created_at desc").Offset(off)
	if limit > 0 {
		q = q.Limit(limit + 1)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: scroll: %v", apperr.ErrRemoteIndex, err)
	}

	var next *int
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		n := off + limit
		next = &n
	}

	items := make([]model.MemoryItem, 0, len(rows))
	for i := range rows {
		item, err := fromRow(&rows[i])
		if err != nil {
			continue
		}
		items = append(items, *item)
	}
	return items, next, nil
}

func (s *Store) RetrieveByID(ctx context.Context, collection string, id uuid.UUID) (*model.MemoryItem, error) {
	var r row
	err := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id.String()).First(&r).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: retrieve: %v", apperr.ErrRemoteIndex, err)
	}
	return fromRow(&r)
}

func (s *Store) SetPayload(ctx context.Context, collection string, id uuid.UUID, patch map[string]any) error {
	patch["updated_at"] = time.Now().UTC()
	return s.db.WithContext(ctx).Model(&row{}).Where("collection = ? AND id = ?", collection, id.String()).Updates(patch).Error
}

func (s *Store) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id.String()).Delete(&row{}).Error
}

func (s *Store) Stats(ctx context.Context, collection string) (vectorindex.Stats, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&row{}).Where("collection = ? AND is_active = ?", collection, true).Count(&total).Error; err != nil {
		return vectorindex.Stats{}, err
	}
	byLayer := make(map[layer.Layer]int64)
	for _, l := range layer.All() {
		var count int64
		if err := s.db.WithContext(ctx).Model(&row{}).Where("collection = ? AND is_active = ? AND layer = ?", collection, true, string(l)).Count(&count).Error; err != nil {
			return vectorindex.Stats{}, err
		}
		byLayer[l] = count
	}
	return vectorindex.Stats{Total: total, ByLayer: byLayer}, nil
}

var _ vectorindex.Index = (*Store)(nil)
