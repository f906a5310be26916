// Package embedded implements the file-backed, single-process vector
// index mode: a GORM model over github.com/glebarez/sqlite (pure Go, no
// cgo), with an in-process cosine-similarity scan standing in for a
// vector extension. Grounded on the teacher's internal/database.Manager,
// which switches between sqlite and postgres for exactly this reason —
// sqlite is the "local/test, no network dependency" backend there too.
package embedded

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
)

// row is the GORM-mapped persisted representation of a MemoryItem plus
// its embedding vector, one table per collection (project).
type row struct {
	ID         string `gorm:"primaryKey"`
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
	RelatedFiles string // JSON-encoded []string

	EventWhen  *time.Time
	EventWhere string
	EventWho   string // JSON-encoded []string

	PromotedToFact bool
	PromotedAt     *time.Time
	PromotedFactID string

	Vector string // JSON-encoded []float32
}

func (row) TableName() string { return "memory_items" }

// Store is an embedded, file-backed Index. Writes are serialized with a
// mutex per the spec's single-process embedded-mode requirement; the
// per-collection handle map has its own mutex so a write holding mu can
// still open its collection.
type Store struct {
	mu    sync.Mutex
	dbsMu sync.Mutex
	dbs   map[string]*gorm.DB
	dir   string
}

// New opens (creating if needed) an embedded store rooted at dir. One
// sqlite file per collection is created lazily in EnsureCollection.
func New(dir string) *Store {
	return &Store{dbs: make(map[string]*gorm.DB), dir: dir}
}

func (s *Store) dbFor(collection string) (*gorm.DB, error) {
	s.dbsMu.Lock()
	defer s.dbsMu.Unlock()

	if db, ok := s.dbs[collection]; ok {
		return db, nil
	}

	path := collection
	if s.dir != "" {
		path = s.dir + "/" + collection + ".db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, err
	}
	s.dbs[collection] = db
	return db, nil
}

func (s *Store) EnsureCollection(ctx context.Context, collection string, dim int, cosine bool) error {
	_, err := s.dbFor(collection)
	return err
}

func toRow(item *model.MemoryItem, vector []float32) (*row, error) {
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, err
	}
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
		Vector:         string(vecJSON),
	}, nil
}

func fromRow(r *row) (*model.MemoryItem, []float32, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, nil, err
	}
	var files []string
	if r.RelatedFiles != "" {
		if err := json.Unmarshal([]byte(r.RelatedFiles), &files); err != nil {
			return nil, nil, err
		}
	}
	var who []string
	if r.EventWho != "" {
		if err := json.Unmarshal([]byte(r.EventWho), &who); err != nil {
			return nil, nil, err
		}
	}
	var vec []float32
	if r.Vector != "" {
		if err := json.Unmarshal([]byte(r.Vector), &vec); err != nil {
			return nil, nil, err
		}
	}
	var promotedFactID *uuid.UUID
	if r.PromotedFactID != "" {
		parsed, err := uuid.Parse(r.PromotedFactID)
		if err == nil {
			promotedFactID = &parsed
		}
	}

	item := &model.MemoryItem{
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
	}
	return item, vec, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, item *model.MemoryItem, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.dbFor(collection)
	if err != nil {
		return err
	}
	r, err := toRow(item, vector)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Save(r).Error
}

func applyFilterQuery(db *gorm.DB, f vectorindex.Filter) *gorm.DB {
	q := db
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

// effectiveAgentFilter enforces mandatory rule 3: agent_id only applies
// when the layer filter is exactly event_log.
func effectiveAgentFilter(f vectorindex.Filter) *string {
	if f.Layer != nil && *f.Layer == layer.EventLog {
		return f.AgentID
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	db, err := s.dbFor(collection)
	if err != nil {
		return nil, err
	}

	var rows []row
	q := applyFilterQuery(db.WithContext(ctx), filter)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]vectorindex.Hit, 0, len(rows))
	for i := range rows {
		item, vec, err := fromRow(&rows[i])
		if err != nil {
			continue
		}
		score := embedding.CosineSimilarity(vector, vec)
		hits = append(hits, vectorindex.Hit{Item: *item, Score: model.ClampScore(score)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Store) Scroll(ctx context.Context, collection string, filter vectorindex.Filter, limit int, offset *int) ([]model.MemoryItem, *int, error) {
	db, err := s.dbFor(collection)
	if err != nil {
		return nil, nil, err
	}

	off := 0
	if offset != nil {
		off = *offset
	}

	var rows []row
	q := applyFilterQuery(db.WithContext(ctx), filter).Order("created_at desc").Offset(off)
	if limit > 0 {
		q = q.Limit(limit + 1)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *int
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		n := off + limit
		next = &n
	}

	items := make([]model.MemoryItem, 0, len(rows))
	for i := range rows {
		item, _, err := fromRow(&rows[i])
		if err != nil {
			continue
		}
		items = append(items, *item)
	}
	return items, next, nil
}

func (s *Store) RetrieveByID(ctx context.Context, collection string, id uuid.UUID) (*model.MemoryItem, error) {
	db, err := s.dbFor(collection)
	if err != nil {
		return nil, err
	}
	var r row
	err = db.WithContext(ctx).Where("id = ?", id.String()).First(&r).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	item, _, err := fromRow(&r)
	return item, err
}

func (s *Store) SetPayload(ctx context.Context, collection string, id uuid.UUID, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.dbFor(collection)
	if err != nil {
		return err
	}
	patch["updated_at"] = time.Now().UTC()
	return db.WithContext(ctx).Model(&row{}).Where("id = ?", id.String()).Updates(patch).Error
}

func (s *Store) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.dbFor(collection)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", id.String()).Delete(&row{}).Error
}

func (s *Store) Stats(ctx context.Context, collection string) (vectorindex.Stats, error) {
	db, err := s.dbFor(collection)
	if err != nil {
		return vectorindex.Stats{}, err
	}

	var total int64
	if err := db.WithContext(ctx).Model(&row{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return vectorindex.Stats{}, err
	}

	byLayer := make(map[layer.Layer]int64)
	for _, l := range layer.All() {
		var count int64
		if err := db.WithContext(ctx).Model(&row{}).Where("is_active = ? AND layer = ?", true, string(l)).Count(&count).Error; err != nil {
			return vectorindex.Stats{}, err
		}
		byLayer[l] = count
	}

	return vectorindex.Stats{Total: total, ByLayer: byLayer}, nil
}

var _ vectorindex.Index = (*Store)(nil)
