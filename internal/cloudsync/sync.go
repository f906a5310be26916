// Package cloudsync implements Cloud Sync (§4.L): AES-256-GCM encrypted
// export/import against a pluggable object-storage backend, ported from
// original_source/backend/services/cloud_sync.py's exporter/importer/
// service split.
package cloudsync

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
)

// Strategy is the closed set of import conflict resolutions.
type Strategy string

const (
	StrategyLWW   Strategy = "lww"
	StrategySkip  Strategy = "skip"
	StrategyMerge Strategy = "merge"
)

// Storage is the pluggable object-storage backend a Service pushes to
// and pulls from. fsstore provides the one filesystem-backed
// implementation shipped here.
type Storage interface {
	Upload(key string, data []byte) error
	Download(key string) ([]byte, error)
	Delete(key string) error
}

// Manifest is the unencrypted sync manifest, per §3.
type Manifest struct {
	Version              string `json:"version"`
	ProjectID             string `json:"project_id"`
	LastSync              string `json:"last_sync"`
	MemoriesCount         int    `json:"memories_count"`
	MemoriesChecksum      string `json:"memories_checksum"`
	ConstitutionChecksum  string `json:"constitution_checksum"`
	Encrypted             bool   `json:"encrypted"`
}

// Record is one exported memory item, the JSONL row shape.
type Record struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Layer      string         `json:"layer"`
	Category   string         `json:"category,omitempty"`
	Confidence float64        `json:"confidence"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ConstitutionDoc is the exported L0 document.
type ConstitutionDoc struct {
	Version   string               `json:"version"`
	ProjectID string               `json:"project_id"`
	Entries   []ConstitutionEntry  `json:"entries"`
}

// ConstitutionEntry is one L0 item in the exported document.
type ConstitutionEntry struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// PullSummary reports what Pull did.
type PullSummary struct {
	Imported  int
	Skipped   int
	Conflicts int
}

// Service orchestrates push/pull against a vector index collection.
type Service struct {
	storage        Storage
	encryptor      *Encryptor
	index          vectorindex.Index
	collection     string
	projectID      string
	embed          func(ctx context.Context, text string) ([]float32, error)
	getConstitution func(ctx context.Context) ([]model.SearchResult, error)
}

// Config bundles a Service's collaborators.
type Config struct {
	Storage         Storage
	Encryptor       *Encryptor // nil disables encryption
	Index           vectorindex.Index
	Collection      string
	ProjectID       string
	// Embed re-embeds a record's content on import, since the exported
	// JSONL payload carries text but not vectors.
	Embed           func(ctx context.Context, text string) ([]float32, error)
	GetConstitution func(ctx context.Context) ([]model.SearchResult, error)
}

// New builds a Service.
func New(cfg Config) *Service {
	return &Service{
		storage:         cfg.Storage,
		encryptor:       cfg.Encryptor,
		index:           cfg.Index,
		collection:      cfg.Collection,
		projectID:       cfg.ProjectID,
		embed:           cfg.Embed,
		getConstitution: cfg.GetConstitution,
	}
}

func (s *Service) remotePath(filename string) string {
	return s.projectID + "/" + filename
}

// Push exports memories and the constitution, optionally encrypts them,
// uploads all three objects, and returns the manifest it wrote.
func (s *Service) Push(ctx context.Context, encrypt bool) (*Manifest, error) {
	memoriesData, count, memoriesChecksum, err := s.exportMemories(ctx)
	if err != nil {
		return nil, fmt.Errorf("export memories: %w", err)
	}

	constitutionData, constitutionChecksum, err := s.exportConstitution(ctx)
	if err != nil {
		return nil, fmt.Errorf("export constitution: %w", err)
	}

	encrypted := false
	if encrypt && s.encryptor != nil {
		memoriesData, err = s.encryptor.Encrypt(memoriesData, nil)
		if err != nil {
			return nil, err
		}
		constitutionData, err = s.encryptor.Encrypt(constitutionData, nil)
		if err != nil {
			return nil, err
		}
		encrypted = true
	}

	memoriesFilename := "memories.jsonl"
	constitutionFilename := "constitution.json"
	if encrypted {
		memoriesFilename += ".enc"
		constitutionFilename += ".enc"
	}

	if err := s.storage.Upload(s.remotePath(memoriesFilename), memoriesData); err != nil {
		return nil, fmt.Errorf("upload memories: %w", err)
	}
	if err := s.storage.Upload(s.remotePath(constitutionFilename), constitutionData); err != nil {
		return nil, fmt.Errorf("upload constitution: %w", err)
	}

	manifest := &Manifest{
		Version:              "1.0.0",
		ProjectID:            s.projectID,
		LastSync:             time.Now().UTC().Format(time.RFC3339),
		MemoriesCount:        count,
		MemoriesChecksum:     memoriesChecksum,
		ConstitutionChecksum: constitutionChecksum,
		Encrypted:            encrypted,
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := s.storage.Upload(s.remotePath("manifest.json"), manifestData); err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}

	return manifest, nil
}

func (s *Service) exportMemories(ctx context.Context) ([]byte, int, string, error) {
	var buf bytes.Buffer
	hasher := sha256.New()
	count := 0

	var offset *int
	for {
		items, next, err := s.index.Scroll(ctx, s.collection, vectorindex.Filter{}, 100, offset)
		if err != nil {
			return nil, 0, "", err
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			rec := toRecord(&item)
			line, err := json.Marshal(rec)
			if err != nil {
				return nil, 0, "", err
			}
			line = append(line, '\n')
			buf.Write(line)
			hasher.Write(line)
			count++
		}
		if next == nil {
			break
		}
		offset = next
	}

	return buf.Bytes(), count, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *Service) exportConstitution(ctx context.Context) ([]byte, string, error) {
	var entries []ConstitutionEntry
	if s.getConstitution != nil {
		results, err := s.getConstitution(ctx)
		if err != nil {
			return nil, "", err
		}
		for _, r := range results {
			entries = append(entries, ConstitutionEntry{
				ID:        r.ID.String(),
				Content:   r.Content,
				Category:  r.Category,
				CreatedAt: r.CreatedAt.Format(time.RFC3339),
			})
		}
	}

	doc := ConstitutionDoc{Version: "1.0.0", ProjectID: s.projectID, Entries: entries}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", err
	}
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

func toRecord(item *model.MemoryItem) Record {
	metadata := map[string]any{
		"is_active":  item.IsActive,
		"source":     item.Source,
		"agent_id":   item.AgentID,
		"created_by": item.CreatedBy,
		"priority":   item.Priority,
	}
	if item.ExpiresAt != nil {
		metadata["expires_at"] = item.ExpiresAt.Format(time.RFC3339)
	}
	if item.EventWhen != nil {
		metadata["event_when"] = item.EventWhen.Format(time.RFC3339)
	}
	if item.EventWhere != "" {
		metadata["event_where"] = item.EventWhere
	}
	if len(item.EventWho) > 0 {
		metadata["event_who"] = item.EventWho
	}

	return Record{
		ID:         item.ID.String(),
		Content:    item.Content,
		Layer:      string(item.Layer),
		Category:   item.Category,
		Confidence: item.Confidence,
		CreatedAt:  item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.Format(time.RFC3339),
		Metadata:   metadata,
	}
}

// Pull fetches the manifest, downloads and decrypts the memories
// payload, verifies its checksum, and imports records one by one under
// the given conflict strategy.
func (s *Service) Pull(ctx context.Context, strategy Strategy) (PullSummary, error) {
	manifestData, err := s.storage.Download(s.remotePath("manifest.json"))
	if err != nil {
		return PullSummary{}, err
	}
	if manifestData == nil {
		return PullSummary{}, fmt.Errorf("manifest not found on remote")
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return PullSummary{}, err
	}

	filename := "memories.jsonl"
	if manifest.Encrypted {
		filename += ".enc"
	}
	memoriesData, err := s.storage.Download(s.remotePath(filename))
	if err != nil {
		return PullSummary{}, err
	}
	if memoriesData == nil {
		return PullSummary{}, fmt.Errorf("memories file not found on remote")
	}

	if manifest.Encrypted {
		if s.encryptor == nil {
			return PullSummary{}, fmt.Errorf("data is encrypted but no encryption key available")
		}
		memoriesData, err = s.encryptor.Decrypt(memoriesData, nil)
		if err != nil {
			return PullSummary{}, err
		}
	}

	checksum := sha256.Sum256(memoriesData)
	if hex.EncodeToString(checksum[:]) != manifest.MemoriesChecksum {
		return PullSummary{}, fmt.Errorf("checksum mismatch: manifest declares %s", manifest.MemoriesChecksum)
	}

	return s.importMemories(ctx, memoriesData, strategy)
}

// Status downloads and parses the remote manifest, returning nil if no
// manifest has been pushed yet.
func (s *Service) Status(ctx context.Context) (*Manifest, error) {
	data, err := s.storage.Download(s.remotePath("manifest.json"))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (s *Service) importMemories(ctx context.Context, data []byte, strategy Strategy) (PullSummary, error) {
	var summary PullSummary

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return summary, err
		}

		l, ok := layer.Normalize(rec.Layer)
		if !ok {
			l = layer.VerifiedFact
		}

		id, err := uuid.Parse(rec.ID)
		regenerated := err != nil
		if regenerated {
			id = uuid.New()
		}

		existing, err := s.index.RetrieveByID(ctx, s.collection, id)
		if err != nil {
			return summary, err
		}

		if existing != nil {
			switch strategy {
			case StrategySkip:
				summary.Skipped++
				continue
			case StrategyLWW:
				updatedAt, _ := time.Parse(time.RFC3339, rec.UpdatedAt)
				if rec.UpdatedAt != "" && !updatedAt.IsZero() && !updatedAt.After(existing.UpdatedAt) {
					summary.Skipped++
					continue
				}
				summary.Conflicts++
			case StrategyMerge:
				summary.Conflicts++
				continue
			}
		}

		item := fromRecord(rec, id, l)
		if regenerated {
			// MemoryItem carries no generic metadata bag to stash the
			// original id in; when the row has no created_by, CreatedBy
			// records the original id instead. A row that already carries
			// created_by keeps it, and its original id is not recorded.
			if item.CreatedBy == "" {
				item.CreatedBy = "cloudsync_import:" + rec.ID
			}
		}

		if err := s.upsertImported(ctx, item); err != nil {
			return summary, err
		}
		summary.Imported++
	}
	if err := scanner.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// upsertImported re-embeds the item's content, since the exported JSONL
// payload carries text but no vector, then upserts at the item's id.
func (s *Service) upsertImported(ctx context.Context, item *model.MemoryItem) error {
	var vector []float32
	if s.embed != nil {
		v, err := s.embed(ctx, item.Content)
		if err != nil {
			return fmt.Errorf("embed imported content: %w", err)
		}
		vector = v
	}
	return s.index.Upsert(ctx, s.collection, item, vector)
}

func fromRecord(rec Record, id uuid.UUID, l layer.Layer) *model.MemoryItem {
	now := time.Now().UTC()
	createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		createdAt = now
	}
	updatedAt, err := time.Parse(time.RFC3339, rec.UpdatedAt)
	if err != nil {
		updatedAt = now
	}

	item := &model.MemoryItem{
		ID:         id,
		Content:    rec.Content,
		Layer:      l,
		Category:   rec.Category,
		IsActive:   true,
		Confidence: rec.Confidence,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		Priority:   model.DefaultPriority,
	}

	if rec.Metadata != nil {
		if active, ok := rec.Metadata["is_active"].(bool); ok {
			item.IsActive = active
		}
		if source, ok := rec.Metadata["source"].(string); ok {
			item.Source = source
		}
		if agentID, ok := rec.Metadata["agent_id"].(string); ok {
			item.AgentID = agentID
		}
		if createdBy, ok := rec.Metadata["created_by"].(string); ok {
			item.CreatedBy = createdBy
		}
	}

	return item
}
