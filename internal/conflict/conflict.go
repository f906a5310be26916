// Package conflict implements the Conflict Detector (§4.H), a
// rule-based (no LLM) probe ported from
// original_source/backend/core/conflict_detector.py.
package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kagent-dev/memoryanchor/internal/env"
	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
)

// Type is the closed set of conflict kinds.
type Type string

const (
	TypeTemporal   Type = "temporal"
	TypeSource     Type = "source"
	TypeConfidence Type = "confidence"
	TypeSemantic   Type = "semantic"
)

// Severity ranks how urgently a conflict should be reviewed.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityOrder = map[Severity]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}

// Result is a single detected conflict, or a no-conflict sentinel when
// HasConflict is false.
type Result struct {
	HasConflict         bool
	ConflictType        Type
	Severity            Severity
	ConflictingMemories []uuid.UUID
	ResolutionHint      string
	Details             map[string]any
}

// Config tunes detection thresholds.
type Config struct {
	SimilarityThreshold  float64
	TemporalOverlapDays  int
	ConfidenceDiffThresh float64
	Enabled              bool
}

// ConfigFromEnv builds a Config from MA_CONFLICT_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		SimilarityThreshold:  env.ConflictSimilarityThreshold.Get(),
		TemporalOverlapDays:  env.ConflictTemporalDays.Get(),
		ConfidenceDiffThresh: env.ConflictConfidenceDiff.Get(),
		Enabled:              true,
	}
}

// Candidate describes the new memory item being checked for conflicts.
type Candidate struct {
	Content    string
	Layer      layer.Layer
	Confidence float64
	CreatedBy  string
	ValidAt    *time.Time
}

// Detector runs rule-based conflict checks against a vector index.
type Detector struct {
	index  vectorindex.Index
	config Config
}

// New builds a Detector over the given vector index.
func New(index vectorindex.Index, config Config) *Detector {
	return &Detector{index: index, config: config}
}

// Detect returns the single highest-severity conflict, or a
// HasConflict=false result if none trigger.
func (d *Detector) Detect(ctx context.Context, collection string, queryVector []float32, c Candidate) (Result, error) {
	all, err := d.DetectAll(ctx, collection, queryVector, c)
	if err != nil {
		return Result{}, err
	}
	if len(all) == 0 {
		return Result{HasConflict: false}, nil
	}
	best := all[0]
	for _, r := range all[1:] {
		if severityOrder[r.Severity] < severityOrder[best.Severity] {
			best = r
		}
	}
	return best, nil
}

// DetectAll runs every rule and returns all triggered conflicts.
func (d *Detector) DetectAll(ctx context.Context, collection string, queryVector []float32, c Candidate) ([]Result, error) {
	if !d.config.Enabled {
		return nil, nil
	}

	similar, err := d.findSimilarMemories(ctx, collection, queryVector, c.Layer)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return nil, nil
	}

	validAt := time.Now().UTC()
	if c.ValidAt != nil {
		validAt = *c.ValidAt
	}

	var results []Result
	if r := d.checkTemporalConflict(similar, validAt); r.HasConflict {
		results = append(results, r)
	}
	if r := d.checkSourceConflict(similar, c.CreatedBy); r.HasConflict {
		results = append(results, r)
	}
	if r := d.checkConfidenceConflict(similar, c.Confidence); r.HasConflict {
		results = append(results, r)
	}
	return results, nil
}

func (d *Detector) findSimilarMemories(ctx context.Context, collection string, queryVector []float32, l layer.Layer) ([]vectorindex.Hit, error) {
	filter := vectorindex.Filter{Layer: &l, OnlyActive: true, ExcludeExpired: false}
	hits, err := d.index.Query(ctx, collection, queryVector, 5, filter)
	if err != nil {
		return nil, nil // search failure must not block a write; caller treats as no conflict.
	}

	var similar []vectorindex.Hit
	for _, h := range hits {
		if h.Score >= d.config.SimilarityThreshold {
			similar = append(similar, h)
		}
	}
	return similar, nil
}

func (d *Detector) checkTemporalConflict(similar []vectorindex.Hit, validAt time.Time) Result {
	var conflicting []uuid.UUID
	maxOverlapDays := 0

	for _, hit := range similar {
		when := hit.Item.EventWhen
		if when == nil {
			continue
		}
		diffDays := int(abs(validAt.Sub(*when)).Hours() / 24)
		if diffDays <= d.config.TemporalOverlapDays {
			conflicting = append(conflicting, hit.Item.ID)
			if diffDays > maxOverlapDays {
				maxOverlapDays = diffDays
			}
		}
	}

	if len(conflicting) == 0 {
		return Result{HasConflict: false}
	}
	severity := SeverityLow
	if maxOverlapDays <= 1 {
		severity = SeverityMedium
	}
	return Result{
		HasConflict:         true,
		ConflictType:        TypeTemporal,
		Severity:            severity,
		ConflictingMemories: conflicting,
		ResolutionHint: fmt.Sprintf(
			"found %d similar memor(ies) close in time; this may be a duplicate record rather than a new one",
			len(conflicting)),
		Details: map[string]any{"overlap_days": maxOverlapDays, "threshold_days": d.config.TemporalOverlapDays},
	}
}

func (d *Detector) checkSourceConflict(similar []vectorindex.Hit, createdBy string) Result {
	var conflicting []uuid.UUID
	sources := make(map[string]struct{})

	for _, hit := range similar {
		if hit.Item.CreatedBy != createdBy {
			conflicting = append(conflicting, hit.Item.ID)
			sources[hit.Item.CreatedBy] = struct{}{}
		}
	}

	if len(conflicting) == 0 {
		return Result{HasConflict: false}
	}
	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, s)
	}
	return Result{
		HasConflict:         true,
		ConflictType:        TypeSource,
		Severity:            SeverityMedium,
		ConflictingMemories: conflicting,
		ResolutionHint:      "found similar memories from a different source; verify consistency",
		Details:             map[string]any{"new_source": createdBy, "conflicting_sources": names},
	}
}

func (d *Detector) checkConfidenceConflict(similar []vectorindex.Hit, newConfidence float64) Result {
	var conflicting []uuid.UUID
	maxDiff := 0.0
	existingConfidence := 0.0

	for _, hit := range similar {
		diff := abs64(newConfidence - hit.Item.Confidence)
		if diff >= d.config.ConfidenceDiffThresh {
			conflicting = append(conflicting, hit.Item.ID)
			if diff > maxDiff {
				maxDiff = diff
				existingConfidence = hit.Item.Confidence
			}
		}
	}

	if len(conflicting) == 0 {
		return Result{HasConflict: false}
	}

	// High severity when the new item's confidence is lower than the
	// memory it conflicts with, per §4.H.
	severity := SeverityLow
	if newConfidence < existingConfidence {
		severity = SeverityHigh
	}

	return Result{
		HasConflict:         true,
		ConflictType:        TypeConfidence,
		Severity:            severity,
		ConflictingMemories: conflicting,
		ResolutionHint: fmt.Sprintf(
			"new confidence (%.2f) differs from existing (%.2f) by %.2f",
			newConfidence, existingConfidence, maxDiff),
		Details: map[string]any{
			"new_confidence":      newConfidence,
			"existing_confidence": existingConfidence,
			"difference":          maxDiff,
		},
	}
}

// ScanProject pairwise-compares the most recent limit items in a layer
// and reports all unique conflicting pairs.
func (d *Detector) ScanProject(ctx context.Context, collection string, l *layer.Layer, limit int) ([]Result, error) {
	filter := vectorindex.Filter{OnlyActive: true, ExcludeExpired: true}
	if l != nil {
		filter.Layer = l
	}
	items, _, err := d.index.Scroll(ctx, collection, filter, limit, nil)
	if err != nil {
		return nil, err
	}

	var reports []Result
	checked := make(map[[2]uuid.UUID]struct{})
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			key := pairKey(a.ID, b.ID)
			if _, ok := checked[key]; ok {
				continue
			}
			checked[key] = struct{}{}

			if a.Confidence == 0 && b.Confidence == 0 {
				continue
			}
			diff := abs64(a.Confidence - b.Confidence)
			if diff >= d.config.ConfidenceDiffThresh && a.CreatedBy != b.CreatedBy {
				reports = append(reports, Result{
					HasConflict:         true,
					ConflictType:        TypeSource,
					Severity:            SeverityMedium,
					ConflictingMemories: []uuid.UUID{a.ID, b.ID},
					ResolutionHint:      "divergent sources with differing confidence found in project scan",
				})
			}
		}
	}
	return reports, nil
}

func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() < b.String() {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func abs64(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
