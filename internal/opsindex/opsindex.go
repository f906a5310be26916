// Package opsindex implements §4.P: operational_knowledge (L4) items are
// mirrored to individual markdown files on disk, in addition to the
// vector index, and searched by keyword/trigger match rather than
// embedding similarity. Grounded on original_source's
// scripts/harvest_memories.py (YAML-frontmatter-over-markdown encoding
// of a memory item) and tests/test_l4_mcp.py's search_operations
// behavior (quick_match/triggers keyword matching, include_content
// returning the full file body, case-insensitive, "no match" fallback).
package opsindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kagent-dev/memoryanchor/internal/model"
)

// frontMatter is the YAML header written at the top of every exported
// operational_knowledge file, delimited by "---" lines.
type frontMatter struct {
	ID         string   `yaml:"id"`
	Summary    string   `yaml:"summary"`
	Category   string   `yaml:"category,omitempty"`
	QuickMatch []string `yaml:"quick_match,omitempty"`
	Triggers   []string `yaml:"triggers,omitempty"`
}

// Index is a directory of exported operational_knowledge markdown
// files, one per item, named "<id>.md".
type Index struct {
	Dir string
}

// New returns an Index rooted at dir. The directory is created lazily,
// on first Export, rather than here.
func New(dir string) *Index {
	return &Index{Dir: dir}
}

func (idx *Index) path(id string) string {
	return filepath.Join(idx.Dir, id+".md")
}

// Export writes item as a markdown file with a YAML frontmatter header,
// overwriting any prior export at the same id. quick_match is derived
// from the item's content and triggers from its related files, since
// the store has no dedicated fields for them.
func (idx *Index) Export(item *model.MemoryItem) error {
	if err := os.MkdirAll(idx.Dir, 0o755); err != nil {
		return fmt.Errorf("create operations dir: %w", err)
	}

	fm := frontMatter{
		ID:         item.ID.String(),
		Summary:    summarize(item.Content, 120),
		Category:   item.Category,
		QuickMatch: keywords(item.Content),
		Triggers:   item.RelatedFiles,
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal frontmatter: %w", err)
	}

	var body strings.Builder
	body.WriteString("---\n")
	body.Write(header)
	body.WriteString("---\n\n")
	body.WriteString(item.Content)
	body.WriteString("\n")

	return os.WriteFile(idx.path(item.ID.String()), []byte(body.String()), 0o644)
}

// Remove deletes the exported file for id, if any. A missing file is
// not an error: not every operational_knowledge item is guaranteed to
// have been exported (e.g. the directory predates this index).
func (idx *Index) Remove(id uuid.UUID) error {
	err := os.Remove(idx.path(id.String()))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove operations file: %w", err)
	}
	return nil
}

// Match is one search_operations hit.
type Match struct {
	ID       string   `json:"id"`
	File     string   `json:"file"`
	Summary  string   `json:"summary"`
	Triggers []string `json:"triggers,omitempty"`
	Content  string   `json:"content,omitempty"`
}

// SearchResult is the search_operations response shape.
type SearchResult struct {
	Found   bool    `json:"found"`
	Matches []Match `json:"matches"`
}

// Search scans every exported file for a case-insensitive match against
// its quick_match keywords, triggers, or summary (in that priority
// order), falling back to a filename match. includeContent fills in
// each match's full markdown body, mirroring "include_content=True"
// returning the file contents fenced as a markdown block upstream.
func (idx *Index) Search(query string, includeContent bool) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, fmt.Errorf("query must not be empty")
	}
	needle := strings.ToLower(query)

	entries, err := os.ReadDir(idx.Dir)
	if os.IsNotExist(err) {
		return SearchResult{Found: false}, nil
	}
	if err != nil {
		return SearchResult{}, fmt.Errorf("read operations dir: %w", err)
	}

	var matches []Match
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(idx.Dir, e.Name()))
		if err != nil {
			continue
		}
		fm, body := splitFrontMatter(raw)
		if !matchesEntry(fm, e.Name(), needle) {
			continue
		}
		m := Match{ID: fm.ID, File: e.Name(), Summary: fm.Summary, Triggers: fm.Triggers}
		if includeContent {
			m.Content = "```markdown\n" + body + "\n```"
		}
		matches = append(matches, m)
	}

	return SearchResult{Found: len(matches) > 0, Matches: matches}, nil
}

func matchesEntry(fm frontMatter, filename, needle string) bool {
	for _, kw := range fm.QuickMatch {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	for _, t := range fm.Triggers {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(fm.Summary), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(filename), needle)
}

func splitFrontMatter(raw []byte) (frontMatter, string) {
	var fm frontMatter
	s := string(raw)
	if !strings.HasPrefix(s, "---\n") {
		return fm, s
	}
	rest := s[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end == -1 {
		return fm, s
	}
	_ = yaml.Unmarshal([]byte(rest[:end]), &fm)
	return fm, strings.TrimSpace(rest[end+len("\n---\n"):])
}

func summarize(content string, max int) string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}

// keywords derives a small quick_match set from the first few
// significant words of content, a cheap proxy for the original's
// manually-authored SOP frontmatter.
func keywords(content string) []string {
	fields := strings.Fields(strings.ToLower(content))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".,:;!?()[]\"'")
		if len(f) < 4 {
			continue
		}
		out = append(out, f)
		if len(out) == 5 {
			break
		}
	}
	return out
}
