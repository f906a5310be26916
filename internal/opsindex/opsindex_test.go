package opsindex_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/opsindex"
)

func TestExportThenSearch_MatchesOnKeyword(t *testing.T) {
	idx := opsindex.New(t.TempDir())
	item := model.New("restart qdrant with docker compose up -d qdrant", layer.OperationalKnowledge)
	require.NoError(t, idx.Export(item))

	result, err := idx.Search("qdrant", false)
	require.NoError(t, err)
	assert.True(t, result.Found)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, item.ID.String(), result.Matches[0].ID)
	assert.Empty(t, result.Matches[0].Content)
}

func TestSearch_IncludeContentReturnsMarkdownBlock(t *testing.T) {
	idx := opsindex.New(t.TempDir())
	item := model.New("restart qdrant with docker compose up -d qdrant", layer.OperationalKnowledge)
	require.NoError(t, idx.Export(item))

	result, err := idx.Search("qdrant", true)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Contains(t, result.Matches[0].Content, "```markdown")
	assert.Contains(t, result.Matches[0].Content, "docker compose")
}

func TestSearch_CaseInsensitive(t *testing.T) {
	idx := opsindex.New(t.TempDir())
	item := model.New("restart Qdrant service", layer.OperationalKnowledge)
	require.NoError(t, idx.Export(item))

	result, err := idx.Search("QDRANT", false)
	require.NoError(t, err)
	assert.True(t, result.Found)
}

func TestSearch_NoMatchReturnsFoundFalse(t *testing.T) {
	idx := opsindex.New(t.TempDir())
	result, err := idx.Search("nonexistent-xyz", false)
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.Matches)
}

func TestSearch_MissingDirectoryIsNotAnError(t *testing.T) {
	idx := opsindex.New(t.TempDir() + "/does-not-exist")
	result, err := idx.Search("anything", false)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestSearch_EmptyQueryIsRejected(t *testing.T) {
	idx := opsindex.New(t.TempDir())
	_, err := idx.Search("  ", false)
	assert.Error(t, err)
}

func TestRemove_DeletesExportedFile(t *testing.T) {
	idx := opsindex.New(t.TempDir())
	item := model.New("restart qdrant", layer.OperationalKnowledge)
	require.NoError(t, idx.Export(item))

	require.NoError(t, idx.Remove(item.ID))

	result, err := idx.Search("qdrant", false)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestRemove_MissingFileIsNotAnError(t *testing.T) {
	idx := opsindex.New(t.TempDir())
	assert.NoError(t, idx.Remove(uuid.New()))
}
