package fsstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/memoryanchor/internal/cloudsync/fsstore"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload("proj/memories.jsonl", []byte("hello")))
	data, err := s.Download("proj/memories.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.True(t, s.Exists("proj/memories.jsonl"))
}

func TestDownloadMissingReturnsNilNil(t *testing.T) {
	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	data, err := s.Download("missing.json")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, s.Exists("missing.json"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload("proj/manifest.json", []byte("{}")))
	require.NoError(t, s.Delete("proj/manifest.json"))
	require.NoError(t, s.Delete("proj/manifest.json"))
	assert.False(t, s.Exists("proj/manifest.json"))
}

func TestNewCreatesRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "store")
	s, err := fsstore.New(root)
	require.NoError(t, err)
	require.NoError(t, s.Upload("k", []byte("v")))
}
