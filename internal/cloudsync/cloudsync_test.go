package cloudsync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/memoryanchor/internal/cloudsync"
	"github.com/kagent-dev/memoryanchor/internal/cloudsync/fsstore"
	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/kagent-dev/memoryanchor/internal/layer"
	"github.com/kagent-dev/memoryanchor/internal/model"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex/embedded"
)

func newService(t *testing.T, encrypted bool) (*cloudsync.Service, *embedding.Provider) {
	t.Helper()
	ctx := context.Background()

	index := embedded.New("")
	require.NoError(t, index.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))
	embedder := embedding.New(embedding.DefaultDimension)

	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	var enc *cloudsync.Encryptor
	if encrypted {
		key, err := cloudsync.GenerateKey()
		require.NoError(t, err)
		enc, err = cloudsync.NewEncryptor(key)
		require.NoError(t, err)
	}

	svc := cloudsync.New(cloudsync.Config{
		Storage:    store,
		Encryptor:  enc,
		Index:      index,
		Collection: ":memory:",
		ProjectID:  "proj1",
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
		GetConstitution: func(ctx context.Context) ([]model.SearchResult, error) {
			return []model.SearchResult{{Content: "stay concise", Category: "style", Score: 1.0}}, nil
		},
	})

	return svc, embedder
}

func seedMemory(t *testing.T, index interface {
	Upsert(ctx context.Context, collection string, item *model.MemoryItem, vector []float32) error
}, embedder *embedding.Provider, content string) {
	t.Helper()
	ctx := context.Background()
	item := model.New(content, layer.VerifiedFact)
	vec, err := embedder.Embed(ctx, content)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(ctx, ":memory:", item, vec))
}

func TestPush_UploadsManifestAndPayloads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, false)

	manifest, err := svc.Push(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, manifest.MemoriesCount)
	assert.False(t, manifest.Encrypted)
	assert.NotEmpty(t, manifest.MemoriesChecksum)
}

func TestPushPull_RoundTripUnencrypted(t *testing.T) {
	ctx := context.Background()

	index := embedded.New("")
	require.NoError(t, index.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))
	embedder := embedding.New(embedding.DefaultDimension)
	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	svc := cloudsync.New(cloudsync.Config{
		Storage:    store,
		Index:      index,
		Collection: ":memory:",
		ProjectID:  "proj1",
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
	})

	seedMemory(t, index, embedder, "patient enjoys painting")
	seedMemory(t, index, embedder, "patient takes medication at 8am")

	manifest, err := svc.Push(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.MemoriesCount)

	// Pull into a fresh empty index to exercise the import path end to end.
	destIndex := embedded.New("")
	require.NoError(t, destIndex.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))
	destSvc := cloudsync.New(cloudsync.Config{
		Storage:    store,
		Index:      destIndex,
		Collection: ":memory:",
		ProjectID:  "proj1",
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
	})

	summary, err := destSvc.Pull(ctx, cloudsync.StrategyLWW)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 0, summary.Skipped)

	stats, err := destIndex.Stats(ctx, ":memory:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
}

func TestPushPull_RoundTripEncrypted(t *testing.T) {
	ctx := context.Background()

	index := embedded.New("")
	require.NoError(t, index.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))
	embedder := embedding.New(embedding.DefaultDimension)
	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	key, err := cloudsync.GenerateKey()
	require.NoError(t, err)
	enc, err := cloudsync.NewEncryptor(key)
	require.NoError(t, err)

	svc := cloudsync.New(cloudsync.Config{
		Storage:    store,
		Encryptor:  enc,
		Index:      index,
		Collection: ":memory:",
		ProjectID:  "proj1",
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
	})

	seedMemory(t, index, embedder, "patient prefers tea")

	manifest, err := svc.Push(ctx, true)
	require.NoError(t, err)
	assert.True(t, manifest.Encrypted)

	raw, err := store.Download("proj1/memories.jsonl.enc")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	destIndex := embedded.New("")
	require.NoError(t, destIndex.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))
	destSvc := cloudsync.New(cloudsync.Config{
		Storage:    store,
		Encryptor:  enc,
		Index:      destIndex,
		Collection: ":memory:",
		ProjectID:  "proj1",
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
	})

	summary, err := destSvc.Pull(ctx, cloudsync.StrategyLWW)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
}

func TestPull_ChecksumMismatchFails(t *testing.T) {
	ctx := context.Background()

	index := embedded.New("")
	require.NoError(t, index.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))
	embedder := embedding.New(embedding.DefaultDimension)
	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	svc := cloudsync.New(cloudsync.Config{
		Storage:    store,
		Index:      index,
		Collection: ":memory:",
		ProjectID:  "proj1",
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
	})

	seedMemory(t, index, embedder, "patient enjoys painting")
	_, err = svc.Push(ctx, false)
	require.NoError(t, err)

	require.NoError(t, store.Upload("proj1/memories.jsonl", []byte(`{"id":"bad"}`+"\n")))

	_, err = svc.Pull(ctx, cloudsync.StrategyLWW)
	assert.Error(t, err)
}

func TestPull_SkipStrategyLeavesExistingUntouched(t *testing.T) {
	ctx := context.Background()

	index := embedded.New("")
	require.NoError(t, index.EnsureCollection(ctx, ":memory:", embedding.DefaultDimension, true))
	embedder := embedding.New(embedding.DefaultDimension)
	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	svc := cloudsync.New(cloudsync.Config{
		Storage:    store,
		Index:      index,
		Collection: ":memory:",
		ProjectID:  "proj1",
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		},
	})

	item := model.New("patient enjoys painting", layer.VerifiedFact)
	vec, err := embedder.Embed(ctx, item.Content)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(ctx, ":memory:", item, vec))

	_, err = svc.Push(ctx, false)
	require.NoError(t, err)

	summary, err := svc.Pull(ctx, cloudsync.StrategySkip)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
}

func TestStatus_ReturnsNilWhenNoManifestPushed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, false)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestStatus_ReturnsManifestAfterPush(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, false)

	pushed, err := svc.Push(ctx, false)
	require.NoError(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, pushed.ProjectID, status.ProjectID)
}
