//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStorage connects to a local Qdrant and creates a throwaway job collection.
// Skips test if Qdrant is not running.
func setupTestStorage(t *testing.T) (*QdrantStorage, string) {
	storage, err := NewQdrantStorage(QdrantConfig{Host: "localhost", Port: 6334})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	collection := CollectionName(uuid.NewString())
	require.NoError(t, storage.EnsureCollection(context.Background(), collection))

	t.Cleanup(func() {
		storage.DeleteCollection(context.Background(), collection)
		storage.Close()
	})
	return storage, collection
}

func vector(hot int) []float32 {
	v := make([]float32, VectorDimension)
	v[hot] = 1
	return v
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	storage, collection := setupTestStorage(t)
	assert.NoError(t, storage.EnsureCollection(context.Background(), collection))
}

func TestUpsertAndSearchChunks(t *testing.T) {
	storage, collection := setupTestStorage(t)
	ctx := context.Background()

	chunks := []*Chunk{
		{ID: uuid.NewString(), JobID: "job", Source: "a.pdf", ChunkIndex: 0, Content: "first", Embedding: vector(0)},
		{ID: uuid.NewString(), JobID: "job", Source: "b.pdf", ChunkIndex: 1, Content: "second", Embedding: vector(1)},
	}
	require.NoError(t, storage.UpsertChunks(ctx, collection, chunks))

	count, err := storage.CountChunks(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	results, err := storage.SearchChunks(ctx, collection, vector(1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results[0].Content)
	assert.Equal(t, "b.pdf", results[0].Source)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestDeleteSources(t *testing.T) {
	storage, collection := setupTestStorage(t)
	ctx := context.Background()

	chunks := []*Chunk{
		{ID: uuid.NewString(), JobID: "job", Source: "a.pdf", Content: "a", Embedding: vector(0)},
		{ID: uuid.NewString(), JobID: "job", Source: "b.pdf", Content: "b", Embedding: vector(1)},
	}
	require.NoError(t, storage.UpsertChunks(ctx, collection, chunks))
	require.NoError(t, storage.DeleteSources(ctx, collection, []string{"a.pdf"}))

	count, err := storage.CountChunks(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchChunks_MissingCollection(t *testing.T) {
	storage, _ := setupTestStorage(t)

	_, err := storage.SearchChunks(context.Background(), CollectionName(uuid.NewString()), vector(0), 3)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestUpsertChunks_DimensionMismatch(t *testing.T) {
	storage, collection := setupTestStorage(t)

	err := storage.UpsertChunks(context.Background(), collection, []*Chunk{{ID: uuid.NewString(), Embedding: []float32{1, 2}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
