//go:build integration

package indexer

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/kbminer/internal/embedding"
	"github.com/bull/kbminer/internal/ingest"
	"github.com/bull/kbminer/internal/storage"
)

func TestPipeline_IndexBatch_Integration(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	ctx := context.Background()
	store, err := storage.NewQdrantStorage(storage.QdrantConfig{Host: "localhost", Port: 6334})
	require.NoError(t, err)
	defer store.Close()

	client, err := embedding.NewClient(embedding.ClientConfig{APIKey: os.Getenv("OPENAI_API_KEY")})
	require.NoError(t, err)
	pipeline := NewPipeline(embedding.NewEmbedder(client, 0), store, slog.Default())

	jobID := "5c2a2b8e-1111-4c3b-9d7e-000000000001"
	collection := storage.CollectionName(jobID)
	t.Cleanup(func() { _ = store.DeleteCollection(ctx, collection) })

	b := &ingest.BatchResult{JobID: jobID, Files: []ingest.FileResult{{
		Name:   "handbook.pdf",
		Status: ingest.StatusCompleted,
		Chunks: []ingest.Chunk{{Content: "Employees accrue 20 days of leave."}, {Content: "Expenses are reimbursed monthly."}},
	}}}

	// Indexing twice must not duplicate points.
	for range 2 {
		result, err := pipeline.IndexBatch(ctx, b)
		require.NoError(t, err)
		assert.True(t, result.OK())
	}

	count, err := store.CountChunks(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
