package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bull/kbminer/internal/ingest"
	"github.com/bull/kbminer/internal/storage"
)

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	Collection     string
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// OK reports whether at least one chunk was stored and no document failed.
func (r *IndexResult) OK() bool {
	return r != nil && r.TotalChunks > 0 && len(r.FailedDocs) == 0
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Name   string
	Reason string
}

// Embedder turns chunk texts into vectors, one per text, in order.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the vector store side of indexing.
type ChunkStore interface {
	EnsureCollection(ctx context.Context, name string) error
	DeleteSources(ctx context.Context, collection string, sources []string) error
	UpsertChunks(ctx context.Context, collection string, chunks []*storage.Chunk) error
}

// Pipeline embeds a job's chunks and stores them in the job's collection.
type Pipeline struct {
	embedder Embedder
	store    ChunkStore
	logger   *slog.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
func NewPipeline(embedder Embedder, store ChunkStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// IndexBatch indexes every completed file of batch. A file that fails is
// recorded in FailedDocs and the rest continue; an error is returned only when
// the collection itself cannot be prepared.
func (p *Pipeline) IndexBatch(ctx context.Context, batch *ingest.BatchResult) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{Collection: storage.CollectionName(batch.JobID)}
	logger := p.logger.With("job_id", batch.JobID, "collection", result.Collection)

	var files []ingest.FileResult
	for _, f := range batch.Files {
		if f.Completed() && len(f.Chunks) > 0 {
			files = append(files, f)
		}
	}
	result.TotalDocs = len(files)
	if len(files) == 0 {
		logger.Info("Nothing to index")
		return result, nil
	}

	if err := p.store.EnsureCollection(ctx, result.Collection); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	for _, f := range files {
		n, err := p.indexFile(ctx, result.Collection, batch.JobID, f)
		if err != nil {
			logger.Warn("Failed to index document", "file", f.Name, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Name:   f.Name,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += n
	}

	result.Duration = time.Since(start)
	logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// indexFile replaces whatever was stored for the file before.
func (p *Pipeline) indexFile(ctx context.Context, collection, jobID string, file ingest.FileResult) (int, error) {
	texts := make([]string, len(file.Chunks))
	for i, c := range file.Chunks {
		texts[i] = c.Content
	}

	embeddings, err := p.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("embeddings: got %d vectors for %d chunks", len(embeddings), len(texts))
	}

	if err := p.store.DeleteSources(ctx, collection, []string{file.Name}); err != nil {
		return 0, fmt.Errorf("clear previous chunks: %w", err)
	}

	chunks := make([]*storage.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &storage.Chunk{
			ID:         uuid.New().String(),
			JobID:      jobID,
			Source:     file.Name,
			ChunkIndex: i,
			Content:    text,
			Embedding:  embeddings[i],
		}
	}

	if err := p.store.UpsertChunks(ctx, collection, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	p.logger.Debug("Indexed document", "file", file.Name, "chunks", len(chunks))
	return len(chunks), nil
}
