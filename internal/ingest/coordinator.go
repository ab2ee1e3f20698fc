package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultFileConcurrency bounds how many files of one job are processed at once.
const DefaultFileConcurrency = 2

// Processor handles a single manifest entry.
type Processor interface {
	Process(ctx context.Context, jobID string, entry ManifestEntry) FileResult
}

// Coordinator runs a Processor over every file of a job.
type Coordinator struct {
	processor   Processor
	concurrency int
	logger      *slog.Logger
}

// NewCoordinator creates a Coordinator. concurrency < 1 selects DefaultFileConcurrency.
func NewCoordinator(processor Processor, concurrency int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = DefaultFileConcurrency
	}
	return &Coordinator{
		processor:   processor,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessDir builds the manifest for dir and processes it.
func (c *Coordinator) ProcessDir(ctx context.Context, dir, jobID string) (*BatchResult, Manifest, error) {
	manifest, err := BuildManifest(dir)
	if err != nil {
		return nil, Manifest{}, err
	}
	return c.ProcessBatch(ctx, manifest, jobID), manifest, nil
}

// ProcessBatch processes every manifest entry. One file failing never stops
// the others; every entry ends up either completed or failed.
func (c *Coordinator) ProcessBatch(ctx context.Context, manifest Manifest, jobID string) *BatchResult {
	start := time.Now()
	logger := c.logger.With("job_id", jobID)
	logger.Info("Starting batch", "files", len(manifest.Entries), "ignored", len(manifest.Ignored))

	results := make([]FileResult, len(manifest.Entries))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, entry := range manifest.Entries {
		g.Go(func() error {
			results[i] = c.processOne(ctx, jobID, entry)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{
		JobID: jobID,
		Files: results,
		Total: len(results),
	}
	for _, r := range results {
		if r.Completed() {
			batch.Completed++
			continue
		}
		batch.Failed++
		logger.Warn("Failed to process file", "file", r.Name, "error", r.Err)
	}
	batch.Duration = time.Since(start)

	logger.Info("Batch complete",
		"completed", batch.Completed,
		"failed", batch.Failed,
		"chunks", batch.ChunkCount(),
		"duration", batch.Duration,
	)
	return batch
}

func (c *Coordinator) processOne(ctx context.Context, jobID string, entry ManifestEntry) (result FileResult) {
	defer func() {
		if r := recover(); r != nil {
			result = FileResult{Name: entry.Name, Status: StatusFailed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result = c.processor.Process(ctx, jobID, entry)
	result.Name = entry.Name
	if result.Status == StatusFailed && result.Err == nil {
		result.Err = fmt.Errorf("processing %s failed", entry.Name)
	}
	return result
}
