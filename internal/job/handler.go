package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/aws/aws-lambda-go/events"

	"github.com/bull/kbminer/internal/indexer"
	"github.com/bull/kbminer/internal/ingest"
)

// Response is the entry point's reply.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Summary holds the counts reported for a finished job.
type Summary struct {
	InputCount  int
	Completed   int
	DocErrors   int
	Indexed     int
	IndexErrors int
}

// String renders the summary body.
func (s Summary) String() string {
	return fmt.Sprintf("Document processing completed.\n"+
		"Documents:\n"+
		"\tTotal No. of Documents: %d\n"+
		"\tCompleted: %d\n"+
		"\tError: %d\n"+
		"Index:\n"+
		"\tProcessed: %d\n"+
		"\tErrors: %d",
		s.InputCount, s.Completed, s.DocErrors, s.Indexed, s.IndexErrors)
}

// Summarize counts every file in the manifest, ignored ones included, and
// sets the index flag from indexed.
func Summarize(manifest ingest.Manifest, batch *ingest.BatchResult, indexed bool) Summary {
	s := Summary{
		InputCount: manifest.InputCount(),
		Completed:  batch.Completed,
	}
	s.DocErrors = s.InputCount - s.Completed
	if indexed {
		s.Indexed = 1
	} else {
		s.IndexErrors = 1
	}
	return s
}

// BatchRunner processes a job's manifest.
type BatchRunner interface {
	ProcessBatch(ctx context.Context, manifest ingest.Manifest, jobID string) *ingest.BatchResult
}

// Indexer stores a finished batch's chunks.
type Indexer interface {
	IndexBatch(ctx context.Context, batch *ingest.BatchResult) (*indexer.IndexResult, error)
}

// Options configures a Handler.
type Options struct {
	WorkRoot string
	Cleanup  bool // remove the job directory when done
}

// Handler runs one ingestion job per upload notification.
type Handler struct {
	downloader Downloader
	runner     BatchRunner
	indexer    Indexer
	opts       Options
	logger     *slog.Logger
}

// NewHandler creates a Handler. idx may be nil to skip indexing.
func NewHandler(downloader Downloader, runner BatchRunner, idx Indexer, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WorkRoot == "" {
		opts.WorkRoot = os.TempDir()
	}
	return &Handler{
		downloader: downloader,
		runner:     runner,
		indexer:    idx,
		opts:       opts,
		logger:     logger,
	}
}

// Handle processes the first record of event. The returned error is always
// nil; failures become a 500 response.
func (h *Handler) Handle(ctx context.Context, event events.S3Event) (resp Response, _ error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Job panicked", "panic", r)
			resp = errorResponse(fmt.Errorf("panic: %v", r))
		}
	}()

	summary, err := h.run(ctx, event)
	if err != nil {
		h.logger.Error("Job failed", "error", err)
		return errorResponse(err), nil
	}
	return Response{StatusCode: http.StatusOK, Body: summary.String()}, nil
}

func errorResponse(err error) Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       fmt.Sprintf("Error processing document: %v", err),
	}
}

func (h *Handler) run(ctx context.Context, event events.S3Event) (Summary, error) {
	if len(event.Records) == 0 {
		return Summary{}, errors.New("event has no records")
	}
	record := event.Records[0].S3
	bucket := record.Bucket.Name
	key, err := url.QueryUnescape(record.Object.Key)
	if err != nil {
		return Summary{}, fmt.Errorf("decode key %q: %w", record.Object.Key, err)
	}

	jobID, err := ParseJobID(key)
	if err != nil {
		return Summary{}, err
	}
	localPath, err := LocalPath(h.opts.WorkRoot, key)
	if err != nil {
		return Summary{}, err
	}
	logger := h.logger.With("job_id", jobID, "bucket", bucket, "key", key)
	logger.Info("Starting job")

	dir := JobDir(h.opts.WorkRoot, jobID)
	if h.opts.Cleanup {
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn("Failed to remove job directory", "dir", dir, "error", err)
			}
		}()
	}

	if err := h.downloader.Download(ctx, bucket, key, localPath); err != nil {
		return Summary{}, err
	}

	manifest, err := ingest.BuildManifest(dir)
	if err != nil {
		return Summary{}, err
	}
	batch := h.runner.ProcessBatch(ctx, manifest, jobID)

	summary := Summarize(manifest, batch, h.index(ctx, logger, batch))

	logger.Info("Job complete",
		"input_count", summary.InputCount,
		"completed", summary.Completed,
		"doc_err", summary.DocErrors,
		"indexed", summary.Indexed,
	)
	return summary, nil
}

// index reports whether the batch produced chunks and, when an indexer is
// configured, whether they were all stored.
func (h *Handler) index(ctx context.Context, logger *slog.Logger, batch *ingest.BatchResult) bool {
	if batch.ChunkCount() == 0 {
		return false
	}
	if h.indexer == nil {
		return true
	}
	result, err := h.indexer.IndexBatch(ctx, batch)
	if err != nil {
		logger.Warn("Indexing failed", "error", err)
		return false
	}
	return result.OK()
}
