package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/kbminer/internal/chunking"
	"github.com/bull/kbminer/internal/pdf"
)

// DefaultPageConcurrency bounds how many pages of one file are extracted at once.
const DefaultPageConcurrency = 4

// TextSink persists a file's raw extracted text.
type TextSink interface {
	Put(ctx context.Context, jobID, filename, text string) error
}

// PageExtractor extracts one page; see pdf.Extractor.
type PageExtractor interface {
	Extract(ctx context.Context, page pdf.Page) pdf.PageResult
}

// PageSource is an opened document.
type PageSource interface {
	NumPages() int
	Page(n int) pdf.Page
}

// DocumentOpener opens the file at path.
type DocumentOpener func(path string) (PageSource, error)

// OpenPDF opens path with the pdf package.
func OpenPDF(path string) (PageSource, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FileProcessor extracts, chunks and persists a single file.
type FileProcessor struct {
	open            DocumentOpener
	extractor       PageExtractor
	splitter        *chunking.Splitter
	sink            TextSink
	pageConcurrency int
	logger          *slog.Logger
}

// NewFileProcessor creates a FileProcessor reading PDFs from disk. sink may be
// nil to skip persistence.
func NewFileProcessor(extractor PageExtractor, splitter *chunking.Splitter, sink TextSink, logger *slog.Logger) *FileProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if splitter == nil {
		splitter = chunking.NewDefaultSplitter()
	}
	return &FileProcessor{
		open:            OpenPDF,
		extractor:       extractor,
		splitter:        splitter,
		sink:            sink,
		pageConcurrency: DefaultPageConcurrency,
		logger:          logger,
	}
}

// WithOpener replaces the document opener.
func (p *FileProcessor) WithOpener(open DocumentOpener) *FileProcessor {
	p.open = open
	return p
}

// WithPageConcurrency sets how many pages are extracted in parallel (minimum 1).
func (p *FileProcessor) WithPageConcurrency(n int) *FileProcessor {
	p.pageConcurrency = max(n, 1)
	return p
}

// Process handles one file. It never panics; an unreadable file comes back with
// StatusFailed, no chunks and nothing persisted.
func (p *FileProcessor) Process(ctx context.Context, jobID string, entry ManifestEntry) (result FileResult) {
	start := time.Now()
	result = FileResult{Name: entry.Name}
	logger := p.logger.With("job_id", jobID, "file", entry.Name)

	defer func() {
		if r := recover(); r != nil {
			result = FileResult{Name: entry.Name, Status: StatusFailed, Err: fmt.Errorf("panic: %v", r)}
		}
		result.Duration = time.Since(start)
	}()

	doc, err := p.open(entry.Path)
	if err != nil {
		logger.Warn("Failed to open document", "error", err)
		result.Status = StatusFailed
		result.Err = fmt.Errorf("open: %w", err)
		return result
	}

	pages := p.extractPages(ctx, doc)
	result.Pages = len(pages)

	blocks := make([]string, len(pages))
	for i, page := range pages {
		blocks[i] = page.Block()
		if page.Degraded() {
			result.DegradedPages = append(result.DegradedPages, page.Number)
		}
	}
	result.Text = strings.Join(blocks, "\n")

	for _, c := range p.splitter.Split(result.Text) {
		result.Chunks = append(result.Chunks, Chunk{Content: c})
	}

	result.Status = StatusCompleted
	if len(result.DegradedPages) > 0 {
		result.Status = StatusDegraded
	}

	if p.sink != nil {
		if err := p.sink.Put(ctx, jobID, entry.Name, result.Text); err != nil {
			logger.Warn("Failed to persist extracted text", "error", err)
			result.PersistErr = err
		}
	}

	logger.Info("Processed document",
		"status", result.Status,
		"pages", result.Pages,
		"degraded_pages", len(result.DegradedPages),
		"chunks", len(result.Chunks),
	)
	return result
}

// extractPages runs the extractor over every page, bounded, keeping page order.
func (p *FileProcessor) extractPages(ctx context.Context, doc PageSource) []pdf.PageResult {
	n := doc.NumPages()
	pages := make([]pdf.PageResult, n)

	var g errgroup.Group
	g.SetLimit(p.pageConcurrency)
	for i := range n {
		number := i + 1
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					pages[i] = pdf.PageResult{Number: number, TextErr: fmt.Errorf("panic: %v", r)}
				}
			}()
			pages[i] = p.extractor.Extract(ctx, doc.Page(number))
			return nil
		})
	}
	_ = g.Wait()

	return pages
}
