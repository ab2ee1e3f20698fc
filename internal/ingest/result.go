package ingest

import (
	"time"
)

// Status classifies a file's outcome. Completed and degraded files both count
// as completed; only failed files count as errors.
type Status int

const (
	StatusCompleted Status = iota
	StatusDegraded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Chunk is one slice of a file's text, ready for indexing.
type Chunk struct {
	Content string
}

// FileResult is the outcome of processing one file.
type FileResult struct {
	Name          string
	Status        Status
	Text          string // raw text: page text interleaved with image descriptions
	Chunks        []Chunk
	Pages         int
	DegradedPages []int
	Err           error // set when Status is StatusFailed
	PersistErr    error // raw text could not be stored; does not fail the file
	Duration      time.Duration
}

// Completed reports whether the file counts toward the completed total.
func (r FileResult) Completed() bool {
	return r.Status != StatusFailed
}

// BatchResult aggregates a job's file results in manifest order.
type BatchResult struct {
	JobID     string
	Files     []FileResult
	Total     int
	Completed int
	Failed    int
	Duration  time.Duration
}

// Chunks returns every completed file's chunks, file by file in manifest order.
func (b *BatchResult) Chunks() []Chunk {
	var all []Chunk
	for _, f := range b.Files {
		if f.Completed() {
			all = append(all, f.Chunks...)
		}
	}
	return all
}

// ChunkCount is len(b.Chunks()) without building the slice.
func (b *BatchResult) ChunkCount() int {
	n := 0
	for _, f := range b.Files {
		if f.Completed() {
			n += len(f.Chunks)
		}
	}
	return n
}
