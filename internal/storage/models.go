package storage

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Chunk is one indexed slice of a job's extracted text.
type Chunk struct {
	ID         string    // UUID
	JobID      string    // Owning ingestion job
	Source     string    // File name the chunk came from
	ChunkIndex int       // Position within the job's chunk sequence
	Content    string    // Chunk text
	Embedding  []float32 // 1536-dim vector (text-embedding-3-small)
}

// ScoredChunk pairs a search hit with its similarity score.
type ScoredChunk struct {
	*Chunk
	Score float64
}

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// contentVector is the named vector every chunk point carries.
const contentVector = "content"

var unsafeCollectionChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// CollectionName returns the per-job collection: "Job" followed by the job's
// UUID in hex without dashes. Ids that are not UUIDs are kept, minus any
// characters Qdrant would reject.
func CollectionName(jobID string) string {
	if id, err := uuid.Parse(jobID); err == nil {
		return "Job" + strings.ReplaceAll(id.String(), "-", "")
	}
	return "Job" + unsafeCollectionChars.ReplaceAllString(jobID, "_")
}
