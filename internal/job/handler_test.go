package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/kbminer/internal/indexer"
	"github.com/bull/kbminer/internal/ingest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func s3Event(bucket, key string) events.S3Event {
	return events.S3Event{Records: []events.S3EventRecord{{
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: bucket},
			Object: events.S3Object{Key: key},
		},
	}}}
}

// fileDownloader writes a placeholder file, plus any extra names, into the job directory.
type fileDownloader struct {
	extra  []string
	err    error
	bucket string
	key    string
	path   string
}

func (d *fileDownloader) Download(_ context.Context, bucket, key, localPath string) error {
	d.bucket, d.key, d.path = bucket, key, localPath
	if d.err != nil {
		return d.err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	for _, name := range append([]string{filepath.Base(localPath)}, d.extra...) {
		if err := os.WriteFile(filepath.Join(filepath.Dir(localPath), name), []byte("%PDF"), 0o600); err != nil {
			return err
		}
	}
	return nil
}

// stubRunner completes every file except those listed in fail.
type stubRunner struct {
	fail   map[string]bool
	chunks int
	panics bool
}

func (r stubRunner) ProcessBatch(_ context.Context, m ingest.Manifest, jobID string) *ingest.BatchResult {
	if r.panics {
		panic("unexpected nil page")
	}
	b := &ingest.BatchResult{JobID: jobID, Total: len(m.Entries)}
	for _, e := range m.Entries {
		f := ingest.FileResult{Name: e.Name}
		if r.fail[e.Name] {
			f.Status = ingest.StatusFailed
			b.Failed++
		} else {
			for range r.chunks {
				f.Chunks = append(f.Chunks, ingest.Chunk{Content: "text"})
			}
			b.Completed++
		}
		b.Files = append(b.Files, f)
	}
	return b
}

type stubIndexer struct {
	result *indexer.IndexResult
	err    error
	calls  int
}

func (s *stubIndexer) IndexBatch(context.Context, *ingest.BatchResult) (*indexer.IndexResult, error) {
	s.calls++
	return s.result, s.err
}

func TestParseJobID(t *testing.T) {
	id, err := ParseJobID("repaired-uploads/repaired_abc/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	for _, key := range []string{
		"x.pdf",
		"uploads/abc/x.pdf",
		"repaired-uploads/repaired_/x.pdf",
		"repaired-uploads/repaired_../x.pdf",
		"repaired-uploads/repaired_./x.pdf",
		`repaired-uploads/repaired_a\..\..\x/x.pdf`,
	} {
		_, err := ParseJobID(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalPath(t *testing.T) {
	p, err := LocalPath("/tmp/work", "repaired-uploads/repaired_abc/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/work", "abc", "x.pdf"), p)

	_, err = LocalPath("/tmp/work", "repaired-uploads/repaired_abc/../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = LocalPath("/tmp/work", "repaired-uploads/repaired_abc")
	assert.ErrorIs(t, err, ErrInvalidKey)

	for _, key := range []string{"repaired-uploads/repaired_../x.pdf", "repaired-uploads/repaired_./x.pdf"} {
		_, err = LocalPath("/tmp/work", key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestWithin(t *testing.T) {
	root := filepath.Join("/tmp", "work")
	assert.True(t, within(root, filepath.Join(root, "abc")))
	assert.True(t, within(root, filepath.Join(root, "..abc")))
	assert.False(t, within(root, root))
	assert.False(t, within(root, filepath.Dir(root)))
	assert.False(t, within(root, filepath.Join(filepath.Dir(root), "other")))
}

func TestHandle_Summary(t *testing.T) {
	root := t.TempDir()
	dl := &fileDownloader{extra: []string{"B.pdf", "C.pdf", "readme.txt"}}
	idx := &stubIndexer{result: &indexer.IndexResult{TotalChunks: 2, SuccessfulDocs: 2}}
	h := NewHandler(dl, stubRunner{fail: map[string]bool{"B.pdf": true}, chunks: 1}, idx, Options{WorkRoot: root}, quietLogger())

	resp, err := h.Handle(context.Background(), s3Event("uploads", "repaired-uploads/repaired_job%2B1/A+file.pdf"))
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "uploads", dl.bucket)
	assert.Equal(t, "repaired-uploads/repaired_job+1/A file.pdf", dl.key)
	assert.Equal(t, filepath.Join(root, "job+1", "A file.pdf"), dl.path)
	assert.Equal(t, "Document processing completed.\n"+
		"Documents:\n"+
		"\tTotal No. of Documents: 4\n"+
		"\tCompleted: 2\n"+
		"\tError: 2\n"+
		"Index:\n"+
		"\tProcessed: 1\n"+
		"\tErrors: 0", resp.Body)
	assert.Equal(t, 1, idx.calls)
}

func TestHandle_NoChunksFlagsIndexError(t *testing.T) {
	idx := &stubIndexer{}
	h := NewHandler(&fileDownloader{}, stubRunner{}, idx, Options{WorkRoot: t.TempDir()}, quietLogger())

	resp, _ := h.Handle(context.Background(), s3Event("b", "repaired-uploads/repaired_j/a.pdf"))

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Body, "\tProcessed: 0\n\tErrors: 1")
	assert.Zero(t, idx.calls)
}

func TestHandle_IndexFailure(t *testing.T) {
	idx := &stubIndexer{err: errors.New("qdrant down")}
	h := NewHandler(&fileDownloader{}, stubRunner{chunks: 3}, idx, Options{WorkRoot: t.TempDir()}, quietLogger())

	resp, _ := h.Handle(context.Background(), s3Event("b", "repaired-uploads/repaired_j/a.pdf"))

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Body, "\tCompleted: 1\n")
	assert.Contains(t, resp.Body, "\tProcessed: 0\n\tErrors: 1")
}

func TestHandle_WithoutIndexer(t *testing.T) {
	h := NewHandler(&fileDownloader{}, stubRunner{chunks: 1}, nil, Options{WorkRoot: t.TempDir()}, quietLogger())

	resp, _ := h.Handle(context.Background(), s3Event("b", "repaired-uploads/repaired_j/a.pdf"))

	assert.Contains(t, resp.Body, "\tProcessed: 1\n\tErrors: 0")
}

func TestHandle_Failures(t *testing.T) {
	tests := []struct {
		name    string
		dl      Downloader
		runner  BatchRunner
		event   events.S3Event
		wantMsg string
	}{
		{
			name:    "no records",
			dl:      &fileDownloader{},
			runner:  stubRunner{},
			event:   events.S3Event{},
			wantMsg: "event has no records",
		},
		{
			name:    "bad key",
			dl:      &fileDownloader{},
			runner:  stubRunner{},
			event:   s3Event("b", "uploads/x.pdf"),
			wantMsg: "invalid object key",
		},
		{
			name:    "download failure",
			dl:      &fileDownloader{err: errors.New("access denied")},
			runner:  stubRunner{},
			event:   s3Event("b", "repaired-uploads/repaired_j/a.pdf"),
			wantMsg: "access denied",
		},
		{
			name:    "panic",
			dl:      &fileDownloader{},
			runner:  stubRunner{panics: true},
			event:   s3Event("b", "repaired-uploads/repaired_j/a.pdf"),
			wantMsg: "panic: unexpected nil page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.dl, tt.runner, nil, Options{WorkRoot: t.TempDir()}, quietLogger())

			resp, err := h.Handle(context.Background(), tt.event)

			require.NoError(t, err)
			assert.Equal(t, 500, resp.StatusCode)
			assert.Contains(t, resp.Body, "Error processing document: ")
			assert.Contains(t, resp.Body, tt.wantMsg)
		})
	}
}

func TestHandle_Cleanup(t *testing.T) {
	root := t.TempDir()
	h := NewHandler(&fileDownloader{}, stubRunner{}, nil, Options{WorkRoot: root, Cleanup: true}, quietLogger())

	resp, _ := h.Handle(context.Background(), s3Event("b", "repaired-uploads/repaired_j/a.pdf"))

	assert.Equal(t, 200, resp.StatusCode)
	assert.NoDirExists(t, filepath.Join(root, "j"))
}

func TestHandle_JobIDCannotEscapeWorkRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "work")
	require.NoError(t, os.Mkdir(root, 0o755))
	sibling := filepath.Join(parent, "keep.txt")
	require.NoError(t, os.WriteFile(sibling, []byte("keep"), 0o600))

	dl := &fileDownloader{}
	h := NewHandler(dl, stubRunner{chunks: 1}, nil, Options{WorkRoot: root, Cleanup: true}, quietLogger())

	for _, key := range []string{"repaired-uploads/repaired_../x.pdf", "repaired-uploads/repaired_./x.pdf"} {
		resp, err := h.Handle(context.Background(), s3Event("b", key))

		require.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode, key)
		assert.Contains(t, resp.Body, "invalid object key", key)
	}

	assert.Empty(t, dl.path, "nothing should be downloaded")
	assert.FileExists(t, sibling)
	assert.DirExists(t, root)
}
