// Package job is the ingestion entry point: it turns an upload notification
// into a local working set, runs the batch and reports a summary.
package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// JobPrefix marks the path segment that carries the job id.
const JobPrefix = "repaired_"

// ErrInvalidKey is returned for object keys that do not follow
// "<prefix>/repaired_<job_id>/<file>".
var ErrInvalidKey = errors.New("invalid object key")

// ParseJobID extracts the job id from the second segment of key.
func ParseJobID(key string) (string, error) {
	segments := strings.Split(key, "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: %q has no job segment", ErrInvalidKey, key)
	}
	id, ok := strings.CutPrefix(segments[1], JobPrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %q segment %q lacks %s prefix", ErrInvalidKey, key, segments[1], JobPrefix)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q job id %q is not a plain name", ErrInvalidKey, key, id)
	}
	return id, nil
}

// LocalPath maps key to <workRoot>/<job_id>/<rest of key>.
func LocalPath(workRoot, key string) (string, error) {
	jobID, err := ParseJobID(key)
	if err != nil {
		return "", err
	}
	rest := strings.Split(key, "/")[2:]
	if len(rest) == 0 || rest[len(rest)-1] == "" {
		return "", fmt.Errorf("%w: %q names no file", ErrInvalidKey, key)
	}
	for _, seg := range rest {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q escapes the job directory", ErrInvalidKey, key)
		}
	}
	dir := JobDir(workRoot, jobID)
	if !within(workRoot, dir) {
		return "", fmt.Errorf("%w: %q escapes the work root", ErrInvalidKey, key)
	}
	return filepath.Join(append([]string{dir}, rest...)...), nil
}

// within reports whether path is strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// JobDir is the working directory for a job.
func JobDir(workRoot, jobID string) string {
	return filepath.Join(workRoot, jobID)
}
