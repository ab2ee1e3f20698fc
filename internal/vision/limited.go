package vision

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Limited caps the number of in-flight descriptions across every caller sharing it.
type Limited struct {
	next Describer
	sem  *semaphore.Weighted
}

// NewLimited wraps next so that at most n descriptions run at once (n < 1 means 1).
func NewLimited(next Describer, n int) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(int64(n))}
}

func (l *Limited) Describe(ctx context.Context, img Image, pageContext string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for vision slot: %w", err)
	}
	defer l.sem.Release(1)
	return l.next.Describe(ctx, img, pageContext)
}
