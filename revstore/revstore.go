package revstore

import (
	"context"
	"time"
)

// RevStore abstracts where per-key revisions live. A revision is bumped on
// every invalidation of the key; cached entries written under an older
// revision are rejected on read.
// Use LocalRevStore (default) for in-process revisions, or RedisRevStore to
// share revisions across terminals of the same store.
type RevStore interface {
	// Snapshot returns the current revision; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new revision.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
