package tillfront

import (
	"context"
	"time"

	c "github.com/tillworks/tillfront/codec"
	pr "github.com/tillworks/tillfront/provider"
	rev "github.com/tillworks/tillfront/revstore"
)

// Cache is the high-level, provider-agnostic resource cache with freshness,
// format-tag and revision validation. V is the caller's value type (for POS
// resources a whole list, e.g. Cache[[]model.Meal]). Serialization is handled
// by a pluggable Codec[V].
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Get returns the cached value when the entry is present, younger than
	// MaxAge, tagged with the current format tag, and at the current
	// revision. Invalid entries are deleted and reported as a miss; they are
	// never surfaced as errors.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// SetWithRev stores value iff the key's revision still equals
	// observedRev. A mismatch means an invalidation landed while the value
	// was being produced; the write is skipped.
	SetWithRev(ctx context.Context, key string, value V, observedRev uint64, ttl time.Duration) error

	// Invalidate bumps the key's revision and deletes the stored entry.
	// Callers invoke it after any mutation of the underlying resource.
	Invalidate(ctx context.Context, key string) error

	// SnapshotRev returns the current revision for CAS-style writes.
	SnapshotRev(key string) uint64
}

// Options tune the behavior of the cache.
// Only Namespace, Provider and Codec are required; others have defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions, e.g. "meals"
	Provider  pr.Provider
	Codec     c.Codec[V]

	// FormatTag names the cache-format version. Entries stored under a
	// different tag are treated as misses and deleted; bump the tag
	// whenever the shape of cached records changes. Default "v1".
	FormatTag string

	// MaxAge bounds entry freshness at read time; older entries are misses.
	// Also used as the provider TTL when SetWithRev is called with ttl == 0.
	// Default 5h.
	MaxAge time.Duration

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	RevStore        rev.RevStore  // nil => LocalRevStore (in-process)
	CleanupInterval time.Duration // local rev store sweep; 0 => 1h
	RevRetention    time.Duration // local rev store retention; 0 => 30d
	Disabled        bool          // default false (enabled)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
