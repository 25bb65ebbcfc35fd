// Package catalog keeps the terminal's resource lists (meals, categories,
// stock, orders) loaded: cache first, network second, with the freshest
// response always winning.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tillworks/tillfront"
	"github.com/tillworks/tillfront/state"
)

const defaultTTL = 5 * time.Hour

// Source says where a Refresh got its data from.
type Source int

const (
	// SourceNone: nothing was applied (dropped stale response, or a failed
	// fetch whose previous data was kept).
	SourceNone Source = iota
	SourceCache
	SourceNetwork
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceNetwork:
		return "network"
	default:
		return "none"
	}
}

// Resource is one cached, fetchable list of T. It pushes results into its
// state domain and writes fresh results through to the cache.
type Resource[T any] struct {
	name  string
	cache tillfront.Cache[[]T]
	key   string
	ttl   time.Duration
	fetch func(ctx context.Context) ([]T, error)
	dom   *state.Domain[T]
	log   tillfront.Logger

	mu      sync.Mutex
	nextSeq uint64
	applied uint64
}

type ResourceOptions[T any] struct {
	// Required
	Name   string
	Cache  tillfront.Cache[[]T]
	Domain *state.Domain[T]
	Fetch  func(ctx context.Context) ([]T, error)

	Key    string        // cache key; Name by default
	TTL    time.Duration // cache entry TTL; 5h by default
	Logger tillfront.Logger
}

func NewResource[T any](opts ResourceOptions[T]) (*Resource[T], error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("catalog: name is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("catalog: cache is required")
	}
	if opts.Domain == nil {
		return nil, fmt.Errorf("catalog: state domain is required")
	}
	if opts.Fetch == nil {
		return nil, fmt.Errorf("catalog: fetch func is required")
	}
	log := opts.Logger
	if log == nil {
		log = tillfront.NopLogger{}
	}
	key := opts.Key
	if key == "" {
		key = opts.Name
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Resource[T]{
		name:  opts.Name,
		cache: opts.Cache,
		key:   key,
		ttl:   ttl,
		fetch: opts.Fetch,
		dom:   opts.Domain,
		log:   log,
	}, nil
}

// LoadCached seeds the state domain from the cache without touching the
// network. A miss leaves the domain exactly as it was: no loading flag, no
// error.
func (r *Resource[T]) LoadCached(ctx context.Context) (bool, error) {
	items, ok, err := r.cache.Get(ctx, r.key)
	if err != nil {
		r.log.Warn("cache read failed", tillfront.Fields{"resource": r.name, "err": err})
		return false, err
	}
	if !ok {
		return false, nil
	}
	r.dom.Replace(items, true)
	return true, nil
}

// Refresh brings the state domain up to date. With force=false a valid cache
// entry satisfies the call with no network traffic; otherwise the backend is
// fetched, the domain updated and the result written through to the cache.
//
// The loading flag is raised only while the domain has nothing to show. A
// fetch failure keeps previously loaded data on screen and is merely logged;
// with no data to fall back on the error is surfaced. Responses that resolve
// after a later fetch has already been applied are dropped.
func (r *Resource[T]) Refresh(ctx context.Context, force bool) (Source, error) {
	if !force {
		items, ok, err := r.cache.Get(ctx, r.key)
		if err != nil {
			r.log.Warn("cache read failed", tillfront.Fields{"resource": r.name, "err": err})
		} else if ok {
			r.dom.Replace(items, true)
			return SourceCache, nil
		}
	}

	hadData := r.dom.Get().HasData()
	if !hadData {
		r.dom.SetLoading(true)
	}

	rev := r.cache.SnapshotRev(r.key)

	r.mu.Lock()
	r.nextSeq++
	seq := r.nextSeq
	r.mu.Unlock()

	items, err := r.fetch(ctx)

	r.mu.Lock()
	stale := seq < r.applied
	if !stale && err == nil {
		r.applied = seq
	}
	r.mu.Unlock()

	if stale {
		// A later fetch already resolved; this response is out of date.
		r.log.Debug("dropped out-of-order response",
			tillfront.Fields{"resource": r.name, "seq": seq})
		return SourceNone, nil
	}

	if err != nil {
		if hadData {
			r.log.Warn("refresh failed, keeping last known data",
				tillfront.Fields{"resource": r.name, "err": err})
			return SourceNone, nil
		}
		r.dom.Fail(err)
		return SourceNone, err
	}

	r.dom.Replace(items, false)
	if err := r.cache.SetWithRev(ctx, r.key, items, rev, r.ttl); err != nil {
		r.log.Warn("cache write failed", tillfront.Fields{"resource": r.name, "err": err})
	}
	return SourceNetwork, nil
}

// Invalidate drops the cached entry so the next non-forced Refresh goes to
// the network.
func (r *Resource[T]) Invalidate(ctx context.Context) error {
	return r.cache.Invalidate(ctx, r.key)
}
