package tillfront

import (
	"context"
	"fmt"
	"time"

	c "github.com/tillworks/tillfront/codec"
	"github.com/tillworks/tillfront/internal/wire"
	pr "github.com/tillworks/tillfront/provider"
	rev "github.com/tillworks/tillfront/revstore"
)

const (
	defaultMaxAge       = 5 * time.Hour
	defaultFormatTag    = "v1"
	defaultSweep        = time.Hour
	defaultRevRetention = 30 * 24 * time.Hour
)

type cache[V any] struct {
	ns        string
	provider  pr.Provider
	codec     c.Codec[V]
	log       Logger
	hooks     Hooks
	enabled   bool
	formatTag string
	maxAge    time.Duration
	revs      rev.RevStore
	ownRevs   bool // close revs only when we created them

	now func() time.Time // injectable for tests
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("tillfront: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("tillfront: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("tillfront: namespace is required")
	}

	c := &cache[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
		now:      time.Now,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.formatTag = coalesce[string](opts.FormatTag, defaultFormatTag)
	c.maxAge = coalesce[time.Duration](opts.MaxAge, defaultMaxAge)

	if opts.RevStore != nil {
		c.revs = opts.RevStore
	} else {
		sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
		retention := coalesce[time.Duration](opts.RevRetention, defaultRevRetention)
		c.revs = rev.NewLocalRevStore(sweep, retention)
		c.ownRevs = true
	}

	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	if c.ownRevs && c.revs != nil {
		_ = c.revs.Close(ctx)
	}
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	k := c.storageKey(key)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	ent, err := wire.Decode(raw)
	if err != nil {
		c.heal(ctx, k, "corrupt")
		return zero, false, nil
	}
	if ent.Tag != c.formatTag {
		c.heal(ctx, k, "tag_mismatch")
		return zero, false, nil
	}
	if c.now().Sub(ent.StoredAt) > c.maxAge {
		c.heal(ctx, k, "expired")
		return zero, false, nil
	}
	if ent.Rev != c.snapshotRev(ctx, k) {
		c.heal(ctx, k, "rev_mismatch")
		return zero, false, nil
	}
	v, err := c.codec.Decode(ent.Payload)
	if err != nil {
		c.heal(ctx, k, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

func (c *cache[V]) SetWithRev(ctx context.Context, key string, value V, observedRev uint64, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	if ttl == 0 {
		ttl = c.maxAge
	}
	k := c.storageKey(key)
	if c.snapshotRev(ctx, k) != observedRev {
		// revision moved; an invalidation won the race
		c.log.Debug("SetWithRev skipped (rev moved)", Fields{"key": key, "obs": observedRev})
		c.hooks.StaleWriteSkipped(k)
		return nil
	}
	payload, err := c.codec.Encode(value)
	if err != nil {
		return err
	}
	wireb, err := wire.Encode(wire.Entry{
		Rev:      observedRev,
		StoredAt: c.now(),
		Tag:      c.formatTag,
		Payload:  payload,
	})
	if err != nil {
		return err
	}
	ok, err := c.provider.Set(ctx, k, wireb, ttl)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Debug("SetWithRev rejected by provider (pressure)", Fields{"key": key})
		c.hooks.ProviderSetRejected(k)
	}
	return nil
}

func (c *cache[V]) Invalidate(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	k := c.storageKey(key)
	newRev, bumpErr := c.revs.Bump(ctx, k)
	if bumpErr != nil {
		c.log.Error("rev bump error", Fields{"key": key, "err": bumpErr})
		c.hooks.RevBumpError(k, bumpErr)
	}
	delErr := c.provider.Del(ctx, k)
	if bumpErr != nil && delErr != nil {
		c.hooks.InvalidateOutage(key, bumpErr, delErr)
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	c.log.Debug("invalidated key (bumped rev + cleared entry)", Fields{"key": key, "newRev": newRev})
	return nil
}

func (c *cache[V]) SnapshotRev(key string) uint64 {
	return c.snapshotRev(context.Background(), c.storageKey(key))
}

func (c *cache[V]) snapshotRev(ctx context.Context, storageKey string) uint64 {
	r, err := c.revs.Snapshot(ctx, storageKey)
	if err != nil {
		// Conservative: treat as 0 so CAS writes will skip; reads will self-heal.
		c.log.Warn("rev snapshot error", Fields{"key": storageKey, "err": err})
		c.hooks.RevSnapshotError(storageKey, err)
		return 0
	}
	return r
}

func (c *cache[V]) heal(ctx context.Context, storageKey, reason string) {
	_ = c.provider.Del(ctx, storageKey)
	c.hooks.SelfHeal(storageKey, reason)
}

func (c *cache[V]) storageKey(userKey string) string {
	// isolate by namespace
	return "res:" + c.ns + ":" + userKey
}
