package asynchook

import (
	"sync"

	"github.com/tillworks/tillfront"
)

// Hooks forwards cache events to an inner implementation on worker
// goroutines so slow sinks never stall the cache's hot path. Events are
// dropped when the queue is full.
type Hooks struct {
	inner tillfront.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tillfront.Hooks = (*Hooks)(nil)

func New(inner tillfront.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)             { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) StaleWriteSkipped(k string)       { h.try(func() { h.inner.StaleWriteSkipped(k) }) }
func (h *Hooks) ProviderSetRejected(k string)     { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) RevSnapshotError(k string, e error) {
	h.try(func() { h.inner.RevSnapshotError(k, e) })
}
func (h *Hooks) RevBumpError(k string, e error) {
	h.try(func() { h.inner.RevBumpError(k, e) })
}
func (h *Hooks) InvalidateOutage(k string, be, de error) {
	h.try(func() { h.inner.InvalidateOutage(k, be, de) })
}
