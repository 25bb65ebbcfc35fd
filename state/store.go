// Package state holds the terminal's in-memory application state: one typed
// domain per resource kind plus the operator identity. Views subscribe to the
// store and re-render on change; they never own data themselves.
package state

import (
	"sync"
	"time"

	"github.com/tillworks/tillfront/model"
)

// Slot is the snapshot of one resource domain.
type Slot[T any] struct {
	Items     []T
	Loading   bool
	Err       error
	FromCache bool // last replace came from the local cache, not the network
	UpdatedAt time.Time
}

// HasData reports whether the domain has ever been populated.
func (s Slot[T]) HasData() bool { return s.Items != nil }

// Domain is one resource kind inside the store. All mutation methods notify
// the store's subscribers.
type Domain[T any] struct {
	st *Store

	mu   sync.RWMutex
	slot Slot[T]
}

// Get returns the current snapshot. The slice must be treated as read-only.
func (d *Domain[T]) Get() Slot[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slot
}

// Replace installs a full result set, clearing Loading and Err.
func (d *Domain[T]) Replace(items []T, fromCache bool) {
	if items == nil {
		items = []T{}
	}
	d.mu.Lock()
	d.slot = Slot[T]{
		Items:     items,
		FromCache: fromCache,
		UpdatedAt: time.Now(),
	}
	d.mu.Unlock()
	d.st.notify()
}

// SetLoading raises or clears the loading flag.
func (d *Domain[T]) SetLoading(on bool) {
	d.mu.Lock()
	changed := d.slot.Loading != on
	d.slot.Loading = on
	d.mu.Unlock()
	if changed {
		d.st.notify()
	}
}

// Fail records a load failure, clearing Loading. Existing items are kept.
func (d *Domain[T]) Fail(err error) {
	d.mu.Lock()
	d.slot.Loading = false
	d.slot.Err = err
	d.mu.Unlock()
	d.st.notify()
}

// Clear drops the domain back to its never-loaded zero state.
func (d *Domain[T]) Clear() {
	d.mu.Lock()
	d.slot = Slot[T]{}
	d.mu.Unlock()
	d.st.notify()
}

// Store is the application state container. Construct with NewStore; the zero
// value is not usable.
type Store struct {
	Meals      *Domain[model.Meal]
	Categories *Domain[model.Category]
	Stock      *Domain[model.StockItem]
	Orders     *Domain[model.Order]
	Tables     *Domain[model.Table]

	mu     sync.RWMutex
	user   *model.User
	shift  *model.Shift
	closed bool
	subs   map[int]func()
	nextID int
}

func NewStore() *Store {
	st := &Store{subs: make(map[int]func())}
	st.Meals = &Domain[model.Meal]{st: st}
	st.Categories = &Domain[model.Category]{st: st}
	st.Stock = &Domain[model.StockItem]{st: st}
	st.Orders = &Domain[model.Order]{st: st}
	st.Tables = &Domain[model.Table]{st: st}
	return st
}

// Subscribe registers fn to run after every state change and returns its
// unsubscribe function. fn runs on the mutating goroutine and must not block.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close tears the store down. Updates and notifications arriving afterwards
// (stragglers from in-flight requests) are silently dropped.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.subs = nil
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// User returns the signed-in operator, or nil before login.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser installs the operator identity. nil signs the operator out.
func (s *Store) SetUser(u *model.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	s.notify()
}

// Shift returns the operator's open shift, or nil.
func (s *Store) Shift() *model.Shift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shift
}

func (s *Store) SetShift(sh *model.Shift) {
	s.mu.Lock()
	s.shift = sh
	s.mu.Unlock()
	s.notify()
}
