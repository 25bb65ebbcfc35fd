package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tillworks/tillfront/model"
	"github.com/tillworks/tillfront/state"
)

// ====== fakes ======

// fakeCache implements tillfront.Cache[[]T] with CAS-on-rev semantics and an
// optional shared call trace.
type fakeCache[T any] struct {
	mu    sync.Mutex
	val   []T
	ok    bool
	rev   uint64
	sets  int
	trace *[]string
	name  string
}

func (f *fakeCache[T]) Enabled() bool                   { return true }
func (f *fakeCache[T]) Close(_ context.Context) error   { return nil }
func (f *fakeCache[T]) SnapshotRev(_ string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rev
}

func (f *fakeCache[T]) Get(_ context.Context, _ string) ([]T, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ok {
		return nil, false, nil
	}
	return f.val, true, nil
}

func (f *fakeCache[T]) SetWithRev(_ context.Context, _ string, v []T, obs uint64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obs != f.rev {
		return nil
	}
	f.val, f.ok = v, true
	f.sets++
	f.record("set:" + f.name)
	return nil
}

func (f *fakeCache[T]) Invalidate(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rev++
	f.ok = false
	f.record("invalidate:" + f.name)
	return nil
}

func (f *fakeCache[T]) record(ev string) {
	if f.trace != nil {
		*f.trace = append(*f.trace, ev)
	}
}

func (f *fakeCache[T]) seed(v []T) {
	f.mu.Lock()
	f.val, f.ok = v, true
	f.mu.Unlock()
}

func newMealResource(t *testing.T, fc *fakeCache[model.Meal], fetch func(context.Context) ([]model.Meal, error)) (*Resource[model.Meal], *state.Store) {
	t.Helper()
	st := state.NewStore()
	r, err := NewResource(ResourceOptions[model.Meal]{
		Name: "meals", Cache: fc, Domain: st.Meals, Fetch: fetch,
	})
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	return r, st
}

// ====== resource behavior ======

func TestLoadCachedHitSeedsStore(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	fc.seed([]model.Meal{{ID: "m1", Name: "Pasta"}})
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		t.Fatal("cache-only load must not fetch")
		return nil, nil
	})

	hit, err := r.LoadCached(context.Background())
	if err != nil || !hit {
		t.Fatalf("LoadCached: hit=%v err=%v", hit, err)
	}
	got := st.Meals.Get()
	if !got.FromCache || got.Loading || len(got.Items) != 1 {
		t.Fatalf("slot after cached load: %+v", got)
	}
}

func TestLoadCachedMissLeavesStoreUntouched(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		return nil, nil
	})

	hit, err := r.LoadCached(context.Background())
	if err != nil || hit {
		t.Fatalf("LoadCached: hit=%v err=%v", hit, err)
	}
	got := st.Meals.Get()
	if got.HasData() || got.Loading || got.Err != nil {
		t.Fatalf("miss must leave the domain untouched: %+v", got)
	}
}

func TestRefreshShortCircuitsOnValidCache(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	fc.seed([]model.Meal{{ID: "m1"}})
	var fetches int
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		fetches++
		return nil, nil
	})

	src, err := r.Refresh(context.Background(), false)
	if err != nil || src != SourceCache {
		t.Fatalf("Refresh: src=%v err=%v", src, err)
	}
	if fetches != 0 {
		t.Fatalf("valid cache must satisfy the call without a fetch")
	}
	if !st.Meals.Get().FromCache {
		t.Fatalf("slot should be annotated as cache-sourced")
	}
}

func TestForcedRefreshFetchesAndWritesThrough(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	fc.seed([]model.Meal{{ID: "old"}})
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		return []model.Meal{{ID: "new"}}, nil
	})

	src, err := r.Refresh(context.Background(), true)
	if err != nil || src != SourceNetwork {
		t.Fatalf("Refresh: src=%v err=%v", src, err)
	}
	got := st.Meals.Get()
	if got.FromCache || got.Items[0].ID != "new" {
		t.Fatalf("slot after forced refresh: %+v", got)
	}
	if fc.sets != 1 {
		t.Fatalf("fetch result not written through: sets=%d", fc.sets)
	}
}

func TestBackgroundRefreshAlwaysFetches(t *testing.T) {
	// Periodic and focus refreshes force-fetch: a valid cache entry must not
	// stop the terminal from noticing changes made on other terminals.
	fc := &fakeCache[model.Meal]{}
	fc.seed([]model.Meal{{ID: "m1"}})
	var fetches int
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		fetches++
		return []model.Meal{{ID: "m1"}}, nil
	})

	for i := 0; i < 5; i++ {
		src, err := r.Refresh(context.Background(), true)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if src != SourceNetwork {
			t.Fatalf("tick %d: src = %v, want network", i, src)
		}
	}
	if fetches != 5 {
		t.Fatalf("5 forced ticks performed %d network fetches, want 5", fetches)
	}
	if st.Meals.Get().FromCache {
		t.Fatalf("forced refresh result must be marked fresh")
	}
}

func TestLoadingRaisedOnlyWhenEmpty(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	var sawLoading bool
	var r *Resource[model.Meal]
	var st *state.Store
	r, st = newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		sawLoading = st.Meals.Get().Loading
		return []model.Meal{{ID: "m1"}}, nil
	})

	// First load: nothing to show, spinner allowed.
	if _, err := r.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !sawLoading {
		t.Fatalf("first load should raise the loading flag")
	}

	// Second load: data on screen, refresh must be silent.
	if _, err := r.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sawLoading {
		t.Fatalf("refresh with data present must not raise the loading flag")
	}
}

func TestRefreshFailureKeepsExistingData(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	fail := false
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		if fail {
			return nil, errors.New("backend down")
		}
		return []model.Meal{{ID: "m1"}}, nil
	})

	if _, err := r.Refresh(context.Background(), true); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}
	fail = true
	src, err := r.Refresh(context.Background(), true)
	if err != nil {
		t.Fatalf("failure with data on hand must not surface: %v", err)
	}
	if src != SourceNone {
		t.Fatalf("src = %v", src)
	}
	got := st.Meals.Get()
	if len(got.Items) != 1 || got.Err != nil {
		t.Fatalf("data must survive a failed refresh: %+v", got)
	}
}

func TestRefreshFailureSurfacedWhenEmpty(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		return nil, errors.New("backend down")
	})

	_, err := r.Refresh(context.Background(), true)
	if err == nil {
		t.Fatalf("failure with nothing to show must surface")
	}
	got := st.Meals.Get()
	if got.Err == nil || got.Loading {
		t.Fatalf("slot after surfaced failure: %+v", got)
	}
}

func TestOutOfOrderResponseDropped(t *testing.T) {
	fc := &fakeCache[model.Meal]{}
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	r, st := newMealResource(t, fc, func(context.Context) ([]model.Meal, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(started)
			<-release // resolves only after the second fetch applied
			return []model.Meal{{ID: "stale"}}, nil
		}
		return []model.Meal{{ID: "fresh"}}, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Refresh(context.Background(), true)
	}()
	<-started

	if _, err := r.Refresh(context.Background(), true); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(release)
	<-done

	got := st.Meals.Get()
	if len(got.Items) != 1 || got.Items[0].ID != "fresh" {
		t.Fatalf("late response overwrote newer data: %+v", got.Items)
	}
	if fc.sets != 1 {
		t.Fatalf("dropped response must not reach the cache: sets=%d", fc.sets)
	}
}

// ====== mutation flow ======

// fakeBackend records call order and serves canned lists.
type fakeBackend struct {
	mu      sync.Mutex
	trace   *[]string
	meals   []model.Meal
	failing bool
}

func (b *fakeBackend) record(ev string) {
	b.mu.Lock()
	*b.trace = append(*b.trace, ev)
	b.mu.Unlock()
}

func (b *fakeBackend) Meals(_ context.Context) ([]model.Meal, error) {
	b.record("be.meals")
	return b.meals, nil
}

func (b *fakeBackend) CreateMeal(_ context.Context, m model.Meal) (model.Meal, error) {
	if b.failing {
		return model.Meal{}, errors.New("rejected")
	}
	b.record("be.create_meal")
	m.ID = "m-new"
	b.meals = append(b.meals, m)
	return m, nil
}

func (b *fakeBackend) UpdateMeal(_ context.Context, m model.Meal) (model.Meal, error) {
	b.record("be.update_meal")
	return m, nil
}
func (b *fakeBackend) DeleteMeal(_ context.Context, _ string) error {
	b.record("be.delete_meal")
	return nil
}

func (b *fakeBackend) Categories(_ context.Context) ([]model.Category, error) { return nil, nil }
func (b *fakeBackend) CreateCategory(_ context.Context, c model.Category) (model.Category, error) {
	return c, nil
}
func (b *fakeBackend) UpdateCategory(_ context.Context, c model.Category) (model.Category, error) {
	return c, nil
}
func (b *fakeBackend) DeleteCategory(_ context.Context, _ string) error { return nil }

func (b *fakeBackend) Stock(_ context.Context) ([]model.StockItem, error) { return nil, nil }
func (b *fakeBackend) CreateStockItem(_ context.Context, s model.StockItem) (model.StockItem, error) {
	return s, nil
}
func (b *fakeBackend) UpdateStockItem(_ context.Context, s model.StockItem) (model.StockItem, error) {
	return s, nil
}
func (b *fakeBackend) DeleteStockItem(_ context.Context, _ string) error { return nil }

func (b *fakeBackend) Orders(_ context.Context) ([]model.Order, error) { return nil, nil }
func (b *fakeBackend) CreateOrder(_ context.Context, o model.Order) (model.Order, error) {
	return o, nil
}
func (b *fakeBackend) RecordPayment(_ context.Context, p model.Payment) (model.Payment, error) {
	return p, nil
}

func (b *fakeBackend) Tables(_ context.Context) ([]model.Table, error) { return nil, nil }

func newTestCatalog(t *testing.T, be *fakeBackend, trace *[]string) (*Catalog, *state.Store) {
	t.Helper()
	st := state.NewStore()
	cat, err := New(Options{
		Backend: be,
		Store:   st,
		Caches: Caches{
			Meals:      &fakeCache[model.Meal]{name: "meals", trace: trace},
			Categories: &fakeCache[model.Category]{name: "categories", trace: trace},
			Stock:      &fakeCache[model.StockItem]{name: "stock", trace: trace},
			Orders:     &fakeCache[model.Order]{name: "orders", trace: trace},
			Tables:     &fakeCache[model.Table]{name: "tables", trace: trace},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cat, st
}

func TestCreateMealInvalidatesThenRefetches(t *testing.T) {
	var trace []string
	be := &fakeBackend{trace: &trace}
	cat, st := newTestCatalog(t, be, &trace)

	created, err := cat.CreateMeal(context.Background(), model.Meal{Name: "Pizza", Price: 9})
	if err != nil {
		t.Fatalf("CreateMeal: %v", err)
	}
	if created.ID != "m-new" {
		t.Fatalf("created: %+v", created)
	}

	want := []string{"be.create_meal", "invalidate:meals", "be.meals", "set:meals"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q (full: %v)", i, trace[i], want[i], trace)
		}
	}
	if got := st.Meals.Get(); len(got.Items) != 1 || got.FromCache {
		t.Fatalf("store after mutation: %+v", got)
	}
}

func TestFailedMutationLeavesCacheAlone(t *testing.T) {
	var trace []string
	be := &fakeBackend{trace: &trace, failing: true}
	cat, _ := newTestCatalog(t, be, &trace)

	if _, err := cat.CreateMeal(context.Background(), model.Meal{Name: "Pizza"}); err == nil {
		t.Fatalf("expected error from failing backend")
	}
	if len(trace) != 0 {
		t.Fatalf("failed mutation must not invalidate or refetch: %v", trace)
	}
}
