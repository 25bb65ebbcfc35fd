package catalog

import (
	"context"
	"fmt"

	"github.com/tillworks/tillfront"
	"github.com/tillworks/tillfront/model"
	"github.com/tillworks/tillfront/state"
)

// Backend is the slice of the REST client the catalog drives. *backend.Client
// satisfies it.
type Backend interface {
	Meals(ctx context.Context) ([]model.Meal, error)
	CreateMeal(ctx context.Context, m model.Meal) (model.Meal, error)
	UpdateMeal(ctx context.Context, m model.Meal) (model.Meal, error)
	DeleteMeal(ctx context.Context, id string) error

	Categories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)
	UpdateCategory(ctx context.Context, c model.Category) (model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	Stock(ctx context.Context) ([]model.StockItem, error)
	CreateStockItem(ctx context.Context, s model.StockItem) (model.StockItem, error)
	UpdateStockItem(ctx context.Context, s model.StockItem) (model.StockItem, error)
	DeleteStockItem(ctx context.Context, id string) error

	Orders(ctx context.Context) ([]model.Order, error)
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	RecordPayment(ctx context.Context, p model.Payment) (model.Payment, error)

	Tables(ctx context.Context) ([]model.Table, error)
}

// Caches carries one cache per resource kind. Uncached kinds (orders, tables)
// get a disabled cache so every read goes to the network.
type Caches struct {
	Meals      tillfront.Cache[[]model.Meal]
	Categories tillfront.Cache[[]model.Category]
	Stock      tillfront.Cache[[]model.StockItem]
	Orders     tillfront.Cache[[]model.Order]
	Tables     tillfront.Cache[[]model.Table]
}

// Catalog bundles the terminal's resources and their mutation flows.
type Catalog struct {
	Meals      *Resource[model.Meal]
	Categories *Resource[model.Category]
	Stock      *Resource[model.StockItem]
	Orders     *Resource[model.Order]
	Tables     *Resource[model.Table]

	be  Backend
	log tillfront.Logger
}

type Options struct {
	// Required
	Backend Backend
	Store   *state.Store
	Caches  Caches

	Logger tillfront.Logger
}

func New(opts Options) (*Catalog, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("catalog: backend is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("catalog: store is required")
	}
	log := opts.Logger
	if log == nil {
		log = tillfront.NopLogger{}
	}

	c := &Catalog{be: opts.Backend, log: log}
	var err error
	if c.Meals, err = NewResource(ResourceOptions[model.Meal]{
		Name: "meals", Cache: opts.Caches.Meals, Domain: opts.Store.Meals,
		Fetch: opts.Backend.Meals, Logger: log,
	}); err != nil {
		return nil, err
	}
	if c.Categories, err = NewResource(ResourceOptions[model.Category]{
		Name: "categories", Cache: opts.Caches.Categories, Domain: opts.Store.Categories,
		Fetch: opts.Backend.Categories, Logger: log,
	}); err != nil {
		return nil, err
	}
	if c.Stock, err = NewResource(ResourceOptions[model.StockItem]{
		Name: "stock", Cache: opts.Caches.Stock, Domain: opts.Store.Stock,
		Fetch: opts.Backend.Stock, Logger: log,
	}); err != nil {
		return nil, err
	}
	if c.Orders, err = NewResource(ResourceOptions[model.Order]{
		Name: "orders", Cache: opts.Caches.Orders, Domain: opts.Store.Orders,
		Fetch: opts.Backend.Orders, Logger: log,
	}); err != nil {
		return nil, err
	}
	if c.Tables, err = NewResource(ResourceOptions[model.Table]{
		Name: "tables", Cache: opts.Caches.Tables, Domain: opts.Store.Tables,
		Fetch: opts.Backend.Tables, Logger: log,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCached seeds every domain from the cache, for instant paint on startup.
func (c *Catalog) LoadCached(ctx context.Context) {
	_, _ = c.Meals.LoadCached(ctx)
	_, _ = c.Categories.LoadCached(ctx)
	_, _ = c.Stock.LoadCached(ctx)
	_, _ = c.Orders.LoadCached(ctx)
	_, _ = c.Tables.LoadCached(ctx)
}

// RefreshAll refreshes every resource, returning the first error from a
// resource that had nothing to show.
func (c *Catalog) RefreshAll(ctx context.Context, force bool) error {
	var first error
	keep := func(_ Source, err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(c.Meals.Refresh(ctx, force))
	keep(c.Categories.Refresh(ctx, force))
	keep(c.Stock.Refresh(ctx, force))
	keep(c.Orders.Refresh(ctx, force))
	keep(c.Tables.Refresh(ctx, force))
	return first
}

// refetch invalidates and force-refreshes a resource after a successful
// mutation. It runs strictly after the backend confirmed the write.
func refetch[T any](ctx context.Context, c *Catalog, r *Resource[T]) {
	if err := r.Invalidate(ctx); err != nil {
		c.log.Warn("invalidate after mutation failed", tillfront.Fields{"resource": r.name, "err": err})
	}
	if _, err := r.Refresh(ctx, true); err != nil {
		c.log.Warn("refresh after mutation failed", tillfront.Fields{"resource": r.name, "err": err})
	}
}

// ---- meals ----

func (c *Catalog) CreateMeal(ctx context.Context, m model.Meal) (model.Meal, error) {
	created, err := c.be.CreateMeal(ctx, m)
	if err != nil {
		return model.Meal{}, err
	}
	refetch(ctx, c, c.Meals)
	return created, nil
}

func (c *Catalog) UpdateMeal(ctx context.Context, m model.Meal) (model.Meal, error) {
	updated, err := c.be.UpdateMeal(ctx, m)
	if err != nil {
		return model.Meal{}, err
	}
	refetch(ctx, c, c.Meals)
	return updated, nil
}

func (c *Catalog) DeleteMeal(ctx context.Context, id string) error {
	if err := c.be.DeleteMeal(ctx, id); err != nil {
		return err
	}
	refetch(ctx, c, c.Meals)
	return nil
}

// ---- categories ----

func (c *Catalog) CreateCategory(ctx context.Context, cat model.Category) (model.Category, error) {
	created, err := c.be.CreateCategory(ctx, cat)
	if err != nil {
		return model.Category{}, err
	}
	refetch(ctx, c, c.Categories)
	return created, nil
}

func (c *Catalog) UpdateCategory(ctx context.Context, cat model.Category) (model.Category, error) {
	updated, err := c.be.UpdateCategory(ctx, cat)
	if err != nil {
		return model.Category{}, err
	}
	refetch(ctx, c, c.Categories)
	return updated, nil
}

func (c *Catalog) DeleteCategory(ctx context.Context, id string) error {
	if err := c.be.DeleteCategory(ctx, id); err != nil {
		return err
	}
	refetch(ctx, c, c.Categories)
	// Meals embed their category; drop their cache too so stale names do not
	// linger past the next refresh.
	refetch(ctx, c, c.Meals)
	return nil
}

// ---- stock ----

func (c *Catalog) CreateStockItem(ctx context.Context, s model.StockItem) (model.StockItem, error) {
	created, err := c.be.CreateStockItem(ctx, s)
	if err != nil {
		return model.StockItem{}, err
	}
	refetch(ctx, c, c.Stock)
	return created, nil
}

func (c *Catalog) UpdateStockItem(ctx context.Context, s model.StockItem) (model.StockItem, error) {
	updated, err := c.be.UpdateStockItem(ctx, s)
	if err != nil {
		return model.StockItem{}, err
	}
	refetch(ctx, c, c.Stock)
	return updated, nil
}

func (c *Catalog) DeleteStockItem(ctx context.Context, id string) error {
	if err := c.be.DeleteStockItem(ctx, id); err != nil {
		return err
	}
	refetch(ctx, c, c.Stock)
	return nil
}

// ---- orders & payments ----

func (c *Catalog) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	created, err := c.be.CreateOrder(ctx, o)
	if err != nil {
		return model.Order{}, err
	}
	refetch(ctx, c, c.Orders)
	// Order creation consumes stock server-side.
	refetch(ctx, c, c.Stock)
	return created, nil
}

func (c *Catalog) RecordPayment(ctx context.Context, p model.Payment) (model.Payment, error) {
	recorded, err := c.be.RecordPayment(ctx, p)
	if err != nil {
		return model.Payment{}, err
	}
	refetch(ctx, c, c.Orders)
	return recorded, nil
}
