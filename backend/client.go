// Package backend is the REST client for the POS backend. It owns the wire
// contract (the {data, message} envelope) and the error taxonomy; callers
// see typed records and classified errors, never raw HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/tillfront"
	"github.com/tillworks/tillfront/model"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	base *url.URL
	hc   *http.Client
	log  tillfront.Logger

	mu    sync.RWMutex
	token string

	newID func() string // request id generator; uuid by default
}

type Options struct {
	// Required
	BaseURL string

	HTTPClient *http.Client // nil => http.Client with 15s timeout
	Logger     tillfront.Logger
	Token      string // initial session token, if resuming a session
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("backend: base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		base:  base,
		hc:    hc,
		log:   coalesceLogger(opts.Logger),
		token: opts.Token,
		newID: uuid.NewString,
	}, nil
}

func coalesceLogger(l tillfront.Logger) tillfront.Logger {
	if l == nil {
		return tillfront.NopLogger{}
	}
	return l
}

// SetToken installs the session token used for subsequent requests.
func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope is the backend's uniform response shape.
type envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message"`
}

type errBody struct {
	Message string `json:"message"`
}

// do performs one request and decodes the success envelope into T.
func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var zero T

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("backend: encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return zero, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", c.newID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("request failed", tillfront.Fields{"method": method, "path": path, "err": err})
		return zero, netErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return zero, netErr(err)
	}

	if resp.StatusCode >= 400 {
		var eb errBody
		_ = json.Unmarshal(raw, &eb) // body may be empty or non-JSON
		cerr := classify(resp.StatusCode, eb.Message)
		c.log.Debug("request rejected", tillfront.Fields{
			"method": method, "path": path, "status": resp.StatusCode, "kind": cerr.Kind.String(),
		})
		return zero, cerr
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("backend: decode response: %w", err)
	}
	return env.Data, nil
}

// ---- auth ----

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginData struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login authenticates the operator and installs the returned token on the
// client.
func (c *Client) Login(ctx context.Context, username, password string) (model.User, error) {
	data, err := do[loginData](ctx, c, http.MethodPost, "/auth/login", nil, loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return model.User{}, err
	}
	c.SetToken(data.Token)
	return data.User, nil
}

// ---- meals ----

func (c *Client) Meals(ctx context.Context) ([]model.Meal, error) {
	return do[[]model.Meal](ctx, c, http.MethodGet, "/meals", nil, nil)
}

func (c *Client) CreateMeal(ctx context.Context, m model.Meal) (model.Meal, error) {
	return do[model.Meal](ctx, c, http.MethodPost, "/meals", nil, m)
}

func (c *Client) UpdateMeal(ctx context.Context, m model.Meal) (model.Meal, error) {
	return do[model.Meal](ctx, c, http.MethodPut, "/meals/"+url.PathEscape(m.ID), nil, m)
}

func (c *Client) DeleteMeal(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, "/meals/"+url.PathEscape(id), nil, nil)
	return err
}

// ---- categories ----

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	return do[[]model.Category](ctx, c, http.MethodGet, "/categories", nil, nil)
}

func (c *Client) CreateCategory(ctx context.Context, cat model.Category) (model.Category, error) {
	return do[model.Category](ctx, c, http.MethodPost, "/categories", nil, cat)
}

func (c *Client) UpdateCategory(ctx context.Context, cat model.Category) (model.Category, error) {
	return do[model.Category](ctx, c, http.MethodPut, "/categories/"+url.PathEscape(cat.ID), nil, cat)
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil)
	return err
}

// ---- stock ----

func (c *Client) Stock(ctx context.Context) ([]model.StockItem, error) {
	return do[[]model.StockItem](ctx, c, http.MethodGet, "/stock", nil, nil)
}

func (c *Client) CreateStockItem(ctx context.Context, s model.StockItem) (model.StockItem, error) {
	return do[model.StockItem](ctx, c, http.MethodPost, "/stock", nil, s)
}

func (c *Client) UpdateStockItem(ctx context.Context, s model.StockItem) (model.StockItem, error) {
	return do[model.StockItem](ctx, c, http.MethodPut, "/stock/"+url.PathEscape(s.ID), nil, s)
}

func (c *Client) DeleteStockItem(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, "/stock/"+url.PathEscape(id), nil, nil)
	return err
}

// ---- orders & payments ----

func (c *Client) Orders(ctx context.Context) ([]model.Order, error) {
	return do[[]model.Order](ctx, c, http.MethodGet, "/orders", nil, nil)
}

func (c *Client) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	return do[model.Order](ctx, c, http.MethodPost, "/orders", nil, o)
}

func (c *Client) RecordPayment(ctx context.Context, p model.Payment) (model.Payment, error) {
	return do[model.Payment](ctx, c, http.MethodPost, "/payments", nil, p)
}

// ---- shifts ----

// CurrentShift returns the operator's open shift, or nil when none is open.
func (c *Client) CurrentShift(ctx context.Context) (*model.Shift, error) {
	sh, err := do[*model.Shift](ctx, c, http.MethodGet, "/shifts/current", nil, nil)
	if err != nil {
		var be *Error
		// The backend reports "no open shift" as a 404; that is an answer,
		// not a failure.
		if errors.As(err, &be) && be.Kind == KindValidation && be.Status == 404 {
			return nil, nil
		}
		return nil, err
	}
	return sh, nil
}

// Shifts lists the operator's shifts; with all=true (managers) every
// operator's shifts.
func (c *Client) Shifts(ctx context.Context, all bool) ([]model.Shift, error) {
	var q url.Values
	if all {
		q = url.Values{"all": {"1"}}
	}
	return do[[]model.Shift](ctx, c, http.MethodGet, "/shifts", q, nil)
}

type startShiftRequest struct {
	StartBalance float64 `json:"startBalance"`
}

func (c *Client) StartShift(ctx context.Context, startBalance float64) (model.Shift, error) {
	return do[model.Shift](ctx, c, http.MethodPost, "/shifts", nil, startShiftRequest{StartBalance: startBalance})
}

type endShiftRequest struct {
	EndBalance float64 `json:"endBalance"`
}

func (c *Client) EndShift(ctx context.Context, endBalance float64) (model.Shift, error) {
	return do[model.Shift](ctx, c, http.MethodPatch, "/shifts/current", nil, endShiftRequest{EndBalance: endBalance})
}

// ---- tables ----

func (c *Client) Tables(ctx context.Context) ([]model.Table, error) {
	return do[[]model.Table](ctx, c, http.MethodGet, "/tables", nil, nil)
}
