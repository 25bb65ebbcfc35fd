package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestEnvelopeDecoding(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meals" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"m1","name":"Pasta","price":8.5,"category":"c1"}]}`))
	})

	meals, err := c.Meals(context.Background())
	if err != nil {
		t.Fatalf("Meals: %v", err)
	}
	if len(meals) != 1 || meals[0].ID != "m1" || meals[0].Category.ID != "c1" {
		t.Fatalf("decoded meals: %+v", meals)
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotReqID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	c.SetToken("tok-123")

	if _, err := c.Categories(context.Background()); err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Fatalf("X-Request-Id missing")
	}
}

func TestLoginInstallsToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"token":"sess-1","user":{"id":"u1","username":"ada","role":"cashier"}}}`))
	})

	u, err := c.Login(context.Background(), "ada", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Role != "cashier" {
		t.Fatalf("user role: %q", u.Role)
	}
	if c.Token() != "sess-1" {
		t.Fatalf("token not installed: %q", c.Token())
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantKind  Kind
		wantMsg   string
		retryable bool
	}{
		{"validation_verbatim", 422, `{"message":"price must be positive"}`, KindValidation, "price must be positive", false},
		{"authorization_guidance", 403, `{}`, KindAuthorization, msgAuthorization, false},
		{"unauthorized", 401, ``, KindAuthorization, msgAuthorization, false},
		{"server", 500, `{"message":"boom"}`, KindServer, "boom", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Meals(context.Background())
			var be *Error
			if !errors.As(err, &be) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if be.Kind != tc.wantKind || be.Message != tc.wantMsg || be.Retryable != tc.retryable {
				t.Fatalf("got %+v", be)
			}
		})
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // force connection refused

	c, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Meals(context.Background())
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if be.Kind != KindNetwork || !be.Retryable {
		t.Fatalf("got %+v", be)
	}
}

func TestCurrentShiftAbsentIsNotAnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no open shift"}`))
	})
	sh, err := c.CurrentShift(context.Background())
	if err != nil {
		t.Fatalf("CurrentShift: %v", err)
	}
	if sh != nil {
		t.Fatalf("expected nil shift, got %+v", sh)
	}
}

func TestShiftLifecycleRequests(t *testing.T) {
	var gotStart, gotEnd string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/shifts":
			b, _ := io.ReadAll(r.Body)
			gotStart = string(b)
			_, _ = w.Write([]byte(`{"data":{"id":"s1","startBalance":100,"startedAt":"2026-08-26T08:00:00Z"}}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/shifts/current":
			b, _ := io.ReadAll(r.Body)
			gotEnd = string(b)
			_, _ = w.Write([]byte(`{"data":{"id":"s1","startBalance":100,"endBalance":250,"startedAt":"2026-08-26T08:00:00Z","endedAt":"2026-08-26T16:00:00Z"}}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	sh, err := c.StartShift(context.Background(), 100)
	if err != nil {
		t.Fatalf("StartShift: %v", err)
	}
	if !sh.Open() {
		t.Fatalf("started shift should be open: %+v", sh)
	}
	if gotStart != `{"startBalance":100}` {
		t.Fatalf("start body: %s", gotStart)
	}

	ended, err := c.EndShift(context.Background(), 250)
	if err != nil {
		t.Fatalf("EndShift: %v", err)
	}
	if ended.Open() {
		t.Fatalf("ended shift should be closed: %+v", ended)
	}
	if gotEnd != `{"endBalance":250}` {
		t.Fatalf("end body: %s", gotEnd)
	}
}

func TestShiftsAllQuery(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	if _, err := c.Shifts(context.Background(), true); err != nil {
		t.Fatalf("Shifts: %v", err)
	}
	if gotQuery != "all=1" {
		t.Fatalf("query = %q", gotQuery)
	}
}
