package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/shopspring/decimal"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}` + "\n"))
	})
	mux.HandleFunc("POST /admin/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, `{"error":{"message":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"status":"reset"}`))
	})
	mux.HandleFunc("POST /admin/state", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"orders":{}}` {
			t.Errorf("unexpected seed body %s", body)
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /admin/orders", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("expected limit=2, got %q", got)
		}
		w.Write([]byte(`{"data":[{"id":"ord_0002","total":"10.83"},{"id":"ord_0001","total":"5"}]}`))
	})
	mux.HandleFunc("PUT /admin/promos/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"` + r.PathValue("code") + `","type":"flat","value":"5","minimum_subtotal":"0"}`))
	})
	mux.HandleFunc("GET /admin/analytics", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"window":"` + r.URL.Query().Get("window") + `","orders":3,"revenue":"42.5"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	ok, body := New(srv.URL+"/", "").Health(context.Background())
	if !ok || body != `{"status":"ok"}` {
		t.Errorf("expected healthy, got ok=%v body=%q", ok, body)
	}
}

func TestResetRequiresToken(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	_, err := New(srv.URL, "").Reset(ctx)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}

	body, err := New(srv.URL, "tok").Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if body != `{"status":"reset"}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestSeed(t *testing.T) {
	srv := newServer(t)
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"orders":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(srv.URL, "tok").Seed(context.Background(), path); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := New(srv.URL, "tok").Seed(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing seed file")
	}
}

func TestListOrders(t *testing.T) {
	srv := newServer(t)
	orders, err := New(srv.URL, "tok").ListOrders(context.Background(), 2)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "ord_0002" {
		t.Fatalf("unexpected orders %+v", orders)
	}
	if !orders[0].Total.Equal(decimal.RequireFromString("10.83")) {
		t.Errorf("expected total 10.83, got %s", orders[0].Total)
	}
}

func TestUpsertPromoAndAnalytics(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, "tok")
	ctx := context.Background()

	saved, err := c.UpsertPromo(ctx, catalog.PromoCode{Code: "FIVE", Type: catalog.PromoFlat, Value: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved.Code != "FIVE" || saved.Type != catalog.PromoFlat {
		t.Errorf("unexpected promo %+v", saved)
	}

	summary, err := c.Analytics(ctx, "30d")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if summary.Window != "30d" || summary.Orders != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}
}
