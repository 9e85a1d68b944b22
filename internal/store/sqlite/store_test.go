package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/store"
	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "framevist.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framevist.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen with applied migrations: %v", err)
	}
	second.Close()
}

func TestOrderRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	order := catalog.Order{
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Items: []catalog.OrderItem{{
			LineItem: catalog.LineItem{
				ID:       "cap-1",
				Title:    "Harbor",
				Price:    decimal.RequireFromString("45.50"),
				Quantity: 2,
			},
			ResolvedImage: "https://img.example.com/harbor.png",
		}},
		Subtotal:  decimal.RequireFromString("91.00"),
		Taxes:     decimal.RequireFromString("7.51"),
		Discount:  decimal.Zero,
		Total:     decimal.RequireFromString("98.51"),
		Status:    catalog.OrderStatusConfirmed,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	id, err := s.CreateOrder(ctx, order)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated order id")
	}

	got, err := s.GetOrder(ctx, id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.ID != id || got.CustomerEmail != "ada@example.com" {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got.Total.Equal(order.Total) || !got.Taxes.Equal(order.Taxes) {
		t.Errorf("money fields changed: total=%s taxes=%s", got.Total, got.Taxes)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || got.Items[0].ResolvedImage == "" {
		t.Errorf("unexpected items: %+v", got.Items)
	}
	if !got.CreatedAt.Equal(order.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, order.CreatedAt)
	}

	if _, err := s.GetOrder(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.CreateOrder(ctx, catalog.Order{
			CustomerName:  "c",
			CustomerEmail: "c@example.com",
			Status:        catalog.OrderStatusConfirmed,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	got, err := s.ListOrders(ctx, 2)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Errorf("unexpected order listing: %+v", got)
	}

	all, err := s.ListOrders(ctx, 0)
	if err != nil {
		t.Fatalf("list all orders: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 orders, got %d", len(all))
	}
}

func TestCapsuleLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateCapsule(ctx, catalog.Capsule{
		Title:       "Harbor",
		Price:       decimal.RequireFromString("45"),
		Image:       "https://img.example.com/harbor.png",
		Gallery:     []string{"https://img.example.com/g1.webp"},
		Resolutions: map[string]string{"4k": "https://img.example.com/4k.png"},
		Tags:        []string{"sea"},
	})
	if err != nil {
		t.Fatalf("create capsule: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated capsule id")
	}

	if _, err := s.CreateCapsule(ctx, catalog.Capsule{ID: created.ID, Title: "dup", Price: decimal.NewFromInt(1)}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	if err := s.IncrementPurchaseCount(ctx, created.ID, 3); err != nil {
		t.Fatalf("increment purchases: %v", err)
	}
	if err := s.IncrementCartAddCount(ctx, created.ID, 2); err != nil {
		t.Fatalf("increment cart adds: %v", err)
	}
	if err := s.IncrementViewCount(ctx, created.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	if err := s.SetPublished(ctx, created.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}

	created.Title = "Harbor at Dusk"
	updated, err := s.UpdateCapsule(ctx, created)
	if err != nil {
		t.Fatalf("update capsule: %v", err)
	}
	if updated.Title != "Harbor at Dusk" {
		t.Errorf("title not updated: %q", updated.Title)
	}
	if updated.Stats != (catalog.Stats{Views: 1, CartAdds: 2, Purchases: 3}) {
		t.Errorf("update must keep counters, got %+v", updated.Stats)
	}
	if updated.Resolutions["4k"] == "" || len(updated.Gallery) != 1 {
		t.Errorf("json columns lost: %+v", updated)
	}

	if err := s.IncrementPurchaseCount(ctx, "missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing capsule, got %v", err)
	}

	if err := s.DeleteCapsule(ctx, created.ID); err != nil {
		t.Fatalf("delete capsule: %v", err)
	}
	list, err := s.ListCapsules(ctx)
	if err != nil {
		t.Fatalf("list capsules: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty catalogue, got %d", len(list))
	}
}

func TestPromoUpsertAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	maxDiscount := decimal.NewFromInt(10)
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.UpsertPromo(ctx, catalog.PromoCode{
		Code:        " save20 ",
		Value:       decimal.NewFromInt(20),
		MaxDiscount: &maxDiscount,
		ExpiresAt:   &expires,
	}); err != nil {
		t.Fatalf("upsert promo: %v", err)
	}
	if _, err := s.UpsertPromo(ctx, catalog.PromoCode{
		Code:  "SAVE20",
		Type:  catalog.PromoFlat,
		Value: decimal.NewFromInt(5),
	}); err != nil {
		t.Fatalf("replace promo: %v", err)
	}

	promos, err := s.ListPromos(ctx)
	if err != nil {
		t.Fatalf("list promos: %v", err)
	}
	if len(promos) != 1 {
		t.Fatalf("expected 1 promo, got %d", len(promos))
	}
	p := promos[0]
	if p.Code != "SAVE20" || p.Type != catalog.PromoFlat || !p.Value.Equal(decimal.NewFromInt(5)) {
		t.Errorf("unexpected promo: %+v", p)
	}
	if p.MaxDiscount != nil || p.ExpiresAt != nil {
		t.Errorf("replaced promo kept optional fields: %+v", p)
	}

	if err := s.DeletePromo(ctx, "save20"); err != nil {
		t.Fatalf("delete promo: %v", err)
	}
	if err := s.DeletePromo(ctx, "save20"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjustTagDropsAtZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, step := range []struct {
		name  string
		delta int64
	}{{"Sea", 1}, {"sea", 1}, {"forest", 1}, {"forest", -1}} {
		if err := s.AdjustTag(ctx, step.name, step.delta); err != nil {
			t.Fatalf("adjust %s: %v", step.name, err)
		}
	}

	tags, err := s.ListTags(ctx)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "sea" || tags[0].Count != 2 {
		t.Errorf("unexpected tags: %+v", tags)
	}
}

func TestContactsNormalizeEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.RecordContact(ctx, catalog.CollectorContact{Email: " Ada@Example.COM ", Name: "Ada", OrderID: "o1"}); err != nil {
		t.Fatalf("record contact: %v", err)
	}
	contacts, err := s.ListContacts(ctx)
	if err != nil {
		t.Fatalf("list contacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Email != "ada@example.com" {
		t.Errorf("unexpected contacts: %+v", contacts)
	}
}

func TestCanceledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ListOrders(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSnapshotLoadStateAndReset(t *testing.T) {
	src := openTestStore(t)
	ctx := context.Background()

	capsule, err := src.CreateCapsule(ctx, catalog.Capsule{Title: "Aurora", Price: decimal.NewFromInt(10), Tags: []string{"sky"}})
	if err != nil {
		t.Fatalf("create capsule: %v", err)
	}
	if err := src.IncrementViewCount(ctx, capsule.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	orderID, err := src.CreateOrder(ctx, catalog.Order{CustomerName: "a", CustomerEmail: "a@example.com", Status: catalog.OrderStatusConfirmed})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := src.UpsertPromo(ctx, catalog.PromoCode{Code: "WELCOME", Type: catalog.PromoFlat, Value: decimal.NewFromInt(5)}); err != nil {
		t.Fatalf("upsert promo: %v", err)
	}
	if err := src.AdjustTag(ctx, "sky", 1); err != nil {
		t.Fatalf("adjust tag: %v", err)
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	dst := openTestStore(t)
	if err := dst.LoadState(ctx, data); err != nil {
		t.Fatalf("load state: %v", err)
	}
	got, err := dst.GetCapsule(ctx, capsule.ID)
	if err != nil {
		t.Fatalf("get restored capsule: %v", err)
	}
	if got.Stats.Views != 1 || got.Title != "Aurora" {
		t.Errorf("unexpected restored capsule: %+v", got)
	}
	if _, err := dst.GetOrder(ctx, orderID); err != nil {
		t.Errorf("restored order missing: %v", err)
	}
	if tags, _ := dst.ListTags(ctx); len(tags) != 1 || tags[0].Count != 1 {
		t.Errorf("unexpected restored tags: %+v", tags)
	}

	if err := dst.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if list, _ := dst.ListCapsules(ctx); len(list) != 0 {
		t.Errorf("expected empty catalogue after reset, got %d", len(list))
	}
	if err := dst.LoadState(ctx, []byte("{not json")); err == nil {
		t.Error("expected error for malformed state")
	}
}
