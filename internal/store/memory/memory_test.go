package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/store"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Collection[T]
// ---------------------------------------------------------------------------

type testDoc struct {
	Name string `json:"name"`
}

func TestCollectionNextID(t *testing.T) {
	c := NewCollection[testDoc]("cap")
	if id := c.NextID(); id != "cap_0001" {
		t.Errorf("expected cap_0001, got %s", id)
	}
	if id := c.NextID(); id != "cap_0002" {
		t.Errorf("expected cap_0002, got %s", id)
	}
}

func TestCollectionInsertRejectsDuplicate(t *testing.T) {
	c := NewCollection[testDoc]("doc")
	if !c.Insert("a", testDoc{Name: "first"}) {
		t.Fatal("expected first insert to succeed")
	}
	if c.Insert("a", testDoc{Name: "second"}) {
		t.Fatal("expected duplicate insert to fail")
	}
	got, _ := c.Get("a")
	if got.Name != "first" {
		t.Errorf("duplicate insert overwrote document: %+v", got)
	}
}

func TestCollectionLatest(t *testing.T) {
	c := NewCollection[testDoc]("doc")
	for _, n := range []string{"a", "b", "c"} {
		c.Set(n, testDoc{Name: n})
	}

	got := c.Latest(2)
	if len(got) != 2 || got[0].Name != "c" || got[1].Name != "b" {
		t.Errorf("unexpected latest order: %+v", got)
	}
	if all := c.Latest(0); len(all) != 3 {
		t.Errorf("expected all 3 documents, got %d", len(all))
	}
}

func TestCollectionUpdateAndDelete(t *testing.T) {
	c := NewCollection[testDoc]("doc")
	c.Set("a", testDoc{Name: "old"})

	updated, ok, err := c.Update("a", func(d *testDoc) error {
		d.Name = "new"
		return nil
	})
	if !ok || err != nil || updated.Name != "new" {
		t.Fatalf("update: ok=%v err=%v doc=%+v", ok, err, updated)
	}

	_, ok, _ = c.Update("missing", func(*testDoc) error { return nil })
	if ok {
		t.Error("expected update of missing id to report false")
	}

	if !c.Delete("a") || c.Delete("a") {
		t.Error("expected delete to succeed once")
	}
	if c.Count() != 0 {
		t.Errorf("expected empty collection, got %d", c.Count())
	}
}

func TestCollectionLoadSnapshotAdvancesCounter(t *testing.T) {
	c := NewCollection[testDoc]("doc")
	c.LoadSnapshot(map[string]testDoc{"doc_0002": {}, "doc_0001": {}})

	ids := c.List()
	if len(ids) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(ids))
	}
	if id := c.NextID(); id != "doc_0003" {
		t.Errorf("expected doc_0003 after loading 2 documents, got %s", id)
	}
}

// ---------------------------------------------------------------------------
// MemoryStore
// ---------------------------------------------------------------------------

func TestCreateAndListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.CreateOrder(ctx, catalog.Order{CustomerEmail: "a@example.com"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	second, _ := s.CreateOrder(ctx, catalog.Order{CustomerEmail: "b@example.com"})
	if first == second {
		t.Fatal("expected distinct order ids")
	}

	orders, err := s.ListOrders(ctx, 1)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != second {
		t.Errorf("expected newest order %s first, got %+v", second, orders)
	}

	got, err := s.GetOrder(ctx, first)
	if err != nil || got.CustomerEmail != "a@example.com" {
		t.Errorf("get order: %v %+v", err, got)
	}
	if _, err := s.GetOrder(ctx, "ord_9999"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCapsuleLifecycleAndCounters(t *testing.T) {
	ctx := context.Background()
	s := New()

	c, err := s.CreateCapsule(ctx, catalog.Capsule{Title: "Nebula", Price: decimal.NewFromInt(25)})
	if err != nil {
		t.Fatalf("create capsule: %v", err)
	}
	if c.ID != "cap_0001" {
		t.Errorf("expected cap_0001, got %s", c.ID)
	}

	if _, err := s.CreateCapsule(ctx, catalog.Capsule{ID: c.ID, Title: "dup"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	if err := s.IncrementPurchaseCount(ctx, c.ID, 3); err != nil {
		t.Fatalf("increment purchases: %v", err)
	}
	if err := s.IncrementCartAddCount(ctx, c.ID, 2); err != nil {
		t.Fatalf("increment cart adds: %v", err)
	}
	if err := s.IncrementViewCount(ctx, c.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}

	c.Title = "Nebula II"
	updated, err := s.UpdateCapsule(ctx, c)
	if err != nil {
		t.Fatalf("update capsule: %v", err)
	}
	if updated.Title != "Nebula II" {
		t.Errorf("expected updated title, got %s", updated.Title)
	}
	want := catalog.Stats{Views: 1, CartAdds: 2, Purchases: 3}
	if updated.Stats != want {
		t.Errorf("update must keep stats: got %+v want %+v", updated.Stats, want)
	}

	if err := s.SetPublished(ctx, c.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, _ := s.GetCapsule(ctx, c.ID)
	if !got.Published {
		t.Error("expected capsule to be published")
	}

	if err := s.IncrementPurchaseCount(ctx, "cap_missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing capsule, got %v", err)
	}
	if err := s.DeleteCapsule(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteCapsule(ctx, c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPromoUpsertNormalizesCode(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.UpsertPromo(ctx, catalog.PromoCode{Code: " save10 ", Value: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.UpsertPromo(ctx, catalog.PromoCode{Code: "SAVE10", Value: decimal.NewFromInt(15)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	promos, _ := s.ListPromos(ctx)
	if len(promos) != 1 {
		t.Fatalf("expected 1 promo, got %d", len(promos))
	}
	if promos[0].Code != "SAVE10" || !promos[0].Value.Equal(decimal.NewFromInt(15)) {
		t.Errorf("unexpected promo: %+v", promos[0])
	}
	if promos[0].Type != catalog.PromoPercentage {
		t.Errorf("expected default type percentage, got %s", promos[0].Type)
	}

	if err := s.DeletePromo(ctx, "save10"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeletePromo(ctx, "save10"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestContactNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.RecordContact(ctx, catalog.CollectorContact{Email: "  Ada@Example.COM ", Name: " Ada ", OrderID: "ord_0001"})
	if err != nil {
		t.Fatalf("record contact: %v", err)
	}
	contacts, _ := s.ListContacts(ctx)
	if len(contacts) != 1 || contacts[0].ID != id {
		t.Fatalf("unexpected contacts: %+v", contacts)
	}
	if contacts[0].Email != "ada@example.com" || contacts[0].Name != "Ada" {
		t.Errorf("contact not normalized: %+v", contacts[0])
	}
}

func TestAdjustTagDropsAtZero(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.AdjustTag(ctx, "Cosmic", 2)
	s.AdjustTag(ctx, "noir", 1)
	s.AdjustTag(ctx, "cosmic", -1)
	s.AdjustTag(ctx, "noir", -1)

	tags, _ := s.ListTags(ctx)
	if len(tags) != 1 || tags[0].Name != "cosmic" || tags[0].Count != 1 {
		t.Errorf("unexpected tags: %+v", tags)
	}
}

func TestSnapshotRoundTripAndReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.CreateCapsule(ctx, catalog.Capsule{Title: "Aurora", Price: decimal.NewFromInt(10)})
	s.UpsertPromo(ctx, catalog.PromoCode{Code: "WELCOME", Type: catalog.PromoFlat, Value: decimal.NewFromInt(5)})
	s.AdjustTag(ctx, "sky", 1)

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	restored := New()
	if err := restored.LoadState(ctx, data); err != nil {
		t.Fatalf("load state: %v", err)
	}
	if restored.Capsules.Count() != 1 {
		t.Errorf("expected 1 capsule, got %d", restored.Capsules.Count())
	}
	promos, _ := restored.ListPromos(ctx)
	if len(promos) != 1 || promos[0].Code != "WELCOME" {
		t.Errorf("unexpected promos: %+v", promos)
	}

	if err := restored.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if restored.Capsules.Count() != 0 {
		t.Error("expected reset to clear capsules")
	}
	if tags, _ := restored.ListTags(ctx); len(tags) != 0 {
		t.Errorf("expected reset to clear tags, got %+v", tags)
	}

	if err := restored.LoadState(ctx, []byte("{not json")); err == nil {
		t.Error("expected error for malformed state")
	}
}
