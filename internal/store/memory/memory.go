// Package memory implements the storefront stores in memory. State can be
// snapshotted, reloaded and reset through the admin console.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/store"
)

// MemoryStore holds all storefront state in memory.
type MemoryStore struct {
	Orders   *Collection[catalog.Order]
	Capsules *Collection[catalog.Capsule]
	Contacts *Collection[catalog.CollectorContact]

	mu     sync.RWMutex
	promos map[string]catalog.PromoCode
	tags   map[string]int64

	// Now is the store's clock; tests may replace it.
	Now func() time.Time
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		Orders:   NewCollection[catalog.Order]("ord"),
		Capsules: NewCollection[catalog.Capsule]("cap"),
		Contacts: NewCollection[catalog.CollectorContact]("col"),
		promos:   make(map[string]catalog.PromoCode),
		tags:     make(map[string]int64),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder stores an order and returns its assigned id.
func (s *MemoryStore) CreateOrder(ctx context.Context, order catalog.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.Now()
	}
	for {
		order.ID = s.Orders.NextID()
		if s.Orders.Insert(order.ID, order) {
			return order.ID, nil
		}
	}
}

// GetOrder returns one order.
func (s *MemoryStore) GetOrder(ctx context.Context, id string) (catalog.Order, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Order{}, err
	}
	order, ok := s.Orders.Get(id)
	if !ok {
		return catalog.Order{}, store.ErrNotFound
	}
	return order, nil
}

// ListOrders returns up to limit orders, newest first.
func (s *MemoryStore) ListOrders(ctx context.Context, limit int) ([]catalog.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Latest is already newest-inserted first; the stable sort only matters
	// for snapshots loaded out of creation order.
	orders := s.Orders.Latest(0)
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// ---------------------------------------------------------------------------
// Capsules
// ---------------------------------------------------------------------------

// GetCapsule returns one capsule.
func (s *MemoryStore) GetCapsule(ctx context.Context, id string) (catalog.Capsule, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Capsule{}, err
	}
	c, ok := s.Capsules.Get(id)
	if !ok {
		return catalog.Capsule{}, store.ErrNotFound
	}
	return c, nil
}

// ListCapsules returns every capsule in creation order.
func (s *MemoryStore) ListCapsules(ctx context.Context) ([]catalog.Capsule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Capsules.List(), nil
}

// CreateCapsule stores a new capsule, generating an id when none is given.
func (s *MemoryStore) CreateCapsule(ctx context.Context, c catalog.Capsule) (catalog.Capsule, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Capsule{}, err
	}
	now := s.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Stats = catalog.Stats{}

	if id := strings.TrimSpace(c.ID); id != "" {
		c.ID = id
		if !s.Capsules.Insert(id, c) {
			return catalog.Capsule{}, store.ErrAlreadyExists
		}
		return c, nil
	}
	for {
		c.ID = s.Capsules.NextID()
		if s.Capsules.Insert(c.ID, c) {
			return c, nil
		}
	}
}

// UpdateCapsule replaces the editable fields, keeping stats and creation time.
func (s *MemoryStore) UpdateCapsule(ctx context.Context, c catalog.Capsule) (catalog.Capsule, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Capsule{}, err
	}
	now := s.Now()
	updated, ok, _ := s.Capsules.Update(c.ID, func(existing *catalog.Capsule) error {
		c.Stats = existing.Stats
		c.CreatedAt = existing.CreatedAt
		c.UpdatedAt = now
		*existing = c
		return nil
	})
	if !ok {
		return catalog.Capsule{}, store.ErrNotFound
	}
	return updated, nil
}

// DeleteCapsule removes a capsule.
func (s *MemoryStore) DeleteCapsule(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Capsules.Delete(id) {
		return store.ErrNotFound
	}
	return nil
}

// SetPublished toggles storefront visibility.
func (s *MemoryStore) SetPublished(ctx context.Context, id string, published bool) error {
	return s.updateCapsule(ctx, id, func(c *catalog.Capsule) {
		c.Published = published
		c.UpdatedAt = s.Now()
	})
}

// IncrementPurchaseCount adds qty to the purchase counter.
func (s *MemoryStore) IncrementPurchaseCount(ctx context.Context, id string, qty int) error {
	return s.updateCapsule(ctx, id, func(c *catalog.Capsule) { c.Stats.Purchases += int64(qty) })
}

// IncrementCartAddCount adds qty to the cart-add counter.
func (s *MemoryStore) IncrementCartAddCount(ctx context.Context, id string, qty int) error {
	return s.updateCapsule(ctx, id, func(c *catalog.Capsule) { c.Stats.CartAdds += int64(qty) })
}

// IncrementViewCount adds one view.
func (s *MemoryStore) IncrementViewCount(ctx context.Context, id string) error {
	return s.updateCapsule(ctx, id, func(c *catalog.Capsule) { c.Stats.Views++ })
}

func (s *MemoryStore) updateCapsule(ctx context.Context, id string, fn func(*catalog.Capsule)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, ok, _ := s.Capsules.Update(id, func(c *catalog.Capsule) error {
		fn(c)
		return nil
	})
	if !ok {
		return fmt.Errorf("capsule %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// RecordContact appends a collector contact.
func (s *MemoryStore) RecordContact(ctx context.Context, contact catalog.CollectorContact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contact.Email = catalog.NormalizeEmail(contact.Email)
	contact.Name = strings.TrimSpace(contact.Name)
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = s.Now()
	}
	for {
		contact.ID = s.Contacts.NextID()
		if s.Contacts.Insert(contact.ID, contact) {
			return contact.ID, nil
		}
	}
}

// ListContacts returns all contacts in insertion order.
func (s *MemoryStore) ListContacts(ctx context.Context) ([]catalog.CollectorContact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Contacts.List(), nil
}

// ---------------------------------------------------------------------------
// Promos
// ---------------------------------------------------------------------------

// ListPromos returns promo codes sorted by code.
func (s *MemoryStore) ListPromos(ctx context.Context) ([]catalog.PromoCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.PromoCode, 0, len(s.promos))
	for _, p := range s.promos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// UpsertPromo creates or replaces a promo keyed by its canonical code.
func (s *MemoryStore) UpsertPromo(ctx context.Context, promo catalog.PromoCode) (catalog.PromoCode, error) {
	if err := ctx.Err(); err != nil {
		return catalog.PromoCode{}, err
	}
	promo = promo.Normalize()
	now := s.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.promos[promo.Code]; ok {
		promo.CreatedAt = existing.CreatedAt
	} else {
		promo.CreatedAt = now
	}
	promo.UpdatedAt = now
	s.promos[promo.Code] = promo
	return promo, nil
}

// DeletePromo removes a promo by code.
func (s *MemoryStore) DeletePromo(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := catalog.NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promos[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.promos, key)
	return nil
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

// AdjustTag changes a tag's usage count, dropping it at zero.
func (s *MemoryStore) AdjustTag(ctx context.Context, name string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = catalog.NormalizeTag(name)
	if name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.tags[name] + delta
	if n <= 0 {
		delete(s.tags, name)
		return nil
	}
	s.tags[name] = n
	return nil
}

// ListTags returns tags by descending count, then name.
func (s *MemoryStore) ListTags(ctx context.Context) ([]catalog.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Tag, 0, len(s.tags))
	for name, n := range s.tags {
		out = append(out, catalog.Tag{Name: name, Count: n})
	}
	sortTags(out)
	return out, nil
}

func sortTags(tags []catalog.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Name < tags[j].Name
	})
}

// ---------------------------------------------------------------------------
// Admin state
// ---------------------------------------------------------------------------

// Snapshot returns the full state.
func (s *MemoryStore) Snapshot(ctx context.Context) (store.State, error) {
	if err := ctx.Err(); err != nil {
		return store.State{}, err
	}
	s.mu.RLock()
	promos := make(map[string]catalog.PromoCode, len(s.promos))
	for k, v := range s.promos {
		promos[k] = v
	}
	tags := make(map[string]int64, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	s.mu.RUnlock()

	return store.State{
		Orders:   s.Orders.Snapshot(),
		Capsules: s.Capsules.Snapshot(),
		Contacts: s.Contacts.Snapshot(),
		Promos:   promos,
		Tags:     tags,
	}, nil
}

// LoadState replaces the full state from a JSON body.
func (s *MemoryStore) LoadState(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var snap store.State
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	s.Orders.LoadSnapshot(snap.Orders)
	s.Capsules.LoadSnapshot(snap.Capsules)
	s.Contacts.LoadSnapshot(snap.Contacts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.promos = make(map[string]catalog.PromoCode, len(snap.Promos))
	for _, p := range snap.Promos {
		p = p.Normalize()
		s.promos[p.Code] = p
	}
	s.tags = make(map[string]int64, len(snap.Tags))
	for k, v := range snap.Tags {
		if v > 0 {
			s.tags[catalog.NormalizeTag(k)] = v
		}
	}
	return nil
}

// Reset clears all state.
func (s *MemoryStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Orders.Reset()
	s.Capsules.Reset()
	s.Contacts.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.promos = make(map[string]catalog.PromoCode)
	s.tags = make(map[string]int64)
	return nil
}

var _ store.StateStore = (*MemoryStore)(nil)
var _ store.Stores = (*MemoryStore)(nil)
