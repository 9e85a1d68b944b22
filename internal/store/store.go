// Package store defines the document-store collaborators used by the
// storefront and admin console.
package store

import (
	"context"
	"errors"

	"github.com/framevist/framevist/internal/catalog"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a record id is already taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// OrderStore persists orders.
type OrderStore interface {
	// CreateOrder stores the order and returns its assigned id.
	CreateOrder(ctx context.Context, order catalog.Order) (string, error)
	GetOrder(ctx context.Context, id string) (catalog.Order, error)
	// ListOrders returns up to limit orders, newest first. limit <= 0 means all.
	ListOrders(ctx context.Context, limit int) ([]catalog.Order, error)
}

// CatalogueStore persists capsules and their analytics counters.
type CatalogueStore interface {
	GetCapsule(ctx context.Context, id string) (catalog.Capsule, error)
	ListCapsules(ctx context.Context) ([]catalog.Capsule, error)
	// CreateCapsule stores a new capsule, assigning an id when empty.
	CreateCapsule(ctx context.Context, capsule catalog.Capsule) (catalog.Capsule, error)
	UpdateCapsule(ctx context.Context, capsule catalog.Capsule) (catalog.Capsule, error)
	DeleteCapsule(ctx context.Context, id string) error
	SetPublished(ctx context.Context, id string, published bool) error

	IncrementPurchaseCount(ctx context.Context, id string, qty int) error
	IncrementCartAddCount(ctx context.Context, id string, qty int) error
	IncrementViewCount(ctx context.Context, id string) error
}

// ContactStore records collector contacts.
type ContactStore interface {
	RecordContact(ctx context.Context, contact catalog.CollectorContact) (string, error)
	ListContacts(ctx context.Context) ([]catalog.CollectorContact, error)
}

// PromoStore persists promo codes keyed by canonical code.
type PromoStore interface {
	ListPromos(ctx context.Context) ([]catalog.PromoCode, error)
	UpsertPromo(ctx context.Context, promo catalog.PromoCode) (catalog.PromoCode, error)
	DeletePromo(ctx context.Context, code string) error
}

// TagStore is a usage-counted tag registry.
type TagStore interface {
	// AdjustTag adds delta to the tag's count; tags at or below zero are removed.
	AdjustTag(ctx context.Context, name string, delta int64) error
	ListTags(ctx context.Context) ([]catalog.Tag, error)
}

// Stores bundles every collaborator a backend provides.
type Stores interface {
	OrderStore
	CatalogueStore
	ContactStore
	PromoStore
	TagStore
}

// State is the portable JSON form of a backend's full contents, keyed by
// record id (promos by code, tags by name).
type State struct {
	Orders   map[string]catalog.Order            `json:"orders"`
	Capsules map[string]catalog.Capsule          `json:"capsules"`
	Contacts map[string]catalog.CollectorContact `json:"contacts"`
	Promos   map[string]catalog.PromoCode        `json:"promos"`
	Tags     map[string]int64                    `json:"tags"`
}

// StateStore is implemented by backends that support admin snapshot,
// restore and reset.
type StateStore interface {
	Snapshot(ctx context.Context) (State, error)
	LoadState(ctx context.Context, data []byte) error
	Reset(ctx context.Context) error
}
