// Package api implements the Frame Vist storefront and admin HTTP handlers.
package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/framevist/framevist/internal/bundle"
	"github.com/framevist/framevist/internal/cart"
	"github.com/framevist/framevist/internal/checkout"
	"github.com/framevist/framevist/internal/imagehost"
	"github.com/framevist/framevist/internal/inventory"
	"github.com/framevist/framevist/internal/store"
	"github.com/framevist/framevist/pkg/webkit"
	"github.com/go-chi/chi/v5"
)

// ImageUploader stores an uploaded image and returns its public location.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (imagehost.Image, error)
}

// Deps are the collaborators a Handler serves.
type Deps struct {
	Stores    store.Stores
	State     store.StateStore
	Catalogue *inventory.Service
	Carts     *cart.Sessions
	Pipeline  *checkout.Pipeline
	Bundles   bundle.Store
	Images    ImageUploader
	Auth      *Authenticator
	// Middleware exposes the request log on /admin/requests.
	Middleware *webkit.Middleware
	Logger     *slog.Logger
	Now        func() time.Time
}

// Handler holds all API handler state.
type Handler struct {
	stores    store.Stores
	state     store.StateStore
	catalogue *inventory.Service
	carts     *cart.Sessions
	pipeline  *checkout.Pipeline
	bundles   bundle.Store
	images    ImageUploader
	auth      *Authenticator
	mw        *webkit.Middleware
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		stores:    d.Stores,
		state:     d.State,
		catalogue: d.Catalogue,
		carts:     d.Carts,
		pipeline:  d.Pipeline,
		bundles:   d.Bundles,
		images:    d.Images,
		auth:      d.Auth,
		mw:        d.Middleware,
		logger:    d.Logger,
		now:       d.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.catalogue == nil {
		h.catalogue = inventory.New(d.Stores, d.Stores)
	}
	return h
}

// Routes mounts the storefront and admin routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/capsules", h.ListCapsules)
		r.Get("/capsules/{id}", h.GetCapsule)
		r.Get("/tags", h.ListTags)

		r.Get("/carts/{cartID}", h.GetCart)
		r.Post("/carts/{cartID}/items", h.AddCartItem)
		r.Patch("/carts/{cartID}/items/{itemID}", h.UpdateCartItem)
		r.Delete("/carts/{cartID}/items/{itemID}", h.RemoveCartItem)
		r.Delete("/carts/{cartID}", h.ClearCart)
		r.Post("/carts/{cartID}/checkout", h.Checkout)

		r.Post("/cart/summary", h.CartSummary)
		r.Post("/promos/validate", h.ValidatePromo)

		r.Get("/orders/{id}/bundle", h.DownloadBundle)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/capsules", h.AdminListCapsules)
		r.Post("/capsules", h.AdminCreateCapsule)
		r.Get("/capsules/{id}", h.AdminGetCapsule)
		r.Put("/capsules/{id}", h.AdminUpdateCapsule)
		r.Delete("/capsules/{id}", h.AdminDeleteCapsule)
		r.Post("/capsules/{id}/publish", h.AdminPublishCapsule)
		r.Post("/capsules/{id}/unpublish", h.AdminUnpublishCapsule)

		r.Get("/promos", h.AdminListPromos)
		r.Put("/promos/{code}", h.AdminUpsertPromo)
		r.Delete("/promos/{code}", h.AdminDeletePromo)

		r.Get("/orders", h.AdminListOrders)
		r.Get("/orders/{id}", h.AdminGetOrder)
		r.Get("/contacts", h.AdminListContacts)
		r.Get("/tags", h.ListTags)

		r.Post("/images", h.AdminUploadImage)
		r.Get("/analytics", h.AdminAnalytics)

		r.Get("/state", h.AdminGetState)
		r.Post("/state", h.AdminLoadState)
		r.Post("/reset", h.AdminReset)
		r.Get("/requests", h.AdminRequests)
	})
}
