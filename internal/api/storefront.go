package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/framevist/framevist/internal/cart"
	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/checkout"
	"github.com/framevist/framevist/internal/pricing"
	"github.com/framevist/framevist/pkg/webkit"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Health reports the service status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	webkit.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListCapsules returns the published catalogue, optionally filtered by ?tag=.
func (h *Handler) ListCapsules(w http.ResponseWriter, r *http.Request) {
	capsules, err := h.catalogue.ListPublished(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": capsules})
}

// GetCapsule returns one published capsule and counts the view.
func (h *Handler) GetCapsule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.catalogue.GetPublished(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.stores.IncrementViewCount(r.Context(), id); err != nil {
		h.logger.Warn("view count update failed", "capsule", id, "error", err)
	}
	webkit.JSON(w, http.StatusOK, c)
}

// ListTags returns the tag registry.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalogue.Tags(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": tags})
}

type cartResponse struct {
	ID      string             `json:"id"`
	Items   []catalog.LineItem `json:"items"`
	Summary pricing.Summary    `json:"summary"`
}

func newCartResponse(id string, s *cart.Session) cartResponse {
	items := s.Items()
	if items == nil {
		items = []catalog.LineItem{}
	}
	return cartResponse{ID: id, Items: items, Summary: s.Summary().Rounded()}
}

// session opens the cart named in the path. The returned release func must
// be called once the handler is done with the session.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *cart.Session, func(), bool) {
	id := chi.URLParam(r, "cartID")
	s, release, err := h.carts.Get(id)
	if err != nil {
		h.writeError(w, err)
		return "", nil, nil, false
	}
	return id, s, release, true
}

// GetCart returns the cart contents and summary.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	webkit.JSON(w, http.StatusOK, newCartResponse(id, s))
}

// AddCartItem adds a published capsule to the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CapsuleID string `json:"capsule_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := webkit.DecodeJSON(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	if strings.TrimSpace(body.CapsuleID) == "" {
		unprocessable(w, "invalid-capsule-id", errors.New("capsule_id is required"))
		return
	}
	if body.Quantity < 0 {
		unprocessable(w, "invalid-quantity", errors.New("quantity must not be negative"))
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}

	capsule, err := h.catalogue.GetPublished(r.Context(), body.CapsuleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	if err := s.Add(capsule.LineItem(body.Quantity)); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.stores.IncrementCartAddCount(r.Context(), capsule.ID, body.Quantity); err != nil {
		h.logger.Warn("cart add count update failed", "capsule", capsule.ID, "error", err)
	}
	webkit.JSON(w, http.StatusOK, newCartResponse(id, s))
}

// UpdateCartItem sets a line quantity. Zero removes the line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := webkit.DecodeJSON(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	id, s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	itemID := chi.URLParam(r, "itemID")
	found, err := s.SetQuantity(itemID, body.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !found {
		webkit.Error(w, http.StatusNotFound, fmt.Sprintf("item %s is not in the cart", itemID))
		return
	}
	webkit.JSON(w, http.StatusOK, newCartResponse(id, s))
}

// RemoveCartItem drops a line from the cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	itemID := chi.URLParam(r, "itemID")
	found, err := s.Remove(itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !found {
		webkit.Error(w, http.StatusNotFound, fmt.Sprintf("item %s is not in the cart", itemID))
		return
	}
	webkit.JSON(w, http.StatusOK, newCartResponse(id, s))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	if err := s.Clear(); err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, newCartResponse(id, s))
}

// CartSummary prices an arbitrary item list with an optional promo code.
func (h *Handler) CartSummary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items     []catalog.LineItem `json:"items"`
		PromoCode string             `json:"promo_code"`
	}
	if err := webkit.DecodeJSON(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	for _, item := range body.Items {
		if err := item.Validate(); err != nil {
			unprocessable(w, "invalid-items", err)
			return
		}
	}
	var promos []catalog.PromoCode
	if catalog.NormalizeCode(body.PromoCode) != "" {
		var err error
		if promos, err = h.stores.ListPromos(r.Context()); err != nil {
			h.writeError(w, err)
			return
		}
	}
	summary, result := pricing.Price(body.Items, body.PromoCode, promos, h.now())
	webkit.JSON(w, http.StatusOK, map[string]any{
		"summary": summary.Rounded(),
		"promo":   result,
	})
}

// ValidatePromo checks a promo code against a subtotal.
func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code       string           `json:"code"`
		Subtotal   decimal.Decimal  `json:"subtotal"`
		OrderTotal *decimal.Decimal `json:"order_total"`
	}
	if err := webkit.DecodeJSON(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	promos, err := h.stores.ListPromos(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	result := pricing.ValidatePromoCode(body.Code, body.Subtotal, promos, pricing.Context{
		OrderTotal: body.OrderTotal,
		Now:        h.now(),
	})
	result.Discount = result.Discount.Round(2)
	webkit.JSON(w, http.StatusOK, result)
}

// Checkout places an order for the cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		checkout.Customer
		PromoCode string `json:"promo_code"`
	}
	if err := webkit.DecodeJSON(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	_, s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	confirmation, err := h.pipeline.PlaceOrder(r.Context(), s, body.Customer, body.PromoCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusCreated, confirmation)
}

// DownloadBundle streams the asset bundle of an order.
func (h *Handler) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.stores.GetOrder(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	data, err := h.bundles.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="framevist-%s.zip"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("bundle download interrupted", "order_id", id, "error", err)
	}
}
