package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/framevist/framevist/internal/analytics"
	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/pkg/webkit"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds an admin image upload.
const maxUploadBytes = 20 << 20

// resetter is implemented by bundle stores that can be emptied.
type resetter interface {
	Reset()
}

func (h *Handler) AdminListCapsules(w http.ResponseWriter, r *http.Request) {
	capsules, err := h.catalogue.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": capsules})
}

func (h *Handler) AdminGetCapsule(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalogue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, c)
}

func (h *Handler) AdminCreateCapsule(w http.ResponseWriter, r *http.Request) {
	var c catalog.Capsule
	if err := webkit.DecodeJSON(r, &c); err != nil {
		badRequest(w, err)
		return
	}
	h.saveCapsule(w, r, c, http.StatusCreated)
}

func (h *Handler) AdminUpdateCapsule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.catalogue.Get(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	var c catalog.Capsule
	if err := webkit.DecodeJSON(r, &c); err != nil {
		badRequest(w, err)
		return
	}
	c.ID = id
	h.saveCapsule(w, r, c, http.StatusOK)
}

func (h *Handler) saveCapsule(w http.ResponseWriter, r *http.Request, c catalog.Capsule, status int) {
	if err := c.Validate(); err != nil {
		unprocessable(w, "invalid-capsule", err)
		return
	}
	saved, err := h.catalogue.SaveCapsule(r.Context(), c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("capsule saved", "id", saved.ID, "published", saved.Published)
	webkit.JSON(w, status, saved)
}

func (h *Handler) AdminDeleteCapsule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalogue.DeleteCapsule(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (h *Handler) AdminPublishCapsule(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

func (h *Handler) AdminUnpublishCapsule(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

func (h *Handler) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	c, err := h.catalogue.SetPublished(r.Context(), chi.URLParam(r, "id"), published)
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, c)
}

func (h *Handler) AdminListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := h.stores.ListPromos(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": promos})
}

// AdminUpsertPromo creates or replaces the promo named in the path.
func (h *Handler) AdminUpsertPromo(w http.ResponseWriter, r *http.Request) {
	var p catalog.PromoCode
	if err := webkit.DecodeJSON(r, &p); err != nil {
		badRequest(w, err)
		return
	}
	p.Code = chi.URLParam(r, "code")
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		unprocessable(w, "invalid-promo", err)
		return
	}
	saved, err := h.stores.UpsertPromo(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, saved)
}

func (h *Handler) AdminDeletePromo(w http.ResponseWriter, r *http.Request) {
	code := catalog.NormalizeCode(chi.URLParam(r, "code"))
	if err := h.stores.DeletePromo(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"code": code, "deleted": true})
}

// AdminListOrders returns orders newest first, ?limit= caps the count.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			webkit.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	orders, err := h.stores.ListOrders(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.stores.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, order)
}

func (h *Handler) AdminListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.stores.ListContacts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": contacts})
}

// AdminUploadImage forwards a multipart "file" field to the image host.
func (h *Handler) AdminUploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		webkit.Error(w, http.StatusServiceUnavailable, "image host is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		webkit.Error(w, http.StatusBadRequest, "multipart field \"file\" is required: "+err.Error())
		return
	}
	defer file.Close()

	img, err := h.images.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("image uploaded", "filename", header.Filename, "url", img.URL)
	webkit.JSON(w, http.StatusCreated, img)
}

// AdminAnalytics summarizes orders and capsule counters for ?window=.
func (h *Handler) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	window, err := analytics.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := h.stores.ListOrders(r.Context(), 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	capsules, err := h.catalogue.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, analytics.Summarize(orders, capsules, window, h.now()))
}

// AdminGetState returns a snapshot of every store.
func (h *Handler) AdminGetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.state.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, state)
}

// AdminLoadState replaces every store with the posted snapshot.
func (h *Handler) AdminLoadState(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		webkit.Error(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := h.state.LoadState(r.Context(), data); err != nil {
		webkit.Error(w, http.StatusBadRequest, "invalid state: "+err.Error())
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AdminReset clears the stores, carts, bundles and request log.
func (h *Handler) AdminReset(w http.ResponseWriter, r *http.Request) {
	if h.pipeline != nil {
		h.pipeline.Wait()
	}
	err := h.state.Reset(r.Context())
	if h.carts != nil {
		err = errors.Join(err, h.carts.Reset())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if b, ok := h.bundles.(resetter); ok {
		b.Reset()
	}
	if h.mw != nil {
		h.mw.ReqLog.Clear()
	}
	h.logger.Info("storefront state reset")
	webkit.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// AdminRequests lists recent requests, newest last.
func (h *Handler) AdminRequests(w http.ResponseWriter, r *http.Request) {
	var entries []webkit.RequestLogEntry
	if h.mw != nil {
		entries = h.mw.ReqLog.Entries()
	}
	if entries == nil {
		entries = []webkit.RequestLogEntry{}
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
