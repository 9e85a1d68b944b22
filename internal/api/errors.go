package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/framevist/framevist/internal/bundle"
	"github.com/framevist/framevist/internal/checkout"
	"github.com/framevist/framevist/internal/imagehost"
	"github.com/framevist/framevist/internal/store"
	"github.com/framevist/framevist/pkg/webkit"
)

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		verr   *checkout.ValidationError
		perr   *checkout.PersistenceError
		cfgErr *imagehost.ConfigurationError
	)
	switch {
	case errors.As(err, &verr):
		reason := verr.Reason
		if reason == "" {
			reason = "invalid-" + strings.ReplaceAll(verr.Field, "_", "-")
		}
		webkit.ErrorReason(w, http.StatusUnprocessableEntity, reason, verr.Error())
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		webkit.Error(w, http.StatusConflict, err.Error())
	case errors.As(err, &perr):
		webkit.Error(w, http.StatusBadGateway, perr.Error())
	case errors.As(err, &cfgErr):
		webkit.Error(w, http.StatusServiceUnavailable, cfgErr.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, bundle.ErrNotFound):
		webkit.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		webkit.Error(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		webkit.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func badRequest(w http.ResponseWriter, err error) {
	webkit.Error(w, http.StatusBadRequest, err.Error())
}

func unprocessable(w http.ResponseWriter, reason string, err error) {
	webkit.ErrorReason(w, http.StatusUnprocessableEntity, reason, err.Error())
}
