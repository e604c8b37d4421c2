package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/service"
)

// CheckoutHandler starts and abandons payment sessions.
//
// Routes handled:
//   - POST   /api/checkout -> Checkout
//   - DELETE /api/checkout -> Abandon
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// RegisterRoutes registers checkout routes on the provided mux.
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux, mw RouteMiddleware) {
	mux.Handle("POST /api/checkout", mw.authedLimited(h.Checkout))
	mux.Handle("DELETE /api/checkout", mw.authed(h.Abandon))
}

type checkoutRequest struct {
	PackageID       string `json:"packageId"`
	CustomPackageID string `json:"customPackageId"`
	ProductID       string `json:"productId"`
	URLType         string `json:"urlType"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// Checkout returns the gateway URL the client redirects to.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.checkout"

	var req checkoutRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.checkout.Checkout(r.Context(), auth.GetUser(r.Context()), domain.CheckoutSelection{
		PackageID:       req.PackageID,
		CustomPackageID: req.CustomPackageID,
		ProductID:       req.ProductID,
		URLType:         domain.ParseURLType(req.URLType),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

// Abandon releases the caller's held checkout so they can start another,
// for a caller who came back from the gateway without paying.
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Release(r.Context(), auth.GetUser(r.Context())); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
