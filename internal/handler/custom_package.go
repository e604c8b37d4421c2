package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/service"
)

// CustomPackageHandler serves the custom package workflow.
//
// Routes handled:
//   - GET  /api/custom-packages               -> ListPurchasable
//   - POST /api/custom-package-requests       -> SubmitRequest
//   - POST /api/custom-packages/{id}/purchase -> Purchase
type CustomPackageHandler struct {
	customPackages service.CustomPackageService
	logger         *slog.Logger
}

// NewCustomPackageHandler creates a new CustomPackageHandler.
func NewCustomPackageHandler(customPackages service.CustomPackageService, logger *slog.Logger) *CustomPackageHandler {
	return &CustomPackageHandler{
		customPackages: customPackages,
		logger:         logger,
	}
}

// RegisterRoutes registers custom package routes on the provided mux.
// Requests may be submitted before logging in.
func (h *CustomPackageHandler) RegisterRoutes(mux *http.ServeMux, mw RouteMiddleware) {
	mux.Handle("GET /api/custom-packages", mw.authed(h.ListPurchasable))
	mux.Handle("POST /api/custom-package-requests", mw.limited(h.SubmitRequest))
	mux.Handle("POST /api/custom-packages/{id}/purchase", mw.authedLimited(h.Purchase))
}

type customPackagesResponse struct {
	CustomPackages []domain.CustomPackage `json:"customPackages"`
}

// ListPurchasable returns the caller's pending custom packages.
func (h *CustomPackageHandler) ListPurchasable(w http.ResponseWriter, r *http.Request) {
	packages, err := h.customPackages.ListPurchasable(r.Context(), auth.GetUser(r.Context()))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if packages == nil {
		packages = []domain.CustomPackage{}
	}
	writeJSON(w, http.StatusOK, customPackagesResponse{CustomPackages: packages})
}

// SubmitRequest submits a custom package request. Missing or malformed
// fields come back as 400 with a message per field.
func (h *CustomPackageHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	const op = "handler.submit_custom_package_request"

	var params domain.CustomPackageRequestParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	req, err := h.customPackages.Submit(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// Purchase starts checkout for a pending custom package. The optional
// "type" query parameter carries the url type the caller navigated with.
func (h *CustomPackageHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	url, err := h.customPackages.Purchase(r.Context(),
		auth.GetUser(r.Context()),
		r.PathValue("id"),
		domain.ParseURLType(r.URL.Query().Get("type")),
	)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}
