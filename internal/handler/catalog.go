package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/service"
)

// CatalogHandler serves the packages page data.
//
// Routes handled:
//   - GET /api/catalog?category=&type=&productId= -> Catalog
//   - GET /api/free-trial/eligibility              -> TrialEligibility
type CatalogHandler struct {
	storefront service.StorefrontService
	trials     service.FreeTrialService
	logger     *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(storefront service.StorefrontService, trials service.FreeTrialService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		storefront: storefront,
		trials:     trials,
		logger:     logger,
	}
}

// RegisterRoutes registers catalog routes on the provided mux. Both routes
// are open to visitors.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", h.Catalog)
	mux.HandleFunc("GET /api/free-trial/eligibility", h.TrialEligibility)
}

// Catalog returns the filtered catalog slice with the eligibility banner
// and the free trial flag. Unknown "type" values are ignored.
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	const op = "handler.catalog"

	q := r.URL.Query()
	category, ok := domain.ParseCatalogCategory(q.Get("category"))
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unknown catalog category"))
		return
	}

	view, err := h.storefront.CatalogView(r.Context(), service.CatalogViewParams{
		User:      auth.GetUser(r.Context()),
		Category:  category,
		ProductID: q.Get("productId"),
		URLType:   domain.ParseURLType(q.Get("type")),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type trialEligibilityResponse struct {
	Eligible bool `json:"eligible"`
}

// TrialEligibility reports whether the caller may still start a free trial.
// Visitors are eligible.
func (h *CatalogHandler) TrialEligibility(w http.ResponseWriter, r *http.Request) {
	eligible := h.trials.IsEligible(r.Context(), auth.GetUser(r.Context()))
	writeJSON(w, http.StatusOK, trialEligibilityResponse{Eligible: eligible})
}
