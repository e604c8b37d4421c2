package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/service"
)

// TrialHandler starts free trials.
//
// Routes handled:
//   - POST /api/free-trial -> CreateTrial
type TrialHandler struct {
	storefront service.StorefrontService
	trials     service.FreeTrialService
	logger     *slog.Logger
}

// NewTrialHandler creates a new TrialHandler.
func NewTrialHandler(storefront service.StorefrontService, trials service.FreeTrialService, logger *slog.Logger) *TrialHandler {
	return &TrialHandler{
		storefront: storefront,
		trials:     trials,
		logger:     logger,
	}
}

// RegisterRoutes registers trial routes on the provided mux.
func (h *TrialHandler) RegisterRoutes(mux *http.ServeMux, mw RouteMiddleware) {
	mux.Handle("POST /api/free-trial", mw.authedLimited(h.CreateTrial))
}

type createTrialRequest struct {
	PackageID string `json:"packageId"`
	ProductID string `json:"productId"`
	Type      string `json:"type"`
}

// CreateTrial redeems the caller's free trial. The package is chosen from a
// fresh read of the organization slice of the catalog.
func (h *TrialHandler) CreateTrial(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_trial"

	var req createTrialRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUser(r.Context())
	view, err := h.storefront.CatalogView(r.Context(), service.CatalogViewParams{
		User:      user,
		Category:  domain.CatalogOrganizationsSchools,
		ProductID: req.ProductID,
		URLType:   domain.ParseURLType(req.Type),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if view.Degraded && len(view.Packages) == 0 {
		ErrorResponse(w, r, h.logger, domain.Unavailable(nil, op, "The package catalog is unavailable. Please try again."))
		return
	}

	trial, err := h.trials.CreateTrial(r.Context(), user, domain.CreateTrialParams{
		PackageID: req.PackageID,
		ProductID: req.ProductID,
		Catalog:   view.Packages,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, trial)
}
