// Package service contains the business logic layer.
//
// This file implements the custom package workflow: submitting a bespoke
// package request, listing the offers still open for purchase, and handing
// a purchase to checkout.
package service

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/DukeRupert/storefront/internal/contentapi"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/metrics"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CustomPackageAPI is the part of the content API that stores custom
// package requests and offers.
type CustomPackageAPI interface {
	ListCustomPackages(ctx context.Context) ([]domain.CustomPackage, error)
	SubmitCustomPackageRequest(ctx context.Context, req contentapi.CustomPackageRequestPayload) (*domain.CustomPackageRequest, error)
}

// CustomPackageService runs the custom package workflow. It never changes
// a custom package's status itself; approval and payment do that upstream.
type CustomPackageService interface {
	// Submit validates the form and submits the request.
	// Returns *domain.ValidationError, without any network call, when
	// required fields are missing or malformed.
	Submit(ctx context.Context, params domain.CustomPackageRequestParams) (*domain.CustomPackageRequest, error)

	// ListPurchasable returns the user's pending custom packages.
	// Active and rejected packages are never included.
	// Returns domain.EUNAUTHORIZED for anonymous users.
	ListPurchasable(ctx context.Context, user *domain.User) ([]domain.CustomPackage, error)

	// Purchase starts checkout for one of the user's pending custom packages.
	// Returns domain.ENOTFOUND if the user has no such package.
	// Returns domain.EGONE if it was already purchased.
	// Returns domain.ECONFLICT if it was rejected.
	Purchase(ctx context.Context, user *domain.User, customPackageID string, urlType domain.URLType) (string, error)
}

// CustomPackageServiceConfig holds workflow settings.
type CustomPackageServiceConfig struct {
	// DefaultCurrency is sent as the pricing currency when the form leaves
	// it empty.
	DefaultCurrency string
}

// =============================================================================
// Implementation
// =============================================================================

type customPackageService struct {
	api      CustomPackageAPI
	checkout CheckoutService
	validate *validator.Validate
	config   CustomPackageServiceConfig
	logger   *slog.Logger
}

// NewCustomPackageService creates a new CustomPackageService.
func NewCustomPackageService(
	api CustomPackageAPI,
	checkout CheckoutService,
	config CustomPackageServiceConfig,
	logger *slog.Logger,
) CustomPackageService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the form.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &customPackageService{
		api:      api,
		checkout: checkout,
		validate: validate,
		config:   config,
		logger:   logger,
	}
}

// =============================================================================
// Submit
// =============================================================================

func (s *customPackageService) Submit(ctx context.Context, params domain.CustomPackageRequestParams) (*domain.CustomPackageRequest, error) {
	const op = "custom_package.submit"

	params = trimParams(params)
	if err := s.validateParams(op, params); err != nil {
		metrics.CustomPackageRequests.WithLabelValues("invalid").Inc()
		return nil, err
	}

	currency := params.Currency
	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	payload := contentapi.CustomPackageRequestPayload{
		EntityType:       params.EntityType,
		OrganizationName: params.OrganizationName,
		ContactName:      params.ContactName,
		ContactEmail:     params.ContactEmail,
		ContactPhone:     params.ContactPhone,
		RequestedModifications: contentapi.RequestedModifications{
			SeatLimit:       params.SeatLimit,
			AdditionalNotes: params.AdditionalNotes,
			CustomPricing: contentapi.CustomPricing{
				Notes:    params.PricingNotes,
				Currency: currency,
			},
		},
	}

	created, err := s.api.SubmitCustomPackageRequest(ctx, payload)
	if err != nil {
		metrics.CustomPackageRequests.WithLabelValues("failed").Inc()
		s.logger.Warn("custom package request failed",
			"organization", params.OrganizationName,
			"error", err,
		)
		return nil, upstreamError(err, op, "Unable to submit your request. Please try again.")
	}

	metrics.CustomPackageRequests.WithLabelValues("submitted").Inc()
	s.logger.Info("custom package request submitted",
		"request_id", created.ID,
		"entity_type", params.EntityType,
		"organization", params.OrganizationName,
	)
	return created, nil
}

// validateParams runs the struct tags and converts failures into a
// field-level validation error.
func (s *customPackageService) validateParams(op string, params domain.CustomPackageRequestParams) error {
	err := s.validate.Struct(params)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Internal(err, op, "failed to validate request")
	}

	var verr *domain.ValidationError
	for _, fe := range fieldErrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "email":
			msg = "must be a valid email address"
		case "min":
			msg = "must be at least " + fe.Param()
		default:
			msg = "is invalid"
		}
		if verr == nil {
			verr = domain.NewValidationError(op, fe.Field(), msg)
		} else {
			verr = domain.AddFieldError(verr, fe.Field(), msg)
		}
	}
	return verr
}

func trimParams(p domain.CustomPackageRequestParams) domain.CustomPackageRequestParams {
	p.EntityType = strings.TrimSpace(p.EntityType)
	p.OrganizationName = strings.TrimSpace(p.OrganizationName)
	p.ContactName = strings.TrimSpace(p.ContactName)
	p.ContactEmail = strings.TrimSpace(p.ContactEmail)
	p.ContactPhone = strings.TrimSpace(p.ContactPhone)
	p.AdditionalNotes = strings.TrimSpace(p.AdditionalNotes)
	p.PricingNotes = strings.TrimSpace(p.PricingNotes)
	p.Currency = strings.TrimSpace(p.Currency)
	return p
}

// =============================================================================
// ListPurchasable
// =============================================================================

func (s *customPackageService) ListPurchasable(ctx context.Context, user *domain.User) ([]domain.CustomPackage, error) {
	const op = "custom_package.list"

	if !user.IsAuthenticated() {
		return nil, domain.Unauthorized(op, "Please log in to see your custom packages")
	}

	all, err := s.api.ListCustomPackages(ctx)
	if err != nil {
		s.logger.Warn("custom packages unavailable", "user_id", user.ID, "error", err)
		return nil, upstreamError(err, op, "Unable to load your custom packages")
	}

	return purchasableOnly(all, user.ID), nil
}

// purchasableOnly keeps the user's pending packages.
func purchasableOnly(all []domain.CustomPackage, userID string) []domain.CustomPackage {
	out := make([]domain.CustomPackage, 0, len(all))
	for _, cp := range all {
		if !ownedBy(&cp, userID) || !cp.IsPurchasable() {
			continue
		}
		out = append(out, cp)
	}
	return out
}

func ownedBy(cp *domain.CustomPackage, userID string) bool {
	return cp.RequesterID == "" || cp.RequesterID == userID
}

// findPurchasable looks up a custom package and checks it can still be
// bought.
func findPurchasable(all []domain.CustomPackage, id, userID, op string) (*domain.CustomPackage, error) {
	for i := range all {
		cp := &all[i]
		if cp.ID != id || !ownedBy(cp, userID) {
			continue
		}
		switch {
		case cp.IsPurchasable():
			return cp, nil
		case !cp.Status.IsValid():
			return nil, domain.Conflict(op, "This custom package is not available for purchase")
		case cp.Status == domain.CustomPackageStatusActive:
			return nil, domain.Errorf(domain.EGONE, op, "This custom package has already been purchased")
		case cp.Status.IsTerminal():
			return nil, domain.Conflict(op, "This custom package request was rejected")
		default:
			return nil, domain.Conflict(op, "This custom package is not available for purchase")
		}
	}
	return nil, domain.NotFound(op, "custom package", id)
}

// =============================================================================
// Purchase
// =============================================================================

func (s *customPackageService) Purchase(ctx context.Context, user *domain.User, customPackageID string, urlType domain.URLType) (string, error) {
	const op = "custom_package.purchase"

	if !user.IsAuthenticated() {
		return "", domain.Unauthorized(op, "Please log in to purchase")
	}
	if strings.TrimSpace(customPackageID) == "" {
		return "", domain.NewValidationError(op, "customPackageId", "is required")
	}

	all, err := s.api.ListCustomPackages(ctx)
	if err != nil {
		return "", upstreamError(err, op, "Unable to load your custom packages")
	}
	if _, err := findPurchasable(all, customPackageID, user.ID, op); err != nil {
		return "", err
	}

	return s.checkout.Checkout(ctx, user, domain.CheckoutSelection{
		CustomPackageID: customPackageID,
		URLType:         urlType,
	})
}
