// Package service contains the business logic layer.
//
// This file implements checkout: turning a package or custom package
// selection into a payment gateway redirect, with eligibility re-checked
// against a fresh catalog read and at most one checkout in flight per user.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DukeRupert/storefront/internal/billing"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/flight"
	"github.com/DukeRupert/storefront/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CatalogReader reads the catalog records checkout needs.
type CatalogReader interface {
	ListPublicPackages(ctx context.Context, audience domain.Audience) ([]domain.Package, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListCustomPackages(ctx context.Context) ([]domain.CustomPackage, error)
}

// CheckoutService starts payment sessions.
type CheckoutService interface {
	// Checkout validates the selection and returns the gateway redirect URL.
	// On success the user's checkout guard stays held until Release or the
	// hold expires.
	// Returns *domain.ValidationError for a malformed selection.
	// Returns domain.EUNAUTHORIZED for anonymous users.
	// Returns domain.ECONFLICT if a checkout is already in progress.
	// Returns domain.EELIGIBILITY on an audience mismatch.
	// Returns domain.EGATEWAY with the gateway's message if it refused.
	Checkout(ctx context.Context, user *domain.User, sel domain.CheckoutSelection) (string, error)

	// Release resets the user's checkout guard, for a user who came back
	// from the gateway without paying.
	Release(ctx context.Context, user *domain.User) error
}

// =============================================================================
// Implementation
// =============================================================================

type checkoutService struct {
	catalog     CatalogReader
	eligibility EligibilityValidator
	gateway     billing.Gateway
	guard       flight.Guard
	recorder    AttemptRecorder
	logger      *slog.Logger
}

// NewCheckoutService creates a new CheckoutService. recorder may be nil.
func NewCheckoutService(
	catalog CatalogReader,
	eligibility EligibilityValidator,
	gateway billing.Gateway,
	guard flight.Guard,
	recorder AttemptRecorder,
	logger *slog.Logger,
) CheckoutService {
	return &checkoutService{
		catalog:     catalog,
		eligibility: eligibility,
		gateway:     gateway,
		guard:       guard,
		recorder:    recorder,
		logger:      logger,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, user *domain.User, sel domain.CheckoutSelection) (string, error) {
	const op = "checkout.start"

	if err := sel.Validate(op); err != nil {
		return "", err
	}
	if !user.IsAuthenticated() {
		return "", domain.Unauthorized(op, "Please log in to purchase")
	}

	attempt := domain.NewAttempt(domain.AttemptActionCheckout, user.ID)
	attempt.PackageID = sel.PackageID
	attempt.CustomPackageID = sel.CustomPackageID
	attempt.ProductID = sel.ProductID
	attempt.URLType = sel.URLType

	key := flight.Key(string(domain.AttemptActionCheckout), user.ID)
	if err := s.guard.Acquire(ctx, key); err != nil {
		if errors.Is(err, flight.ErrInFlight) {
			metrics.GuardRejected(string(domain.AttemptActionCheckout))
			s.logger.Info("checkout already in progress", "user_id", user.ID)
			return "", domain.Conflict(op, "A checkout is already in progress")
		}
		return "", domain.Internal(err, op, "failed to start checkout")
	}

	url, err := s.checkout(ctx, user, sel, &attempt)
	if err != nil {
		if ferr := s.guard.Fail(context.WithoutCancel(ctx), key); ferr != nil {
			s.logger.Error("failed to release checkout guard", "user_id", user.ID, "error", ferr)
		}
		attempt.ErrorCode = domain.ErrorCode(err)
		metrics.CheckoutFinished(string(attempt.Outcome))
		recordAttempt(ctx, s.recorder, s.logger, attempt)
		return "", err
	}

	// Held: the browser is about to leave for the gateway.
	if serr := s.guard.Succeed(context.WithoutCancel(ctx), key); serr != nil {
		s.logger.Error("failed to hold checkout guard", "user_id", user.ID, "error", serr)
	}
	attempt.Outcome = domain.AttemptOutcomeSucceeded
	metrics.CheckoutFinished(string(attempt.Outcome))
	recordAttempt(ctx, s.recorder, s.logger, attempt)

	s.logger.Info("checkout session created",
		"user_id", user.ID,
		"package_id", sel.PackageID,
		"custom_package_id", sel.CustomPackageID,
		"url_type", sel.URLType,
	)
	return url, nil
}

// checkout runs under the guard. It sets attempt.Outcome on failure.
func (s *checkoutService) checkout(ctx context.Context, user *domain.User, sel domain.CheckoutSelection, attempt *domain.Attempt) (string, error) {
	const op = "checkout.start"

	attempt.Outcome = domain.AttemptOutcomeFailed

	req := billing.Request{
		User:            user,
		PackageID:       sel.PackageID,
		CustomPackageID: sel.CustomPackageID,
		ProductID:       sel.ProductID,
		URLType:         sel.URLType,
	}

	// Resolve against fresh reads; the catalog may have changed since the
	// page was rendered.
	if sel.IsCustom() {
		all, err := s.catalog.ListCustomPackages(ctx)
		if err != nil {
			return "", upstreamError(err, op, "Unable to load your custom packages")
		}
		cp, err := findPurchasable(all, sel.CustomPackageID, user.ID, op)
		if err != nil {
			attempt.Outcome = domain.AttemptOutcomeRejected
			return "", err
		}
		req.CustomPackage = cp
	} else {
		packages, err := s.catalog.ListPublicPackages(ctx, "")
		if err != nil {
			return "", upstreamError(err, op, "Unable to load the package catalog")
		}
		pkg := findPackage(packages, sel.PackageID)
		if pkg == nil {
			attempt.Outcome = domain.AttemptOutcomeRejected
			return "", domain.NotFound(op, "package", sel.PackageID)
		}
		req.Package = pkg
		attempt.Audiences = pkg.TargetAudiences
	}

	if !sel.URLType.MatchesRole(user.Role) {
		if err := s.revalidate(ctx, user, sel, req.Package); err != nil {
			if domain.ErrorCode(err) == domain.EELIGIBILITY {
				attempt.Outcome = domain.AttemptOutcomeRejected
			}
			return "", err
		}
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("checkout gateway failed",
			"user_id", user.ID,
			"package_id", sel.PackageID,
			"custom_package_id", sel.CustomPackageID,
			"error", err,
		)
		return "", domain.Gateway(err, op, billing.FailureMessage(err))
	}
	return url, nil
}

// revalidate re-checks audience compatibility with a freshly read product.
// pkg is nil for custom packages.
func (s *checkoutService) revalidate(ctx context.Context, user *domain.User, sel domain.CheckoutSelection, pkg *domain.Package) error {
	const op = "checkout.revalidate"

	var product *domain.Product
	if sel.ProductID != "" {
		p, err := s.catalog.GetProduct(ctx, sel.ProductID)
		if err != nil {
			return upstreamError(err, op, "Unable to load the product")
		}
		product = p
	}

	check := s.eligibility.ValidateProductAccess(user, product, sel.URLType)
	if check.Mismatch {
		metrics.MismatchDetected("checkout")
		s.logger.Info("checkout refused: audience mismatch",
			"user_id", user.ID,
			"role", user.Role,
			"required_audience", check.RequiredAudience,
			"product_id", sel.ProductID,
		)
		return domain.Eligibility(op, check.Message)
	}

	if pkg != nil && !sel.URLType.IsOrganization() && !s.eligibility.ValidatePackageAccess(pkg, product) {
		metrics.MismatchDetected("checkout")
		return domain.Eligibility(op, "This package is not available for the selected product.")
	}
	return nil
}

func findPackage(packages []domain.Package, id string) *domain.Package {
	for i := range packages {
		if packages[i].ID == id {
			return &packages[i]
		}
	}
	return nil
}

func (s *checkoutService) Release(ctx context.Context, user *domain.User) error {
	const op = "checkout.release"

	if !user.IsAuthenticated() {
		return domain.Unauthorized(op, "Please log in to continue")
	}
	if err := s.guard.Release(ctx, flight.Key(string(domain.AttemptActionCheckout), user.ID)); err != nil {
		return domain.Internal(err, op, "failed to release checkout")
	}
	return nil
}
