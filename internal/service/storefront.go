// Package service contains the business logic layer.
//
// This file composes the packages page: the filtered catalog, the audience
// mismatch banner, and whether the free trial card is offered.
package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CatalogViewParams selects what the packages page shows.
type CatalogViewParams struct {
	User      *domain.User // nil for anonymous visitors
	Category  domain.CatalogCategory
	ProductID string
	URLType   domain.URLType
}

// CatalogView is everything the packages page needs.
type CatalogView struct {
	Category                domain.CatalogCategory `json:"category"`
	URLType                 domain.URLType         `json:"urlType,omitempty"`
	Packages                []domain.Package       `json:"packages"`
	CustomPackages          []domain.CustomPackage `json:"customPackages,omitempty"`
	HasOrganizationPackages bool                   `json:"hasOrganizationPackages"`
	Product                 *domain.Product        `json:"product,omitempty"`
	ProductAudience         domain.Audience        `json:"productAudience,omitempty"`
	Eligibility             AccessCheck            `json:"eligibility"`
	ShowFreeTrial           bool                   `json:"showFreeTrial"`

	// Degraded is set when a read failed and the view shows less than it
	// should.
	Degraded bool `json:"degraded"`
}

// StorefrontService composes page data from the other services.
type StorefrontService interface {
	// CatalogView builds the packages page. Failed reads degrade to empty
	// sections instead of failing the page.
	// Returns domain.EINVALID for an unknown category.
	CatalogView(ctx context.Context, params CatalogViewParams) (*CatalogView, error)
}

// =============================================================================
// Implementation
// =============================================================================

type storefrontService struct {
	catalog        CatalogReader
	classifier     AudienceClassifier
	filter         CatalogFilter
	eligibility    EligibilityValidator
	trials         FreeTrialService
	customPackages CustomPackageService
	logger         *slog.Logger
}

// NewStorefrontService creates a new StorefrontService.
func NewStorefrontService(
	catalog CatalogReader,
	classifier AudienceClassifier,
	filter CatalogFilter,
	eligibility EligibilityValidator,
	trials FreeTrialService,
	customPackages CustomPackageService,
	logger *slog.Logger,
) StorefrontService {
	return &storefrontService{
		catalog:        catalog,
		classifier:     classifier,
		filter:         filter,
		eligibility:    eligibility,
		trials:         trials,
		customPackages: customPackages,
		logger:         logger,
	}
}

func (s *storefrontService) CatalogView(ctx context.Context, params CatalogViewParams) (*CatalogView, error) {
	const op = "storefront.catalog_view"

	category := params.Category
	if category == "" {
		category = domain.CatalogOrganizationsSchools
	}
	view := &CatalogView{
		Category: category,
		URLType:  params.URLType,
		Packages: []domain.Package{},
	}

	var (
		packages    []domain.Package
		packagesErr error
		product     *domain.Product
		trialUsed   bool
		custom      []domain.CustomPackage
		customErr   error
	)

	g, gctx := errgroup.WithContext(ctx)

	if category == domain.CatalogCustom {
		if params.User.IsAuthenticated() {
			g.Go(func() error {
				custom, customErr = s.customPackages.ListPurchasable(gctx, params.User)
				return nil
			})
		}
	} else {
		g.Go(func() error {
			packages, packagesErr = s.catalog.ListPublicPackages(gctx, "")
			return nil
		})
		g.Go(func() error {
			trialUsed = s.trials.HasUsedTrial(gctx, params.User)
			return nil
		})
	}

	if params.ProductID != "" {
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, params.ProductID)
			if err != nil {
				s.logger.Warn("product unavailable, showing unfiltered catalog",
					"product_id", params.ProductID,
					"error", err,
				)
				view.Degraded = true
				return nil
			}
			product = p
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err, op, "Request cancelled")
	}

	if product != nil {
		c := s.classifier.ExplainClassification(product)
		if c.Rule == RuleDefault {
			metrics.ProductsDefaulted.Inc()
			s.logger.Warn("product audience could not be classified, defaulting",
				"product_id", product.ID,
				"category", product.Category,
				"audience", c.Audience,
			)
		}
		view.Product = product
		view.ProductAudience = c.Audience
	}

	view.Eligibility = s.eligibility.ValidateProductAccess(params.User, product, params.URLType)
	if view.Eligibility.Mismatch {
		metrics.MismatchDetected("display")
	}

	if category == domain.CatalogCustom {
		if customErr != nil {
			s.logger.Warn("custom packages unavailable", "error", customErr)
			view.Degraded = true
		}
		view.CustomPackages = custom
		if view.CustomPackages == nil {
			view.CustomPackages = []domain.CustomPackage{}
		}
		return view, nil
	}

	if packagesErr != nil {
		s.logger.Warn("package catalog unavailable", "error", packagesErr)
		view.Degraded = true
		return view, nil
	}

	slice, err := s.filter.Filter(CatalogFilterParams{
		Packages: packages,
		Category: category,
		Product:  product,
		URLType:  params.URLType,
	})
	if err != nil {
		return nil, err
	}

	view.Packages = slice.Packages
	view.HasOrganizationPackages = slice.HasOrganizationPackages
	view.ShowFreeTrial = !trialUsed && slice.HasOrganizationPackages
	return view, nil
}
