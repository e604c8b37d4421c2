// Package service contains the business logic layer.
//
// This file implements the package catalog filter that narrows the public
// catalog to what is relevant for a category and product context.
package service

import (
	"log/slog"

	"github.com/DukeRupert/storefront/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CatalogFilterParams is the input to CatalogFilter.Filter.
type CatalogFilterParams struct {
	Packages []domain.Package
	Category domain.CatalogCategory
	Product  *domain.Product // optional product context
	URLType  domain.URLType  // optional explicit navigation override
}

// CatalogSlice is the filtered catalog.
type CatalogSlice struct {
	Packages []domain.Package

	// HasOrganizationPackages is true if any B2B or B2E package survived
	// filtering. Free trials are only offered when it is set.
	HasOrganizationPackages bool
}

// CatalogFilter narrows a package catalog for a category/product context.
type CatalogFilter interface {
	// Filter returns the packages to show, in catalog order.
	// Returns domain.EINVALID for the custom category, which lists custom
	// packages instead of catalog packages.
	Filter(params CatalogFilterParams) (*CatalogSlice, error)
}

// =============================================================================
// Implementation
// =============================================================================

type catalogFilter struct {
	classifier AudienceClassifier
	logger     *slog.Logger
}

// NewCatalogFilter creates a new CatalogFilter.
func NewCatalogFilter(classifier AudienceClassifier, logger *slog.Logger) CatalogFilter {
	return &catalogFilter{
		classifier: classifier,
		logger:     logger,
	}
}

// Filter applies, in order: the explicit organization override, the
// category, and the product context.
func (f *catalogFilter) Filter(params CatalogFilterParams) (*CatalogSlice, error) {
	const op = "catalog.filter"

	var keep func(p *domain.Package) bool
	switch {
	case params.URLType.IsOrganization():
		// An explicit B2B/B2E navigation beats both the category and the
		// product's own audience.
		keep = func(p *domain.Package) bool { return p.IsOrganization() }

	case params.Category == domain.CatalogOrganizationsSchools || params.Category == "":
		keep = func(p *domain.Package) bool { return p.IsOrganization() }

	case params.Category == domain.CatalogFamilies:
		keep = func(p *domain.Package) bool { return p.HasAudience(domain.AudienceB2C) }

	case params.Category == domain.CatalogCustom:
		return nil, domain.Invalid(op, "custom packages are not part of the public catalog")

	default:
		return nil, domain.Invalid(op, "unknown catalog category")
	}

	if params.Product != nil && !params.URLType.IsOrganization() {
		audience := f.classifier.Classify(params.Product)
		byCategory := keep
		keep = func(p *domain.Package) bool {
			return byCategory(p) && p.HasAudience(audience)
		}
	}

	slice := &CatalogSlice{Packages: make([]domain.Package, 0, len(params.Packages))}
	for i := range params.Packages {
		p := &params.Packages[i]
		if err := p.Validate(); err != nil {
			f.logger.Warn("dropping invalid catalog package",
				"package_id", p.ID,
				"error", err,
			)
			continue
		}
		if !keep(p) {
			continue
		}
		slice.Packages = append(slice.Packages, *p)
		if p.IsOrganization() {
			slice.HasOrganizationPackages = true
		}
	}

	return slice, nil
}
