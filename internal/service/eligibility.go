// Package service contains the business logic layer.
//
// This file implements the eligibility checks between a user's role and the
// audience of a product or package.
package service

import (
	"fmt"

	"github.com/DukeRupert/storefront/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AccessCheck is the result of an eligibility check. When Mismatch is set,
// Message is ready to show as a banner or a checkout refusal.
type AccessCheck struct {
	Mismatch         bool            `json:"mismatch"`
	Message          string          `json:"message,omitempty"`
	UserAudience     domain.Audience `json:"userAudience,omitempty"`
	RequiredAudience domain.Audience `json:"requiredAudience,omitempty"`
}

// EligibilityValidator checks role/audience compatibility. Both checks are
// pure predicates with no side effects.
type EligibilityValidator interface {
	// ValidateProductAccess checks whether the user may buy for the product.
	// An explicit urlType matching the user's role is trusted outright.
	// Otherwise the product's own audience decides, and the urlType's
	// audience is used only when no product is given. Anonymous visitors
	// never mismatch.
	ValidateProductAccess(user *domain.User, product *domain.Product, urlType domain.URLType) AccessCheck

	// ValidatePackageAccess reports whether the package targets the product's
	// audience. Only meaningful without a B2B/B2E urlType override.
	ValidatePackageAccess(pkg *domain.Package, product *domain.Product) bool
}

// =============================================================================
// Implementation
// =============================================================================

type eligibilityValidator struct {
	classifier AudienceClassifier
}

// NewEligibilityValidator creates a new EligibilityValidator.
func NewEligibilityValidator(classifier AudienceClassifier) EligibilityValidator {
	return &eligibilityValidator{classifier: classifier}
}

func (v *eligibilityValidator) ValidateProductAccess(user *domain.User, product *domain.Product, urlType domain.URLType) AccessCheck {
	if !user.IsAuthenticated() {
		return AccessCheck{}
	}

	own, _ := user.Audience()
	check := AccessCheck{UserAudience: own}

	if urlType.MatchesRole(user.Role) {
		return check
	}

	var required domain.Audience
	switch {
	case product != nil:
		required = v.classifier.Classify(product)
	case len(urlType.Audiences()) > 0:
		// Without a product the storefront the visitor navigated to is
		// what they would be buying for.
		required = urlType.Audiences()[0]
	default:
		return check
	}

	if user.Role.CompatibleWith(required) {
		return check
	}
	check.RequiredAudience = required
	return mismatch(check)
}

func mismatch(check AccessCheck) AccessCheck {
	check.Mismatch = true
	check.Message = fmt.Sprintf("You are a %s user. You can only purchase %s products.",
		check.UserAudience, check.UserAudience)
	return check
}

func (v *eligibilityValidator) ValidatePackageAccess(pkg *domain.Package, product *domain.Product) bool {
	if pkg == nil {
		return false
	}
	if product == nil {
		return true
	}
	return pkg.HasAudience(v.classifier.Classify(product))
}
