// Package service contains the business logic layer.
//
// This file implements audience classification: deriving the commercial
// segment a product is sold to from its catalog metadata.
package service

import (
	"strings"

	"github.com/DukeRupert/storefront/internal/domain"
	"golang.org/x/text/cases"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ClassificationRule names the rule that decided a product's audience.
type ClassificationRule string

const (
	RuleAudience ClassificationRule = "audience" // explicit targetAudience tag
	RuleCategory ClassificationRule = "category" // category table
	RuleKeyword  ClassificationRule = "keyword"  // product name substring
	RuleDefault  ClassificationRule = "default"  // nothing matched
)

// Classification is a classified audience together with the rule that
// produced it.
type Classification struct {
	Audience domain.Audience
	Rule     ClassificationRule
	Match    string // the tag, category, or keyword that matched
}

// AudienceClassifier derives a product's audience. Implementations are pure:
// the same product always yields the same result.
type AudienceClassifier interface {
	// Classify returns the audience a product is sold to.
	Classify(product *domain.Product) domain.Audience

	// ExplainClassification returns the audience and the rule that chose it.
	ExplainClassification(product *domain.Product) Classification
}

// =============================================================================
// Implementation
// =============================================================================

// consumerCategories lists the product categories always sold to private users.
var consumerCategories = []string{
	"membership",
	"template",
	"guide",
	"toolkit",
	"digital-guide",
	domain.CategoryPrivateUsers,
}

// consumerKeywords is the name-substring fallback for products whose
// category is missing or unrecognized. Older catalog entries were never
// tagged, so their names are the only signal left.
var consumerKeywords = []string{
	"survival kit",
	"template",
	"guide",
	"membership",
}

type audienceClassifier struct{}

// NewAudienceClassifier creates the table-driven AudienceClassifier.
func NewAudienceClassifier() AudienceClassifier {
	return audienceClassifier{}
}

// Classify returns the audience a product is sold to.
func (c audienceClassifier) Classify(product *domain.Product) domain.Audience {
	return c.ExplainClassification(product).Audience
}

// ExplainClassification applies the rules in priority order; the first
// match wins.
func (audienceClassifier) ExplainClassification(product *domain.Product) Classification {
	if product == nil {
		return Classification{Audience: domain.AudienceB2C, Rule: RuleDefault}
	}

	fold := func(s string) string {
		return cases.Fold().String(strings.TrimSpace(s))
	}
	category := fold(product.Category)
	tags := make(domain.AudienceTags, 0, len(product.TargetAudience))
	for _, tag := range product.TargetAudience {
		tags = append(tags, fold(tag))
	}

	for _, rule := range []struct {
		tag      string
		audience domain.Audience
	}{
		{domain.CategoryBusinesses, domain.AudienceB2B},
		{domain.CategorySchools, domain.AudienceB2E},
	} {
		if tags.Contains(rule.tag) {
			return Classification{Audience: rule.audience, Rule: RuleAudience, Match: rule.tag}
		}
		if category == rule.tag {
			return Classification{Audience: rule.audience, Rule: RuleCategory, Match: rule.tag}
		}
	}

	if tags.Contains(domain.CategoryPrivateUsers) {
		return Classification{Audience: domain.AudienceB2C, Rule: RuleAudience, Match: domain.CategoryPrivateUsers}
	}
	for _, c := range consumerCategories {
		if category == c {
			return Classification{Audience: domain.AudienceB2C, Rule: RuleCategory, Match: c}
		}
	}

	name := fold(product.Name)
	for _, kw := range consumerKeywords {
		if strings.Contains(name, kw) {
			return Classification{Audience: domain.AudienceB2C, Rule: RuleKeyword, Match: kw}
		}
	}

	return Classification{Audience: domain.AudienceB2C, Rule: RuleDefault}
}
