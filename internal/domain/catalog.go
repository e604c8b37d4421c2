// Package domain contains core business types and interfaces.
//
// This file defines the catalog types read from the content API: products
// and the commercial packages sold alongside them.
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// =============================================================================
// Product
// =============================================================================

// AudienceTags holds a product's target audience tags. The catalog sends
// either a single string or an array of strings.
type AudienceTags []string

// UnmarshalJSON accepts "schools", ["schools", "businesses"] or null.
func (t *AudienceTags) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*t = nil
			return nil
		}
		*t = AudienceTags{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("targetAudience must be a string or an array of strings: %w", err)
	}
	*t = AudienceTags(many)
	return nil
}

// Contains reports whether the tag is present.
func (t AudienceTags) Contains(tag string) bool {
	return slices.Contains(t, tag)
}

// Product is a catalog product whose audience drives package eligibility.
type Product struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Category       string       `json:"category"`
	TargetAudience AudienceTags `json:"targetAudience,omitempty"`
}

// =============================================================================
// Package
// =============================================================================

// Pricing describes how a package is charged. Amount is in minor units.
type Pricing struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval,omitempty"` // "month", "year" or empty for one-off
}

// Package is a standard catalog package. Owned by the catalog service and
// read-only here.
type Package struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TargetAudiences []Audience `json:"targetAudiences"`
	Pricing         Pricing    `json:"pricing"`
	SeatLimit       int        `json:"seatLimit"`
	PackageType     string     `json:"packageType"`
	StripePriceID   string     `json:"stripePriceId,omitempty"`
}

// Validate checks the catalog invariants for a package.
func (p *Package) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("package has no id")
	}
	if len(p.TargetAudiences) == 0 {
		return fmt.Errorf("package %q has no target audiences", p.ID)
	}
	for _, a := range p.TargetAudiences {
		if !a.IsValid() {
			return fmt.Errorf("package %q has unknown target audience %q", p.ID, a)
		}
	}
	return nil
}

// HasAudience reports whether the package targets the audience.
func (p *Package) HasAudience(a Audience) bool {
	return slices.Contains(p.TargetAudiences, a)
}

// HasAnyAudience reports whether the package targets at least one of the
// given audiences.
func (p *Package) HasAnyAudience(audiences ...Audience) bool {
	for _, a := range audiences {
		if p.HasAudience(a) {
			return true
		}
	}
	return false
}

// IsOrganization returns true if the package is sold to businesses or schools.
func (p *Package) IsOrganization() bool {
	return p.HasAnyAudience(AudienceB2B, AudienceB2E)
}

// =============================================================================
// Catalog category
// =============================================================================

// CatalogCategory is the category selector shown on the packages page.
type CatalogCategory string

const (
	CatalogOrganizationsSchools CatalogCategory = "organizations_schools"
	CatalogFamilies             CatalogCategory = "families"
	CatalogCustom               CatalogCategory = "custom"
)

// ParseCatalogCategory maps a query value to a category, defaulting to
// organizations_schools for empty input.
func ParseCatalogCategory(s string) (CatalogCategory, bool) {
	switch c := CatalogCategory(s); c {
	case "":
		return CatalogOrganizationsSchools, true
	case CatalogOrganizationsSchools, CatalogFamilies, CatalogCustom:
		return c, true
	}
	return "", false
}
