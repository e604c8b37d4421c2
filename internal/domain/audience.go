// Package domain contains core business types and interfaces.
//
// This file defines commercial segments (audiences), user roles, and the
// fixed mapping between them that every eligibility decision is based on.
package domain

import "strings"

// =============================================================================
// Audience
// =============================================================================

// Audience is a commercial segment a product or package is sold to.
type Audience string

const (
	AudienceB2C Audience = "B2C" // families and individuals
	AudienceB2B Audience = "B2B" // businesses
	AudienceB2E Audience = "B2E" // schools and education
)

// String returns the string representation of the audience.
func (a Audience) String() string {
	return string(a)
}

// IsValid returns true if the audience is a recognized value.
func (a Audience) IsValid() bool {
	switch a {
	case AudienceB2C, AudienceB2B, AudienceB2E:
		return true
	}
	return false
}

// IsOrganization returns true for the business and education segments.
func (a Audience) IsOrganization() bool {
	return a == AudienceB2B || a == AudienceB2E
}

// =============================================================================
// Product categories
// =============================================================================

// Product categories as stored by the catalog service. The first three double
// as audience tags on products.
const (
	CategoryPrivateUsers = "private-users"
	CategorySchools      = "schools"
	CategoryBusinesses   = "businesses"
)

// =============================================================================
// Role
// =============================================================================

// Role is the account role reported by the authentication oracle.
type Role string

const (
	RoleB2CUser   Role = "b2c_user"
	RoleB2BUser   Role = "b2b_user"
	RoleB2BMember Role = "b2b_member"
	RoleB2EUser   Role = "b2e_user"
	RoleB2EMember Role = "b2e_member"
	RoleAdmin     Role = "admin"
)

// IsValid returns true if the role is a recognized value.
func (r Role) IsValid() bool {
	switch r {
	case RoleB2CUser, RoleB2BUser, RoleB2BMember, RoleB2EUser, RoleB2EMember, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin returns true for the admin wildcard role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Audience returns the segment the role belongs to. Admin has no segment of
// its own and reports false.
func (r Role) Audience() (Audience, bool) {
	switch r {
	case RoleB2CUser:
		return AudienceB2C, true
	case RoleB2BUser, RoleB2BMember:
		return AudienceB2B, true
	case RoleB2EUser, RoleB2EMember:
		return AudienceB2E, true
	}
	return "", false
}

// CompatibleWith reports whether a user with this role may buy for the
// given audience. Admin is compatible with every audience.
func (r Role) CompatibleWith(a Audience) bool {
	if r.IsAdmin() {
		return true
	}
	own, ok := r.Audience()
	return ok && own == a
}

// =============================================================================
// URL type
// =============================================================================

// URLType is the explicit segment the visitor navigated with (`?type=`).
// When present it takes precedence over the audience inferred from a product.
type URLType string

const (
	URLTypeNone   URLType = ""
	URLTypeB2B    URLType = "B2B"
	URLTypeB2E    URLType = "B2E"
	URLTypeB2C    URLType = "B2C"
	URLTypeB2BB2E URLType = "B2B_B2E"
)

// ParseURLType normalizes a query parameter value. Unknown values are
// treated as absent.
func ParseURLType(s string) URLType {
	switch t := URLType(strings.ToUpper(strings.TrimSpace(s))); t {
	case URLTypeB2B, URLTypeB2E, URLTypeB2C, URLTypeB2BB2E:
		return t
	}
	return URLTypeNone
}

// IsSet returns true when an explicit url type is present.
func (t URLType) IsSet() bool {
	return t != URLTypeNone
}

// Audiences lists the segments the url type stands for.
func (t URLType) Audiences() []Audience {
	switch t {
	case URLTypeB2B:
		return []Audience{AudienceB2B}
	case URLTypeB2E:
		return []Audience{AudienceB2E}
	case URLTypeB2C:
		return []Audience{AudienceB2C}
	case URLTypeB2BB2E:
		return []Audience{AudienceB2B, AudienceB2E}
	}
	return nil
}

// IsOrganization returns true when the url type selects business or
// education packages.
func (t URLType) IsOrganization() bool {
	return t == URLTypeB2B || t == URLTypeB2E || t == URLTypeB2BB2E
}

// MatchesRole reports whether the url type agrees with the user's role.
// Admin matches any explicit url type.
func (t URLType) MatchesRole(r Role) bool {
	if !t.IsSet() {
		return false
	}
	if r.IsAdmin() {
		return true
	}
	for _, a := range t.Audiences() {
		if r.CompatibleWith(a) {
			return true
		}
	}
	return false
}
