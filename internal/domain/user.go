// Package domain contains core business types and interfaces.
//
// This file defines the User domain type as reported by the authentication
// oracle. Sessions and credentials live outside this service.
package domain

// User represents an authenticated storefront account.
type User struct {
	ID    string
	Email string
	Role  Role
}

// IsAuthenticated returns true for a user with an identity and a role.
// A nil user is a visitor that has not logged in.
func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != "" && u.Role != ""
}

// Audience returns the user's segment. Admin and visitors report false.
func (u *User) Audience() (Audience, bool) {
	if u == nil {
		return "", false
	}
	return u.Role.Audience()
}
