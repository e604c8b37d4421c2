// Package domain contains core business types and interfaces.
//
// This file defines bespoke package requests and the custom packages that
// are negotiated from them.
package domain

import "time"

// =============================================================================
// Custom Package Status
// =============================================================================

// CustomPackageStatus represents the lifecycle state of a custom package.
type CustomPackageStatus string

const (
	// CustomPackageStatusPending indicates the request was submitted and the
	// offer can still be purchased.
	CustomPackageStatusPending CustomPackageStatus = "pending"

	// CustomPackageStatusActive indicates the offer was purchased or approved.
	// Terminal; never offered for purchase again.
	CustomPackageStatusActive CustomPackageStatus = "active"

	// CustomPackageStatusRejected indicates the offer was declined. Terminal.
	CustomPackageStatusRejected CustomPackageStatus = "rejected"
)

// String returns the string representation of the status.
func (s CustomPackageStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s CustomPackageStatus) IsValid() bool {
	switch s {
	case CustomPackageStatusPending, CustomPackageStatusActive, CustomPackageStatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions.
func (s CustomPackageStatus) IsTerminal() bool {
	return s == CustomPackageStatusActive || s == CustomPackageStatusRejected
}

// CanTransitionTo checks if a custom package can move to the target status.
//
// Valid transitions:
// - pending -> active (purchased/approved)
// - pending -> rejected
func (s CustomPackageStatus) CanTransitionTo(target CustomPackageStatus) bool {
	if s != CustomPackageStatusPending {
		return false
	}
	return target == CustomPackageStatusActive || target == CustomPackageStatusRejected
}

// =============================================================================
// Custom Package
// =============================================================================

// ContractPricing is the negotiated price of a custom package.
type ContractPricing struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Notes    string `json:"notes,omitempty"`
}

// CustomPackage is a bespoke offer derived from a custom package request.
type CustomPackage struct {
	ID            string              `json:"id"`
	RequesterID   string              `json:"requesterId"`
	BasePackageID string              `json:"basePackageId,omitempty"`
	Name          string              `json:"name,omitempty"`
	Status        CustomPackageStatus `json:"status"`
	Pricing       ContractPricing     `json:"contractPricing"`
	SeatLimit     int                 `json:"seatLimit"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// IsPurchasable returns true if buying the offer is still a legal move.
// The move itself is made by the backend once payment completes.
func (c *CustomPackage) IsPurchasable() bool {
	return c.Status.CanTransitionTo(CustomPackageStatusActive)
}

// CustomPackageRequest is the submission record returned by the content API.
type CustomPackageRequest struct {
	ID               string              `json:"id"`
	EntityType       string              `json:"entityType"`
	OrganizationName string              `json:"organizationName"`
	ContactName      string              `json:"contactName"`
	ContactEmail     string              `json:"contactEmail"`
	Status           CustomPackageStatus `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// CustomPackageRequestParams contains the form fields of a custom package
// request. Validated before any network call.
type CustomPackageRequestParams struct {
	EntityType       string `json:"entityType" validate:"required"`
	OrganizationName string `json:"organizationName" validate:"required"`
	ContactName      string `json:"contactName" validate:"required"`
	ContactEmail     string `json:"contactEmail" validate:"required,email"`
	ContactPhone     string `json:"contactPhone,omitempty"`
	SeatLimit        *int   `json:"seatLimit,omitempty" validate:"omitempty,min=1"`
	AdditionalNotes  string `json:"additionalNotes,omitempty"`
	PricingNotes     string `json:"pricingNotes,omitempty"`
	Currency         string `json:"currency,omitempty"`
}
