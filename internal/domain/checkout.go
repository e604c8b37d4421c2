// Package domain contains core business types and interfaces.
//
// This file defines the checkout selection and the audit record written for
// every trial and checkout attempt.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutSelection is what the user picked on the packages page. Exactly
// one of PackageID and CustomPackageID is set. Never persisted.
type CheckoutSelection struct {
	PackageID       string  `json:"packageId,omitempty"`
	CustomPackageID string  `json:"customPackageId,omitempty"`
	ProductID       string  `json:"productId,omitempty"`
	URLType         URLType `json:"urlType,omitempty"`
}

// Validate checks that the selection names exactly one purchasable item.
func (s CheckoutSelection) Validate(op string) error {
	switch {
	case s.PackageID == "" && s.CustomPackageID == "":
		return NewValidationError(op, "packageId", "select a package or a custom package")
	case s.PackageID != "" && s.CustomPackageID != "":
		return NewValidationError(op, "customPackageId", "select either a package or a custom package, not both")
	}
	return nil
}

// IsCustom returns true when the selection is a custom package.
func (s CheckoutSelection) IsCustom() bool {
	return s.CustomPackageID != ""
}

// =============================================================================
// Attempt audit record
// =============================================================================

// AttemptAction identifies what was attempted.
type AttemptAction string

const (
	AttemptActionFreeTrial AttemptAction = "free_trial"
	AttemptActionCheckout  AttemptAction = "checkout"
)

// AttemptOutcome is how the attempt ended.
type AttemptOutcome string

const (
	AttemptOutcomeSucceeded AttemptOutcome = "succeeded"
	AttemptOutcomeRejected  AttemptOutcome = "rejected" // refused before any gateway/ledger call
	AttemptOutcomeFailed    AttemptOutcome = "failed"   // upstream call failed
)

// Attempt is one trial or checkout attempt, kept for auditing.
type Attempt struct {
	ID              uuid.UUID
	Action          AttemptAction
	UserID          string
	PackageID       string
	CustomPackageID string
	ProductID       string
	URLType         URLType
	Audiences       []Audience
	Outcome         AttemptOutcome
	ErrorCode       string
	Metadata        map[string]string
	CreatedAt       time.Time
}

// NewAttempt starts an audit record with a fresh ID and timestamp.
func NewAttempt(action AttemptAction, userID string) Attempt {
	return Attempt{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}
