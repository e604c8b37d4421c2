// Package domain contains core business types and interfaces.
//
// This file defines free trial records.
package domain

import "time"

// FreeTrial is a redeemed free trial. A user gets at most one.
type FreeTrial struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	PackageID      string    `json:"packageId"`
	ProductID      string    `json:"productId,omitempty"`
	RedemptionCode string    `json:"redemptionCode"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateTrialParams contains the parameters for starting a free trial.
// PackageID is optional; when empty the first organization package of the
// current catalog slice is used.
type CreateTrialParams struct {
	PackageID string
	ProductID string
	Catalog   []Package
}
