package contentapi

import (
	"errors"
	"slices"
	"strings"

	"github.com/DukeRupert/storefront/internal/domain"
)

// =============================================================================
// POST /free-trial/create
// =============================================================================

// CreateFreeTrialRequest starts a free trial for the calling user.
type CreateFreeTrialRequest struct {
	PackageID string `json:"packageId"`
	ProductID string `json:"productId,omitempty"`
}

// Validate checks the request before it is sent.
func (r CreateFreeTrialRequest) Validate() error {
	if strings.TrimSpace(r.PackageID) == "" {
		return errors.New("packageId is required")
	}
	return nil
}

type hasUsedTrialResponse struct {
	HasUsedTrial bool `json:"hasUsedTrial"`
}

// =============================================================================
// POST /custom-package-requests
// =============================================================================

// CustomPricing carries pricing notes for a custom package request.
// Always sent, even when empty.
type CustomPricing struct {
	Notes    string `json:"notes"`
	Currency string `json:"currency"`
}

// RequestedModifications describes what the requester wants changed
// compared to the standard catalog.
type RequestedModifications struct {
	SeatLimit       *int          `json:"seatLimit,omitempty"`
	AdditionalNotes string        `json:"additionalNotes"`
	CustomPricing   CustomPricing `json:"customPricing"`
}

// CustomPackageRequestPayload is the body of a custom package submission.
type CustomPackageRequestPayload struct {
	EntityType             string                 `json:"entityType"`
	OrganizationName       string                 `json:"organizationName"`
	ContactName            string                 `json:"contactName"`
	ContactEmail           string                 `json:"contactEmail"`
	ContactPhone           string                 `json:"contactPhone,omitempty"`
	RequestedModifications RequestedModifications `json:"requestedModifications"`
}

// Validate checks the request before it is sent.
func (r CustomPackageRequestPayload) Validate() error {
	var missing []string
	for field, value := range map[string]string{
		"entityType":       r.EntityType,
		"organizationName": r.OrganizationName,
		"contactName":      r.ContactName,
		"contactEmail":     r.ContactEmail,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.New("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// =============================================================================
// POST /payments/create-checkout-session
// =============================================================================

// CheckoutSessionRequest asks the backend to open a payment session for a
// package or a custom package.
type CheckoutSessionRequest struct {
	PackageID       string         `json:"packageId,omitempty"`
	CustomPackageID string         `json:"customPackageId,omitempty"`
	ProductID       string         `json:"productId,omitempty"`
	URLType         domain.URLType `json:"urlType,omitempty"`
}

// Validate checks that exactly one item is being bought.
func (r CheckoutSessionRequest) Validate() error {
	if (r.PackageID == "") == (r.CustomPackageID == "") {
		return errors.New("exactly one of packageId and customPackageId is required")
	}
	return nil
}

// CheckoutSessionResponse carries the gateway redirect URL.
type CheckoutSessionResponse struct {
	URL string `json:"url"`
}

// errorResponse is the error body shape returned by the content API.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
