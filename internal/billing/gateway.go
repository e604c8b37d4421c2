// Package billing opens payment sessions with the configured payment
// gateway.
//
// Two gateways are available: the content API's own checkout endpoint, and
// Stripe Checkout called directly. Both return the redirect URL the caller
// sends the browser to.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/DukeRupert/storefront/internal/contentapi"
	"github.com/DukeRupert/storefront/internal/domain"
)

// DefaultFailureMessage is shown when the gateway gives no usable reason.
const DefaultFailureMessage = "Unable to start checkout. Please try again."

// Request describes the item being bought. Package or CustomPackage is the
// resolved record matching PackageID or CustomPackageID.
type Request struct {
	User            *domain.User
	PackageID       string
	CustomPackageID string
	ProductID       string
	URLType         domain.URLType
	Package         *domain.Package
	CustomPackage   *domain.CustomPackage
}

// Gateway opens a payment session and returns its redirect URL.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req Request) (string, error)
}

// Error is a gateway failure. Message is safe to show to the user.
type Error struct {
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s gateway: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s gateway: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FailureMessage returns the user-facing message carried by a gateway error.
func FailureMessage(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return DefaultFailureMessage
}

// =============================================================================
// Content API gateway
// =============================================================================

// SessionCreator is the part of the content API client used for payments.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req contentapi.CheckoutSessionRequest) (*contentapi.CheckoutSessionResponse, error)
}

// APIGateway delegates checkout to the content API, which owns the payment
// provider account.
type APIGateway struct {
	api SessionCreator
}

// NewAPIGateway creates a gateway backed by the content API.
func NewAPIGateway(api SessionCreator) *APIGateway {
	return &APIGateway{api: api}
}

// CreateCheckoutSession forwards the selection to the content API.
func (g *APIGateway) CreateCheckoutSession(ctx context.Context, req Request) (string, error) {
	resp, err := g.api.CreateCheckoutSession(ctx, contentapi.CheckoutSessionRequest{
		PackageID:       req.PackageID,
		CustomPackageID: req.CustomPackageID,
		ProductID:       req.ProductID,
		URLType:         req.URLType,
	})
	if err != nil {
		msg := DefaultFailureMessage
		var apiErr *contentapi.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return "", &Error{Provider: "api", Message: msg, Err: err}
	}
	return resp.URL, nil
}
