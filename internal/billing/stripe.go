package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

// StripeConfig holds the settings for calling Stripe Checkout directly.
type StripeConfig struct {
	SecretKey       string
	SuccessURL      string
	CancelURL       string
	DefaultCurrency string
}

// Validate checks that Stripe can be called.
func (c StripeConfig) Validate() error {
	switch {
	case c.SecretKey == "":
		return errors.New("stripe secret key is required")
	case c.SuccessURL == "":
		return errors.New("stripe success url is required")
	case c.CancelURL == "":
		return errors.New("stripe cancel url is required")
	}
	return nil
}

// StripeGateway opens Stripe Checkout sessions. Standard packages are
// charged through their Stripe price; custom packages through inline price
// data built from the negotiated contract pricing.
type StripeGateway struct {
	config StripeConfig
}

// NewStripeGateway creates a Stripe gateway. The secret key is installed as
// the process-wide Stripe key.
func NewStripeGateway(config StripeConfig) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stripe config: %w", err)
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "eur"
	}
	stripe.Key = config.SecretKey
	return &StripeGateway{config: config}, nil
}

// CreateCheckoutSession creates a Checkout session and returns its URL.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req Request) (string, error) {
	lineItem, mode, err := g.lineItem(req)
	if err != nil {
		return "", &Error{Provider: "stripe", Message: DefaultFailureMessage, Err: err}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{lineItem},
		SuccessURL: stripe.String(g.config.SuccessURL),
		CancelURL:  stripe.String(g.config.CancelURL),
	}
	params.Context = ctx
	if req.User != nil {
		params.ClientReferenceID = stripe.String(req.User.ID)
		if req.User.Email != "" {
			params.CustomerEmail = stripe.String(req.User.Email)
		}
		params.AddMetadata("user_id", req.User.ID)
	}
	for key, value := range map[string]string{
		"package_id":        req.PackageID,
		"custom_package_id": req.CustomPackageID,
		"product_id":        req.ProductID,
		"url_type":          string(req.URLType),
	} {
		if value != "" {
			params.AddMetadata(key, value)
		}
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		msg := DefaultFailureMessage
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			msg = stripeErr.Msg
		}
		return "", &Error{Provider: "stripe", Message: msg, Err: err}
	}
	if sess.URL == "" {
		return "", &Error{Provider: "stripe", Message: DefaultFailureMessage, Err: errors.New("no checkout url returned")}
	}
	return sess.URL, nil
}

func (g *StripeGateway) lineItem(req Request) (*stripe.CheckoutSessionLineItemParams, stripe.CheckoutSessionMode, error) {
	switch {
	case req.CustomPackage != nil:
		cp := req.CustomPackage
		if cp.Pricing.Amount <= 0 {
			return nil, "", fmt.Errorf("custom package %q has no contract price", cp.ID)
		}
		name := cp.Name
		if name == "" {
			name = "Custom package"
		}
		return &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency(cp.Pricing.Currency)),
				UnitAmount: stripe.Int64(cp.Pricing.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
			Quantity: stripe.Int64(1),
		}, stripe.CheckoutSessionModePayment, nil

	case req.Package != nil:
		pkg := req.Package
		mode := stripe.CheckoutSessionModePayment
		if pkg.Pricing.Interval != "" {
			mode = stripe.CheckoutSessionModeSubscription
		}
		if pkg.StripePriceID != "" {
			return &stripe.CheckoutSessionLineItemParams{
				Price:    stripe.String(pkg.StripePriceID),
				Quantity: stripe.Int64(1),
			}, mode, nil
		}
		if pkg.Pricing.Amount <= 0 {
			return nil, "", fmt.Errorf("package %q has no stripe price", pkg.ID)
		}
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(g.currency(pkg.Pricing.Currency)),
			UnitAmount: stripe.Int64(pkg.Pricing.Amount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(pkg.Name),
			},
		}
		if pkg.Pricing.Interval != "" {
			priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(pkg.Pricing.Interval),
			}
		}
		return &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(1),
		}, mode, nil
	}
	return nil, "", errors.New("no package resolved for checkout")
}

func (g *StripeGateway) currency(c string) string {
	if c == "" {
		return strings.ToLower(g.config.DefaultCurrency)
	}
	return strings.ToLower(c)
}
