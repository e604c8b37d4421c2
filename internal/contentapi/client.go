// Package contentapi is the typed client for the remote content API that
// owns the catalog, free trial ledger, custom packages, and payment sessions.
//
// Every operation validates its request before serialization, forwards the
// caller's bearer token from the context, and reports non-2xx answers as
// *APIError carrying the backend's own message.
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/metrics"
	"golang.org/x/time/rate"
)

// ErrNoToken is returned when an authenticated endpoint is called without a
// bearer token in the context.
var ErrNoToken = errors.New("authentication required")

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the content API.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Config holds the client settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
	Burst             int
}

// Client talks to the content API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a content API client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse content api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("content api url must be absolute, got %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// =============================================================================
// Catalog
// =============================================================================

// ListPublicPackages reads the public package catalog. The read is
// cache-busted so a stale catalog is never used for eligibility decisions.
// An empty audience lists every package.
func (c *Client) ListPublicPackages(ctx context.Context, audience domain.Audience) ([]domain.Package, error) {
	query := url.Values{}
	query.Set("targetAudience", string(audience))
	query.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))

	var packages []domain.Package
	err := c.do(ctx, request{
		op:      "list_packages",
		method:  http.MethodGet,
		path:    "/packages/public",
		query:   query,
		noCache: true,
	}, &packages)
	if err != nil {
		return nil, err
	}
	return packages, nil
}

// GetProduct looks up a product for audience classification.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("get_product: product id is required")
	}

	var product domain.Product
	err := c.do(ctx, request{
		op:     "get_product",
		method: http.MethodGet,
		path:   "/products/" + url.PathEscape(id),
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// =============================================================================
// Free trial
// =============================================================================

// HasUsedTrial asks the trial ledger whether the calling user already
// redeemed a free trial.
func (c *Client) HasUsedTrial(ctx context.Context) (bool, error) {
	var resp hasUsedTrialResponse
	err := c.do(ctx, request{
		op:            "has_used_trial",
		method:        http.MethodGet,
		path:          "/free-trial/has-used-trial",
		authenticated: true,
		noCache:       true,
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.HasUsedTrial, nil
}

// CreateFreeTrial creates the calling user's free trial and returns the
// record with its redemption code.
func (c *Client) CreateFreeTrial(ctx context.Context, req CreateFreeTrialRequest) (*domain.FreeTrial, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("create_free_trial: %w", err)
	}

	var trial domain.FreeTrial
	err := c.do(ctx, request{
		op:            "create_free_trial",
		method:        http.MethodPost,
		path:          "/free-trial/create",
		body:          req,
		authenticated: true,
	}, &trial)
	if err != nil {
		return nil, err
	}
	return &trial, nil
}

// =============================================================================
// Custom packages
// =============================================================================

// ListCustomPackages lists the calling user's custom package records in
// every status.
func (c *Client) ListCustomPackages(ctx context.Context) ([]domain.CustomPackage, error) {
	var packages []domain.CustomPackage
	err := c.do(ctx, request{
		op:            "list_custom_packages",
		method:        http.MethodGet,
		path:          "/custom-packages",
		authenticated: true,
		noCache:       true,
	}, &packages)
	if err != nil {
		return nil, err
	}
	return packages, nil
}

// SubmitCustomPackageRequest submits a bespoke package request.
func (c *Client) SubmitCustomPackageRequest(ctx context.Context, req CustomPackageRequestPayload) (*domain.CustomPackageRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("submit_custom_package_request: %w", err)
	}

	var created domain.CustomPackageRequest
	err := c.do(ctx, request{
		op:     "submit_custom_package_request",
		method: http.MethodPost,
		path:   "/custom-package-requests",
		body:   req,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// =============================================================================
// Payments
// =============================================================================

// CreateCheckoutSession opens a payment session and returns the redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("create_checkout_session: %w", err)
	}

	var resp CheckoutSessionResponse
	err := c.do(ctx, request{
		op:            "create_checkout_session",
		method:        http.MethodPost,
		path:          "/payments/create-checkout-session",
		body:          req,
		authenticated: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, &APIError{
			Operation:  "create_checkout_session",
			StatusCode: http.StatusOK,
			Message:    "no checkout URL returned",
		}
	}
	return &resp, nil
}

// =============================================================================
// Transport
// =============================================================================

type request struct {
	op            string
	method        string
	path          string
	query         url.Values
	body          any
	authenticated bool
	noCache       bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	start := c.now()
	status := "error"
	defer func() {
		metrics.ContentAPICall(req.op, status, time.Since(start))
	}()

	token := auth.GetToken(ctx)
	if req.authenticated && token == "" {
		status = "no_token"
		return fmt.Errorf("%s: %w", req.op, ErrNoToken)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", req.op, err)
		}
	}

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return fmt.Errorf("%s: %w", req.op, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", req.op, err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Operation:  req.op,
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp),
		}
		c.logger.Debug("content api error",
			"operation", req.op,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", req.op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req request, token string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + req.path
	if req.query != nil {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(req.body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.noCache {
		httpReq.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		httpReq.Header.Set("Pragma", "no-cache")
	}
	return httpReq, nil
}

// readErrorMessage extracts the backend's message, falling back to the
// status text.
func readErrorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(raw) > 0 {
		var body errorResponse
		if json.Unmarshal(raw, &body) == nil {
			if body.Message != "" {
				return body.Message
			}
			if body.Error != "" {
				return body.Error
			}
		}
	}
	return http.StatusText(resp.StatusCode)
}
