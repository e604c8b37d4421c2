package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DukeRupert/storefront/internal/billing"
	"github.com/DukeRupert/storefront/internal/contentapi"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/flight"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGuard(t *testing.T) *flight.MemoryGuard {
	t.Helper()
	g, err := flight.NewMemoryGuard(flight.Config{}, testLogger())
	require.NoError(t, err)
	return g
}

func user(id string, role domain.Role) *domain.User {
	return &domain.User{ID: id, Email: id + "@example.com", Role: role}
}

func pkg(id string, audiences ...domain.Audience) domain.Package {
	return domain.Package{ID: id, Name: "Package " + id, TargetAudiences: audiences}
}

// =============================================================================
// Content API mock
// =============================================================================

// mockContentAPI implements CatalogReader, TrialLedger, and CustomPackageAPI
// with overridable function fields.
type mockContentAPI struct {
	ListPublicPackagesFunc         func(ctx context.Context, audience domain.Audience) ([]domain.Package, error)
	GetProductFunc                 func(ctx context.Context, id string) (*domain.Product, error)
	ListCustomPackagesFunc         func(ctx context.Context) ([]domain.CustomPackage, error)
	HasUsedTrialFunc               func(ctx context.Context) (bool, error)
	CreateFreeTrialFunc            func(ctx context.Context, req contentapi.CreateFreeTrialRequest) (*domain.FreeTrial, error)
	SubmitCustomPackageRequestFunc func(ctx context.Context, req contentapi.CustomPackageRequestPayload) (*domain.CustomPackageRequest, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *mockContentAPI) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockContentAPI) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockContentAPI) ListPublicPackages(ctx context.Context, audience domain.Audience) ([]domain.Package, error) {
	m.record("ListPublicPackages")
	if m.ListPublicPackagesFunc != nil {
		return m.ListPublicPackagesFunc(ctx, audience)
	}
	return nil, nil
}

func (m *mockContentAPI) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.record("GetProduct")
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, id)
	}
	return nil, &contentapi.APIError{Operation: "get_product", StatusCode: 404, Message: "not found"}
}

func (m *mockContentAPI) ListCustomPackages(ctx context.Context) ([]domain.CustomPackage, error) {
	m.record("ListCustomPackages")
	if m.ListCustomPackagesFunc != nil {
		return m.ListCustomPackagesFunc(ctx)
	}
	return nil, nil
}

func (m *mockContentAPI) HasUsedTrial(ctx context.Context) (bool, error) {
	m.record("HasUsedTrial")
	if m.HasUsedTrialFunc != nil {
		return m.HasUsedTrialFunc(ctx)
	}
	return false, nil
}

func (m *mockContentAPI) CreateFreeTrial(ctx context.Context, req contentapi.CreateFreeTrialRequest) (*domain.FreeTrial, error) {
	m.record("CreateFreeTrial")
	if m.CreateFreeTrialFunc != nil {
		return m.CreateFreeTrialFunc(ctx, req)
	}
	return &domain.FreeTrial{ID: "trial-1", PackageID: req.PackageID, ProductID: req.ProductID, RedemptionCode: "FREE-0001"}, nil
}

func (m *mockContentAPI) SubmitCustomPackageRequest(ctx context.Context, req contentapi.CustomPackageRequestPayload) (*domain.CustomPackageRequest, error) {
	m.record("SubmitCustomPackageRequest")
	if m.SubmitCustomPackageRequestFunc != nil {
		return m.SubmitCustomPackageRequestFunc(ctx, req)
	}
	return &domain.CustomPackageRequest{ID: "req-1", Status: domain.CustomPackageStatusPending}, nil
}

// =============================================================================
// Gateway and recorder mocks
// =============================================================================

type mockGateway struct {
	CreateCheckoutSessionFunc func(ctx context.Context, req billing.Request) (string, error)

	mu       sync.Mutex
	requests []billing.Request
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req billing.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, req)
	}
	return "https://pay.example.com/session", nil
}

func (m *mockGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type mockRecorder struct {
	mu       sync.Mutex
	attempts []domain.Attempt
	err      error
}

func (m *mockRecorder) Record(_ context.Context, a domain.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return m.err
}

func (m *mockRecorder) last() domain.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[len(m.attempts)-1]
}

type mockCheckout struct {
	CheckoutFunc func(ctx context.Context, user *domain.User, sel domain.CheckoutSelection) (string, error)
	selections   []domain.CheckoutSelection
}

func (m *mockCheckout) Checkout(ctx context.Context, user *domain.User, sel domain.CheckoutSelection) (string, error) {
	m.selections = append(m.selections, sel)
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx, user, sel)
	}
	return "https://pay.example.com/custom", nil
}

func (m *mockCheckout) Release(context.Context, *domain.User) error {
	return nil
}
