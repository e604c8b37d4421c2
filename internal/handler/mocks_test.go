package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Service mocks
// =============================================================================

type mockStorefront struct {
	CatalogViewFunc func(ctx context.Context, params service.CatalogViewParams) (*service.CatalogView, error)
	params          []service.CatalogViewParams
}

func (m *mockStorefront) CatalogView(ctx context.Context, params service.CatalogViewParams) (*service.CatalogView, error) {
	m.params = append(m.params, params)
	if m.CatalogViewFunc != nil {
		return m.CatalogViewFunc(ctx, params)
	}
	return &service.CatalogView{Category: params.Category, Packages: []domain.Package{}}, nil
}

type mockTrials struct {
	HasUsedTrialFunc func(ctx context.Context, user *domain.User) bool
	CreateTrialFunc  func(ctx context.Context, user *domain.User, params domain.CreateTrialParams) (*domain.FreeTrial, error)
	created          []domain.CreateTrialParams
}

func (m *mockTrials) HasUsedTrial(ctx context.Context, user *domain.User) bool {
	if m.HasUsedTrialFunc != nil {
		return m.HasUsedTrialFunc(ctx, user)
	}
	return false
}

func (m *mockTrials) IsEligible(ctx context.Context, user *domain.User) bool {
	return !m.HasUsedTrial(ctx, user)
}

func (m *mockTrials) CreateTrial(ctx context.Context, user *domain.User, params domain.CreateTrialParams) (*domain.FreeTrial, error) {
	m.created = append(m.created, params)
	if m.CreateTrialFunc != nil {
		return m.CreateTrialFunc(ctx, user, params)
	}
	return &domain.FreeTrial{ID: "trial-1", UserID: user.ID, PackageID: params.PackageID}, nil
}

type mockCustomPackages struct {
	SubmitFunc          func(ctx context.Context, params domain.CustomPackageRequestParams) (*domain.CustomPackageRequest, error)
	ListPurchasableFunc func(ctx context.Context, user *domain.User) ([]domain.CustomPackage, error)
	PurchaseFunc        func(ctx context.Context, user *domain.User, id string, urlType domain.URLType) (string, error)
}

func (m *mockCustomPackages) Submit(ctx context.Context, params domain.CustomPackageRequestParams) (*domain.CustomPackageRequest, error) {
	return m.SubmitFunc(ctx, params)
}

func (m *mockCustomPackages) ListPurchasable(ctx context.Context, user *domain.User) ([]domain.CustomPackage, error) {
	return m.ListPurchasableFunc(ctx, user)
}

func (m *mockCustomPackages) Purchase(ctx context.Context, user *domain.User, id string, urlType domain.URLType) (string, error) {
	return m.PurchaseFunc(ctx, user, id, urlType)
}

type mockCheckout struct {
	CheckoutFunc func(ctx context.Context, user *domain.User, sel domain.CheckoutSelection) (string, error)
	ReleaseFunc  func(ctx context.Context, user *domain.User) error
	selections   []domain.CheckoutSelection
}

func (m *mockCheckout) Checkout(ctx context.Context, user *domain.User, sel domain.CheckoutSelection) (string, error) {
	m.selections = append(m.selections, sel)
	return m.CheckoutFunc(ctx, user, sel)
}

func (m *mockCheckout) Release(ctx context.Context, user *domain.User) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, user)
	}
	return nil
}

// =============================================================================
// Request helpers
// =============================================================================

func newRequest(method, target, body string, user *domain.User) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(auth.SetUser(req.Context(), user))
	}
	return req
}

// serve registers routes on a fresh mux so path values are populated.
func serve(register func(mux *http.ServeMux), req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
