package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	b2bUser = &domain.User{ID: "u-b2b", Role: domain.RoleB2BUser}
	b2cUser = &domain.User{ID: "u-b2c", Role: domain.RoleB2CUser}
)

func decodeError(t *testing.T, body string) JSONError {
	t.Helper()
	var e JSONError
	require.NoError(t, json.Unmarshal([]byte(body), &e))
	return e
}

// requireUserStub mirrors middleware.RequireUser without the import cycle.
func requireUserStub(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.GetUser(r.Context()).IsAuthenticated() {
			UnauthorizedResponse(w, r, testLogger())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Catalog
// =============================================================================

func TestCatalogHandler_Catalog(t *testing.T) {
	storefront := &mockStorefront{CatalogViewFunc: func(_ context.Context, p service.CatalogViewParams) (*service.CatalogView, error) {
		return &service.CatalogView{
			Category:                p.Category,
			URLType:                 p.URLType,
			Packages:                []domain.Package{{ID: "p1", TargetAudiences: []domain.Audience{domain.AudienceB2B}}},
			HasOrganizationPackages: true,
			ShowFreeTrial:           true,
		}, nil
	}}
	h := NewCatalogHandler(storefront, &mockTrials{}, testLogger())

	rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/api/catalog?type=b2b&productId=prod-1", "", b2bUser))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, storefront.params, 1)
	got := storefront.params[0]
	assert.Equal(t, domain.CatalogOrganizationsSchools, got.Category, "empty category defaults to organizations")
	assert.Equal(t, domain.URLTypeB2B, got.URLType)
	assert.Equal(t, "prod-1", got.ProductID)
	assert.Equal(t, b2bUser, got.User)

	var view service.CatalogView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.ShowFreeTrial)
	assert.Len(t, view.Packages, 1)
}

func TestCatalogHandler_UnknownCategory(t *testing.T) {
	storefront := &mockStorefront{}
	h := NewCatalogHandler(storefront, &mockTrials{}, testLogger())

	rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/api/catalog?category=gadgets", "", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, storefront.params, "no read for an invalid category")
}

func TestCatalogHandler_UnknownTypeIgnored(t *testing.T) {
	storefront := &mockStorefront{}
	h := NewCatalogHandler(storefront, &mockTrials{}, testLogger())

	rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/api/catalog?category=families&type=B2X", "", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.URLTypeNone, storefront.params[0].URLType)
	assert.Equal(t, domain.CatalogFamilies, storefront.params[0].Category)
}

func TestCatalogHandler_TrialEligibility(t *testing.T) {
	trials := &mockTrials{HasUsedTrialFunc: func(_ context.Context, u *domain.User) bool {
		return u != nil && u.ID == b2bUser.ID
	}}
	h := NewCatalogHandler(&mockStorefront{}, trials, testLogger())

	tests := []struct {
		name string
		user *domain.User
		want string
	}{
		{name: "visitor", user: nil, want: `{"eligible":true}`},
		{name: "never tried", user: b2cUser, want: `{"eligible":true}`},
		{name: "already used", user: b2bUser, want: `{"eligible":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/api/free-trial/eligibility", "", tt.user))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

// =============================================================================
// Free trial
// =============================================================================

func TestTrialHandler_CreateTrial(t *testing.T) {
	catalog := []domain.Package{
		{ID: "fam", TargetAudiences: []domain.Audience{domain.AudienceB2C}},
		{ID: "org", TargetAudiences: []domain.Audience{domain.AudienceB2B}},
	}
	storefront := &mockStorefront{CatalogViewFunc: func(_ context.Context, p service.CatalogViewParams) (*service.CatalogView, error) {
		return &service.CatalogView{Category: p.Category, Packages: catalog}, nil
	}}
	trials := &mockTrials{}
	h := NewTrialHandler(storefront, trials, testLogger())

	register := func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) }
	rec := serve(register, newRequest(http.MethodPost, "/api/free-trial", `{"productId":"prod-1","type":"B2E"}`, b2bUser))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, storefront.params, 1)
	assert.Equal(t, domain.CatalogOrganizationsSchools, storefront.params[0].Category)
	assert.Equal(t, domain.URLTypeB2E, storefront.params[0].URLType)

	require.Len(t, trials.created, 1)
	assert.Equal(t, "prod-1", trials.created[0].ProductID)
	assert.Equal(t, catalog, trials.created[0].Catalog)
	assert.Contains(t, rec.Body.String(), `"id":"trial-1"`)
}

func TestTrialHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		body       string
		view       *service.CatalogView
		trialErr   error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "anonymous",
			user:       nil,
			wantStatus: http.StatusUnauthorized,
			wantCode:   domain.EUNAUTHORIZED,
		},
		{
			name:       "malformed body",
			user:       b2bUser,
			body:       `{"packageId":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.EINVALID,
		},
		{
			name:       "catalog down",
			user:       b2bUser,
			view:       &service.CatalogView{Degraded: true},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   domain.EUNAVAILABLE,
		},
		{
			name:       "already used",
			user:       b2bUser,
			trialErr:   domain.Forbidden("trial.create", "You have already used your free trial"),
			wantStatus: http.StatusForbidden,
			wantCode:   domain.EFORBIDDEN,
		},
		{
			name:       "in flight",
			user:       b2bUser,
			trialErr:   domain.Conflict("trial.create", "A free trial request is already in progress"),
			wantStatus: http.StatusConflict,
			wantCode:   domain.ECONFLICT,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storefront := &mockStorefront{}
			if tt.view != nil {
				storefront.CatalogViewFunc = func(context.Context, service.CatalogViewParams) (*service.CatalogView, error) {
					return tt.view, nil
				}
			}
			trials := &mockTrials{CreateTrialFunc: func(context.Context, *domain.User, domain.CreateTrialParams) (*domain.FreeTrial, error) {
				return nil, tt.trialErr
			}}
			h := NewTrialHandler(storefront, trials, testLogger())

			register := func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) }
			rec := serve(register, newRequest(http.MethodPost, "/api/free-trial", tt.body, tt.user))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec.Body.String()).Error.Code)
		})
	}
}

// =============================================================================
// Custom packages
// =============================================================================

func TestCustomPackageHandler_SubmitRequest(t *testing.T) {
	var got domain.CustomPackageRequestParams
	svc := &mockCustomPackages{SubmitFunc: func(_ context.Context, p domain.CustomPackageRequestParams) (*domain.CustomPackageRequest, error) {
		got = p
		return &domain.CustomPackageRequest{ID: "req-1", Status: domain.CustomPackageStatusPending}, nil
	}}
	h := NewCustomPackageHandler(svc, testLogger())

	body := `{"entityType":"school","organizationName":"Lincoln High","contactName":"Ana","contactEmail":"ana@example.com","seatLimit":40}`
	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{}) },
		newRequest(http.MethodPost, "/api/custom-package-requests", body, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Lincoln High", got.OrganizationName)
	require.NotNil(t, got.SeatLimit)
	assert.Equal(t, 40, *got.SeatLimit)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
}

func TestCustomPackageHandler_SubmitRequestValidation(t *testing.T) {
	svc := &mockCustomPackages{SubmitFunc: func(context.Context, domain.CustomPackageRequestParams) (*domain.CustomPackageRequest, error) {
		ve := domain.NewValidationError("custom_package.submit", "contactEmail", "is required")
		ve.Fields["entityType"] = "is required"
		return nil, ve
	}}
	h := NewCustomPackageHandler(svc, testLogger())

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{}) },
		newRequest(http.MethodPost, "/api/custom-package-requests", `{}`, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec.Body.String())
	assert.Equal(t, domain.EINVALID, e.Error.Code)
	assert.Equal(t, map[string]string{"contactEmail": "is required", "entityType": "is required"}, e.Error.Fields)
	assert.NotContains(t, rec.Body.String(), "custom_package.submit")
}

func TestCustomPackageHandler_ListPurchasable(t *testing.T) {
	svc := &mockCustomPackages{ListPurchasableFunc: func(_ context.Context, u *domain.User) ([]domain.CustomPackage, error) {
		assert.Equal(t, b2bUser, u)
		return nil, nil
	}}
	h := NewCustomPackageHandler(svc, testLogger())

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) },
		newRequest(http.MethodGet, "/api/custom-packages", "", b2bUser))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"customPackages":[]}`, rec.Body.String())
}

func TestCustomPackageHandler_Purchase(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "pending", wantStatus: http.StatusOK, wantBody: `{"url":"https://pay.example.com/s/1"}`},
		{name: "already purchased", err: domain.Errorf(domain.EGONE, "custom_package.purchase", "This custom package has already been purchased"), wantStatus: http.StatusGone},
		{name: "rejected", err: domain.Conflict("custom_package.purchase", "This custom package was rejected"), wantStatus: http.StatusConflict},
		{name: "missing", err: domain.NotFound("custom_package.purchase", "custom package", "cp-1"), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			var gotType domain.URLType
			svc := &mockCustomPackages{PurchaseFunc: func(_ context.Context, _ *domain.User, id string, urlType domain.URLType) (string, error) {
				gotID, gotType = id, urlType
				if tt.err != nil {
					return "", tt.err
				}
				return "https://pay.example.com/s/1", nil
			}}
			h := NewCustomPackageHandler(svc, testLogger())

			rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) },
				newRequest(http.MethodPost, "/api/custom-packages/cp-1/purchase?type=B2B_B2E", "", b2bUser))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "cp-1", gotID)
			assert.Equal(t, domain.URLTypeB2BB2E, gotType)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

// =============================================================================
// Checkout
// =============================================================================

func TestCheckoutHandler_Checkout(t *testing.T) {
	svc := &mockCheckout{CheckoutFunc: func(context.Context, *domain.User, domain.CheckoutSelection) (string, error) {
		return "https://checkout.stripe.com/c/pay/cs_1", nil
	}}
	h := NewCheckoutHandler(svc, testLogger())

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) },
		newRequest(http.MethodPost, "/api/checkout", `{"packageId":"p1","productId":"prod-1","urlType":"b2e"}`, b2bUser))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.com/c/pay/cs_1"}`, rec.Body.String())
	require.Len(t, svc.selections, 1)
	assert.Equal(t, domain.CheckoutSelection{PackageID: "p1", ProductID: "prod-1", URLType: domain.URLTypeB2E}, svc.selections[0])
}

func TestCheckoutHandler_CheckoutErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "audience mismatch",
			err:         domain.Eligibility("checkout.checkout", "You are a B2B user. You can only purchase B2B products."),
			wantStatus:  http.StatusForbidden,
			wantMessage: "You are a B2B user. You can only purchase B2B products.",
		},
		{
			name:        "gateway refused",
			err:         domain.Gateway(errors.New("card_declined"), "checkout.checkout", "Your card was declined."),
			wantStatus:  http.StatusBadGateway,
			wantMessage: "Your card was declined.",
		},
		{
			name:       "already in progress",
			err:        domain.Conflict("checkout.checkout", "A checkout is already in progress"),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "content api down",
			err:        domain.Unavailable(errors.New("dial tcp: refused"), "checkout.checkout", "The catalog is unavailable"),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCheckout{CheckoutFunc: func(context.Context, *domain.User, domain.CheckoutSelection) (string, error) {
				return "", tt.err
			}}
			h := NewCheckoutHandler(svc, testLogger())

			rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) },
				newRequest(http.MethodPost, "/api/checkout", `{"packageId":"p1"}`, b2bUser))

			assert.Equal(t, tt.wantStatus, rec.Code)
			e := decodeError(t, rec.Body.String())
			assert.Equal(t, domain.ErrorCode(tt.err), e.Error.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, e.Error.Message)
			}
			assert.NotContains(t, rec.Body.String(), "checkout.checkout")
		})
	}
}

func TestCheckoutHandler_AnonymousNeverReachesService(t *testing.T) {
	svc := &mockCheckout{}
	h := NewCheckoutHandler(svc, testLogger())

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) },
		newRequest(http.MethodPost, "/api/checkout", `{"packageId":"p1"}`, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.selections)
}

func TestCheckoutHandler_Abandon(t *testing.T) {
	released := false
	svc := &mockCheckout{ReleaseFunc: func(_ context.Context, u *domain.User) error {
		released = u.ID == b2cUser.ID
		return nil
	}}
	h := NewCheckoutHandler(svc, testLogger())

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub}) },
		newRequest(http.MethodDelete, "/api/checkout", "", b2cUser))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, released)
}

func TestCheckoutHandler_LimitApplied(t *testing.T) {
	svc := &mockCheckout{}
	h := NewCheckoutHandler(svc, testLogger())
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(w, r, testLogger(), domain.RateLimit("test"))
		})
	}

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{RequireUser: requireUserStub, Limit: deny}) },
		newRequest(http.MethodPost, "/api/checkout", `{"packageId":"p1"}`, b2cUser))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, svc.selections)
}

// =============================================================================
// Health
// =============================================================================

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
	}{
		{name: "no database", db: nil, wantStatus: http.StatusOK},
		{name: "database up", db: pingerFunc(func(context.Context) error { return nil }), wantStatus: http.StatusOK},
		{name: "database down", db: pingerFunc(func(context.Context) error { return errors.New("refused") }), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, testLogger())
			rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/health", "", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	svc := &mockCheckout{}
	h := NewCheckoutHandler(svc, testLogger())

	body := `{"packageId":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, RouteMiddleware{}) },
		newRequest(http.MethodPost, "/api/checkout", body, b2cUser))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, svc.selections)
}
