package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorefront(t *testing.T, api *mockContentAPI) StorefrontService {
	t.Helper()
	classifier := NewAudienceClassifier()
	eligibility := NewEligibilityValidator(classifier)
	trials := NewFreeTrialService(api, newGuard(t), nil, testLogger())
	custom := NewCustomPackageService(api, &mockCheckout{}, CustomPackageServiceConfig{}, testLogger())
	return NewStorefrontService(
		api,
		classifier,
		NewCatalogFilter(classifier, testLogger()),
		eligibility,
		trials,
		custom,
		testLogger(),
	)
}

func storefrontAPI() *mockContentAPI {
	return &mockContentAPI{
		ListPublicPackagesFunc: func(context.Context, domain.Audience) ([]domain.Package, error) {
			return []domain.Package{
				pkg("family", domain.AudienceB2C),
				pkg("school", domain.AudienceB2E),
				pkg("business", domain.AudienceB2B),
			}, nil
		},
		GetProductFunc: func(_ context.Context, id string) (*domain.Product, error) {
			return &domain.Product{ID: id, TargetAudience: domain.AudienceTags{"schools"}}, nil
		},
		ListCustomPackagesFunc: func(context.Context) ([]domain.CustomPackage, error) {
			return customPackages(), nil
		},
	}
}

func TestStorefront_CatalogViewWithMismatchBanner(t *testing.T) {
	api := storefrontAPI()
	svc := newStorefront(t, api)

	view, err := svc.CatalogView(context.Background(), CatalogViewParams{
		User:      user("u1", domain.RoleB2BUser),
		Category:  domain.CatalogOrganizationsSchools,
		ProductID: "school-kit",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"school"}, ids(view.Packages))
	assert.Equal(t, domain.AudienceB2E, view.ProductAudience)
	assert.True(t, view.Eligibility.Mismatch)
	assert.Equal(t, "You are a B2B user. You can only purchase B2B products.", view.Eligibility.Message)
	assert.True(t, view.HasOrganizationPackages)
	assert.True(t, view.ShowFreeTrial)
	assert.False(t, view.Degraded)
}

func TestStorefront_TrialHiddenOnceUsed(t *testing.T) {
	api := storefrontAPI()
	api.HasUsedTrialFunc = func(context.Context) (bool, error) { return true, nil }
	svc := newStorefront(t, api)

	view, err := svc.CatalogView(context.Background(), CatalogViewParams{
		User:     user("u1", domain.RoleB2EUser),
		Category: domain.CatalogOrganizationsSchools,
	})

	require.NoError(t, err)
	assert.False(t, view.ShowFreeTrial)
}

func TestStorefront_TrialHiddenWithoutOrganizationPackages(t *testing.T) {
	api := storefrontAPI()
	api.ListPublicPackagesFunc = func(context.Context, domain.Audience) ([]domain.Package, error) {
		return []domain.Package{pkg("family", domain.AudienceB2C)}, nil
	}
	svc := newStorefront(t, api)

	view, err := svc.CatalogView(context.Background(), CatalogViewParams{Category: domain.CatalogFamilies})

	require.NoError(t, err)
	assert.Equal(t, []string{"family"}, ids(view.Packages))
	assert.False(t, view.ShowFreeTrial)
}

func TestStorefront_CatalogFailureDegrades(t *testing.T) {
	api := storefrontAPI()
	api.ListPublicPackagesFunc = func(context.Context, domain.Audience) ([]domain.Package, error) {
		return nil, errors.New("503 from upstream")
	}
	svc := newStorefront(t, api)

	view, err := svc.CatalogView(context.Background(), CatalogViewParams{Category: domain.CatalogOrganizationsSchools})

	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Empty(t, view.Packages)
	assert.NotNil(t, view.Packages)
}

func TestStorefront_ProductFailureShowsUnnarrowedCatalog(t *testing.T) {
	api := storefrontAPI()
	api.GetProductFunc = func(context.Context, string) (*domain.Product, error) {
		return nil, errors.New("timeout")
	}
	svc := newStorefront(t, api)

	view, err := svc.CatalogView(context.Background(), CatalogViewParams{
		Category:  domain.CatalogOrganizationsSchools,
		ProductID: "school-kit",
	})

	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Equal(t, []string{"school", "business"}, ids(view.Packages))
}

func TestStorefront_CustomCategoryListsPurchasable(t *testing.T) {
	api := storefrontAPI()
	svc := newStorefront(t, api)

	view, err := svc.CatalogView(context.Background(), CatalogViewParams{
		User:     user("u1", domain.RoleB2EUser),
		Category: domain.CatalogCustom,
	})

	require.NoError(t, err)
	require.Len(t, view.CustomPackages, 1)
	assert.Equal(t, "cp-pending", view.CustomPackages[0].ID)
	assert.Equal(t, 0, api.callCount("ListPublicPackages"))
}

func TestStorefront_CustomCategoryAnonymous(t *testing.T) {
	api := storefrontAPI()
	svc := newStorefront(t, api)

	view, err := svc.CatalogView(context.Background(), CatalogViewParams{Category: domain.CatalogCustom})

	require.NoError(t, err)
	assert.Empty(t, view.CustomPackages)
	assert.Equal(t, 0, api.callCount("ListCustomPackages"))
}
