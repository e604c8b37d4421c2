package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DukeRupert/storefront/internal/contentapi"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/flight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrialService(t *testing.T, api *mockContentAPI, rec *mockRecorder) (FreeTrialService, *flight.MemoryGuard) {
	t.Helper()
	guard := newGuard(t)
	var recorder AttemptRecorder
	if rec != nil {
		recorder = rec
	}
	return NewFreeTrialService(api, guard, recorder, testLogger()), guard
}

var trialCatalog = []domain.Package{
	pkg("family", domain.AudienceB2C),
	pkg("school", domain.AudienceB2E),
	pkg("business", domain.AudienceB2B),
}

// =============================================================================
// Eligibility
// =============================================================================

func TestFreeTrial_AnonymousIsEligibleWithoutLedgerCall(t *testing.T) {
	api := &mockContentAPI{}
	svc, _ := newTrialService(t, api, nil)

	assert.True(t, svc.IsEligible(context.Background(), nil))
	assert.Equal(t, 0, api.callCount("HasUsedTrial"))
}

func TestFreeTrial_LedgerFailureFailsOpen(t *testing.T) {
	api := &mockContentAPI{
		HasUsedTrialFunc: func(context.Context) (bool, error) {
			return false, errors.New("connection refused")
		},
	}
	svc, _ := newTrialService(t, api, nil)

	assert.True(t, svc.IsEligible(context.Background(), user("u1", domain.RoleB2BUser)))
}

func TestFreeTrial_UsedCacheForgetsIdleUsers(t *testing.T) {
	api := &mockContentAPI{
		HasUsedTrialFunc: func(context.Context) (bool, error) { return true, nil },
	}
	svc := NewFreeTrialService(api, newGuard(t), nil, testLogger()).(*freeTrialService)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	require.True(t, svc.HasUsedTrial(ctx, user("idle", domain.RoleB2BUser)))
	require.True(t, svc.HasUsedTrial(ctx, user("active", domain.RoleB2BUser)))

	now = now.Add(20 * time.Hour)
	require.True(t, svc.HasUsedTrial(ctx, user("active", domain.RoleB2BUser)))
	assert.Equal(t, 2, api.callCount("HasUsedTrial"), "cached answer skips the ledger")

	now = now.Add(5 * time.Hour)
	require.True(t, svc.HasUsedTrial(ctx, user("new", domain.RoleB2BUser)))

	assert.NotContains(t, svc.used, "idle")
	assert.Contains(t, svc.used, "active")
	assert.Contains(t, svc.used, "new")

	// A forgotten user is answered by the ledger again.
	require.True(t, svc.HasUsedTrial(ctx, user("idle", domain.RoleB2BUser)))
	assert.Equal(t, 4, api.callCount("HasUsedTrial"))
}

func TestFreeTrial_UsedIsMonotonic(t *testing.T) {
	responses := []bool{true, false}
	var failNext bool
	api := &mockContentAPI{
		HasUsedTrialFunc: func(context.Context) (bool, error) {
			if failNext {
				return false, errors.New("boom")
			}
			r := responses[0]
			responses = responses[1:]
			return r, nil
		},
	}
	svc, _ := newTrialService(t, api, nil)
	u := user("u1", domain.RoleB2BUser)
	ctx := context.Background()

	assert.False(t, svc.IsEligible(ctx, u))

	// A later "not used" answer or a failed read cannot revert it.
	assert.False(t, svc.IsEligible(ctx, u))
	failNext = true
	assert.False(t, svc.IsEligible(ctx, u))
	assert.Equal(t, 1, api.callCount("HasUsedTrial"))
}

// =============================================================================
// CreateTrial
// =============================================================================

func TestFreeTrial_CreateUsesFirstOrganizationPackage(t *testing.T) {
	var sent contentapi.CreateFreeTrialRequest
	api := &mockContentAPI{
		CreateFreeTrialFunc: func(_ context.Context, req contentapi.CreateFreeTrialRequest) (*domain.FreeTrial, error) {
			sent = req
			return &domain.FreeTrial{ID: "t1", PackageID: req.PackageID, RedemptionCode: "FREE-1"}, nil
		},
	}
	rec := &mockRecorder{}
	svc, guard := newTrialService(t, api, rec)
	u := user("u1", domain.RoleB2EUser)
	ctx := context.Background()

	trial, err := svc.CreateTrial(ctx, u, domain.CreateTrialParams{ProductID: "prod-1", Catalog: trialCatalog})

	require.NoError(t, err)
	assert.Equal(t, "FREE-1", trial.RedemptionCode)
	assert.Equal(t, contentapi.CreateFreeTrialRequest{PackageID: "school", ProductID: "prod-1"}, sent)

	// Eligibility flipped without asking the ledger again.
	assert.False(t, svc.IsEligible(ctx, u))

	// Guard released.
	state, err := guard.State(ctx, flight.Key("free_trial", "u1"))
	require.NoError(t, err)
	assert.Equal(t, flight.StateIdle, state)

	assert.Equal(t, domain.AttemptOutcomeSucceeded, rec.last().Outcome)
	assert.Equal(t, "school", rec.last().PackageID)
}

func TestFreeTrial_CreateWithExplicitPackage(t *testing.T) {
	api := &mockContentAPI{}
	svc, _ := newTrialService(t, api, nil)

	trial, err := svc.CreateTrial(context.Background(), user("u1", domain.RoleB2BUser), domain.CreateTrialParams{
		PackageID: "business",
		Catalog:   trialCatalog,
	})

	require.NoError(t, err)
	assert.Equal(t, "business", trial.PackageID)
}

func TestFreeTrial_CreateRejections(t *testing.T) {
	tests := []struct {
		name     string
		user     *domain.User
		params   domain.CreateTrialParams
		usedOnce bool
		wantCode string
	}{
		{
			name:     "anonymous",
			user:     nil,
			params:   domain.CreateTrialParams{Catalog: trialCatalog},
			wantCode: domain.EUNAUTHORIZED,
		},
		{
			name:     "already used",
			user:     user("u1", domain.RoleB2BUser),
			params:   domain.CreateTrialParams{Catalog: trialCatalog},
			usedOnce: true,
			wantCode: domain.EFORBIDDEN,
		},
		{
			name:     "no organization packages",
			user:     user("u1", domain.RoleB2BUser),
			params:   domain.CreateTrialParams{Catalog: []domain.Package{pkg("family", domain.AudienceB2C)}},
			wantCode: domain.EINVALID,
		},
		{
			name:     "explicit consumer package",
			user:     user("u1", domain.RoleB2BUser),
			params:   domain.CreateTrialParams{PackageID: "family", Catalog: trialCatalog},
			wantCode: domain.EINVALID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockContentAPI{
				HasUsedTrialFunc: func(context.Context) (bool, error) { return tt.usedOnce, nil },
			}
			svc, _ := newTrialService(t, api, nil)

			_, err := svc.CreateTrial(context.Background(), tt.user, tt.params)

			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			assert.Equal(t, 0, api.callCount("CreateFreeTrial"), "ledger must not be called")
		})
	}
}

func TestFreeTrial_LedgerFailureReleasesGuard(t *testing.T) {
	calls := 0
	api := &mockContentAPI{
		CreateFreeTrialFunc: func(_ context.Context, req contentapi.CreateFreeTrialRequest) (*domain.FreeTrial, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("timeout")
			}
			return &domain.FreeTrial{ID: "t1", PackageID: req.PackageID}, nil
		},
	}
	rec := &mockRecorder{}
	svc, _ := newTrialService(t, api, rec)
	u := user("u1", domain.RoleB2BUser)
	params := domain.CreateTrialParams{Catalog: trialCatalog}

	_, err := svc.CreateTrial(context.Background(), u, params)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, domain.AttemptOutcomeFailed, rec.last().Outcome)

	// The user may retry.
	_, err = svc.CreateTrial(context.Background(), u, params)
	assert.NoError(t, err)
}

func TestFreeTrial_ConcurrentCreateRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &mockContentAPI{
		CreateFreeTrialFunc: func(_ context.Context, req contentapi.CreateFreeTrialRequest) (*domain.FreeTrial, error) {
			close(entered)
			<-release
			return &domain.FreeTrial{ID: "t1", PackageID: req.PackageID}, nil
		},
	}
	svc, _ := newTrialService(t, api, nil)
	u := user("u1", domain.RoleB2BUser)
	params := domain.CreateTrialParams{Catalog: trialCatalog}

	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateTrial(context.Background(), u, params)
		done <- err
	}()
	<-entered

	_, err := svc.CreateTrial(context.Background(), u, params)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.callCount("CreateFreeTrial"))
}
