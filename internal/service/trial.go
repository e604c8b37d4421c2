// Package service contains the business logic layer.
//
// This file implements free trial eligibility and creation. A user gets one
// free trial; once used, eligibility never comes back.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/storefront/internal/contentapi"
	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/flight"
	"github.com/DukeRupert/storefront/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// TrialLedger is the remote record of redeemed trials.
type TrialLedger interface {
	HasUsedTrial(ctx context.Context) (bool, error)
	CreateFreeTrial(ctx context.Context, req contentapi.CreateFreeTrialRequest) (*domain.FreeTrial, error)
}

// FreeTrialService decides whether the trial card is shown and creates
// trials.
type FreeTrialService interface {
	// HasUsedTrial reports whether the user already redeemed a trial.
	// Anonymous visitors have not. A failed ledger read reports false so
	// the trial card still shows.
	HasUsedTrial(ctx context.Context, user *domain.User) bool

	// IsEligible is the negation of HasUsedTrial.
	IsEligible(ctx context.Context, user *domain.User) bool

	// CreateTrial redeems the user's free trial on an organization package
	// of the current catalog slice.
	// Returns domain.EUNAUTHORIZED for anonymous users.
	// Returns domain.EFORBIDDEN if the trial was already used.
	// Returns domain.ECONFLICT if a trial request is already in flight.
	// Returns domain.EINVALID if no organization package can be chosen.
	CreateTrial(ctx context.Context, user *domain.User, params domain.CreateTrialParams) (*domain.FreeTrial, error)
}

// =============================================================================
// Implementation
// =============================================================================

type freeTrialService struct {
	ledger   TrialLedger
	guard    flight.Guard
	recorder AttemptRecorder
	logger   *slog.Logger

	mu        sync.Mutex
	used      map[string]time.Time // user ID -> last seen; presence means the trial is used
	lastSweep time.Time
	now       func() time.Time
}

// usedCacheIdle is how long a user may stay away before their cached
// "trial used" answer is dropped. The ledger remains the source of truth.
const usedCacheIdle = 24 * time.Hour

// NewFreeTrialService creates a new FreeTrialService. recorder may be nil.
func NewFreeTrialService(
	ledger TrialLedger,
	guard flight.Guard,
	recorder AttemptRecorder,
	logger *slog.Logger,
) FreeTrialService {
	return &freeTrialService{
		ledger:   ledger,
		guard:    guard,
		recorder: recorder,
		logger:   logger,
		used:     make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *freeTrialService) HasUsedTrial(ctx context.Context, user *domain.User) bool {
	if !user.IsAuthenticated() {
		return false
	}
	if s.cachedUsed(user.ID) {
		return true
	}

	used, err := s.ledger.HasUsedTrial(ctx)
	if err != nil {
		s.logger.Warn("trial status unavailable, showing trial",
			"user_id", user.ID,
			"error", err,
		)
		return false
	}
	if used {
		s.markUsed(user.ID)
	}
	return used
}

func (s *freeTrialService) IsEligible(ctx context.Context, user *domain.User) bool {
	return !s.HasUsedTrial(ctx, user)
}

func (s *freeTrialService) CreateTrial(ctx context.Context, user *domain.User, params domain.CreateTrialParams) (*domain.FreeTrial, error) {
	const op = "trial.create"

	if !user.IsAuthenticated() {
		return nil, domain.Unauthorized(op, "Please log in to start a free trial")
	}

	attempt := domain.NewAttempt(domain.AttemptActionFreeTrial, user.ID)
	attempt.PackageID = params.PackageID
	attempt.ProductID = params.ProductID

	key := flight.Key(string(domain.AttemptActionFreeTrial), user.ID)
	if err := s.guard.Acquire(ctx, key); err != nil {
		if errors.Is(err, flight.ErrInFlight) {
			metrics.GuardRejected(string(domain.AttemptActionFreeTrial))
			s.logger.Info("free trial already in progress", "user_id", user.ID)
			return nil, domain.Conflict(op, "A free trial request is already in progress")
		}
		return nil, domain.Internal(err, op, "failed to start free trial")
	}

	trial, err := s.createTrial(ctx, user, params, &attempt)

	// The guard is released either way; a trial never navigates away.
	if err != nil {
		if ferr := s.guard.Fail(context.WithoutCancel(ctx), key); ferr != nil {
			s.logger.Error("failed to release trial guard", "user_id", user.ID, "error", ferr)
		}
		attempt.ErrorCode = domain.ErrorCode(err)
		metrics.FreeTrialFinished(string(attempt.Outcome))
		recordAttempt(ctx, s.recorder, s.logger, attempt)
		return nil, err
	}

	if rerr := s.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
		s.logger.Error("failed to release trial guard", "user_id", user.ID, "error", rerr)
	}
	attempt.Outcome = domain.AttemptOutcomeSucceeded
	metrics.FreeTrialFinished(string(attempt.Outcome))
	recordAttempt(ctx, s.recorder, s.logger, attempt)

	s.logger.Info("free trial created",
		"trial_id", trial.ID,
		"user_id", user.ID,
		"package_id", trial.PackageID,
	)
	return trial, nil
}

// createTrial runs under the guard. It sets attempt.Outcome on failure.
func (s *freeTrialService) createTrial(ctx context.Context, user *domain.User, params domain.CreateTrialParams, attempt *domain.Attempt) (*domain.FreeTrial, error) {
	const op = "trial.create"

	attempt.Outcome = domain.AttemptOutcomeRejected

	if s.HasUsedTrial(ctx, user) {
		return nil, domain.Forbidden(op, "You have already used your free trial")
	}

	pkg, err := choosePackage(params)
	if err != nil {
		return nil, err
	}
	attempt.PackageID = pkg.ID
	attempt.Audiences = pkg.TargetAudiences

	attempt.Outcome = domain.AttemptOutcomeFailed
	trial, err := s.ledger.CreateFreeTrial(ctx, contentapi.CreateFreeTrialRequest{
		PackageID: pkg.ID,
		ProductID: params.ProductID,
	})
	if err != nil {
		s.logger.Warn("free trial creation failed",
			"user_id", user.ID,
			"package_id", pkg.ID,
			"error", err,
		)
		return nil, upstreamError(err, op, "Unable to start your free trial. Please try again.")
	}

	s.markUsed(user.ID)
	return trial, nil
}

// choosePackage picks the trial package from the organization packages of
// the catalog slice: the requested one, or the first one.
func choosePackage(params domain.CreateTrialParams) (*domain.Package, error) {
	const op = "trial.choose_package"

	var first *domain.Package
	for i := range params.Catalog {
		p := &params.Catalog[i]
		if !p.IsOrganization() {
			continue
		}
		if first == nil {
			first = p
		}
		if params.PackageID != "" && p.ID == params.PackageID {
			return p, nil
		}
	}

	if first == nil {
		return nil, domain.Invalid(op, "No business or school package is available for a free trial")
	}
	if params.PackageID != "" {
		return nil, domain.NewValidationError(op, "packageId", "package is not available for a free trial")
	}
	return first, nil
}

func (s *freeTrialService) cachedUsed(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.used[userID]; !ok {
		return false
	}
	s.used[userID] = s.now()
	return true
}

func (s *freeTrialService) markUsed(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= usedCacheIdle {
		for id, seen := range s.used {
			if now.Sub(seen) > usedCacheIdle {
				delete(s.used, id)
			}
		}
		s.lastSweep = now
	}
	s.used[userID] = now
}
