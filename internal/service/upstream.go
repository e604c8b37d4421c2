// Package service contains the business logic layer.
//
// This file maps content API failures onto domain errors and holds the
// attempt audit hook shared by the trial and checkout services.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/storefront/internal/contentapi"
	"github.com/DukeRupert/storefront/internal/domain"
)

// upstreamError converts a content API failure into a domain error.
// Client errors keep the backend's message; everything else is reported
// as unavailable with the fallback message.
func upstreamError(err error, op, fallback string) error {
	if errors.Is(err, contentapi.ErrNoToken) {
		return domain.Unauthorized(op, "Please log in to continue")
	}

	var apiErr *contentapi.APIError
	if !errors.As(err, &apiErr) {
		return domain.Unavailable(err, op, fallback)
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.Wrap(err, domain.EINVALID, op, apiErr.Message)
	case http.StatusUnauthorized:
		return domain.Wrap(err, domain.EUNAUTHORIZED, op, apiErr.Message)
	case http.StatusForbidden:
		return domain.Wrap(err, domain.EFORBIDDEN, op, apiErr.Message)
	case http.StatusNotFound:
		return domain.Wrap(err, domain.ENOTFOUND, op, apiErr.Message)
	case http.StatusConflict:
		return domain.Wrap(err, domain.ECONFLICT, op, apiErr.Message)
	}
	return domain.Unavailable(err, op, fallback)
}

// =============================================================================
// Attempt audit
// =============================================================================

// AttemptRecorder stores trial and checkout attempts for auditing.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt domain.Attempt) error
}

// recordAttempt stores the attempt. Failures are logged and never reach the
// caller; the audit log must not block a purchase.
func recordAttempt(ctx context.Context, recorder AttemptRecorder, logger *slog.Logger, attempt domain.Attempt) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		logger.Warn("failed to record attempt",
			"attempt_id", attempt.ID,
			"action", attempt.Action,
			"user_id", attempt.UserID,
			"error", err,
		)
	}
}
