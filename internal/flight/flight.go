// Package flight implements the single-flight guard that keeps at most one
// free trial or checkout request in flight per user.
//
// Each guarded key moves through an explicit state machine:
//
//	Idle -> InFlight -> Succeeded
//	                 -> Failed -> (acquirable again)
//
// A second Acquire while a key is InFlight is rejected immediately; it is
// never queued. Succeeded is held so a completed checkout cannot be repeated
// until the hold expires or the key is released.
package flight

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInFlight is returned when the action is already running for the key.
var ErrInFlight = errors.New("action already in progress")

// State is the lifecycle state of a guarded action.
type State string

const (
	StateIdle      State = "idle"
	StateInFlight  State = "in_flight"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// CanTransitionTo checks if a guarded action can move to the target state.
//
// Valid transitions:
// - idle, failed -> in_flight (acquire)
// - in_flight -> succeeded, failed (finish)
// - any -> idle (release)
func (s State) CanTransitionTo(target State) bool {
	if target == StateIdle {
		return true
	}

	switch s {
	case StateIdle, StateFailed:
		return target == StateInFlight
	case StateInFlight:
		return target == StateSucceeded || target == StateFailed
	}

	return false
}

// Guard tracks guarded actions by key.
type Guard interface {
	// Acquire moves the key to InFlight. Returns ErrInFlight if the key is
	// InFlight or holding a Succeeded result.
	Acquire(ctx context.Context, key string) error

	// Succeed marks the action finished and keeps the key held.
	Succeed(ctx context.Context, key string) error

	// Fail marks the action failed; the key can be acquired again.
	Fail(ctx context.Context, key string) error

	// Release returns the key to Idle regardless of its state.
	Release(ctx context.Context, key string) error

	// State reports the current state of the key.
	State(ctx context.Context, key string) (State, error)
}

// Config holds guard timing.
type Config struct {
	// HoldTTL is how long a Succeeded key stays held. Zero holds until
	// Release.
	HoldTTL time.Duration

	// InFlightTTL bounds how long an InFlight key survives if the process
	// never finishes it. Zero keeps it until finished or released.
	InFlightTTL time.Duration
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.HoldTTL < 0 {
		return fmt.Errorf("hold ttl must not be negative, got %s", c.HoldTTL)
	}
	if c.InFlightTTL < 0 {
		return fmt.Errorf("in-flight ttl must not be negative, got %s", c.InFlightTTL)
	}
	return nil
}

// Key builds the guard key for an action family and user.
func Key(action, userID string) string {
	return action + ":" + userID
}
