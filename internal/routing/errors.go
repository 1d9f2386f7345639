package routing

import (
	"errors"
	"fmt"
)

// FailureKind labels a terminal optimization failure
type FailureKind string

const (
	FailureAuthentication    FailureKind = "authentication_failure"
	FailureSolverRequest     FailureKind = "solver_request_failure"
	FailureMalformedResponse FailureKind = "malformed_solver_response"
)

var (
	ErrAuthentication    = errors.New("solver authentication failed")
	ErrSolverRequest     = errors.New("solver request failed")
	ErrMalformedResponse = errors.New("malformed solver response")
	ErrInvalidParams     = errors.New("invalid optimization parameters")
)

// OptimizationError is returned when a run terminates without an outcome.
// StatusCode is the solver's HTTP status when one was received.
type OptimizationError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *OptimizationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("optimization failed (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("optimization failed (%s): %v", e.Kind, e.Err)
}

func (e *OptimizationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *OptimizationError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == FailureAuthentication
	case ErrSolverRequest:
		return e.Kind == FailureSolverRequest
	case ErrMalformedResponse:
		return e.Kind == FailureMalformedResponse
	}
	return false
}

// NewAuthenticationError wraps a credential failure
func NewAuthenticationError(err error) *OptimizationError {
	return &OptimizationError{Kind: FailureAuthentication, Err: err}
}

// NewSolverRequestError wraps a transport failure, timeout or non-success status
func NewSolverRequestError(status int, err error) *OptimizationError {
	return &OptimizationError{Kind: FailureSolverRequest, StatusCode: status, Err: err}
}

// NewMalformedResponseError wraps a response that lacks the expected structure
func NewMalformedResponseError(err error) *OptimizationError {
	return &OptimizationError{Kind: FailureMalformedResponse, Err: err}
}

// FailureKindOf returns the kind of a terminal error, or "" if err is not one
func FailureKindOf(err error) FailureKind {
	var oe *OptimizationError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

// WarningCode identifies a recoverable condition recorded on the outcome
type WarningCode string

const (
	WarningGeocodeFallback        WarningCode = "geocode_fallback"
	WarningPersistenceUnavailable WarningCode = "persistence_unavailable"
	WarningCapacityOverflow       WarningCode = "capacity_overflow"
	WarningNotificationFailed     WarningCode = "notification_failed"
	WarningSolverMetricsMismatch  WarningCode = "solver_metrics_mismatch"
)

// Warning is a non-fatal problem. DeliveryID is empty for run-level warnings.
type Warning struct {
	Code       WarningCode `json:"code"`
	DeliveryID string      `json:"delivery_id,omitempty"`
	Message    string      `json:"message"`
}
