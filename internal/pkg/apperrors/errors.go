package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrInputTooLong         ErrorType = "INPUT_TOO_LONG"
	ErrTooManyItems         ErrorType = "TOO_MANY_ITEMS"
	ErrInvalidRiskTolerance ErrorType = "INVALID_RISK_TOLERANCE"
	ErrInvalidBasisPoints   ErrorType = "INVALID_BASIS_POINTS"
	ErrFeeTooHigh           ErrorType = "FEE_TOO_HIGH"
	ErrZeroAmount           ErrorType = "ZERO_AMOUNT"
	ErrAgentInactive        ErrorType = "AGENT_INACTIVE"
	ErrInsufficientFunds    ErrorType = "INSUFFICIENT_FUNDS"
	ErrUnauthorized         ErrorType = "UNAUTHORIZED"
	ErrMathOverflow         ErrorType = "MATH_OVERFLOW"
	ErrAlreadyExists        ErrorType = "ALREADY_EXISTS"
	ErrNotFound             ErrorType = "NOT_FOUND"

	ErrAuthFailed     ErrorType = "AUTH_FAILED"
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrReadOnly       ErrorType = "READ_ONLY"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// TypeOf returns the ErrorType carried by err, or "" when err is not an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Is reports whether err is an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInputTooLong, ErrTooManyItems, ErrInvalidRiskTolerance, ErrInvalidBasisPoints,
		ErrFeeTooHigh, ErrZeroAmount, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyExists:
		return http.StatusConflict
	case ErrAgentInactive, ErrInsufficientFunds, ErrMathOverflow:
		return http.StatusUnprocessableEntity
	case ErrReadOnly:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrInsufficientFunds:
		return "Reduce the amount or wait for the vault to be funded."
	case ErrAgentInactive:
		return "The agent has been halted; only withdrawals are accepted."
	case ErrUnauthorized:
		return "Only the agent authority may perform this action."
	case ErrAuthFailed:
		return "Check the identity header and request signature."
	case ErrFeeTooHigh:
		return "Creator fee is capped at 3000 bps (30%)."
	case ErrReadOnly:
		return "The server is in maintenance mode; withdrawals remain open."
	default:
		return ""
	}
}
