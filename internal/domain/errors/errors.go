package errors

import (
	"errors"
	"net/http"
)

// Ledger rejection kinds
var (
	ErrInvalidNonce          = errors.New("invalid nonce")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrLimitExceeded         = errors.New("spending limit exceeded")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrPaymasterUnderfunded  = errors.New("paymaster underfunded")
	ErrMalformedField        = errors.New("malformed field")
	ErrSigningError          = errors.New("signing error")
	ErrCallReverted          = errors.New("call reverted")
)

// Supporting domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrBadRequest         = errors.New("bad request")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnsupportedToken   = errors.New("unsupported token")
	ErrNotWallet          = errors.New("sender is not a wallet account")
	ErrPaymasterInactive  = errors.New("paymaster is not active")
	ErrLimitWindowExpired = errors.New("spending limit window expired")
	ErrWrongChain         = errors.New("wrong chain id")
)

// Kind is the stable, client-facing name of a rejection.
type Kind string

const (
	KindInvalidNonce          Kind = "INVALID_NONCE"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindLimitExceeded         Kind = "LIMIT_EXCEEDED"
	KindInsufficientAllowance Kind = "INSUFFICIENT_ALLOWANCE"
	KindPaymasterUnderfunded  Kind = "PAYMASTER_UNDERFUNDED"
	KindMalformedField        Kind = "MALFORMED_FIELD"
	KindSigningError          Kind = "SIGNING_ERROR"
	KindCallReverted          Kind = "CALL_REVERTED"
	KindInsufficientFunds     Kind = "INSUFFICIENT_FUNDS"
	KindUnsupportedToken      Kind = "UNSUPPORTED_TOKEN"
	KindNotFound              Kind = "NOT_FOUND"
	KindAlreadyExists         Kind = "ALREADY_EXISTS"
	KindNotWallet             Kind = "NOT_WALLET"
	KindPaymasterInactive     Kind = "PAYMASTER_INACTIVE"
	KindLimitWindowExpired    Kind = "LIMIT_WINDOW_EXPIRED"
	KindWrongChain            Kind = "WRONG_CHAIN"
	KindBadRequest            Kind = "BAD_REQUEST"
	KindForbidden             Kind = "FORBIDDEN"
	KindInvalidCredentials    Kind = "INVALID_CREDENTIALS"
	KindInternal              Kind = "INTERNAL"
)

var kinds = []struct {
	err    error
	kind   Kind
	status int
}{
	{ErrInvalidNonce, KindInvalidNonce, http.StatusConflict},
	{ErrUnauthorized, KindUnauthorized, http.StatusUnauthorized},
	{ErrLimitExceeded, KindLimitExceeded, http.StatusUnprocessableEntity},
	{ErrInsufficientAllowance, KindInsufficientAllowance, http.StatusPaymentRequired},
	{ErrPaymasterUnderfunded, KindPaymasterUnderfunded, http.StatusPaymentRequired},
	{ErrMalformedField, KindMalformedField, http.StatusBadRequest},
	{ErrSigningError, KindSigningError, http.StatusBadRequest},
	{ErrCallReverted, KindCallReverted, http.StatusUnprocessableEntity},
	{ErrInsufficientFunds, KindInsufficientFunds, http.StatusPaymentRequired},
	{ErrUnsupportedToken, KindUnsupportedToken, http.StatusBadRequest},
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrAlreadyExists, KindAlreadyExists, http.StatusConflict},
	{ErrNotWallet, KindNotWallet, http.StatusBadRequest},
	{ErrPaymasterInactive, KindPaymasterInactive, http.StatusServiceUnavailable},
	{ErrLimitWindowExpired, KindLimitWindowExpired, http.StatusConflict},
	{ErrWrongChain, KindWrongChain, http.StatusBadRequest},
	{ErrBadRequest, KindBadRequest, http.StatusBadRequest},
	{ErrForbidden, KindForbidden, http.StatusForbidden},
	{ErrInvalidCredentials, KindInvalidCredentials, http.StatusUnauthorized},
}

// KindOf returns the rejection kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Err == nil && appErr.Code != "" {
		return Kind(appErr.Code)
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ErrorForKind is the inverse of KindOf, used by clients decoding remote rejections.
func ErrorForKind(kind Kind) (error, bool) {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err, true
		}
	}
	return nil, false
}

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code Kind, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    string(code),
		Message: message,
		Err:     err,
	}
}

// FromError converts any error into an AppError, preserving its kind.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return NewAppError(k.status, k.kind, err.Error(), err)
		}
	}
	return InternalError(err)
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, KindNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, KindBadRequest, message, ErrBadRequest)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, KindUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, KindForbidden, message, ErrForbidden)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, KindAlreadyExists, message, ErrAlreadyExists)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, KindInternal, "internal server error", err)
}
