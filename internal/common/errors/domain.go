package commonerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCategory string

const (
	CategoryValidation   ErrorCategory = "VALIDATION"
	CategoryAuth         ErrorCategory = "AUTH"
	CategoryNotFound     ErrorCategory = "NOT_FOUND"
	CategoryUnauthorized ErrorCategory = "UNAUTHORIZED"
	CategoryInternal     ErrorCategory = "INTERNAL"
	CategoryExternal     ErrorCategory = "EXTERNAL"
	CategoryTransport    ErrorCategory = "TRANSPORT"
)

type DomainError interface {
	error
	Code() string
	Category() ErrorCategory
	HTTPStatus() int
	Message() string
	Unwrap() error
	WithCause(cause error) DomainError
}

type domainError struct {
	code     string
	category ErrorCategory
	status   int
	message  string
	cause    error
	base     *domainError
}

func (e *domainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *domainError) Code() string {
	return e.code
}

func (e *domainError) Category() ErrorCategory {
	return e.category
}

func (e *domainError) HTTPStatus() int {
	return e.status
}

func (e *domainError) Message() string {
	return e.message
}

func (e *domainError) Unwrap() error {
	return e.cause
}

// Is matches any copy produced by WithCause against its catalog entry.
func (e *domainError) Is(target error) bool {
	t, ok := target.(*domainError)
	if !ok {
		return false
	}
	return e.root() == t.root()
}

func (e *domainError) root() *domainError {
	if e.base != nil {
		return e.base
	}
	return e
}

func (e *domainError) WithCause(cause error) DomainError {
	return &domainError{
		code:     e.code,
		category: e.category,
		status:   e.status,
		message:  e.message,
		cause:    cause,
		base:     e.root(),
	}
}

func NewDomainError(code string, category ErrorCategory, status int, message string) DomainError {
	return &domainError{
		code:     code,
		category: category,
		status:   status,
		message:  message,
	}
}

func IsDomainError(err error) bool {
	var de DomainError
	return errors.As(err, &de)
}

func AsDomainError(err error) (DomainError, bool) {
	var de DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

var (
	ErrMissingRequiredEnv = NewDomainError(
		"MISSING_REQUIRED_ENV",
		CategoryValidation,
		http.StatusInternalServerError,
		"missing required environment variable",
	)

	ErrInvalidJWTSecret = NewDomainError(
		"INVALID_JWT_SECRET",
		CategoryValidation,
		http.StatusInternalServerError,
		"JWT_SECRET must be at least 32 bytes",
	)

	ErrInvalidConfig = NewDomainError(
		"INVALID_CONFIG",
		CategoryValidation,
		http.StatusInternalServerError,
		"invalid configuration",
	)

	ErrUserNotConnected = NewDomainError(
		"USER_NOT_CONNECTED",
		CategoryNotFound,
		http.StatusNotFound,
		"user not connected",
	)

	ErrEmptyUUID = NewDomainError(
		"EMPTY_UUID",
		CategoryValidation,
		http.StatusBadRequest,
		"uuid cannot be empty",
	)

	ErrInvalidUUID = NewDomainError(
		"INVALID_UUID",
		CategoryValidation,
		http.StatusBadRequest,
		"invalid uuid",
	)

	ErrCircuitOpen = NewDomainError(
		"CIRCUIT_OPEN",
		CategoryExternal,
		http.StatusServiceUnavailable,
		"circuit breaker is open",
	)

	ErrInternalError = NewDomainError(
		"INTERNAL_ERROR",
		CategoryInternal,
		http.StatusInternalServerError,
		"internal server error",
	)
)

// Auth errors close the connection attempt with a policy violation.
var (
	ErrMissingCredential = NewDomainError(
		"MISSING_CREDENTIAL",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"missing credential",
	)

	ErrInvalidToken = NewDomainError(
		"INVALID_TOKEN",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"token is not valid",
	)

	ErrInvalidTokenSigningMethod = NewDomainError(
		"INVALID_TOKEN_SIGNING_METHOD",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid token signing method",
	)

	ErrInvalidTokenClaims = NewDomainError(
		"INVALID_TOKEN_CLAIMS",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid token claims",
	)

	ErrMissingTokenClaims = NewDomainError(
		"MISSING_TOKEN_CLAIMS",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"missing required token claims",
	)

	ErrTokenRevoked = NewDomainError(
		"TOKEN_REVOKED",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"token has been revoked",
	)
)

// Protocol errors drop the offending frame and keep the connection.
var (
	ErrInvalidFrame = NewDomainError(
		"INVALID_FRAME",
		CategoryValidation,
		http.StatusBadRequest,
		"invalid frame",
	)

	ErrInvalidPayload = NewDomainError(
		"INVALID_PAYLOAD",
		CategoryValidation,
		http.StatusBadRequest,
		"invalid payload",
	)

	ErrUnknownMessageType = NewDomainError(
		"UNKNOWN_MESSAGE_TYPE",
		CategoryValidation,
		http.StatusBadRequest,
		"unknown message type",
	)

	ErrRateLimited = NewDomainError(
		"RATE_LIMITED",
		CategoryValidation,
		http.StatusTooManyRequests,
		"too many frames",
	)
)

// Transport errors mark a connection as dead.
var (
	ErrConnectionClosed = NewDomainError(
		"CONNECTION_CLOSED",
		CategoryTransport,
		http.StatusGone,
		"connection closed",
	)

	ErrSendTimeout = NewDomainError(
		"SEND_TIMEOUT",
		CategoryTransport,
		http.StatusRequestTimeout,
		"send operation timed out",
	)
)

// Store errors are reported to the sender only.
var (
	ErrMessageStoreFailed = NewDomainError(
		"MESSAGE_STORE_FAILED",
		CategoryExternal,
		http.StatusServiceUnavailable,
		"failed to store message",
	)
)

// IsAuthError reports whether err should reject a connection attempt.
func IsAuthError(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Category() == CategoryUnauthorized
}

// IsTransportError reports whether err means the connection is unusable.
func IsTransportError(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Category() == CategoryTransport
}
