package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
// Code is the stable machine-checkable kind; Message is for humans.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches on the stable code, so copies produced by WithInternal still
// compare equal to their sentinel under errors.Is.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}
	other, ok := target.(*AppError)
	if !ok || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a different
// human-readable message under the same code.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Authentication, OTP and linking errors. Password and signature mismatches
// are never distinguished from "wrong value" in what clients see.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Developer access required",
		StatusCode: http.StatusForbidden,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotRegistered = &AppError{
		Code:       "NOT_REGISTERED",
		Message:    "No account exists for this email",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNoPasswordSet = &AppError{
		Code:       "NO_PASSWORD_SET",
		Message:    "This account has no password set",
		StatusCode: http.StatusUnauthorized,
	}

	ErrAccountExists = &AppError{
		Code:       "ACCOUNT_EXISTS",
		Message:    "An account with this email already exists",
		StatusCode: http.StatusConflict,
	}

	ErrEmailTaken = &AppError{
		Code:       "EMAIL_TAKEN",
		Message:    "This email is already in use by another account",
		StatusCode: http.StatusConflict,
	}

	ErrWrongPassword = &AppError{
		Code:       "WRONG_PASSWORD",
		Message:    "Current password is incorrect",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidOTP = &AppError{
		Code:       "INVALID_OTP",
		Message:    "Invalid verification code",
		StatusCode: http.StatusUnauthorized,
	}

	ErrOTPExpired = &AppError{
		Code:       "OTP_EXPIRED",
		Message:    "Verification code has expired; request a new one",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidAssertion = &AppError{
		Code:       "INVALID_ASSERTION",
		Message:    "Identity assertion could not be verified",
		StatusCode: http.StatusUnauthorized,
	}

	ErrLinkingRequired = &AppError{
		Code:       "LINKING_REQUIRED",
		Message:    "An account with this email already uses password sign-in; log in with your password to link providers",
		StatusCode: http.StatusConflict,
	}

	ErrNotFederatedAccount = &AppError{
		Code:       "NOT_FEDERATED_ACCOUNT",
		Message:    "Password creation is only available for federated accounts",
		StatusCode: http.StatusBadRequest,
	}
)

// Generic request errors.
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
