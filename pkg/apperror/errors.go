package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps directly to the HTTP error
// envelope of spec §6/§7: {"error":{"code","message","details"}}.
type AppError struct {
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	Details    any        `json:"details,omitempty"`
	HTTPStatus int        `json:"-"`
	Err        error      `json:"-"`
	ProxyMeta  *ProxyMeta `json:"-"`
}

// ProxyMeta carries the subset of X-Saturn-* response metadata (spec §6)
// known at the point a proxy call is rejected, so the handler can still
// set those headers on an error response. Charged fields and balance_after
// are left zero-valued: a rejected call never settles.
type ProxyMeta struct {
	AuditID        string
	QuotedSats     int64
	QuotedUSDCents int64
}

// WithProxyMeta attaches proxy response metadata and returns the same
// error for chaining at the call site.
func (e *AppError) WithProxyMeta(m ProxyMeta) *AppError {
	e.ProxyMeta = &m
	return e
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// WithDetails attaches a details payload (e.g. a policy_reason) and
// returns the same error for chaining at the call site.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// The eight machine codes of spec §7, each with its fixed HTTP status.

func ErrUnauthorized(message string) *AppError {
	if message == "" {
		message = "invalid or missing credentials"
	}
	return New("UNAUTHORIZED", message, http.StatusUnauthorized)
}

func ErrValidation(message string) *AppError {
	return New("VALIDATION_ERROR", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("NOT_FOUND", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrPolicyDenied carries the machine-readable policy_reason (spec §7: "body
// carries the policy_reason") in Details.
func ErrPolicyDenied(reason string) *AppError {
	return New("POLICY_DENIED", "request denied by policy", http.StatusForbidden).WithDetails(map[string]string{"policy_reason": reason})
}

func ErrInsufficientBalance(currency string, required, available int64) *AppError {
	return New("INSUFFICIENT_BALANCE", "wallet balance insufficient to cover hold", http.StatusPaymentRequired).
		WithDetails(map[string]any{"currency": currency, "required": required, "available": available})
}

func ErrUpstream(serviceSlug string, err error) *AppError {
	return Wrap("UPSTREAM_ERROR", fmt.Sprintf("upstream call to %s failed", serviceSlug), http.StatusBadGateway, err)
}

func ErrRateLimit() *AppError {
	return New("RATE_LIMIT", "too many requests", http.StatusTooManyRequests)
}

func InternalError(err error) *AppError {
	return Wrap("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError, err)
}
