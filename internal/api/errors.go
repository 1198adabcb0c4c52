package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
)

// ErrorKind is the coarse error taxonomy surfaced to callers. Display
// text is the caller's concern; the kind decides behavior.
type ErrorKind string

const (
	KindNetwork        ErrorKind = "network"
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindServer         ErrorKind = "server"
	KindUnknown        ErrorKind = "unknown"
)

// Known server error codes.
const (
	CodeInvalidAmount       = "invalid_amount"
	CodeInsufficientBalance = "insufficient_balance"
	CodeUserNotFound        = "user_not_found"
	CodeNotAuthorized       = "not_authorized"
	CodeAlreadyProcessed    = "already_processed"
	CodeRequestExpired      = "request_expired"
)

var codeKinds = map[string]ErrorKind{
	CodeInvalidAmount:       KindValidation,
	CodeInsufficientBalance: KindValidation,
	CodeUserNotFound:        KindNotFound,
	CodeNotAuthorized:       KindAuthorization,
	CodeAlreadyProcessed:    KindConflict,
	CodeRequestExpired:      KindConflict,
}

// Error is the single error shape of the API boundary: every non-2xx
// response and every transport failure becomes one.
type Error struct {
	Status  int    // HTTP status; 0 for transport-level failures
	Code    string // server error code when present
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api request failed: %s", e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d message=%s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus satisfies the retry layer's StatusError.
func (e *Error) HTTPStatus() int { return e.Status }

// Kind classifies the error from its code first, then its status.
func (e *Error) Kind() ErrorKind {
	if kind, ok := codeKinds[e.Code]; ok {
		return kind
	}
	switch {
	case e.Status == 0:
		return KindNetwork
	case e.Status == http.StatusUnauthorized:
		return KindAuthentication
	case e.Status == http.StatusForbidden:
		return KindAuthorization
	case e.Status == http.StatusNotFound:
		return KindNotFound
	case e.Status == http.StatusConflict:
		return KindConflict
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return KindValidation
	case e.Status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// HasCode reports whether err is an API error carrying code.
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// KindOf returns the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	return KindUnknown
}

func classifyRequestError(ctx context.Context, err error) *Error {
	if isTimeoutError(ctx, err) {
		return &Error{Message: "request timed out", cause: err}
	}
	if isNetworkError(err) {
		return &Error{Message: "network unreachable", cause: err}
	}
	return &Error{Message: err.Error(), cause: err}
}

func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	return false
}
