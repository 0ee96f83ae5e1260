package apierr

import (
	"fmt"
	"net/http"
)

// Codes surfaced in the error envelope.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeCartUnavailable = "cart_unavailable"
	CodeUnauthorized    = "unauthorized"
	CodeInternal        = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func InvalidRequest(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, err)
}

// CartUnavailable hides backend detail from clients; cause is kept for logs.
func CartUnavailable(cause error) *Error {
	return New(http.StatusServiceUnavailable, CodeCartUnavailable, &unavailable{cause: cause})
}

type unavailable struct{ cause error }

func (u *unavailable) Error() string { return "cart is temporarily unavailable" }
func (u *unavailable) Unwrap() error { return u.cause }
