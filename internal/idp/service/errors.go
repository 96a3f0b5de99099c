package service

import (
	"errors"
	"fmt"
)

// Protocol errors. The HTTP layer maps each to its OAuth2 error code.
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrAccessDenied            = errors.New("access_denied")
	ErrLoginRequired           = errors.New("login_required")
	ErrInvalidToken            = errors.New("invalid_token")
	ErrInsufficientScope       = errors.New("insufficient_scope")

	// RFC 8628 polling states.
	ErrAuthorizationPending = errors.New("authorization_pending")
	ErrSlowDown             = errors.New("slow_down")
	ErrExpiredToken         = errors.New("expired_token")

	// ErrIncorrectCode is the one answer for every user code that cannot be
	// confirmed, whether unknown, already used or expired.
	ErrIncorrectCode = errors.New("incorrect_code")

	// ErrDeviceContention means a device grant kept changing while a
	// decision was being recorded.
	ErrDeviceContention = errors.New("device grant changed concurrently")

	ErrSessionMismatch = fmt.Errorf("%w: session user does not match client-supplied user", ErrLoginRequired)

	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrOTPRequired        = errors.New("otp_required")
	ErrInvalidConsent     = errors.New("invalid consent token")
)

// Error carries a protocol error with a human readable description.
type Error struct {
	Err         error
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Description
}

func (e *Error) Unwrap() error { return e.Err }

// describe wraps a sentinel with a description for the client.
func describe(err error, desc string) error {
	return &Error{Err: err, Description: desc}
}

// Description returns the description attached to err, if any.
func Description(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Description
	}
	if errors.Is(err, ErrSessionMismatch) {
		return "session user does not match client-supplied user"
	}
	return ""
}
