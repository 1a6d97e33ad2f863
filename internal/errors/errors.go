package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for the session client
var (
	// Store errors
	ErrNotFound       = errors.New("not found")
	ErrAccountMissing = errors.New("account not found")

	// Session errors
	ErrNoSession         = errors.New("no session open")
	ErrSessionSuperseded = errors.New("session acquisition superseded")

	// Token errors
	ErrEmptyToken    = errors.New("empty token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrEmptyResponse = errors.New("empty token response")

	// Configuration errors
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Kind classifies an authentication failure.
type Kind int

const (
	// KindUnknown is the open fallback for server codes with no explicit mapping.
	KindUnknown Kind = iota
	// KindNetworkFailure is a transport-level error; stored tokens are untouched and the call may be retried.
	KindNetworkFailure
	// KindReauthenticationRequired means no usable token exists without user interaction.
	KindReauthenticationRequired
	// KindInactiveAccount is a server rejection for a disabled or unverified account.
	KindInactiveAccount
	// KindInvalidCredentials is a server rejection of the username/password or grant.
	KindInvalidCredentials
	// KindInvalidRequest is a server rejection of a malformed request.
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindReauthenticationRequired:
		return "reauthentication_required"
	case KindInactiveAccount:
		return "inactive_account"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// ServerRejected reports whether the kind is one of the server rejection subtypes.
func (k Kind) ServerRejected() bool {
	return k == KindInactiveAccount || k == KindInvalidCredentials || k == KindInvalidRequest
}

var serverCodes = map[string]Kind{
	"invalid_request":        KindInvalidRequest,
	"unsupported_grant_type": KindInvalidRequest,
	"invalid_scope":          KindInvalidRequest,
	"invalid_client":         KindInvalidCredentials,
	"invalid_grant":          KindInvalidCredentials,
	"invalid_credentials":    KindInvalidCredentials,
	"unauthorized_client":    KindInvalidCredentials,
	"inactive_account":       KindInactiveAccount,
	"account_inactive":       KindInactiveAccount,
	"inactive_user":          KindInactiveAccount,
	"user_inactive":          KindInactiveAccount,
}

// KindFromCode maps an OAuth2 error code returned by the server to a Kind.
// Unmapped codes yield KindUnknown.
func KindFromCode(code string) Kind {
	if kind, ok := serverCodes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return kind
	}
	return KindUnknown
}

// Error is the single error type produced by the token lifecycle.
// AccountName and TokenType are populated on reauthentication failures so a caller
// can resume an interactive login targeting the same account.
type Error struct {
	Kind        Kind
	Code        string // server error code, verbatim
	Description string // server error_description, verbatim
	Hint        string // server hint, verbatim
	AccountName string
	TokenType   string
	Cause       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.AccountName != "" {
		b.WriteString(" [account ")
		b.WriteString(e.AccountName)
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: k}) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NetworkFailure wraps a transport error.
func NetworkFailure(cause error) *Error {
	return &Error{Kind: KindNetworkFailure, Cause: cause}
}

// ReauthenticationRequired builds the failure that triggers an interactive login.
func ReauthenticationRequired(accountName, tokenType string, cause error) *Error {
	return &Error{
		Kind:        KindReauthenticationRequired,
		AccountName: accountName,
		TokenType:   tokenType,
		Cause:       cause,
	}
}

// ServerError builds an error from an OAuth2 error response.
func ServerError(code, description, hint string, cause error) *Error {
	return &Error{
		Kind:        KindFromCode(code),
		Code:        code,
		Description: description,
		Hint:        hint,
		Cause:       cause,
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsReauthenticationRequired is the sole trigger for presenting an interactive login.
func IsReauthenticationRequired(err error) bool {
	return err != nil && KindOf(err) == KindReauthenticationRequired
}

// IsRetryable reports whether a failure should be presented as transient.
func IsRetryable(err error) bool {
	return err != nil && !IsReauthenticationRequired(err)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
