// Package apperr defines the error taxonomy surfaced by the application layer.
// Every error returned to a driving adapter carries a Kind so callers can
// distinguish validation, conflict, not-found, permission and authentication
// failures without string matching.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies an application error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindPermission
	KindNotAuthenticated
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindNotAuthenticated:
		return "not_authenticated"
	default:
		return "unknown"
	}
}

// Error is a classified, user-facing error. Code identifies the specific
// condition (e.g. "duplicate_email") and is what errors.Is compares.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

// Is reports whether target is an *Error with the same kind and code.
// Details are ignored so sentinels match their detailed copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithDetails returns a copy of e carrying the given details.
func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Details = append([]string(nil), details...)
	return &cp
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Validation builds a validation error with a free-form code.
func Validation(code, message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Details: details}
}

// Permission builds a permission error with a free-form code.
func Permission(code, message string) *Error {
	return &Error{Kind: KindPermission, Code: code, Message: message}
}

// Named conditions. Compare with errors.Is.
var (
	ErrInvalidSecret       = &Error{Kind: KindValidation, Code: "invalid_secret", Message: "secret does not satisfy the password policy"}
	ErrMissingField        = &Error{Kind: KindValidation, Code: "missing_field", Message: "required field missing"}
	ErrInvalidRole         = &Error{Kind: KindValidation, Code: "invalid_role", Message: "unknown role"}
	ErrInvalidPlatform     = &Error{Kind: KindValidation, Code: "invalid_platform", Message: "unknown platform"}
	ErrInvalidStatus       = &Error{Kind: KindValidation, Code: "invalid_status", Message: "unknown credential status"}
	ErrInvalidLevel        = &Error{Kind: KindValidation, Code: "invalid_access_level", Message: "unknown access level"}
	ErrSelfShare           = &Error{Kind: KindValidation, Code: "self_share", Message: "a credential cannot be shared with its owner"}
	ErrDuplicateEmail      = &Error{Kind: KindConflict, Code: "duplicate_email", Message: "email already registered"}
	ErrDuplicateCredential = &Error{Kind: KindConflict, Code: "duplicate_credential", Message: "an active credential with this email already exists on this platform"}
	ErrAlreadyShared       = &Error{Kind: KindConflict, Code: "already_shared", Message: "credential is already shared with this account"}
	ErrNotShared           = &Error{Kind: KindNotFound, Code: "not_shared", Message: "credential is not shared with this account"}
	ErrAlreadyBootstrapped = &Error{Kind: KindConflict, Code: "already_bootstrapped", Message: "an administrator already exists"}
	ErrAccountNotFound     = &Error{Kind: KindNotFound, Code: "account_not_found", Message: "account not found"}
	ErrCredentialNotFound  = &Error{Kind: KindNotFound, Code: "credential_not_found", Message: "credential not found"}
	ErrGranteeNotFound     = &Error{Kind: KindNotFound, Code: "grantee_not_found", Message: "grantee account not found"}
	ErrForbidden           = &Error{Kind: KindPermission, Code: "forbidden", Message: "operation not permitted"}
	ErrNotOwner            = &Error{Kind: KindPermission, Code: "not_owner", Message: "only the credential owner may do this"}
	ErrNotAuthenticated    = &Error{Kind: KindNotAuthenticated, Code: "not_authenticated", Message: "authentication required"}
	ErrBadLogin            = &Error{Kind: KindNotAuthenticated, Code: "invalid_login", Message: "invalid email or secret"}
)
