package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// ErrNoEmptyString rejects empty secrets and passwords before they hit bcrypt
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the internal comparison failure. It never
// reaches the wire as-is; the provider collapses it into ErrInvalidCredentials.
var ErrMismatchedHashAndPassword = errors.New("hashed password mismatch", errors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH")

// ErrInvalidCredentials is returned for unknown handles AND wrong passwords.
// Same kind, same message: a caller must not be able to tell which one it was.
var ErrInvalidCredentials = errors.New("Invalid credentials", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("INVALID_CREDENTIALS")

// ErrOAuthOnlyAccount flags accounts with no stored password hash. Unlike
// ErrInvalidCredentials this one may reveal account existence; it points the
// caller at a different login pathway.
var ErrOAuthOnlyAccount = errors.New("This account uses OAuth login", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("OAUTH_ONLY_ACCOUNT")

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired signals a token past its exp claim
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("TOKEN_EXPIRED")

// ErrTokenMalformed covers everything else verification rejects: bad structure,
// bad signature, wrong signing method
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("TOKEN_MALFORMED")

// NewDuplicateIdentityError builds the field-attributed conflict returned when
// a handle is already registered
func NewDuplicateIdentityError(field string) *errors.Error {
	return errors.New("A record with this value already exists", errors.CategoryConflict).
		WithCode(errors.CodeConflict).
		WithTextCode("DUPLICATE_IDENTITY").
		WithMetadata(map[string]any{"field": field})
}

// IsDuplicateIdentityError will check for handle uniqueness conflicts
func IsDuplicateIdentityError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == "DUPLICATE_IDENTITY"
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
