package local

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts     = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeCredentialTaken     = "CREDENTIAL_TAKEN"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeInvalidRegistration = "INVALID_REGISTRATION"
	TextCodeInvalidToken        = "INVALID_TOKEN"
)

// ErrInvalidCredentials is returned for unknown accounts and wrong passwords
// alike so callers cannot probe which accounts exist.
var ErrInvalidCredentials = goerrors.New("Failed to authenticate.", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while an account is cooling down
var ErrTooManyLoginAttempts = goerrors.New("Too many failed login attempts, try again later.", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrCredentialTaken is returned when registering an email already in use
var ErrCredentialTaken = goerrors.New("Failed to create record.", goerrors.CategoryConflict).
	WithTextCode(TextCodeCredentialTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidRegistration wraps registration payload validation failures
var ErrInvalidRegistration = goerrors.New("Failed to create record.", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRegistration).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidToken is returned by TokenIssuer.Validate
var ErrInvalidToken = goerrors.New("The request requires valid record authorization token.", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

func withMetadata(base *goerrors.Error, source error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
