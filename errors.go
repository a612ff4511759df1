package authsync

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAuthenticationFailed  = "AUTHENTICATION_FAILED"
	TextCodeAccountCreationFailed = "ACCOUNT_CREATION_FAILED"
	TextCodeIncompletePair        = "INCOMPLETE_CREDENTIAL_PAIR"
)

// ErrAuthenticationFailed is returned by Login and by the chained login in
// Register when the identity service rejects the credentials or cannot be
// reached.
var ErrAuthenticationFailed = goerrors.New("failed to authenticate", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountCreationFailed is returned by Register when the identity
// service rejects the new account.
var ErrAccountCreationFailed = goerrors.New("failed to create account", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountCreationFailed).
	WithCode(goerrors.CodeConflict)

// ErrIncompletePair is returned by credential stores when asked to save a
// token without an identity or the other way around.
var ErrIncompletePair = goerrors.New("token and identity must be saved together", goerrors.CategoryBadInput).
	WithTextCode(TextCodeIncompletePair).
	WithCode(goerrors.CodeBadRequest)

// IsAuthenticationFailed reports whether err carries ErrAuthenticationFailed
func IsAuthenticationFailed(err error) bool {
	return hasTextCode(err, TextCodeAuthenticationFailed)
}

// IsAccountCreationFailed reports whether err carries ErrAccountCreationFailed
func IsAccountCreationFailed(err error) bool {
	return hasTextCode(err, TextCodeAccountCreationFailed)
}

// ServiceMessage extracts the human readable message from an error
// returned by the identity service.
func ServiceMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}

	return err.Error()
}

func authenticationFailed(err error, credential string) error {
	return operationError(ErrAuthenticationFailed, "login", credential, err)
}

func accountCreationFailed(err error, credential string) error {
	return operationError(ErrAccountCreationFailed, "register", credential, err)
}

func operationError(base *goerrors.Error, operation, credential string, err error) error {
	// keep the classification of errors that already carry it
	if hasTextCode(err, base.TextCode) {
		return err
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}

	if msg := ServiceMessage(err); msg != "" {
		clone.Message = msg
	}
	clone.Source = err

	clone.WithMetadata(map[string]any{
		"operation":  operation,
		"credential": credential,
	})

	return clone
}

func hasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) || richErr == nil {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		if richErr.Source == nil {
			return false
		}
		err = richErr.Source
	}
	return false
}
