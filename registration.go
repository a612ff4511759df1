package authsync

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength mirrors the identity service password policy
var MinPasswordLength = 8

// RegisterAccountMessage carries the fields sent verbatim to the identity
// service account creation capability
type RegisterAccountMessage struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate performs the checks a caller runs before submitting a
// registration. The Controller never calls it.
func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(MinPasswordLength, 72)),
		validation.Field(
			&e.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
