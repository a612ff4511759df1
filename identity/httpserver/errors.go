package httpserver

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-sync/identity/local"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

type fieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	Code    int                   `json:"code"`
	Message string                `json:"message"`
	Data    map[string]fieldError `json:"data"`
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(apiError{
			Code:    fiberErr.Code,
			Message: fiberErr.Message,
			Data:    map[string]fieldError{},
		})
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "Something went wrong while processing your request.").
			WithCode(errors.CodeInternal)
	}

	status := statusFor(richErr)

	s.logger.Info(
		"request failed path=%s status=%d text_code=%s message=%s details=%s",
		c.Path(),
		status,
		richErr.TextCode,
		richErr.Message,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	message := richErr.Message
	if status >= http.StatusInternalServerError {
		message = "Something went wrong while processing your request."
	}

	return c.Status(status).JSON(apiError{
		Code:    status,
		Message: message,
		Data:    fieldErrors(richErr),
	})
}

// Failed logins answer 400 like the upstream API does; a 401 is reserved
// for requests carrying a bad token.
func statusFor(richErr *errors.Error) int {
	switch richErr.TextCode {
	case local.TextCodeInvalidCreds, local.TextCodeCredentialTaken, local.TextCodeInvalidRegistration:
		return http.StatusBadRequest
	}

	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func fieldErrors(richErr *errors.Error) map[string]fieldError {
	data := map[string]fieldError{}

	fields, ok := richErr.Metadata["validation"].(map[string]string)
	if !ok {
		return data
	}

	code := "validation_invalid_value"
	if richErr.TextCode == local.TextCodeCredentialTaken {
		code = "validation_not_unique"
	}

	for field, msg := range fields {
		data[field] = fieldError{Code: code, Message: msg}
	}

	return data
}
