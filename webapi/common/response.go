// Package common holds the response envelope, problem details and request
// binding shared by the HTTP handlers.
package common

import (
	"context"
	"errors"

	"github.com/amirasaad/fxdate/pkg/calendar"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	"github.com/amirasaad/fxdate/pkg/service/conversion"
	exchangesvc "github.com/amirasaad/fxdate/pkg/service/exchange"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

var validate = validator.New()

// SuccessResponseJSON writes a Response envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// ProblemDetailsJSON writes an RFC 9457 response for err. The status is
// derived from err unless an int is passed in opts; a string in opts
// replaces the detail text and any other value is reported under "errors".
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, opts ...any) error {
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   ErrorToStatusCode(err),
		Instance: c.OriginalURL(),
	}
	if err != nil {
		pd.Detail = err.Error()
	}
	for _, opt := range opts {
		switch v := opt.(type) {
		case int:
			pd.Status = v
		case string:
			pd.Detail = v
		default:
			pd.Errors = v
		}
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(pd.Status).JSON(pd)
}

// ErrorToStatusCode maps domain errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	var fe *fiber.Error
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, conversion.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, currency.ErrInvalidIndex),
		errors.Is(err, currency.ErrUnsupportedCurrency):
		return fiber.StatusUnprocessableEntity
	case core.IsParseError(err),
		errors.Is(err, calendar.ErrUnknownField),
		errors.Is(err, calendar.ErrInvalidDirection):
		return fiber.StatusBadRequest
	case core.IsProviderError(err), core.IsMissingRateError(err):
		return fiber.StatusBadGateway
	case errors.Is(err, exchangesvc.ErrNoProvider):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body and validates it using
// go-playground/validator. On failure it writes the problem response and
// returns a nil input; the returned error is only set when that write
// fails.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err, validationErrors(err), fiber.StatusBadRequest)
	}
	return &input, nil
}

func validationErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
