package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindUnauthorized
)

// Status maps a kind onto the HTTP status the API has always used for it.
// A missing post is reported as 403, not 404.
func (k Kind) Status() int {
	switch k {
	case KindNotFound, KindForbidden:
		return fiber.StatusForbidden
	case KindValidation:
		return fiber.StatusBadRequest
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }
func Forbidden(code, message string) *Error  { return New(KindForbidden, code, message) }
func Validation(code, message string) *Error { return New(KindValidation, code, message) }

// Body is the JSON shape of every error response.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler renders *Error, *fiber.Error and anything else as a structured body.
func Handler(c *fiber.Ctx, err error) error {
	status, body := Describe(err)
	return c.Status(status).JSON(body)
}

func Describe(err error) (int, Body) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind.Status(), Body{Code: appErr.Code, Message: appErr.Message}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, Body{Code: codeForStatus(fiberErr.Code), Message: fiberErr.Message}
	}
	return fiber.StatusInternalServerError, Body{Code: "internal", Message: "internal server error"}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusRequestEntityTooLarge:
		return "too_large"
	default:
		if status >= 500 {
			return "internal"
		}
		return "error"
	}
}
