// services/errors.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Service error taxonomy. Handlers map these to HTTP statuses at the
// fiber boundary; entity existence details never leak past them.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)

// ValidationError wraps ErrValidation with a user-facing message.
func ValidationError(msg string) error {
	return fiberError{sentinel: ErrValidation, msg: msg}
}

// NotFoundError reports a missing entity by name, e.g. "bounty not found".
func NotFoundError(msg string) error {
	return fiberError{sentinel: ErrNotFound, msg: msg}
}

// ForbiddenError reports an authorization denial.
func ForbiddenError(msg string) error {
	return fiberError{sentinel: ErrForbidden, msg: msg}
}

// ConflictError reports a uniqueness violation.
func ConflictError(msg string) error {
	return fiberError{sentinel: ErrConflict, msg: msg}
}

type fiberError struct {
	sentinel error
	msg      string
}

func (e fiberError) Error() string { return e.msg }
func (e fiberError) Unwrap() error { return e.sentinel }

// RespondError converts a service error into the uniform
// {"error": "..."} failure body with the matching status code.
func RespondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "unexpected failure"

	switch {
	case errors.Is(err, ErrValidation):
		status, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, ErrForbidden):
		status, msg = fiber.StatusForbidden, err.Error()
	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		status, msg = fiber.StatusConflict, err.Error()
	}

	return c.Status(status).JSON(fiber.Map{"error": msg})
}
