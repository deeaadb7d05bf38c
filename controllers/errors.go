package controller

import (
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"moim/services"
)

// statusFor maps a domain error onto its HTTP status. Unknown errors are
// treated as internal and reported to sentry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrAttendanceRequired):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrInvalidCode):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyCheckedIn),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrStudyFull),
		errors.Is(err, services.ErrOwnerCannotLeave):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrTransient),
		errors.Is(err, services.ErrCodeGenerationExhausted):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes the JSON error response for a service error. Transient
// failures are marked retryable so clients know a repeat may succeed.
func fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	message := err.Error()

	switch status {
	case fiber.StatusInternalServerError:
		sentry.CaptureException(err)
		message = "Internal server error"
	case fiber.StatusServiceUnavailable:
		if errors.Is(err, services.ErrTransient) {
			message = services.ErrTransient.Error()
		}
		return c.Status(status).JSON(fiber.Map{
			"error":     message,
			"retryable": true,
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
