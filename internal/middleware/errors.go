package middleware

import (
	"errors"
	"net/http"

	"github.com/bilgisen/newsenrich/internal/logger"
	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/gofiber/fiber/v2"
)

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, models.ErrFeedUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every handler error as JSON. Feed source failures map
// to 502.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)

	message := http.StatusText(code)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message = fe.Message
	}

	event := logger.Get().Warn()
	if code >= fiber.StatusInternalServerError {
		event = logger.Get().Error()
	}
	event.
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", code).
		Msg("HTTP error")

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
