package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"corrflow/internal/apperror"
)

// respondError maps domain error kinds onto HTTP statuses. Anything
// without a kind is a 500 and gets logged with its full chain.
func respondError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return c.Status(statusFor(appErr.Kind)).JSON(fiber.Map{
			"status": "error",
			"kind":   string(appErr.Kind),
			"error":  appErr.Message,
		})
	}

	logger.ErrorContext(c.Context(), "Unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"status": "error",
		"error":  "internal server error",
	})
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindPermission:
		return fiber.StatusForbidden
	case apperror.KindPrecondition:
		return fiber.StatusUnprocessableEntity
	case apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
