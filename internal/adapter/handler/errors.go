package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

// respondError maps a core error onto an HTTP status. Dependency and
// unexpected errors are logged and reported without internals.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientFunds):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		slog.Error("Request failed", "error", err, "path", c.Path())
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal dependency failure"})
	}
}

func badBody(c *fiber.Ctx, err error) error {
	slog.Warn("Invalid request body", "error", err, "path", c.Path())
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
}
