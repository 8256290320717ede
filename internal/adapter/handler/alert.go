package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
	"github.com/ibrahimkeyboad/spendguard/internal/core/recorder"
)

// AlertReader lists escalated reckless transactions from the audit trail.
type AlertReader interface {
	AlertsForUser(userID string, limit int) ([]recorder.AlertEvent, error)
}

type AlertHandler struct {
	Alerts AlertReader
}

// List returns the latest reckless alerts of :user_id, newest first.
func (h *AlertHandler) List(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	alerts, err := h.Alerts.AlertsForUser(userID, historyLimit)
	if err != nil {
		return respondError(c, fmt.Errorf("%w: list alerts: %v", domain.ErrDependency, err))
	}
	return c.JSON(fiber.Map{"user_id": userID, "alerts": alerts})
}
