package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/escalation"
	"github.com/ibrahimkeyboad/spendguard/internal/core/ledger"
)

type EmergencyHandler struct {
	Coordinator *escalation.Coordinator
	Ledger      *ledger.Service
}

// FundRequest moves amount for user_id.
type FundRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Alert decides an emergency request. It never moves money.
func (h *EmergencyHandler) Alert(c *fiber.Ctx) error {
	var req escalation.EmergencyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	decision, err := h.Coordinator.RequestEmergency(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(decision)
}

func (h *EmergencyHandler) TopUp(c *fiber.Ctx) error {
	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	mv, err := h.Ledger.TopUpEmergencyFund(c.UserContext(), req.UserID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Emergency fund updated", "movement": mv})
}

func (h *EmergencyHandler) Withdraw(c *fiber.Ctx) error {
	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	mv, err := h.Ledger.WithdrawEmergencyFund(c.UserContext(), req.UserID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Emergency withdrawal recorded", "movement": mv})
}
