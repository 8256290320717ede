package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/ledger"
)

type InvestmentHandler struct {
	Ledger *ledger.Service
}

// InvestPMS moves money from balance into the PMS investment.
func (h *InvestmentHandler) InvestPMS(c *fiber.Ctx) error {
	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	mv, err := h.Ledger.InvestPMS(c.UserContext(), req.UserID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Investment successful", "movement": mv})
}

// Suggest projects growth for ?amount=; a missing or bad amount uses the
// default redirect.
func (h *InvestmentHandler) Suggest(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		amount = decimal.Zero
	}
	return c.JSON(ledger.Suggest(amount))
}
