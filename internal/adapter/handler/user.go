package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
	"github.com/ibrahimkeyboad/spendguard/internal/core/profile"
)

type UserHandler struct {
	Profile *profile.Service
}

func (h *UserHandler) GetCaps(c *fiber.Ctx) error {
	sum, err := h.Profile.Caps(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sum)
}

// UpdateCaps applies a partial update; omitted fields stay as they are.
func (h *UserHandler) UpdateCaps(c *fiber.Ctx) error {
	var upd domain.CapsUpdate
	if err := c.BodyParser(&upd); err != nil {
		return badBody(c, err)
	}
	sum, err := h.Profile.UpdateCaps(c.UserContext(), c.Params("user_id"), upd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Caps updated", "caps": sum})
}
