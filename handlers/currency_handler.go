package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetConversionRates(c *fiber.Ctx) error {
	if h.Rates == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Currency conversion is not available"})
	}
	rates, err := h.Rates.Rates(c.UserContext())
	if err != nil {
		h.Log.Error("🔥 Could not fetch exchange rates", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Could not fetch exchange rates"})
	}
	return c.JSON(fiber.Map{"base": "USD", "rates": rates})
}
