package handlers

import (
	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetMyProgress(c *fiber.Ctx) error {
	progress, err := services.StudentProgress(c.UserContext(), h.Store, currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	if progress.Certificates == nil {
		progress.Certificates = []models.Certificate{}
	}
	return c.JSON(progress)
}
