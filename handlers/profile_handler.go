package handlers

import (
	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetMyCertificates(c *fiber.Ctx) error {
	if h.Certificates == nil {
		return c.JSON([]models.Certificate{})
	}
	certs, err := h.Certificates.ListCertificates(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	return c.JSON(certs)
}
