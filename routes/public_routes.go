package routes

import (
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	api.Get("/teachers", h.ListTeachers)
	api.Get("/teachers/:teacherId", h.GetTeacher)
	api.Get("/currency/rates", h.GetConversionRates)
	api.Get("/payouts/minimums", h.GetPayoutMinimums)
}
