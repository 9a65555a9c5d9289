package routes

import (
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/anjiri1684/tutor_ledger/middleware"
	"github.com/gofiber/fiber/v2"
)

func ProfileRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	profile := api.Group("/profile/me", middleware.Protected(h.JWTSecret))
	profile.Get("", h.GetMe)
	profile.Get("/progress", h.GetMyProgress)
	profile.Get("/certificates", h.GetMyCertificates)
}
