package routes

import (
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/anjiri1684/tutor_ledger/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(h.JWTSecret), middleware.AdminRequired())

	admin.Get("/teachers", h.ListTeacherApplications)
	admin.Put("/teachers/:teacherId/status", h.ReviewTeacher)

	admin.Get("/payouts", h.ListPayoutRequests)
	admin.Patch("/payouts/:requestId", h.ProcessPayoutRequest)

	reports := admin.Group("/reports")
	reports.Get("/payouts", h.GeneratePayoutReport)
}
