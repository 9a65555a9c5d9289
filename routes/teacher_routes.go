package routes

import (
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/anjiri1684/tutor_ledger/middleware"
	"github.com/gofiber/fiber/v2"
)

// TeacherRoutes must be registered after PublicRoutes so /teachers is not
// caught by the /teacher middleware.
func TeacherRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	teacher := api.Group("/teacher", middleware.Protected(h.JWTSecret))
	teacher.Post("/apply", h.ApplyToBeATeacher)
	teacher.Get("/me", h.GetMyTeacherProfile)
	teacher.Put("/meeting-platforms", h.UpdateMeetingPlatforms)
	teacher.Get("/earnings", middleware.TeacherRequired(), h.GetEarnings)
}
