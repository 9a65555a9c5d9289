package routes

import (
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/anjiri1684/tutor_ledger/middleware"
	"github.com/gofiber/fiber/v2"
)

func LessonRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	lessons := api.Group("/lessons", middleware.Protected(h.JWTSecret))
	lessons.Post("", h.CreateLesson)
	lessons.Get("", h.ListLessons)
	lessons.Get("/:lessonId", h.GetLesson)
	lessons.Patch("/:lessonId", h.UpdateLesson)
	lessons.Get("/:lessonId/meeting", h.GetLessonMeetingInfo)
	lessons.Post("/:lessonId/rating", h.RateLesson)
}
