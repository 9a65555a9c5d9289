package routes

import (
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/gofiber/fiber/v2"
)

// Setup mounts every API route under /api/v1.
func Setup(app *fiber.App, h *handlers.Handler) {
	PublicRoutes(app, h)
	AuthRoutes(app, h)
	ProfileRoutes(app, h)
	WalletRoutes(app, h)
	LessonRoutes(app, h)
	TeacherRoutes(app, h)
	PayoutRoutes(app, h)
	AdminRoutes(app, h)
	MessagingRoutes(app, h)
}
