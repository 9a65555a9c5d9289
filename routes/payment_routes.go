package routes

import (
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/anjiri1684/tutor_ledger/middleware"
	"github.com/gofiber/fiber/v2"
)

func WalletRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	wallet := api.Group("/wallet", middleware.Protected(h.JWTSecret))
	wallet.Get("", h.GetWallet)
	wallet.Post("/recharge", h.RechargeWallet)
	wallet.Get("/transactions", h.GetWalletTransactions)
}

func PayoutRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	payouts := api.Group("/payouts", middleware.Protected(h.JWTSecret))
	payouts.Post("", middleware.TeacherRequired(), h.CreatePayoutRequest)
	payouts.Get("", middleware.TeacherRequired(), h.ListMyPayoutRequests)
	payouts.Patch("/:requestId", middleware.AdminRequired(), h.ProcessPayoutRequest)
}
