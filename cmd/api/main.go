package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/tutor_ledger/configs"
	"github.com/anjiri1684/tutor_ledger/database"
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/anjiri1684/tutor_ledger/jobs"
	"github.com/anjiri1684/tutor_ledger/metrics"
	"github.com/anjiri1684/tutor_ledger/notifications"
	"github.com/anjiri1684/tutor_ledger/payments"
	"github.com/anjiri1684/tutor_ledger/routes"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/anjiri1684/tutor_ledger/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.MustLoad()
	lg := setupLogger(cfg.Env)
	slog.SetDefault(lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("🔥 Failed to open store: %v", err)
	}
	if err := database.SeedAdmin(ctx, st, database.AdminSeed{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		FullName: cfg.Admin.FullName,
	}); err != nil {
		log.Fatalf("🔥 Failed to seed admin user: %v", err)
	}
	metrics.Register()

	var sender services.PayoutSender
	if cfg.PayPal.Enabled() {
		sender = payments.NewPayPalClient(cfg.PayPal.APIBase, cfg.PayPal.ClientID, cfg.PayPal.Secret)
		lg.Info("PayPal payouts enabled")
	}

	notifier := notifications.NewNotifier(nil, lg)
	if brevo := notifications.NewBrevoService(cfg.Brevo.APIKey, cfg.Brevo.SenderEmail, cfg.Brevo.SenderName); brevo != nil {
		notifier = notifications.NewNotifier(brevo, lg)
	} else {
		lg.Warn("Brevo is not configured, emails will be dropped")
	}

	hub := websocket.NewHub(lg)
	go hub.Run(ctx)

	h := &handlers.Handler{
		Store:     st,
		Accounts:  services.NewAccountService(st, cfg.JWTSecret),
		Wallet:    services.NewWalletService(st, payments.NewSimulatedProcessor(cfg.Payment.Delay, cfg.Payment.MaxChargeAmount()), lg),
		Lessons:   services.NewLessonService(st, cfg.Meeting.RoomBaseURL, lg),
		Payouts:   services.NewPayoutService(st, sender, lg),
		Teachers:  services.NewTeacherService(st, lg),
		Notifier:  notifier,
		Hub:       hub,
		JWTSecret: cfg.JWTSecret,
		Log:       lg,
	}
	if cfg.Exchange.APIKey != "" {
		h.Rates = services.NewRateService(cfg.Exchange.APIKey, cfg.Exchange.Refresh)
	}
	if cfg.Cert.CloudinaryURL != "" {
		up, err := services.NewCloudinaryUploader(cfg.Cert.CloudinaryURL)
		if err != nil {
			log.Fatalf("🔥 Failed to initialize Cloudinary: %v", err)
		}
		h.Certificates = services.NewCertificateService(st, services.ChromePDFRenderer{}, up, cfg.Cert.Milestone, lg)
	}

	c := cron.New()
	if _, err := c.AddJob("*/5 * * * *", &jobs.ExpiryJob{Lessons: h.Lessons, Log: lg}); err != nil {
		log.Fatalf("🔥 Failed to schedule expiry job: %v", err)
	}
	if _, err := c.AddJob("*/5 * * * *", &jobs.ReminderJob{Store: st, Lessons: h.Lessons, Notifier: notifier, Log: lg}); err != nil {
		log.Fatalf("🔥 Failed to schedule reminder job: %v", err)
	}
	c.Start()
	lg.Info("✅ Cron jobs scheduled successfully.")

	app := newApp(h)

	go func() {
		<-ctx.Done()
		lg.Info("Shutting down...")
		<-c.Stop().Done()
		if err := app.ShutdownWithTimeout(cfg.Shutdown); err != nil {
			lg.Error("🔥 Server shutdown failed", slog.Any("error", err))
		}
	}()

	lg.Info("✅ Server is running on port " + cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("using the in-memory store, data is lost on restart")
		return store.NewMemory(), nil
	case "postgres":
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		return store.NewGorm(db), nil
	}
	return nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
}

func newApp(h *handlers.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       "Tutor Ledger",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			h.Log.Error("[ERROR]", slog.Any("error", err), slog.String("path", c.Path()), slog.String("method", c.Method()))
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Tutor Ledger API",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	routes.Setup(app, h)
	return app
}
