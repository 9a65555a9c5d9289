package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/anjiri1684/tutor_ledger/middleware"
	"github.com/anjiri1684/tutor_ledger/notifications"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/anjiri1684/tutor_ledger/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

// Handler serves the HTTP API. Certificates, Rates and Hub are optional.
type Handler struct {
	Store        store.Reader
	Accounts     *services.AccountService
	Wallet       *services.WalletService
	Lessons      *services.LessonService
	Payouts      *services.PayoutService
	Teachers     *services.TeacherService
	Certificates *services.CertificateService
	Rates        *services.RateService
	Notifier     *notifications.Notifier
	Hub          *websocket.Hub
	JWTSecret    string
	Log          *slog.Logger
}

var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrNotFound, fiber.StatusNotFound},
	{services.ErrInvalidAmount, fiber.StatusBadRequest},
	{services.ErrInvalidInput, fiber.StatusBadRequest},
	{services.ErrInvalidPaymentDetails, fiber.StatusBadRequest},
	{services.ErrInvalidPayoutMethod, fiber.StatusBadRequest},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrAccountDisabled, fiber.StatusForbidden},
	{services.ErrForbidden, fiber.StatusForbidden},
	{services.ErrInvalidTransition, fiber.StatusConflict},
	{services.ErrEmailExists, fiber.StatusConflict},
	{services.ErrAlreadyRated, fiber.StatusConflict},
	{services.ErrTeacherNotApproved, fiber.StatusUnprocessableEntity},
	{services.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
	{services.ErrBelowMinimum, fiber.StatusUnprocessableEntity},
	{services.ErrInsufficientBalance, fiber.StatusUnprocessableEntity},
	{services.ErrPaymentFailed, fiber.StatusPaymentRequired},
}

// respondError maps a service error to its HTTP status. Anything unknown is
// logged and hidden behind a 500.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return c.Status(e.status).JSON(fiber.Map{"error": err.Error()})
		}
	}
	h.Log.Error("request failed", slog.String("path", c.Path()), slog.String("method", c.Method()), slog.Any("error", err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// parseBody decodes and validates the request body into req.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fmt.Errorf("cannot parse JSON: %w", err)
	}
	return validate.Struct(req)
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func currentUser(c *fiber.Ctx) uuid.UUID {
	id, _ := middleware.UserID(c)
	return id
}

func (h *Handler) publish(userID uuid.UUID, eventType string, data interface{}) {
	if h.Hub != nil {
		h.Hub.Publish(userID, eventType, data)
	}
}

func (h *Handler) notify(email notifications.Email) {
	if h.Notifier != nil && email.ToEmail != "" {
		h.Notifier.Go(email)
	}
}
