package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RechargeRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Method   string            `json:"method" validate:"required,max=50"`
	Currency string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Details  map[string]string `json:"details"`
}

func (h *Handler) RechargeWallet(c *fiber.Ctx) error {
	var req RechargeRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	amount := req.Amount
	if currency := strings.ToUpper(req.Currency); currency != "" && currency != "USD" {
		if h.Rates == nil {
			return badRequest(c, "Currency conversion is not available")
		}
		converted, err := h.Rates.ToUSD(c.UserContext(), amount, currency)
		if err != nil {
			if errors.Is(err, services.ErrInvalidInput) {
				return h.respondError(c, err)
			}
			h.Log.Error("🔥 Currency conversion failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Could not perform currency conversion."})
		}
		amount = converted
	}

	userID := currentUser(c)
	txn, err := h.Wallet.RechargeWallet(c.UserContext(), services.RechargeInput{
		UserID:  userID,
		Amount:  amount,
		Method:  req.Method,
		Details: req.Details,
	})
	if err != nil {
		if errors.Is(err, services.ErrPaymentFailed) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error(), "transaction": txn})
		}
		return h.respondError(c, err)
	}

	h.publishWallet(c.UserContext(), userID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Wallet recharged successfully",
		"transaction": txn,
	})
}

func (h *Handler) GetWallet(c *fiber.Ctx) error {
	stats, err := h.Wallet.GetWalletStats(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *Handler) GetWalletTransactions(c *fiber.Ctx) error {
	txns, err := h.Wallet.Transactions(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return c.JSON(txns)
}

func (h *Handler) publishWallet(ctx context.Context, userID uuid.UUID) {
	if stats, err := h.Wallet.GetWalletStats(ctx, userID); err == nil {
		h.publish(userID, websocket.EventWalletUpdated, stats)
	}
}
