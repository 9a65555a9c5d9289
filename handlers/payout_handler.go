package handlers

import (
	"strings"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PayoutRequestBody struct {
	Amount         decimal.Decimal       `json:"amount"`
	Method         string                `json:"method" validate:"required,oneof=paypal bank_transfer"`
	PaymentDetails models.PaymentDetails `json:"payment_details"`
	Notes          string                `json:"notes" validate:"max=1000"`
}

func (h *Handler) CreatePayoutRequest(c *fiber.Ctx) error {
	var req PayoutRequestBody
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.UserContext()
	teacher, err := h.Teachers.ForUser(ctx, currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	if teacher.Status != models.TeacherApproved {
		return h.respondError(c, services.ErrTeacherNotApproved)
	}

	request, err := h.Payouts.CreatePayoutRequest(ctx, services.NewPayout{
		TeacherID:      teacher.ID,
		Amount:         req.Amount,
		Method:         models.PayoutMethod(req.Method),
		PaymentDetails: req.PaymentDetails,
		Notes:          req.Notes,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Payout request submitted successfully",
		"request": request,
	})
}

func (h *Handler) ListMyPayoutRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	teacher, err := h.Teachers.ForUser(ctx, currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	filter, err := payoutFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter.TeacherID = &teacher.ID

	requests, err := h.Payouts.ListPayoutRequests(ctx, filter)
	if err != nil {
		return h.respondError(c, err)
	}
	if requests == nil {
		requests = []models.PayoutRequest{}
	}
	return c.JSON(requests)
}

func (h *Handler) GetPayoutMinimums(c *fiber.Ctx) error {
	out := fiber.Map{}
	for _, method := range []models.PayoutMethod{models.PayoutPayPal, models.PayoutBankTransfer} {
		minimum, err := h.Payouts.MinimumAmount(method)
		if err != nil {
			return h.respondError(c, err)
		}
		out[string(method)] = minimum.StringFixed(2)
	}
	return c.JSON(out)
}

func payoutFilter(c *fiber.Ctx) (store.PayoutFilter, error) {
	var filter store.PayoutFilter
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		status := models.PayoutStatus(s)
		if !status.Valid() {
			return filter, services.ErrInvalidInput
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, nil
}
