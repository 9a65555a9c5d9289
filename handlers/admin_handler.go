package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/notifications"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/anjiri1684/tutor_ledger/websocket"
	"github.com/gofiber/fiber/v2"
)

type ReviewTeacherRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

type ProcessPayoutRequest struct {
	Status     string `json:"status" validate:"required,oneof=approved rejected completed"`
	AdminNotes string `json:"admin_notes" validate:"max=1000"`
}

func (h *Handler) ListTeacherApplications(c *fiber.Ctx) error {
	status := models.TeacherStatus(c.Query("status", string(models.TeacherPending)))
	if !status.Valid() {
		return badRequest(c, "unknown teacher status")
	}
	teachers, err := h.Teachers.ListTeachers(c.UserContext(), store.TeacherFilter{Status: status})
	if err != nil {
		return h.respondError(c, err)
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	return c.JSON(teachers)
}

func (h *Handler) ReviewTeacher(c *fiber.Ctx) error {
	var req ReviewTeacherRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	teacherID, ok := paramID(c, "teacherId")
	if !ok {
		return badRequest(c, "Invalid teacher ID")
	}

	teacher, err := h.Teachers.Review(c.UserContext(), teacherID, models.TeacherStatus(req.Status))
	if err != nil {
		return h.respondError(c, err)
	}

	h.notify(notifications.TeacherReviewed(notifications.Recipient{Name: teacher.FullName, Email: teacher.Email}, req.Status))
	if teacher.UserID != nil {
		h.publish(*teacher.UserID, websocket.EventTeacherUpdated, teacher)
	}
	return c.JSON(fiber.Map{"message": "Application " + req.Status, "teacher": teacher})
}

func (h *Handler) ListPayoutRequests(c *fiber.Ctx) error {
	filter, err := payoutFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	requests, err := h.Payouts.ListPayoutRequests(c.UserContext(), filter)
	if err != nil {
		return h.respondError(c, err)
	}
	if requests == nil {
		requests = []models.PayoutRequest{}
	}
	return c.JSON(requests)
}

func (h *Handler) ProcessPayoutRequest(c *fiber.Ctx) error {
	var req ProcessPayoutRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	requestID, ok := paramID(c, "requestId")
	if !ok {
		return badRequest(c, "Invalid payout request ID")
	}

	ctx := c.UserContext()
	request, err := h.Payouts.ApplyPayoutDecision(ctx, requestID, models.PayoutStatus(req.Status), req.AdminNotes)
	if err != nil {
		return h.respondError(c, err)
	}

	if teacher, err := h.Teachers.GetTeacher(ctx, request.TeacherID); err == nil {
		h.notify(notifications.PayoutDecided(
			notifications.Recipient{Name: teacher.FullName, Email: teacher.Email},
			request.Amount.StringFixed(2), string(request.Status)))
		if teacher.UserID != nil {
			h.publish(*teacher.UserID, websocket.EventPayoutUpdated, request)
		}
	}
	return c.JSON(fiber.Map{"message": "Payout request processed.", "request": request})
}

// GeneratePayoutReport exports payout requests made between start_date and
// end_date (inclusive, YYYY-MM-DD) as CSV.
func (h *Handler) GeneratePayoutReport(c *fiber.Ctx) error {
	startDate, err := time.Parse("2006-01-02", c.Query("start_date", time.Now().AddDate(0, -1, 0).Format("2006-01-02")))
	if err != nil {
		return badRequest(c, "Invalid start_date format. Use YYYY-MM-DD.")
	}
	endDate, err := time.Parse("2006-01-02", c.Query("end_date", time.Now().Format("2006-01-02")))
	if err != nil {
		return badRequest(c, "Invalid end_date format. Use YYYY-MM-DD.")
	}

	requests, err := h.Payouts.ListPayoutRequests(c.UserContext(), store.PayoutFilter{})
	if err != nil {
		return h.respondError(c, err)
	}

	b := new(bytes.Buffer)
	w := csv.NewWriter(b)
	if err := w.Write([]string{"Request ID", "Requested At", "Teacher ID", "Amount", "Method", "Status", "Processed At"}); err != nil {
		return h.respondError(c, err)
	}
	until := endDate.AddDate(0, 0, 1)
	for _, r := range requests {
		if r.RequestedAt.Before(startDate) || !r.RequestedAt.Before(until) {
			continue
		}
		processed := ""
		if r.ProcessedAt != nil {
			processed = r.ProcessedAt.Format("2006-01-02 15:04")
		}
		row := []string{
			r.ID.String(),
			r.RequestedAt.Format("2006-01-02 15:04"),
			r.TeacherID.String(),
			r.Amount.StringFixed(2),
			string(r.Method),
			string(r.Status),
			processed,
		}
		if err := w.Write(row); err != nil {
			return h.respondError(c, err)
		}
	}
	w.Flush()

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"payouts_%s_to_%s.csv\"", startDate.Format("2006-01-02"), endDate.Format("2006-01-02")))
	return c.Send(b.Bytes())
}
