package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_ledger/middleware"
	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/notifications"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/anjiri1684/tutor_ledger/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateLessonRequest struct {
	TeacherID string          `json:"teacher_id" validate:"required,uuid"`
	Language  string          `json:"language" validate:"required,max=100"`
	StartsAt  time.Time       `json:"starts_at" validate:"required"`
	Duration  int             `json:"duration" validate:"required,gt=0,lte=480"`
	Price     decimal.Decimal `json:"price"`
	Type      string          `json:"type" validate:"omitempty,oneof=trial regular group"`
	Notes     string          `json:"notes" validate:"max=2000"`
}

type UpdateLessonRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=pending scheduled completed cancelled"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
	Reason string  `json:"reason" validate:"max=500"`
}

type RateLessonRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=2000"`
}

func (h *Handler) CreateLesson(c *fiber.Ctx) error {
	var req CreateLessonRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	teacherID, _ := uuid.Parse(req.TeacherID)
	studentID := currentUser(c)

	lesson, err := h.Lessons.CreateLessonRequest(c.UserContext(), services.NewLesson{
		StudentID:       studentID,
		TeacherID:       teacherID,
		Language:        req.Language,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.Duration,
		Price:           req.Price,
		Type:            models.LessonType(req.Type),
		Notes:           req.Notes,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	if lesson.PaymentTransactionID != nil {
		h.publishWallet(c.UserContext(), studentID)
	}
	if teacher, student, err := h.lessonParties(c.UserContext(), lesson); err == nil {
		h.notify(notifications.LessonRequested(
			notifications.Recipient{Name: teacher.FullName, Email: teacher.Email},
			student.FullName, lesson.Language, lesson.StartsAt))
		if teacher.UserID != nil {
			h.publish(*teacher.UserID, websocket.EventLessonUpdated, lesson)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Lesson requested successfully",
		"lesson":  lesson,
	})
}

// ListLessons returns the caller's lessons: as student, as teacher, or all
// of them for admins. ?status=a,b narrows the result.
func (h *Handler) ListLessons(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUser(c)

	var filter store.LessonFilter
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			status := models.LessonStatus(s)
			if !status.Valid() {
				return badRequest(c, "unknown lesson status "+s)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	switch middleware.Role(c) {
	case models.RoleAdmin:
	case models.RoleTeacher:
		teacher, err := h.Teachers.ForUser(ctx, userID)
		if err != nil {
			return h.respondError(c, err)
		}
		filter.TeacherID = &teacher.ID
	default:
		filter.StudentID = &userID
	}

	lessons, err := h.Lessons.ListLessons(ctx, filter)
	if err != nil {
		return h.respondError(c, err)
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return c.JSON(lessons)
}

func (h *Handler) GetLesson(c *fiber.Ctx) error {
	lesson, _, err := h.authorizedLesson(c)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(lesson)
}

// UpdateLesson applies a status change or a notes edit. Teachers accept,
// decline and complete their lessons; students may only cancel theirs or
// edit the notes.
func (h *Handler) UpdateLesson(c *fiber.Ctx) error {
	var req UpdateLessonRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Status == nil && req.Notes == nil {
		return badRequest(c, "status or notes is required")
	}

	current, access, err := h.authorizedLesson(c)
	if err != nil {
		return h.respondError(c, err)
	}

	update := services.LessonUpdate{Notes: req.Notes, Reason: strings.TrimSpace(req.Reason)}
	if req.Status != nil {
		status := models.LessonStatus(*req.Status)
		if status != models.LessonCancelled && !access.teacher && !access.admin {
			return h.respondError(c, services.ErrForbidden)
		}
		update.Status = &status
	}

	lesson, err := h.Lessons.UpdateLesson(c.UserContext(), current.ID, update)
	if err != nil {
		return h.respondError(c, err)
	}

	if lesson.Status != current.Status {
		h.afterTransition(c.UserContext(), lesson)
	}
	return c.JSON(lesson)
}

func (h *Handler) afterTransition(ctx context.Context, lesson models.Lesson) {
	teacher, student, err := h.lessonParties(ctx, lesson)
	if err != nil {
		h.Log.Warn("lesson parties not found", slog.String("lesson_id", lesson.ID.String()), slog.Any("error", err))
		return
	}

	h.publish(student.ID, websocket.EventLessonUpdated, lesson)
	if teacher.UserID != nil {
		h.publish(*teacher.UserID, websocket.EventLessonUpdated, lesson)
	}
	h.notify(notifications.LessonStatusChanged(
		notifications.Recipient{Name: student.FullName, Email: student.Email},
		teacher.FullName, string(lesson.Status), lesson.StartsAt))

	switch lesson.Status {
	case models.LessonCancelled:
		if lesson.PaymentTransactionID != nil {
			h.publishWallet(ctx, student.ID)
		}
	case models.LessonCompleted:
		if h.Certificates == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := h.Certificates.IssueIfEligible(ctx, lesson); err != nil {
				h.Log.Error("🔥 Failed to issue certificate", slog.String("lesson_id", lesson.ID.String()), slog.Any("error", err))
			}
		}()
	}
}

func (h *Handler) GetLessonMeetingInfo(c *fiber.Ctx) error {
	lesson, _, err := h.authorizedLesson(c)
	if err != nil {
		return h.respondError(c, err)
	}
	info, err := h.Lessons.GetLessonMeetingInfo(c.UserContext(), lesson.ID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(info)
}

func (h *Handler) RateLesson(c *fiber.Ctx) error {
	var req RateLessonRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return badRequest(c, "Invalid lesson ID")
	}

	lesson, err := h.Lessons.RateLesson(c.UserContext(), lessonID, currentUser(c), req.Rating, req.Review)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Thank you for your review", "lesson": lesson})
}

type lessonAccess struct {
	student bool
	teacher bool
	admin   bool
}

// authorizedLesson loads the :lessonId lesson and checks that the caller
// takes part in it. Outsiders get ErrNotFound.
func (h *Handler) authorizedLesson(c *fiber.Ctx) (models.Lesson, lessonAccess, error) {
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return models.Lesson{}, lessonAccess{}, services.ErrInvalidInput
	}
	ctx := c.UserContext()
	lesson, err := h.Lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return models.Lesson{}, lessonAccess{}, err
	}

	userID := currentUser(c)
	access := lessonAccess{
		student: lesson.StudentID == userID,
		admin:   middleware.Role(c) == models.RoleAdmin,
	}
	if teacher, err := h.Teachers.GetTeacher(ctx, lesson.TeacherID); err == nil && teacher.UserID != nil {
		access.teacher = *teacher.UserID == userID
	}
	if !access.student && !access.teacher && !access.admin {
		return models.Lesson{}, lessonAccess{}, services.ErrNotFound
	}
	return lesson, access, nil
}

func (h *Handler) lessonParties(ctx context.Context, lesson models.Lesson) (models.Teacher, models.User, error) {
	teacher, err := h.Teachers.GetTeacher(ctx, lesson.TeacherID)
	if err != nil {
		return models.Teacher{}, models.User{}, err
	}
	student, err := h.Accounts.GetUser(ctx, lesson.StudentID)
	if err != nil {
		return models.Teacher{}, models.User{}, err
	}
	return teacher, student, nil
}
