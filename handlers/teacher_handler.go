package handlers

import (
	"strconv"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type TeacherApplicationRequest struct {
	Headline   string          `json:"headline" validate:"max=255"`
	Bio        string          `json:"bio" validate:"max=5000"`
	Languages  []string        `json:"languages" validate:"max=20,dive,max=100"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
}

type MeetingPlatformsRequest struct {
	Platforms map[string]string `json:"platforms" validate:"required,dive,keys,oneof=zoom google_meet skype teams,endkeys,max=500"`
	Preferred string            `json:"preferred_platform"`
}

// publicTeacher hides the money fields from other users.
type publicTeacher struct {
	ID          string   `json:"id"`
	FullName    string   `json:"full_name"`
	Headline    *string  `json:"headline"`
	Bio         *string  `json:"bio"`
	Languages   []string `json:"languages"`
	HourlyRate  string   `json:"hourly_rate"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
}

func toPublicTeacher(t models.Teacher) publicTeacher {
	return publicTeacher{
		ID:          t.ID.String(),
		FullName:    t.FullName,
		Headline:    t.Headline,
		Bio:         t.Bio,
		Languages:   t.Languages,
		HourlyRate:  t.HourlyRate.StringFixed(2),
		Rating:      t.Rating,
		ReviewCount: t.ReviewCount,
	}
}

func (h *Handler) ApplyToBeATeacher(c *fiber.Ctx) error {
	var req TeacherApplicationRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	teacher, err := h.Teachers.Apply(c.UserContext(), currentUser(c), services.TeacherApplication{
		Headline:   req.Headline,
		Bio:        req.Bio,
		Languages:  req.Languages,
		HourlyRate: req.HourlyRate,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(teacher)
}

func (h *Handler) GetMyTeacherProfile(c *fiber.Ctx) error {
	teacher, err := h.Teachers.ForUser(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(teacher)
}

func (h *Handler) UpdateMeetingPlatforms(c *fiber.Ctx) error {
	var req MeetingPlatformsRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.UserContext()
	teacher, err := h.Teachers.ForUser(ctx, currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	teacher, err = h.Teachers.UpdateMeetingPlatforms(ctx, teacher.ID, req.Platforms, req.Preferred)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"meeting_platforms":  teacher.MeetingPlatforms,
		"preferred_platform": teacher.PreferredPlatform,
	})
}

func (h *Handler) GetEarnings(c *fiber.Ctx) error {
	ctx := c.UserContext()
	teacher, err := h.Teachers.ForUser(ctx, currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	summary, err := h.Payouts.Earnings(ctx, teacher.ID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(summary)
}

// ListTeachers is public and only shows approved teachers.
func (h *Handler) ListTeachers(c *fiber.Ctx) error {
	filter := store.TeacherFilter{
		Status:   models.TeacherApproved,
		Language: c.Query("language"),
	}
	if raw := c.Query("min_rating"); raw != "" {
		minRating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return badRequest(c, "min_rating must be a number")
		}
		filter.MinRating = minRating
	}

	teachers, err := h.Teachers.ListTeachers(c.UserContext(), filter)
	if err != nil {
		return h.respondError(c, err)
	}
	out := make([]publicTeacher, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, toPublicTeacher(t))
	}
	return c.JSON(out)
}

func (h *Handler) GetTeacher(c *fiber.Ctx) error {
	teacherID, ok := paramID(c, "teacherId")
	if !ok {
		return badRequest(c, "Invalid teacher ID")
	}
	teacher, err := h.Teachers.GetTeacher(c.UserContext(), teacherID)
	if err != nil {
		return h.respondError(c, err)
	}
	if teacher.Status != models.TeacherApproved {
		return h.respondError(c, services.ErrNotFound)
	}
	return c.JSON(toPublicTeacher(teacher))
}
