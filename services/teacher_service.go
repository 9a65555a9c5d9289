package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TeacherApplication struct {
	Headline   string
	Bio        string
	Languages  []string
	HourlyRate decimal.Decimal
}

func (a TeacherApplication) complete() bool {
	return strings.TrimSpace(a.Headline) != "" && strings.TrimSpace(a.Bio) != "" && len(a.Languages) > 0
}

type TeacherService struct {
	store store.Store
	log   *slog.Logger
}

func NewTeacherService(s store.Store, log *slog.Logger) *TeacherService {
	return &TeacherService{store: s, log: log}
}

// Apply creates or updates the caller's teacher profile. A complete profile
// goes to review (pending); a partial one stays incomplete. Approved teachers
// may keep editing their profile without going back to review.
func (s *TeacherService) Apply(ctx context.Context, userID uuid.UUID, app TeacherApplication) (models.Teacher, error) {
	if app.HourlyRate.IsNegative() || !hasCents(app.HourlyRate) {
		return models.Teacher{}, fmt.Errorf("%w: hourly rate must be a non-negative amount with at most 2 decimals", ErrInvalidInput)
	}
	languages := cleanLanguages(app.Languages)
	app.Languages = languages

	target := models.TeacherIncomplete
	if app.complete() {
		target = models.TeacherPending
	}

	var teacher models.Teacher
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := tx.GetTeacherByEmail(ctx, user.Email)
		switch {
		case errors.Is(err, store.ErrNotFound):
			teacher = models.Teacher{
				UserID:   &user.ID,
				FullName: user.FullName,
				Email:    user.Email,
				Status:   target,
			}
			fillProfile(&teacher, app, languages)
			return tx.CreateTeacher(ctx, &teacher)
		case err != nil:
			return err
		}

		teacher, err = tx.TeacherForUpdate(ctx, existing.ID)
		if err != nil {
			return err
		}
		if teacher.Status != models.TeacherApproved && teacher.Status != target {
			if !teacher.Status.CanTransitionTo(target) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, teacher.Status, target)
			}
			teacher.Status = target
		}
		if teacher.UserID == nil {
			teacher.UserID = &user.ID
		}
		fillProfile(&teacher, app, languages)
		return tx.UpdateTeacher(ctx, &teacher)
	})
	if err != nil {
		return models.Teacher{}, wrap("teacher application", err)
	}

	s.log.Info("teacher application saved",
		slog.String("teacher_id", teacher.ID.String()),
		slog.String("status", string(teacher.Status)))
	return teacher, nil
}

func fillProfile(t *models.Teacher, app TeacherApplication, languages []string) {
	headline := strings.TrimSpace(app.Headline)
	bio := strings.TrimSpace(app.Bio)
	t.Headline = &headline
	t.Bio = &bio
	t.Languages = languages
	t.HourlyRate = app.HourlyRate
}

func cleanLanguages(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, lang := range in {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[strings.ToLower(lang)] {
			continue
		}
		seen[strings.ToLower(lang)] = true
		out = append(out, lang)
	}
	return out
}

// Review records an admin decision on a pending application. Approval also
// promotes the linked user account to the teacher role.
func (s *TeacherService) Review(ctx context.Context, teacherID uuid.UUID, status models.TeacherStatus) (models.Teacher, error) {
	if status != models.TeacherApproved && status != models.TeacherRejected {
		return models.Teacher{}, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalidInput)
	}

	var teacher models.Teacher
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		teacher, err = tx.TeacherForUpdate(ctx, teacherID)
		if err != nil {
			return err
		}
		if !teacher.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, teacher.Status, status)
		}
		teacher.Status = status
		if err := tx.UpdateTeacher(ctx, &teacher); err != nil {
			return err
		}

		if status != models.TeacherApproved || teacher.UserID == nil {
			return nil
		}
		user, err := tx.UserForUpdate(ctx, *teacher.UserID)
		if err != nil {
			return err
		}
		if user.Role == models.RoleStudent {
			user.Role = models.RoleTeacher
			return tx.UpdateUser(ctx, &user)
		}
		return nil
	})
	if err != nil {
		return models.Teacher{}, wrap("review teacher", err)
	}

	s.log.Info("teacher application reviewed",
		slog.String("teacher_id", teacher.ID.String()),
		slog.String("status", string(teacher.Status)))
	return teacher, nil
}

// UpdateMeetingPlatforms replaces the teacher's platforms. Empty entries are
// dropped and preferred, when set, must name one of the remaining platforms.
func (s *TeacherService) UpdateMeetingPlatforms(ctx context.Context, teacherID uuid.UUID, platforms map[string]string, preferred string) (models.Teacher, error) {
	cleaned := make(map[string]string, len(platforms))
	for name, value := range platforms {
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name != "" && value != "" {
			cleaned[name] = value
		}
	}
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	if _, ok := cleaned[preferred]; preferred != "" && !ok {
		return models.Teacher{}, fmt.Errorf("%w: preferred platform %q is not configured", ErrInvalidInput, preferred)
	}

	var teacher models.Teacher
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		teacher, err = tx.TeacherForUpdate(ctx, teacherID)
		if err != nil {
			return err
		}
		teacher.MeetingPlatforms = cleaned
		teacher.PreferredPlatform = preferred
		return tx.UpdateTeacher(ctx, &teacher)
	})
	if err != nil {
		return models.Teacher{}, wrap("update meeting platforms", err)
	}
	return teacher, nil
}

func (s *TeacherService) GetTeacher(ctx context.Context, teacherID uuid.UUID) (models.Teacher, error) {
	teacher, err := s.store.GetTeacher(ctx, teacherID)
	return teacher, wrap("get teacher", err)
}

func (s *TeacherService) GetTeacherByEmail(ctx context.Context, email string) (models.Teacher, error) {
	teacher, err := s.store.GetTeacherByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	return teacher, wrap("get teacher by email", err)
}

// ForUser returns the teacher profile linked to the user's account.
func (s *TeacherService) ForUser(ctx context.Context, userID uuid.UUID) (models.Teacher, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.Teacher{}, wrap("teacher for user", err)
	}
	return s.GetTeacherByEmail(ctx, user.Email)
}

func (s *TeacherService) ListTeachers(ctx context.Context, filter store.TeacherFilter) ([]models.Teacher, error) {
	teachers, err := s.store.ListTeachers(ctx, filter)
	return teachers, wrap("list teachers", err)
}
