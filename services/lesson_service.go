package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_ledger/metrics"
	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ReasonExpired     = "expired"
	classroomPlatform = "classroom"
)

// NewLesson is a student's booking request. A priced lesson is paid from
// the student's wallet when it is requested; Price may not exceed the
// teacher's hourly rate for the duration.
type NewLesson struct {
	StudentID       uuid.UUID
	TeacherID       uuid.UUID
	Language        string
	StartsAt        time.Time
	DurationMinutes int
	Price           decimal.Decimal
	Type            models.LessonType
	Notes           string
}

// LessonUpdate changes the status, the notes, or both. Reason is recorded
// when the lesson is cancelled.
type LessonUpdate struct {
	Status *models.LessonStatus
	Notes  *string
	Reason string
}

type MeetingInfo struct {
	MeetingURL   string `json:"meeting_url"`
	PlatformName string `json:"platform_name"`
	TeacherName  string `json:"teacher_name"`
}

type LessonService struct {
	store       store.Store
	meetingBase string
	log         *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func NewLessonService(s store.Store, meetingBaseURL string, log *slog.Logger) *LessonService {
	return &LessonService{store: s, meetingBase: strings.TrimRight(meetingBaseURL, "/"), log: log}
}

func (s *LessonService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// maxLessonPrice is what the teacher's hourly rate allows for minutes.
func maxLessonPrice(t models.Teacher, minutes int) decimal.Decimal {
	return t.HourlyRate.Mul(decimal.NewFromInt(int64(minutes))).Div(decimal.NewFromInt(60)).Round(2)
}

func (s *LessonService) CreateLessonRequest(ctx context.Context, in NewLesson) (models.Lesson, error) {
	if in.DurationMinutes <= 0 {
		return models.Lesson{}, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if in.Price.IsNegative() || !hasCents(in.Price) {
		return models.Lesson{}, fmt.Errorf("%w: price must be a non-negative amount with at most 2 decimals", ErrInvalidAmount)
	}
	if !in.StartsAt.After(s.now()) {
		return models.Lesson{}, fmt.Errorf("%w: lesson must start in the future", ErrInvalidInput)
	}
	language := strings.TrimSpace(in.Language)
	if language == "" {
		return models.Lesson{}, fmt.Errorf("%w: language is required", ErrInvalidInput)
	}
	lessonType := in.Type
	if lessonType == "" {
		lessonType = models.LessonRegular
	}
	if !lessonType.Valid() {
		return models.Lesson{}, fmt.Errorf("%w: unknown lesson type %q", ErrInvalidInput, lessonType)
	}

	price := in.Price
	lesson := models.Lesson{
		StudentID:       in.StudentID,
		TeacherID:       in.TeacherID,
		Language:        language,
		StartsAt:        in.StartsAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		Price:           price,
		Status:          models.LessonPending,
		Type:            lessonType,
		Notes:           in.Notes,
	}

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, in.StudentID); err != nil {
			return err
		}
		teacher, err := tx.GetTeacher(ctx, in.TeacherID)
		if err != nil {
			return err
		}
		if teacher.Status != models.TeacherApproved {
			return ErrTeacherNotApproved
		}
		if teacher.UserID != nil && *teacher.UserID == in.StudentID {
			return fmt.Errorf("%w: teachers cannot book their own lessons", ErrForbidden)
		}
		if limit := maxLessonPrice(teacher, in.DurationMinutes); price.GreaterThan(limit) {
			return fmt.Errorf("%w: price exceeds the teacher's rate of %s for %d minutes",
				ErrInvalidAmount, limit.StringFixed(2), in.DurationMinutes)
		}

		if price.IsPositive() {
			description := fmt.Sprintf("%s lesson with %s", language, teacher.FullName)
			txn, err := debitWallet(ctx, tx, in.StudentID, price, description)
			if err != nil {
				return err
			}
			lesson.PaymentTransactionID = &txn.ID
		}
		return tx.CreateLesson(ctx, &lesson)
	})
	if err != nil {
		return models.Lesson{}, wrap("create lesson request", err)
	}

	metrics.LessonTransitions.WithLabelValues("new", string(models.LessonPending)).Inc()
	s.log.Info("lesson requested",
		slog.String("lesson_id", lesson.ID.String()),
		slog.String("student_id", lesson.StudentID.String()),
		slog.String("teacher_id", lesson.TeacherID.String()))
	return lesson, nil
}

func (s *LessonService) UpdateLesson(ctx context.Context, lessonID uuid.UUID, upd LessonUpdate) (models.Lesson, error) {
	if upd.Status == nil && upd.Notes == nil {
		return models.Lesson{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return models.Lesson{}, fmt.Errorf("%w: unknown lesson status %q", ErrInvalidInput, *upd.Status)
	}

	var (
		lesson models.Lesson
		from   models.LessonStatus
	)
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		lesson, err = tx.LessonForUpdate(ctx, lessonID)
		if err != nil {
			return err
		}
		from = lesson.Status

		if upd.Status != nil {
			if err := applyTransition(ctx, tx, &lesson, *upd.Status, upd.Reason, s.now()); err != nil {
				return err
			}
		}
		if upd.Notes != nil {
			lesson.Notes = *upd.Notes
		}
		return tx.UpdateLesson(ctx, &lesson)
	})
	if err != nil {
		return models.Lesson{}, wrap("update lesson", err)
	}

	if lesson.Status != from {
		metrics.LessonTransitions.WithLabelValues(string(from), string(lesson.Status)).Inc()
		s.log.Info("lesson status changed",
			slog.String("lesson_id", lesson.ID.String()),
			slog.String("from", string(from)),
			slog.String("to", string(lesson.Status)))
	}
	return lesson, nil
}

// applyTransition moves lesson to next and applies the side effects of that
// move. Completion pays the teacher and credits the student's progress, and
// is only possible once the lesson has ended; cancelling a lesson paid from
// the wallet refunds the student.
func applyTransition(ctx context.Context, tx store.Tx, lesson *models.Lesson, next models.LessonStatus, reason string, now time.Time) error {
	if !lesson.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, lesson.Status, next)
	}

	switch next {
	case models.LessonCompleted:
		if now.Before(lesson.EndsAt()) {
			return fmt.Errorf("%w: lesson ends at %s", ErrInvalidTransition, lesson.EndsAt().Format(time.RFC3339))
		}
		teacher, err := tx.TeacherForUpdate(ctx, lesson.TeacherID)
		if err != nil {
			return err
		}
		teacher.Earnings = teacher.Earnings.Add(lesson.Price)
		if err := tx.UpdateTeacher(ctx, &teacher); err != nil {
			return err
		}

		student, err := tx.UserForUpdate(ctx, lesson.StudentID)
		if err != nil {
			return err
		}
		student.CompletedLessons++
		student.HoursLearned += float64(lesson.DurationMinutes) / 60
		if err := tx.UpdateUser(ctx, &student); err != nil {
			return err
		}

	case models.LessonCancelled:
		if reason != "" {
			lesson.CancelReason = &reason
		}
		if lesson.PaymentTransactionID != nil && lesson.Price.IsPositive() {
			description := fmt.Sprintf("Refund for cancelled %s lesson", lesson.Language)
			if _, err := creditWallet(ctx, tx, lesson.StudentID, lesson.Price, MethodRefund, description, lesson.ID.String()); err != nil {
				return err
			}
		}
	}

	lesson.Status = next
	return nil
}

func (s *LessonService) GetLesson(ctx context.Context, lessonID uuid.UUID) (models.Lesson, error) {
	lesson, err := s.store.GetLesson(ctx, lessonID)
	return lesson, wrap("get lesson", err)
}

func (s *LessonService) ListLessons(ctx context.Context, filter store.LessonFilter) ([]models.Lesson, error) {
	lessons, err := s.store.ListLessons(ctx, filter)
	return lessons, wrap("list lessons", err)
}

// UpcomingScheduled lists scheduled lessons starting in [from, to).
func (s *LessonService) UpcomingScheduled(ctx context.Context, from, to time.Time) ([]models.Lesson, error) {
	return s.ListLessons(ctx, store.LessonFilter{
		Statuses:     []models.LessonStatus{models.LessonScheduled},
		StartsAfter:  &from,
		StartsBefore: &to,
	})
}

// ExpireStaleRequests cancels pending requests whose start time has passed
// without the teacher answering. It returns how many were cancelled.
func (s *LessonService) ExpireStaleRequests(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.ListLessons(ctx, store.LessonFilter{
		Statuses:     []models.LessonStatus{models.LessonPending},
		StartsBefore: &now,
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		// The teacher may have answered since the listing was taken.
		changed := false
		err := s.store.Atomic(ctx, func(tx store.Tx) error {
			lesson, err := tx.LessonForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if lesson.Status != models.LessonPending {
				return nil
			}
			if err := applyTransition(ctx, tx, &lesson, models.LessonCancelled, ReasonExpired, now); err != nil {
				return err
			}
			changed = true
			return tx.UpdateLesson(ctx, &lesson)
		})
		if err != nil {
			return expired, wrap("expire lesson "+candidate.ID.String(), err)
		}
		if changed {
			expired++
			metrics.LessonTransitions.WithLabelValues(string(models.LessonPending), string(models.LessonCancelled)).Inc()
		}
	}
	return expired, nil
}

// RateLesson stores the student's rating of a completed lesson and folds it
// into the teacher's average. A lesson can be rated once.
func (s *LessonService) RateLesson(ctx context.Context, lessonID, studentID uuid.UUID, rating int, review string) (models.Lesson, error) {
	if rating < 1 || rating > 5 {
		return models.Lesson{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	var lesson models.Lesson
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		lesson, err = tx.LessonForUpdate(ctx, lessonID)
		if err != nil {
			return err
		}
		if lesson.StudentID != studentID {
			return ErrForbidden
		}
		if lesson.Status != models.LessonCompleted {
			return fmt.Errorf("%w: only completed lessons can be rated", ErrInvalidTransition)
		}
		if lesson.Rating != nil {
			return ErrAlreadyRated
		}

		teacher, err := tx.TeacherForUpdate(ctx, lesson.TeacherID)
		if err != nil {
			return err
		}
		total := teacher.Rating*float64(teacher.ReviewCount) + float64(rating)
		teacher.ReviewCount++
		teacher.Rating = math.Round(total/float64(teacher.ReviewCount)*100) / 100
		if err := tx.UpdateTeacher(ctx, &teacher); err != nil {
			return err
		}

		lesson.Rating = &rating
		if review = strings.TrimSpace(review); review != "" {
			lesson.Review = &review
		}
		return tx.UpdateLesson(ctx, &lesson)
	})
	if err != nil {
		return models.Lesson{}, wrap("rate lesson", err)
	}
	return lesson, nil
}

// GetLessonMeetingInfo resolves where the lesson takes place: the teacher's
// preferred platform, then any configured platform, then a generated room.
func (s *LessonService) GetLessonMeetingInfo(ctx context.Context, lessonID uuid.UUID) (MeetingInfo, error) {
	lesson, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return MeetingInfo{}, wrap("meeting info", err)
	}
	teacher, err := s.store.GetTeacher(ctx, lesson.TeacherID)
	if err != nil {
		return MeetingInfo{}, wrap("meeting info", err)
	}

	info := MeetingInfo{TeacherName: teacher.FullName}
	if platform, value, ok := pickPlatform(teacher); ok {
		info.MeetingURL = meetingURL(platform, value)
		info.PlatformName = platformName(platform)
		return info, nil
	}

	info.MeetingURL = fmt.Sprintf("%s/lesson-%s", s.meetingBase, lesson.ID)
	info.PlatformName = platformName(classroomPlatform)
	return info, nil
}

func pickPlatform(t models.Teacher) (string, string, bool) {
	if value := strings.TrimSpace(t.MeetingPlatforms[t.PreferredPlatform]); t.PreferredPlatform != "" && value != "" {
		return t.PreferredPlatform, value, true
	}
	keys := make([]string, 0, len(t.MeetingPlatforms))
	for k := range t.MeetingPlatforms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if value := strings.TrimSpace(t.MeetingPlatforms[k]); value != "" {
			return k, value, true
		}
	}
	return "", "", false
}

// meetingURL turns a bare handle or meeting id into a joinable link.
func meetingURL(platform, value string) string {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	switch platform {
	case "zoom":
		return "https://zoom.us/j/" + strings.ReplaceAll(value, " ", "")
	case "google_meet":
		return "https://meet.google.com/" + value
	case "skype":
		return "skype:" + value + "?call"
	case "teams":
		return "https://teams.microsoft.com/l/meetup-join/" + value
	}
	return value
}

var platformNames = map[string]string{
	"zoom":            "Zoom",
	"google_meet":     "Google Meet",
	"skype":           "Skype",
	"teams":           "Microsoft Teams",
	classroomPlatform: "Classroom",
}

func platformName(platform string) string {
	if name, ok := platformNames[platform]; ok {
		return name
	}
	return platform
}
