package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/notifications"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/store"
)

const (
	reminderLead   = 60 * time.Minute
	reminderWindow = 5 * time.Minute
)

// ReminderJob emails both parties of every scheduled lesson that starts in
// an hour. It runs every five minutes so each lesson falls into exactly one
// window.
type ReminderJob struct {
	Store    store.Reader
	Lessons  *services.LessonService
	Notifier *notifications.Notifier
	Log      *slog.Logger
	Now      func() time.Time
}

func (j *ReminderJob) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j *ReminderJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	j.RunContext(ctx)
}

// RunContext returns the number of lessons reminders went out for.
func (j *ReminderJob) RunContext(ctx context.Context) int {
	j.Log.Info("Running job: SendLessonReminders...")

	from := j.now().Add(reminderLead)
	lessons, err := j.Lessons.UpcomingScheduled(ctx, from, from.Add(reminderWindow))
	if err != nil {
		j.Log.Error("Error checking for upcoming lessons", slog.Any("error", err))
		return 0
	}

	sent := 0
	for _, lesson := range lessons {
		if err := j.remind(ctx, lesson); err != nil {
			j.Log.Error("Error sending lesson reminder", slog.String("lesson_id", lesson.ID.String()), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent
}

func (j *ReminderJob) remind(ctx context.Context, lesson models.Lesson) error {
	j.Log.Info("Sending reminder", slog.String("lesson_id", lesson.ID.String()))

	teacher, err := j.Store.GetTeacher(ctx, lesson.TeacherID)
	if err != nil {
		return err
	}
	student, err := j.Store.GetUser(ctx, lesson.StudentID)
	if err != nil {
		return err
	}
	info, err := j.Lessons.GetLessonMeetingInfo(ctx, lesson.ID)
	if err != nil {
		return err
	}

	studentMail := notifications.LessonReminder(
		notifications.Recipient{Name: student.FullName, Email: student.Email},
		teacher.FullName, lesson.Language, info.MeetingURL, lesson.StartsAt)
	teacherMail := notifications.LessonReminder(
		notifications.Recipient{Name: teacher.FullName, Email: teacher.Email},
		student.FullName, lesson.Language, info.MeetingURL, lesson.StartsAt)

	// A failed delivery is logged by the notifier; the other party still
	// gets theirs.
	_ = j.Notifier.Deliver(ctx, studentMail)
	_ = j.Notifier.Deliver(ctx, teacherMail)
	return nil
}
