package services

import (
	"context"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/google/uuid"
)

const (
	badgeNameFirstClass = "First Class"
	badgeNameTenHours   = "Ten Hours"
	badgeNameCertified  = "Certified"
)

type Progress struct {
	CompletedLessons int                  `json:"total_classes_completed"`
	HoursLearned     float64              `json:"total_hours_learned"`
	UpcomingLessons  int                  `json:"upcoming_lessons"`
	Certificates     []models.Certificate `json:"certificates"`
	Badges           []string             `json:"badges"`
}

// StudentProgress summarizes a student's learning. Badges are derived from
// the counters kept on the user record, so they never drift from them.
func StudentProgress(ctx context.Context, s store.Reader, studentID uuid.UUID) (Progress, error) {
	student, err := s.GetUser(ctx, studentID)
	if err != nil {
		return Progress{}, wrap("student progress", err)
	}
	upcoming, err := s.ListLessons(ctx, store.LessonFilter{
		StudentID: &studentID,
		Statuses:  []models.LessonStatus{models.LessonPending, models.LessonScheduled},
	})
	if err != nil {
		return Progress{}, wrap("student progress", err)
	}
	certs, err := s.ListCertificates(ctx, studentID)
	if err != nil {
		return Progress{}, wrap("student progress", err)
	}

	p := Progress{
		CompletedLessons: student.CompletedLessons,
		HoursLearned:     student.HoursLearned,
		UpcomingLessons:  len(upcoming),
		Certificates:     certs,
		Badges:           []string{},
	}
	if student.CompletedLessons >= 1 {
		p.Badges = append(p.Badges, badgeNameFirstClass)
	}
	if student.HoursLearned >= 10 {
		p.Badges = append(p.Badges, badgeNameTenHours)
	}
	if len(certs) > 0 {
		p.Badges = append(p.Badges, badgeNameCertified)
	}
	return p, nil
}
