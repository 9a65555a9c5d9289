// Package store is the single source of truth for users, teachers, lessons,
// wallet transactions, payout requests and certificates.
//
// Reads return copies. Writes only happen inside Atomic, through a Tx, and
// either all of them become visible or none do.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type LessonFilter struct {
	StudentID    *uuid.UUID
	TeacherID    *uuid.UUID
	Statuses     []models.LessonStatus
	StartsAfter  *time.Time
	StartsBefore *time.Time
}

type PayoutFilter struct {
	TeacherID *uuid.UUID
	Statuses  []models.PayoutStatus
}

type TeacherFilter struct {
	Status    models.TeacherStatus
	Language  string
	MinRating float64
}

type Reader interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetTeacher(ctx context.Context, id uuid.UUID) (models.Teacher, error)
	GetTeacherByEmail(ctx context.Context, email string) (models.Teacher, error)
	ListTeachers(ctx context.Context, filter TeacherFilter) ([]models.Teacher, error)
	GetLesson(ctx context.Context, id uuid.UUID) (models.Lesson, error)
	// ListLessons orders by start time, earliest first.
	ListLessons(ctx context.Context, filter LessonFilter) ([]models.Lesson, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	// ListUserTransactions orders newest first.
	ListUserTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	GetPayoutRequest(ctx context.Context, id uuid.UUID) (models.PayoutRequest, error)
	// ListPayoutRequests orders newest first.
	ListPayoutRequests(ctx context.Context, filter PayoutFilter) ([]models.PayoutRequest, error)
	PendingPayoutTotal(ctx context.Context, teacherID uuid.UUID) (decimal.Decimal, error)
	ListCertificates(ctx context.Context, studentID uuid.UUID) ([]models.Certificate, error)
}

// Tx is a unit of work. The ForUpdate reads lock the row until the unit
// commits or rolls back, serializing financial mutations per entity.
type Tx interface {
	Reader

	UserForUpdate(ctx context.Context, id uuid.UUID) (models.User, error)
	TeacherForUpdate(ctx context.Context, id uuid.UUID) (models.Teacher, error)
	LessonForUpdate(ctx context.Context, id uuid.UUID) (models.Lesson, error)
	TransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	PayoutRequestForUpdate(ctx context.Context, id uuid.UUID) (models.PayoutRequest, error)

	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	CreateTeacher(ctx context.Context, t *models.Teacher) error
	UpdateTeacher(ctx context.Context, t *models.Teacher) error
	CreateLesson(ctx context.Context, l *models.Lesson) error
	UpdateLesson(ctx context.Context, l *models.Lesson) error
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	CreatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error
	UpdatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error
	CreateCertificate(ctx context.Context, c *models.Certificate) error
}

type Store interface {
	Reader
	// Atomic runs fn in a single unit of work. Any error returned by fn
	// discards every write made through tx.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

func lessonMatches(l models.Lesson, f LessonFilter) bool {
	if f.StudentID != nil && l.StudentID != *f.StudentID {
		return false
	}
	if f.TeacherID != nil && l.TeacherID != *f.TeacherID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, l.Status) {
		return false
	}
	if f.StartsAfter != nil && l.StartsAt.Before(*f.StartsAfter) {
		return false
	}
	if f.StartsBefore != nil && !l.StartsAt.Before(*f.StartsBefore) {
		return false
	}
	return true
}

func payoutMatches(p models.PayoutRequest, f PayoutFilter) bool {
	if f.TeacherID != nil && p.TeacherID != *f.TeacherID {
		return false
	}
	return len(f.Statuses) == 0 || containsStatus(f.Statuses, p.Status)
}

func teacherMatches(t models.Teacher, f TeacherFilter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.MinRating > 0 && t.Rating < f.MinRating {
		return false
	}
	if f.Language == "" {
		return true
	}
	for _, lang := range t.Languages {
		if strings.EqualFold(lang, f.Language) {
			return true
		}
	}
	return false
}

func containsStatus[S comparable](statuses []S, s S) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
