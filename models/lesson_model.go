package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LessonStatus string

const (
	LessonPending   LessonStatus = "pending"
	LessonScheduled LessonStatus = "scheduled"
	LessonCompleted LessonStatus = "completed"
	LessonCancelled LessonStatus = "cancelled"
)

// Completed and cancelled have no outgoing edges.
var lessonTransitions = map[LessonStatus][]LessonStatus{
	LessonPending:   {LessonScheduled, LessonCancelled},
	LessonScheduled: {LessonCompleted, LessonCancelled},
}

func (s LessonStatus) Valid() bool {
	switch s {
	case LessonPending, LessonScheduled, LessonCompleted, LessonCancelled:
		return true
	}
	return false
}

func (s LessonStatus) Terminal() bool {
	return s == LessonCompleted || s == LessonCancelled
}

func (s LessonStatus) CanTransitionTo(next LessonStatus) bool {
	for _, allowed := range lessonTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type LessonType string

const (
	LessonTrial   LessonType = "trial"
	LessonRegular LessonType = "regular"
	LessonGroup   LessonType = "group"
)

func (t LessonType) Valid() bool {
	switch t {
	case LessonTrial, LessonRegular, LessonGroup:
		return true
	}
	return false
}

type Lesson struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"student_id"`
	TeacherID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"teacher_id"`
	Language        string          `gorm:"size:100;not null" json:"language"`
	StartsAt        time.Time       `gorm:"not null;index" json:"starts_at"`
	DurationMinutes int             `gorm:"not null" json:"duration_minutes"`
	Price           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Status          LessonStatus    `gorm:"size:20;not null;default:'pending'" json:"status"`
	Type            LessonType      `gorm:"size:20;not null;default:'regular'" json:"type"`
	Notes           string          `gorm:"type:text" json:"notes"`

	PaymentTransactionID *uuid.UUID `gorm:"type:uuid" json:"payment_transaction_id,omitempty"`

	Rating       *int    `json:"rating,omitempty"`
	Review       *string `gorm:"type:text" json:"review,omitempty"`
	CancelReason *string `gorm:"type:text" json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l Lesson) EndsAt() time.Time {
	return l.StartsAt.Add(time.Duration(l.DurationMinutes) * time.Minute)
}

func (l Lesson) Clone() Lesson {
	out := l
	if l.PaymentTransactionID != nil {
		id := *l.PaymentTransactionID
		out.PaymentTransactionID = &id
	}
	if l.Rating != nil {
		r := *l.Rating
		out.Rating = &r
	}
	out.Review = cloneString(l.Review)
	out.CancelReason = cloneString(l.CancelReason)
	return out
}
