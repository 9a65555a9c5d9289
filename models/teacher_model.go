package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TeacherStatus string

const (
	TeacherIncomplete TeacherStatus = "incomplete"
	TeacherPending    TeacherStatus = "pending"
	TeacherApproved   TeacherStatus = "approved"
	TeacherRejected   TeacherStatus = "rejected"
)

var teacherTransitions = map[TeacherStatus][]TeacherStatus{
	TeacherIncomplete: {TeacherPending},
	TeacherPending:    {TeacherApproved, TeacherRejected, TeacherIncomplete},
	TeacherRejected:   {TeacherPending, TeacherIncomplete},
}

func (s TeacherStatus) Valid() bool {
	switch s {
	case TeacherIncomplete, TeacherPending, TeacherApproved, TeacherRejected:
		return true
	}
	return false
}

func (s TeacherStatus) CanTransitionTo(next TeacherStatus) bool {
	for _, allowed := range teacherTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Teacher struct {
	ID       uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID   *uuid.UUID    `gorm:"type:uuid;unique" json:"user_id,omitempty"`
	FullName string        `gorm:"size:255;not null" json:"full_name"`
	Email    string        `gorm:"size:255;not null;unique" json:"email"`
	Status   TeacherStatus `gorm:"size:20;not null;default:'incomplete'" json:"status"`

	Headline   *string         `gorm:"size:255" json:"headline"`
	Bio        *string         `gorm:"type:text" json:"bio"`
	Languages  []string        `gorm:"type:text;serializer:json" json:"languages"`
	HourlyRate decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"hourly_rate"`

	Rating      float64 `gorm:"not null;default:0" json:"rating"`
	ReviewCount int     `gorm:"not null;default:0" json:"review_count"`

	// Earnings is payable balance: completed lesson prices minus approved or completed payouts.
	Earnings decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"earnings"`

	MeetingPlatforms  map[string]string `gorm:"type:text;serializer:json" json:"meeting_platforms"`
	PreferredPlatform string            `gorm:"size:50" json:"preferred_platform"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t Teacher) Clone() Teacher {
	out := t
	if t.UserID != nil {
		id := *t.UserID
		out.UserID = &id
	}
	out.Headline = cloneString(t.Headline)
	out.Bio = cloneString(t.Bio)
	if t.Languages != nil {
		out.Languages = append([]string(nil), t.Languages...)
	}
	if t.MeetingPlatforms != nil {
		out.MeetingPlatforms = make(map[string]string, len(t.MeetingPlatforms))
		for k, v := range t.MeetingPlatforms {
			out.MeetingPlatforms[k] = v
		}
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
