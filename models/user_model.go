package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FullName string    `gorm:"size:255;not null" json:"full_name"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     Role      `gorm:"size:20;not null;default:'student'" json:"role"`

	// WalletBalance only moves through completed wallet transactions.
	WalletBalance    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"wallet_balance"`
	HoursLearned     float64         `gorm:"not null;default:0" json:"hours_learned"`
	CompletedLessons int             `gorm:"not null;default:0" json:"completed_lessons"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
