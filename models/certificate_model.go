package models

import (
	"time"

	"github.com/google/uuid"
)

type Certificate struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID      uuid.UUID `gorm:"type:uuid;not null;index" json:"student_id"`
	TeacherID      uuid.UUID `gorm:"type:uuid;not null" json:"teacher_id"`
	Language       string    `gorm:"size:100;not null" json:"language"`
	CourseTitle    string    `gorm:"size:255;not null" json:"course_title"`
	CertificateURL string    `gorm:"type:text;not null" json:"certificate_url"`
	IssuedAt       time.Time `gorm:"not null" json:"issued_at"`
}
