package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutMethod string

const (
	PayoutPayPal       PayoutMethod = "paypal"
	PayoutBankTransfer PayoutMethod = "bank_transfer"
)

var payoutMinimums = map[PayoutMethod]decimal.Decimal{
	PayoutPayPal:       decimal.NewFromInt(25),
	PayoutBankTransfer: decimal.NewFromInt(100),
}

func (m PayoutMethod) Valid() bool {
	_, ok := payoutMinimums[m]
	return ok
}

// MinimumAmount is the smallest amount a single request may withdraw with this method.
func (m PayoutMethod) MinimumAmount() decimal.Decimal {
	return payoutMinimums[m]
}

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutApproved  PayoutStatus = "approved"
	PayoutRejected  PayoutStatus = "rejected"
	PayoutCompleted PayoutStatus = "completed"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:  {PayoutApproved, PayoutRejected, PayoutCompleted},
	PayoutApproved: {PayoutCompleted, PayoutRejected},
}

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutApproved, PayoutRejected, PayoutCompleted:
		return true
	}
	return false
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Debits reports whether a request in this status has been taken out of the teacher's earnings.
func (s PayoutStatus) Debits() bool {
	return s == PayoutApproved || s == PayoutCompleted
}

type PaymentDetails struct {
	PayPalEmail   string `json:"paypal_email,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
}

type PayoutRequest struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TeacherID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"teacher_id"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method            PayoutMethod    `gorm:"size:20;not null" json:"method"`
	PaymentDetails    PaymentDetails  `gorm:"type:text;serializer:json" json:"payment_details"`
	Notes             string          `gorm:"type:text" json:"notes"`
	Status            PayoutStatus    `gorm:"size:20;not null;default:'pending'" json:"status"`
	AdminNotes        *string         `gorm:"type:text" json:"admin_notes,omitempty"`
	ProviderReference *string         `gorm:"size:255" json:"provider_reference,omitempty"`
	RequestedAt       time.Time       `gorm:"not null" json:"requested_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	SendingSince      *time.Time      `json:"sending_since,omitempty"`
}

// Sending reports whether a provider transfer for the request is in flight.
func (p PayoutRequest) Sending() bool {
	return p.SendingSince != nil
}

func (p PayoutRequest) Clone() PayoutRequest {
	out := p
	out.AdminNotes = cloneString(p.AdminNotes)
	out.ProviderReference = cloneString(p.ProviderReference)
	if p.ProcessedAt != nil {
		t := *p.ProcessedAt
		out.ProcessedAt = &t
	}
	if p.SendingSince != nil {
		t := *p.SendingSince
		out.SendingSince = &t
	}
	return out
}
