package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionRecharge TransactionType = "recharge"
	TransactionSpend    TransactionType = "spend"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is an append-only wallet ledger entry. Only Status (and the
// provider reference set alongside it) changes after creation.
type Transaction struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Type        TransactionType   `gorm:"size:20;not null" json:"type"`
	Amount      decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method      string            `gorm:"size:50;not null" json:"method"`
	Description string            `gorm:"type:text" json:"description"`
	Reference   *string           `gorm:"size:255" json:"reference,omitempty"`
	Status      TransactionStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (t Transaction) Clone() Transaction {
	out := t
	out.Reference = cloneString(t.Reference)
	return out
}
