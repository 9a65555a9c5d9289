package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrDeclined = errors.New("payment declined")

// Test card that the simulated processor always declines.
const DeclinedCardNumber = "4000000000000002"

type ChargeRequest struct {
	UserID  uuid.UUID
	Amount  decimal.Decimal
	Method  string
	Details map[string]string
}

type Receipt struct {
	Reference   string
	ProcessedAt time.Time
}

// SimulatedProcessor stands in for a card gateway. Every charge takes Delay
// to settle and can be abandoned by cancelling the context.
type SimulatedProcessor struct {
	Delay     time.Duration
	MaxCharge decimal.Decimal
}

func NewSimulatedProcessor(delay time.Duration, maxCharge decimal.Decimal) *SimulatedProcessor {
	return &SimulatedProcessor{Delay: delay, MaxCharge: maxCharge}
}

func (p *SimulatedProcessor) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	if !p.MaxCharge.IsZero() && req.Amount.GreaterThan(p.MaxCharge) {
		return Receipt{}, fmt.Errorf("%w: amount exceeds the %s limit", ErrDeclined, p.MaxCharge.StringFixed(2))
	}
	if req.Details["card_number"] == DeclinedCardNumber {
		return Receipt{}, fmt.Errorf("%w: card was declined", ErrDeclined)
	}

	return Receipt{
		Reference:   "sim_" + uuid.NewString(),
		ProcessedAt: time.Now().UTC(),
	}, nil
}
