package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_ledger/metrics"
	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/payments"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// PayoutSender moves money to a teacher's external account.
type PayoutSender interface {
	SendPayout(ctx context.Context, item payments.PayoutItem) (string, error)
}

type NewPayout struct {
	TeacherID      uuid.UUID
	Amount         decimal.Decimal
	Method         models.PayoutMethod
	PaymentDetails models.PaymentDetails
	Notes          string
}

type EarningsSummary struct {
	Earnings  decimal.Decimal `json:"earnings"`
	Pending   decimal.Decimal `json:"pending"`
	Available decimal.Decimal `json:"available"`
}

// PayoutService handles withdrawals of teacher earnings. Amounts of pending
// requests are reserved: a new request may only draw on earnings minus the
// sum of the teacher's pending requests. Earnings themselves drop only when
// a request is approved or completed.
type PayoutService struct {
	store  store.Store
	sender PayoutSender
	log    *slog.Logger
}

// NewPayoutService builds the service. sender may be nil, in which case
// completed payouts are assumed to have been sent by hand.
func NewPayoutService(s store.Store, sender PayoutSender, log *slog.Logger) *PayoutService {
	return &PayoutService{store: s, sender: sender, log: log}
}

func (s *PayoutService) MinimumAmount(method models.PayoutMethod) (decimal.Decimal, error) {
	if !method.Valid() {
		return decimal.Zero, ErrInvalidPayoutMethod
	}
	return method.MinimumAmount(), nil
}

func (s *PayoutService) CreatePayoutRequest(ctx context.Context, in NewPayout) (models.PayoutRequest, error) {
	if !in.Method.Valid() {
		return models.PayoutRequest{}, ErrInvalidPayoutMethod
	}
	amount := in.Amount
	if !amount.IsPositive() || !hasCents(amount) {
		return models.PayoutRequest{}, ErrInvalidAmount
	}
	if amount.LessThan(in.Method.MinimumAmount()) {
		return models.PayoutRequest{}, fmt.Errorf("%w: minimum for %s is %s", ErrBelowMinimum, in.Method, in.Method.MinimumAmount().StringFixed(2))
	}
	details, err := normalizeDetails(in.Method, in.PaymentDetails)
	if err != nil {
		return models.PayoutRequest{}, err
	}

	request := models.PayoutRequest{
		TeacherID:      in.TeacherID,
		Amount:         amount,
		Method:         in.Method,
		PaymentDetails: details,
		Notes:          strings.TrimSpace(in.Notes),
		Status:         models.PayoutPending,
	}
	err = s.store.Atomic(ctx, func(tx store.Tx) error {
		teacher, err := tx.TeacherForUpdate(ctx, in.TeacherID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(teacher.Earnings) {
			return ErrInsufficientBalance
		}
		pending, err := tx.PendingPayoutTotal(ctx, teacher.ID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(teacher.Earnings.Sub(pending)) {
			return fmt.Errorf("%w: %s already reserved by pending requests", ErrInsufficientBalance, pending.StringFixed(2))
		}
		return tx.CreatePayoutRequest(ctx, &request)
	})
	if err != nil {
		return models.PayoutRequest{}, wrap("create payout request", err)
	}

	metrics.PayoutRequests.WithLabelValues(string(models.PayoutPending)).Inc()
	s.log.Info("payout requested",
		slog.String("request_id", request.ID.String()),
		slog.String("teacher_id", request.TeacherID.String()),
		slog.String("amount", amount.String()),
		slog.String("method", string(request.Method)))
	return request, nil
}

// ApplyPayoutDecision moves a request to status on behalf of an admin.
// Moving into approved or completed takes the amount out of the teacher's
// earnings; rejecting an approved request gives it back.
//
// Completing a PayPal request claims it first: the request is moved to
// approved and marked as sending in one transaction, the transfer goes out,
// and a second transaction completes it. While a transfer is in flight every
// other decision on the request is refused.
func (s *PayoutService) ApplyPayoutDecision(ctx context.Context, requestID uuid.UUID, status models.PayoutStatus, adminNotes string) (models.PayoutRequest, error) {
	if !status.Valid() {
		return models.PayoutRequest{}, fmt.Errorf("%w: unknown payout status %q", ErrInvalidInput, status)
	}

	current, err := s.store.GetPayoutRequest(ctx, requestID)
	if err != nil {
		return models.PayoutRequest{}, wrap("payout decision", err)
	}
	if status == models.PayoutCompleted && current.Method == models.PayoutPayPal && s.sender != nil {
		return s.sendAndComplete(ctx, requestID, adminNotes)
	}

	var request models.PayoutRequest
	err = s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		request, err = tx.PayoutRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := checkDecision(request, status); err != nil {
			return err
		}
		if err := moveEarnings(ctx, tx, request, status); err != nil {
			return err
		}
		now := time.Now().UTC()
		request.Status = status
		request.ProcessedAt = &now
		setAdminNotes(&request, adminNotes)
		return tx.UpdatePayoutRequest(ctx, &request)
	})
	if err != nil {
		return models.PayoutRequest{}, wrap("payout decision", err)
	}
	s.decided(request)
	return request, nil
}

func (s *PayoutService) sendAndComplete(ctx context.Context, requestID uuid.UUID, adminNotes string) (models.PayoutRequest, error) {
	var (
		claimed models.PayoutRequest
		from    models.PayoutStatus
	)
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		claimed, err = tx.PayoutRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := checkDecision(claimed, models.PayoutCompleted); err != nil {
			return err
		}
		from = claimed.Status
		if err := moveEarnings(ctx, tx, claimed, models.PayoutApproved); err != nil {
			return err
		}
		now := time.Now().UTC()
		claimed.Status = models.PayoutApproved
		claimed.SendingSince = &now
		return tx.UpdatePayoutRequest(ctx, &claimed)
	})
	if err != nil {
		return models.PayoutRequest{}, wrap("payout decision", err)
	}

	providerRef, sendErr := s.sender.SendPayout(ctx, payments.PayoutItem{
		SenderBatchID: "payout-" + claimed.ID.String(),
		Receiver:      claimed.PaymentDetails.PayPalEmail,
		Amount:        claimed.Amount,
		Note:          "Language tutoring earnings",
	})
	if sendErr != nil {
		s.log.Error("paypal payout failed", slog.String("request_id", claimed.ID.String()), slog.Any("error", sendErr))
	}

	// Record the outcome even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	var request models.PayoutRequest
	err = s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		request, err = tx.PayoutRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		request.SendingSince = nil
		if sendErr != nil {
			if err := moveEarnings(ctx, tx, request, from); err != nil {
				return err
			}
			request.Status = from
			return tx.UpdatePayoutRequest(ctx, &request)
		}
		now := time.Now().UTC()
		request.Status = models.PayoutCompleted
		request.ProcessedAt = &now
		request.ProviderReference = &providerRef
		setAdminNotes(&request, adminNotes)
		return tx.UpdatePayoutRequest(ctx, &request)
	})
	if err != nil {
		s.log.Error("recording paypal payout outcome failed",
			slog.String("request_id", requestID.String()),
			slog.Bool("sent", sendErr == nil),
			slog.Any("error", err))
		return models.PayoutRequest{}, wrap("payout decision", err)
	}
	if sendErr != nil {
		return models.PayoutRequest{}, fmt.Errorf("%w: %v", ErrPaymentFailed, sendErr)
	}
	s.decided(request)
	return request, nil
}

func checkDecision(request models.PayoutRequest, next models.PayoutStatus) error {
	if request.Sending() {
		return fmt.Errorf("%w: payout is being sent", ErrInvalidTransition)
	}
	if !request.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, request.Status, next)
	}
	return nil
}

// moveEarnings debits or credits the teacher when request moves to next.
func moveEarnings(ctx context.Context, tx store.Tx, request models.PayoutRequest, next models.PayoutStatus) error {
	debit := !request.Status.Debits() && next.Debits()
	credit := request.Status.Debits() && !next.Debits()
	if !debit && !credit {
		return nil
	}
	teacher, err := tx.TeacherForUpdate(ctx, request.TeacherID)
	if err != nil {
		return err
	}
	if debit {
		if request.Amount.GreaterThan(teacher.Earnings) {
			return ErrInsufficientBalance
		}
		teacher.Earnings = teacher.Earnings.Sub(request.Amount)
	} else {
		teacher.Earnings = teacher.Earnings.Add(request.Amount)
	}
	return tx.UpdateTeacher(ctx, &teacher)
}

func setAdminNotes(request *models.PayoutRequest, notes string) {
	if notes = strings.TrimSpace(notes); notes != "" {
		request.AdminNotes = &notes
	}
}

func (s *PayoutService) decided(request models.PayoutRequest) {
	metrics.PayoutRequests.WithLabelValues(string(request.Status)).Inc()
	s.log.Info("payout request processed",
		slog.String("request_id", request.ID.String()),
		slog.String("status", string(request.Status)))
}

func (s *PayoutService) GetPayoutRequest(ctx context.Context, requestID uuid.UUID) (models.PayoutRequest, error) {
	request, err := s.store.GetPayoutRequest(ctx, requestID)
	return request, wrap("get payout request", err)
}

func (s *PayoutService) ListPayoutRequests(ctx context.Context, filter store.PayoutFilter) ([]models.PayoutRequest, error) {
	requests, err := s.store.ListPayoutRequests(ctx, filter)
	return requests, wrap("list payout requests", err)
}

func (s *PayoutService) Earnings(ctx context.Context, teacherID uuid.UUID) (EarningsSummary, error) {
	teacher, err := s.store.GetTeacher(ctx, teacherID)
	if err != nil {
		return EarningsSummary{}, wrap("earnings", err)
	}
	pending, err := s.store.PendingPayoutTotal(ctx, teacherID)
	if err != nil {
		return EarningsSummary{}, wrap("earnings", err)
	}
	return EarningsSummary{
		Earnings:  teacher.Earnings,
		Pending:   pending,
		Available: teacher.Earnings.Sub(pending),
	}, nil
}

type paypalDetails struct {
	Email string `validate:"required,email"`
}

type bankDetails struct {
	AccountHolder string `validate:"required"`
	AccountNumber string `validate:"required,min=4,max=34"`
	BankName      string `validate:"required"`
	SwiftCode     string `validate:"omitempty,min=8,max=11,alphanum"`
}

// normalizeDetails validates the fields the method needs and drops the rest.
func normalizeDetails(method models.PayoutMethod, d models.PaymentDetails) (models.PaymentDetails, error) {
	switch method {
	case models.PayoutPayPal:
		email := strings.ToLower(strings.TrimSpace(d.PayPalEmail))
		if err := validate.Struct(paypalDetails{Email: email}); err != nil {
			return models.PaymentDetails{}, fmt.Errorf("%w: a valid paypal email is required", ErrInvalidPaymentDetails)
		}
		return models.PaymentDetails{PayPalEmail: email}, nil

	case models.PayoutBankTransfer:
		out := models.PaymentDetails{
			AccountHolder: strings.TrimSpace(d.AccountHolder),
			AccountNumber: strings.ReplaceAll(strings.TrimSpace(d.AccountNumber), " ", ""),
			BankName:      strings.TrimSpace(d.BankName),
			RoutingNumber: strings.TrimSpace(d.RoutingNumber),
			SwiftCode:     strings.ToUpper(strings.TrimSpace(d.SwiftCode)),
		}
		err := validate.Struct(bankDetails{
			AccountHolder: out.AccountHolder,
			AccountNumber: out.AccountNumber,
			BankName:      out.BankName,
			SwiftCode:     out.SwiftCode,
		})
		if err != nil {
			return models.PaymentDetails{}, fmt.Errorf("%w: %v", ErrInvalidPaymentDetails, err)
		}
		return out, nil
	}
	return models.PaymentDetails{}, ErrInvalidPayoutMethod
}
