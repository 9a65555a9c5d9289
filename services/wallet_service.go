package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_ledger/metrics"
	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/payments"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MethodRefund = "refund"

type PaymentProcessor interface {
	Charge(ctx context.Context, req payments.ChargeRequest) (payments.Receipt, error)
}

type RechargeInput struct {
	UserID  uuid.UUID
	Amount  decimal.Decimal
	Method  string
	Details map[string]string
}

type WalletStats struct {
	Balance          decimal.Decimal `json:"balance"`
	TotalRecharged   decimal.Decimal `json:"total_recharged"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	TransactionCount int             `json:"transaction_count"`
	PendingCount     int             `json:"pending_count"`
	FailedCount      int             `json:"failed_count"`
}

// WalletService owns every change to User.WalletBalance. The balance always
// equals completed recharges minus completed spends.
type WalletService struct {
	store     store.Store
	processor PaymentProcessor
	log       *slog.Logger
}

func NewWalletService(s store.Store, processor PaymentProcessor, log *slog.Logger) *WalletService {
	return &WalletService{store: s, processor: processor, log: log}
}

// RechargeWallet charges the processor and credits the wallet on success.
// The charge runs outside any store transaction; a pending ledger entry is
// written first and finalized once the processor answers.
func (w *WalletService) RechargeWallet(ctx context.Context, in RechargeInput) (models.Transaction, error) {
	amount := in.Amount
	if !amount.IsPositive() || !hasCents(amount) {
		return models.Transaction{}, ErrInvalidAmount
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		return models.Transaction{}, fmt.Errorf("%w: payment method is required", ErrInvalidInput)
	}

	var pending models.Transaction
	err := w.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, in.UserID); err != nil {
			return err
		}
		pending = models.Transaction{
			UserID:      in.UserID,
			Type:        models.TransactionRecharge,
			Amount:      amount,
			Method:      method,
			Description: "Wallet recharge",
			Status:      models.TransactionPending,
		}
		return tx.CreateTransaction(ctx, &pending)
	})
	if err != nil {
		return models.Transaction{}, wrap("recharge wallet", err)
	}

	start := time.Now()
	receipt, chargeErr := w.processor.Charge(ctx, payments.ChargeRequest{
		UserID:  in.UserID,
		Amount:  amount,
		Method:  method,
		Details: in.Details,
	})
	metrics.PaymentDuration.Observe(time.Since(start).Seconds())

	// The charge already happened; record its outcome even if the caller went away.
	finalizeCtx := context.WithoutCancel(ctx)
	var final models.Transaction
	err = w.store.Atomic(finalizeCtx, func(tx store.Tx) error {
		txn, err := tx.TransactionForUpdate(finalizeCtx, pending.ID)
		if err != nil {
			return err
		}
		if chargeErr != nil {
			txn.Status = models.TransactionFailed
			final = txn
			return tx.UpdateTransaction(finalizeCtx, &txn)
		}

		user, err := tx.UserForUpdate(finalizeCtx, in.UserID)
		if err != nil {
			return err
		}
		user.WalletBalance = user.WalletBalance.Add(txn.Amount)
		if err := tx.UpdateUser(finalizeCtx, &user); err != nil {
			return err
		}

		txn.Status = models.TransactionCompleted
		txn.Reference = &receipt.Reference
		final = txn
		return tx.UpdateTransaction(finalizeCtx, &txn)
	})
	if err != nil {
		metrics.WalletRecharges.WithLabelValues("error").Inc()
		return models.Transaction{}, wrap("finalize recharge", err)
	}

	if chargeErr != nil {
		metrics.WalletRecharges.WithLabelValues(string(models.TransactionFailed)).Inc()
		w.log.Warn("wallet recharge declined",
			slog.String("user_id", in.UserID.String()),
			slog.String("amount", amount.String()),
			slog.Any("error", chargeErr))
		return final, fmt.Errorf("%w: %v", ErrPaymentFailed, chargeErr)
	}

	metrics.WalletRecharges.WithLabelValues(string(models.TransactionCompleted)).Inc()
	w.log.Info("wallet recharged",
		slog.String("user_id", in.UserID.String()),
		slog.String("amount", amount.String()),
		slog.String("transaction_id", final.ID.String()))
	return final, nil
}

func (w *WalletService) SpendFromWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string) (models.Transaction, error) {
	if !amount.IsPositive() || !hasCents(amount) {
		return models.Transaction{}, ErrInvalidAmount
	}

	var txn models.Transaction
	err := w.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		txn, err = debitWallet(ctx, tx, userID, amount, reason)
		return err
	})
	if err != nil {
		metrics.WalletSpends.WithLabelValues("rejected").Inc()
		return models.Transaction{}, wrap("spend from wallet", err)
	}
	metrics.WalletSpends.WithLabelValues(string(models.TransactionCompleted)).Inc()
	return txn, nil
}

func (w *WalletService) GetWalletStats(ctx context.Context, userID uuid.UUID) (WalletStats, error) {
	user, err := w.store.GetUser(ctx, userID)
	if err != nil {
		return WalletStats{}, wrap("wallet stats", err)
	}
	txns, err := w.store.ListUserTransactions(ctx, userID)
	if err != nil {
		return WalletStats{}, wrap("wallet stats", err)
	}

	stats := WalletStats{
		Balance:          user.WalletBalance,
		TotalRecharged:   decimal.Zero,
		TotalSpent:       decimal.Zero,
		TransactionCount: len(txns),
	}
	for _, t := range txns {
		switch t.Status {
		case models.TransactionPending:
			stats.PendingCount++
			continue
		case models.TransactionFailed:
			stats.FailedCount++
			continue
		}
		if t.Type == models.TransactionRecharge {
			stats.TotalRecharged = stats.TotalRecharged.Add(t.Amount)
		} else {
			stats.TotalSpent = stats.TotalSpent.Add(t.Amount)
		}
	}
	return stats, nil
}

func (w *WalletService) Transactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	if _, err := w.store.GetUser(ctx, userID); err != nil {
		return nil, wrap("list transactions", err)
	}
	txns, err := w.store.ListUserTransactions(ctx, userID)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	return txns, nil
}

// debitWallet records a completed spend and lowers the balance. It must run
// inside the caller's unit of work.
func debitWallet(ctx context.Context, tx store.Tx, userID uuid.UUID, amount decimal.Decimal, description string) (models.Transaction, error) {
	user, err := tx.UserForUpdate(ctx, userID)
	if err != nil {
		return models.Transaction{}, err
	}
	if amount.GreaterThan(user.WalletBalance) {
		return models.Transaction{}, ErrInsufficientFunds
	}

	user.WalletBalance = user.WalletBalance.Sub(amount)
	if err := tx.UpdateUser(ctx, &user); err != nil {
		return models.Transaction{}, err
	}

	txn := models.Transaction{
		UserID:      userID,
		Type:        models.TransactionSpend,
		Amount:      amount,
		Method:      "wallet",
		Description: description,
		Status:      models.TransactionCompleted,
	}
	if err := tx.CreateTransaction(ctx, &txn); err != nil {
		return models.Transaction{}, err
	}
	return txn, nil
}

// creditWallet records a completed recharge that did not go through the
// payment processor, such as a refund.
func creditWallet(ctx context.Context, tx store.Tx, userID uuid.UUID, amount decimal.Decimal, method, description, reference string) (models.Transaction, error) {
	user, err := tx.UserForUpdate(ctx, userID)
	if err != nil {
		return models.Transaction{}, err
	}
	user.WalletBalance = user.WalletBalance.Add(amount)
	if err := tx.UpdateUser(ctx, &user); err != nil {
		return models.Transaction{}, err
	}

	txn := models.Transaction{
		UserID:      userID,
		Type:        models.TransactionRecharge,
		Amount:      amount,
		Method:      method,
		Description: description,
		Reference:   &reference,
		Status:      models.TransactionCompleted,
	}
	if err := tx.CreateTransaction(ctx, &txn); err != nil {
		return models.Transaction{}, err
	}
	return txn, nil
}

var domainErrors = []error{
	ErrNotFound,
	ErrInvalidAmount,
	ErrInvalidInput,
	ErrInsufficientFunds,
	ErrPaymentFailed,
	ErrInvalidTransition,
	ErrTeacherNotApproved,
	ErrBelowMinimum,
	ErrInsufficientBalance,
	ErrInvalidPaymentDetails,
	ErrInvalidPayoutMethod,
	ErrAlreadyRated,
	ErrForbidden,
	ErrEmailExists,
	ErrInvalidCredentials,
	ErrAccountDisabled,
}

// hasCents reports whether amount is a whole number of cents.
func hasCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(2))
}

// wrap annotates unexpected failures with the operation name and passes
// domain errors through untouched.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
