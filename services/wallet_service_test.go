package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/payments"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T) (*WalletService, *store.Memory, *stubProcessor) {
	t.Helper()
	s := store.NewMemory()
	p := &stubProcessor{}
	return NewWalletService(s, p, quietLogger()), s, p
}

func TestRechargeWallet(t *testing.T) {
	w, s, _ := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "0")

	txn, err := w.RechargeWallet(ctx, RechargeInput{UserID: user.ID, Amount: dec("50"), Method: "visa"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, txn.Status)
	assert.Equal(t, models.TransactionRecharge, txn.Type)
	require.NotNil(t, txn.Reference)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", got.WalletBalance.StringFixed(2))

	txns, err := s.ListUserTransactions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(dec("50")))
	assert.Equal(t, models.TransactionCompleted, txns[0].Status)
}

func TestRechargeWalletRejectsBadInput(t *testing.T) {
	w, s, p := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "0")

	tests := []struct {
		name string
		in   RechargeInput
		want error
	}{
		{"zero amount", RechargeInput{UserID: user.ID, Amount: decimal.Zero, Method: "visa"}, ErrInvalidAmount},
		{"negative amount", RechargeInput{UserID: user.ID, Amount: dec("-5"), Method: "visa"}, ErrInvalidAmount},
		{"fraction of a cent", RechargeInput{UserID: user.ID, Amount: dec("10.005"), Method: "visa"}, ErrInvalidAmount},
		{"missing method", RechargeInput{UserID: user.ID, Amount: dec("5")}, ErrInvalidInput},
		{"unknown user", RechargeInput{UserID: uuid.New(), Amount: dec("5"), Method: "visa"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.RechargeWallet(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Zero(t, p.calls)
	txns, err := s.ListUserTransactions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRechargeWalletRecordsDeclinedCharge(t *testing.T) {
	w, s, p := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "10")
	p.err = payments.ErrDeclined

	txn, err := w.RechargeWallet(ctx, RechargeInput{UserID: user.ID, Amount: dec("40"), Method: "visa"})
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, models.TransactionFailed, txn.Status)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.WalletBalance.Equal(dec("10")))
	assert.True(t, got.WalletBalance.Equal(ledgerBalance(t, s, user.ID)))
}

func TestRechargeWalletWithSimulatedProcessor(t *testing.T) {
	s := store.NewMemory()
	w := NewWalletService(s, payments.NewSimulatedProcessor(0, dec("100")), quietLogger())
	ctx := context.Background()
	user := seedUser(t, s, "0")

	_, err := w.RechargeWallet(ctx, RechargeInput{UserID: user.ID, Amount: dec("150"), Method: "visa"})
	assert.ErrorIs(t, err, ErrPaymentFailed)

	_, err = w.RechargeWallet(ctx, RechargeInput{UserID: user.ID, Amount: dec("75.5"), Method: "visa"})
	require.NoError(t, err)

	stats, err := w.GetWalletStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "75.50", stats.Balance.StringFixed(2))
	assert.Equal(t, 1, stats.FailedCount)
	assert.Equal(t, 2, stats.TransactionCount)
}

func TestSpendFromWallet(t *testing.T) {
	w, s, _ := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "30")

	_, err := w.SpendFromWallet(ctx, user.ID, dec("30.01"), "lesson")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.WalletBalance.Equal(dec("30")))

	txn, err := w.SpendFromWallet(ctx, user.ID, dec("30"), "lesson")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSpend, txn.Type)

	got, err = s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.WalletBalance.IsZero())

	_, err = w.SpendFromWallet(ctx, uuid.New(), dec("1"), "lesson")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = w.SpendFromWallet(ctx, user.ID, dec("0"), "lesson")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSubCentAmountsAreRejected(t *testing.T) {
	w, s, p := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "30")

	_, err := w.SpendFromWallet(ctx, user.ID, dec("0.004"), "lesson")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = w.RechargeWallet(ctx, RechargeInput{UserID: user.ID, Amount: dec("0.004"), Method: "visa"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Zero(t, p.calls)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.WalletBalance.Equal(dec("30")))
	assert.True(t, ledgerBalance(t, s, user.ID).Equal(dec("30")))
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	w, s, _ := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "100")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.SpendFromWallet(ctx, user.ID, dec("10"), "lesson")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.WalletBalance.IsZero())
	assert.True(t, ledgerBalance(t, s, user.ID).IsZero())
}

func TestWalletBalanceMatchesLedger(t *testing.T) {
	w, s, p := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "0")
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		amount := decimal.New(int64(rng.Intn(5000)+1), -2)
		switch rng.Intn(3) {
		case 0:
			p.err = nil
			if rng.Intn(5) == 0 {
				p.err = payments.ErrDeclined
			}
			_, err := w.RechargeWallet(ctx, RechargeInput{UserID: user.ID, Amount: amount, Method: "visa"})
			if err != nil {
				require.ErrorIs(t, err, ErrPaymentFailed)
			}
		default:
			_, err := w.SpendFromWallet(ctx, user.ID, amount, "lesson")
			if err != nil && !errors.Is(err, ErrInsufficientFunds) {
				require.NoError(t, err)
			}
		}

		got, err := s.GetUser(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, got.WalletBalance.IsNegative())
		require.True(t, got.WalletBalance.Equal(ledgerBalance(t, s, user.ID)), "step %d", i)
	}
}

func TestGetWalletStats(t *testing.T) {
	w, s, _ := newWallet(t)
	ctx := context.Background()
	user := seedUser(t, s, "0")

	_, err := w.RechargeWallet(ctx, RechargeInput{UserID: user.ID, Amount: dec("80"), Method: "visa"})
	require.NoError(t, err)
	_, err = w.SpendFromWallet(ctx, user.ID, dec("25"), "lesson")
	require.NoError(t, err)

	stats, err := w.GetWalletStats(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stats.TotalRecharged.Equal(dec("80")))
	assert.True(t, stats.TotalSpent.Equal(dec("25")))
	assert.True(t, stats.Balance.Equal(dec("55")))

	history, err := w.Transactions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.TransactionSpend, history[0].Type)

	_, err = w.GetWalletStats(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
