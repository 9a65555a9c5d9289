package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/payments"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedUser(t *testing.T, s store.Store, balance string) models.User {
	t.Helper()
	ctx := context.Background()
	u := models.User{
		FullName:      "Student " + uuid.NewString()[:6],
		Email:         uuid.NewString()[:8] + "@student.test",
		Password:      "x",
		Role:          models.RoleStudent,
		WalletBalance: dec(balance),
		IsActive:      true,
	}
	require.NoError(t, s.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, &u); err != nil {
			return err
		}
		if u.WalletBalance.IsPositive() {
			// Keep the ledger consistent with the opening balance.
			return tx.CreateTransaction(ctx, &models.Transaction{
				UserID: u.ID, Type: models.TransactionRecharge, Amount: u.WalletBalance,
				Method: "seed", Status: models.TransactionCompleted,
			})
		}
		return nil
	}))
	return u
}

func seedTeacher(t *testing.T, s store.Store, status models.TeacherStatus, earnings string) models.Teacher {
	t.Helper()
	ctx := context.Background()
	teacher := models.Teacher{
		FullName:   "Teacher " + uuid.NewString()[:6],
		Email:      uuid.NewString()[:8] + "@teacher.test",
		Status:     status,
		Languages:  []string{"Spanish"},
		HourlyRate: dec("100"),
		Earnings:   dec(earnings),
	}
	require.NoError(t, s.Atomic(ctx, func(tx store.Tx) error { return tx.CreateTeacher(ctx, &teacher) }))
	return teacher
}

// ledgerBalance recomputes a wallet from its completed transactions.
func ledgerBalance(t *testing.T, s store.Store, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	txns, err := s.ListUserTransactions(context.Background(), userID)
	require.NoError(t, err)
	total := decimal.Zero
	for _, txn := range txns {
		if txn.Status != models.TransactionCompleted {
			continue
		}
		if txn.Type == models.TransactionRecharge {
			total = total.Add(txn.Amount)
		} else {
			total = total.Sub(txn.Amount)
		}
	}
	return total
}

type stubProcessor struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubProcessor) Charge(ctx context.Context, req payments.ChargeRequest) (payments.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return payments.Receipt{}, p.err
	}
	return payments.Receipt{Reference: "ref-" + uuid.NewString()[:8], ProcessedAt: time.Now()}, nil
}

// testClock is a settable clock for services that read the time through a Now field.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubSender struct {
	err   error
	items []payments.PayoutItem
	// during runs while the transfer is in flight.
	during func()
}

func (s *stubSender) SendPayout(ctx context.Context, item payments.PayoutItem) (string, error) {
	s.items = append(s.items, item)
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return "", s.err
	}
	return "PB-" + item.SenderBatchID, nil
}

func statusPtr(s models.LessonStatus) *models.LessonStatus { return &s }
