package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("reads return copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		teacher := models.Teacher{
			FullName:         "Ana Ruiz",
			Email:            uniqueEmail("ana"),
			Status:           models.TeacherApproved,
			Languages:        []string{"es"},
			MeetingPlatforms: map[string]string{"zoom": "https://zoom.us/j/1"},
		}
		require.NoError(t, s.Atomic(ctx, func(tx Tx) error { return tx.CreateTeacher(ctx, &teacher) }))

		got, err := s.GetTeacher(ctx, teacher.ID)
		require.NoError(t, err)
		got.MeetingPlatforms["zoom"] = "mutated"
		got.Languages[0] = "fr"

		again, err := s.GetTeacher(ctx, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://zoom.us/j/1", again.MeetingPlatforms["zoom"])
		assert.Equal(t, []string{"es"}, again.Languages)
	})

	t.Run("missing rows report ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.GetUser(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetLesson(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetPayoutRequest(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("failed unit of work leaves no trace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		user := models.User{FullName: "Sam", Email: uniqueEmail("sam"), Password: "x", Role: models.RoleStudent}
		require.NoError(t, s.Atomic(ctx, func(tx Tx) error { return tx.CreateUser(ctx, &user) }))

		boom := errors.New("boom")
		err := s.Atomic(ctx, func(tx Tx) error {
			u, err := tx.UserForUpdate(ctx, user.ID)
			if err != nil {
				return err
			}
			u.WalletBalance = decimal.NewFromInt(500)
			if err := tx.UpdateUser(ctx, &u); err != nil {
				return err
			}
			if err := tx.CreateTransaction(ctx, &models.Transaction{
				UserID: user.ID, Type: models.TransactionRecharge, Amount: decimal.NewFromInt(500),
				Method: "card", Status: models.TransactionCompleted,
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.WalletBalance.IsZero())
		txns, err := s.ListUserTransactions(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("writes are visible inside the unit of work", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		user := models.User{FullName: "Lee", Email: uniqueEmail("lee"), Password: "x", Role: models.RoleStudent}
		err := s.Atomic(ctx, func(tx Tx) error {
			if err := tx.CreateUser(ctx, &user); err != nil {
				return err
			}
			got, err := tx.GetUser(ctx, user.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, "Lee", got.FullName)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		email := uniqueEmail("dup")
		require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
			return tx.CreateUser(ctx, &models.User{FullName: "A", Email: email, Password: "x", Role: models.RoleStudent})
		}))
		err := s.Atomic(ctx, func(tx Tx) error {
			return tx.CreateUser(ctx, &models.User{FullName: "B", Email: email, Password: "x", Role: models.RoleStudent})
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("lesson filters and ordering", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		studentID, teacherID := uuid.New(), uuid.New()
		base := time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)
		starts := []time.Time{base.Add(48 * time.Hour), base, base.Add(24 * time.Hour)}
		statuses := []models.LessonStatus{models.LessonPending, models.LessonScheduled, models.LessonCancelled}
		require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
			for i := range starts {
				if err := tx.CreateLesson(ctx, &models.Lesson{
					StudentID: studentID, TeacherID: teacherID, Language: "es", StartsAt: starts[i],
					DurationMinutes: 60, Price: decimal.NewFromInt(20), Status: statuses[i], Type: models.LessonRegular,
				}); err != nil {
					return err
				}
			}
			return nil
		}))

		all, err := s.ListLessons(ctx, LessonFilter{StudentID: &studentID})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, all[0].StartsAt.Equal(base))
		assert.True(t, all[2].StartsAt.Equal(base.Add(48*time.Hour)))

		open, err := s.ListLessons(ctx, LessonFilter{
			TeacherID: &teacherID,
			Statuses:  []models.LessonStatus{models.LessonPending, models.LessonScheduled},
		})
		require.NoError(t, err)
		assert.Len(t, open, 2)

		from, to := base, base.Add(24*time.Hour)
		window, err := s.ListLessons(ctx, LessonFilter{StudentID: &studentID, StartsAfter: &from, StartsBefore: &to})
		require.NoError(t, err)
		require.Len(t, window, 1)
		assert.Equal(t, models.LessonScheduled, window[0].Status)
	})

	t.Run("pending payout total", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		teacherID := uuid.New()
		require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
			for _, p := range []models.PayoutRequest{
				{TeacherID: teacherID, Amount: decimal.NewFromInt(30), Method: models.PayoutPayPal, Status: models.PayoutPending},
				{TeacherID: teacherID, Amount: decimal.NewFromInt(120), Method: models.PayoutBankTransfer, Status: models.PayoutPending},
				{TeacherID: teacherID, Amount: decimal.NewFromInt(50), Method: models.PayoutPayPal, Status: models.PayoutCompleted},
				{TeacherID: uuid.New(), Amount: decimal.NewFromInt(70), Method: models.PayoutPayPal, Status: models.PayoutPending},
			} {
				p := p
				if err := tx.CreatePayoutRequest(ctx, &p); err != nil {
					return err
				}
			}
			return nil
		}))

		total, err := s.PendingPayoutTotal(ctx, teacherID)
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(150)), total.String())

		completed, err := s.ListPayoutRequests(ctx, PayoutFilter{TeacherID: &teacherID, Statuses: []models.PayoutStatus{models.PayoutCompleted}})
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.True(t, completed[0].Amount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("teacher filter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
			for _, teacher := range []models.Teacher{
				{FullName: "Low", Email: uniqueEmail("low"), Status: models.TeacherApproved, Languages: []string{"fr"}, Rating: 3.5},
				{FullName: "High", Email: uniqueEmail("high"), Status: models.TeacherApproved, Languages: []string{"fr", "de"}, Rating: 4.9},
				{FullName: "Pending", Email: uniqueEmail("pending"), Status: models.TeacherPending, Languages: []string{"fr"}, Rating: 5},
			} {
				teacher := teacher
				if err := tx.CreateTeacher(ctx, &teacher); err != nil {
					return err
				}
			}
			return nil
		}))

		got, err := s.ListTeachers(ctx, TeacherFilter{Status: models.TeacherApproved, Language: "fr"})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(got), 2)
		assert.Equal(t, "High", got[0].FullName)
		for _, teacher := range got {
			assert.Equal(t, models.TeacherApproved, teacher.Status)
		}
	})
}

func uniqueEmail(prefix string) string {
	return prefix + "+" + uuid.NewString()[:8] + "@example.com"
}
