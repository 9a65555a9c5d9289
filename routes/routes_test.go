package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_ledger/database"
	"github.com/anjiri1684/tutor_ledger/handlers"
	"github.com/anjiri1684/tutor_ledger/notifications"
	"github.com/anjiri1684/tutor_ledger/payments"
	"github.com/anjiri1684/tutor_ledger/services"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type api struct {
	t     *testing.T
	app   *fiber.App
	clock *clock
}

func newAPI(t *testing.T) api {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()

	require.NoError(t, database.SeedAdmin(context.Background(), st, database.AdminSeed{
		Email: "admin@tutor.test", Password: "admin-pass", FullName: "Admin",
	}))

	clk := &clock{now: time.Now().UTC()}
	lessons := services.NewLessonService(st, "https://rooms.example.com", log)
	lessons.Now = clk.Now

	h := &handlers.Handler{
		Store:     st,
		Accounts:  services.NewAccountService(st, testSecret),
		Wallet:    services.NewWalletService(st, payments.NewSimulatedProcessor(0, decimal.NewFromInt(1000)), log),
		Lessons:   lessons,
		Payouts:   services.NewPayoutService(st, nil, log),
		Teachers:  services.NewTeacherService(st, log),
		Notifier:  notifications.NewNotifier(nil, log),
		JWTSecret: testSecret,
		Log:       log,
	}
	app := fiber.New()
	Setup(app, h)
	return api{t: t, app: app, clock: clk}
}

// call sends body as JSON and decodes the answer into out when it is non-nil.
func (a api) call(method, path, token string, body, out interface{}) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a api) register(name, email string) string {
	a.t.Helper()
	status := a.call(http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"full_name": name, "email": email, "password": "secret-pass",
	}, nil)
	require.Equal(a.t, http.StatusCreated, status)
	return a.login(email, "secret-pass")
}

func (a api) login(email, password string) string {
	a.t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	require.Equal(a.t, http.StatusOK, a.call(http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email": email, "password": password,
	}, &out))
	return out.Token
}

type idResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// approvedTeacher registers a teacher, has the admin approve them and
// returns a fresh token carrying the teacher role with the profile ID.
func (a api) approvedTeacher(admin string) (string, string) {
	a.t.Helper()
	token := a.register("Tom Teacher", "tom@teacher.test")

	var profile idResponse
	require.Equal(a.t, http.StatusOK, a.call(http.MethodPost, "/api/v1/teacher/apply", token, fiber.Map{
		"headline": "Native French speaker", "bio": "Ten years of teaching.",
		"languages": []string{"French"}, "hourly_rate": "40",
	}, &profile))
	require.Equal(a.t, "pending", profile.Status)

	require.Equal(a.t, http.StatusOK, a.call(http.MethodPut, "/api/v1/admin/teachers/"+profile.ID+"/status", admin,
		fiber.Map{"status": "approved"}, nil))
	return a.login("tom@teacher.test", "secret-pass"), profile.ID
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	token := a.register("Ana Student", "Ana@Student.test")

	var me struct {
		Email         string `json:"email"`
		Role          string `json:"role"`
		WalletBalance string `json:"wallet_balance"`
	}
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/auth/me", token, nil, &me))
	assert.Equal(t, "ana@student.test", me.Email)
	assert.Equal(t, "student", me.Role)
	assert.Equal(t, "0.00", me.WalletBalance)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"duplicate email", http.MethodPost, "/api/v1/auth/register", "", fiber.Map{"full_name": "Ana", "email": "ana@student.test", "password": "secret-pass"}, http.StatusConflict},
		{"invalid body", http.MethodPost, "/api/v1/auth/register", "", fiber.Map{"email": "not-an-email"}, http.StatusBadRequest},
		{"wrong password", http.MethodPost, "/api/v1/auth/login", "", fiber.Map{"email": "ana@student.test", "password": "nope-nope"}, http.StatusUnauthorized},
		{"missing token", http.MethodGet, "/api/v1/auth/me", "", nil, http.StatusBadRequest},
		{"bad token", http.MethodGet, "/api/v1/auth/me", "garbage", nil, http.StatusUnauthorized},
		{"student on admin route", http.MethodGet, "/api/v1/admin/teachers", token, nil, http.StatusForbidden},
		{"student asks for payout", http.MethodPost, "/api/v1/payouts", token, fiber.Map{"amount": "30", "method": "paypal"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.call(tt.method, tt.path, tt.token, tt.body, nil))
		})
	}
}

func TestWalletRecharge(t *testing.T) {
	a := newAPI(t)
	token := a.register("Ana Student", "ana@student.test")

	assert.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/wallet/recharge", token,
		fiber.Map{"amount": "100", "method": "card", "details": fiber.Map{"card_number": "4242424242424242"}}, nil))

	var failed struct {
		Transaction struct {
			Status string `json:"status"`
		} `json:"transaction"`
	}
	assert.Equal(t, http.StatusPaymentRequired, a.call(http.MethodPost, "/api/v1/wallet/recharge", token,
		fiber.Map{"amount": "50", "method": "card", "details": fiber.Map{"card_number": payments.DeclinedCardNumber}}, &failed))
	assert.Equal(t, "failed", failed.Transaction.Status)

	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/wallet/recharge", token,
		fiber.Map{"amount": "-5", "method": "card"}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/wallet/recharge", token,
		fiber.Map{"amount": "5", "method": "card", "currency": "EUR"}, nil))

	var stats services.WalletStats
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/wallet", token, nil, &stats))
	assert.True(t, stats.Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, stats.FailedCount)

	var txns []idResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/wallet/transactions", token, nil, &txns))
	assert.Len(t, txns, 2)
}

func TestLessonAndPayoutFlow(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin@tutor.test", "admin-pass")
	student := a.register("Ana Student", "ana@student.test")
	outsider := a.register("Otto Outsider", "otto@student.test")
	teacher, teacherID := a.approvedTeacher(admin)

	var listed []idResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/teachers?language=french", "", nil, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, teacherID, listed[0].ID)

	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/wallet/recharge", student,
		fiber.Map{"amount": "100", "method": "card"}, nil))

	booking := func(price string) fiber.Map {
		return fiber.Map{
			"teacher_id": teacherID, "language": "French", "starts_at": a.clock.Now().Add(48 * time.Hour).Format(time.RFC3339),
			"duration": 60, "price": price,
		}
	}
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/api/v1/lessons", teacher, booking("10"), nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/lessons", student, booking("40.01"), nil))
	past := booking("40")
	past["starts_at"] = a.clock.Now().Add(-time.Hour).Format(time.RFC3339)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/v1/lessons", student, past, nil))

	var created struct {
		Lesson idResponse `json:"lesson"`
	}
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/lessons", student, booking("40"), &created))
	lessonPath := "/api/v1/lessons/" + created.Lesson.ID
	assert.Equal(t, "pending", created.Lesson.Status)

	var stats services.WalletStats
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/wallet", student, nil, &stats))
	assert.True(t, stats.Balance.Equal(decimal.NewFromInt(60)))

	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, lessonPath, outsider, nil, nil))
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPatch, lessonPath, student, fiber.Map{"status": "scheduled"}, nil))
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPost, lessonPath+"/rating", student, fiber.Map{"rating": 5}, nil))

	var teacherLessons []idResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/lessons?status=pending", teacher, nil, &teacherLessons))
	require.Len(t, teacherLessons, 1)

	var lesson idResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodPatch, lessonPath, teacher, fiber.Map{"status": "scheduled"}, &lesson))
	assert.Equal(t, "scheduled", lesson.Status)
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPatch, lessonPath, teacher, fiber.Map{"status": "completed"}, nil))

	a.clock.Advance(49 * time.Hour)
	require.Equal(t, http.StatusOK, a.call(http.MethodPatch, lessonPath, teacher, fiber.Map{"status": "completed"}, &lesson))
	assert.Equal(t, "completed", lesson.Status)
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPatch, lessonPath, student, fiber.Map{"status": "cancelled"}, nil))

	var meeting services.MeetingInfo
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, lessonPath+"/meeting", student, nil, &meeting))
	assert.Equal(t, "https://rooms.example.com/lesson-"+created.Lesson.ID, meeting.MeetingURL)

	assert.Equal(t, http.StatusOK, a.call(http.MethodPost, lessonPath+"/rating", student, fiber.Map{"rating": 5, "review": "Great"}, nil))
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPost, lessonPath+"/rating", student, fiber.Map{"rating": 4}, nil))

	var earnings services.EarningsSummary
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/teacher/earnings", teacher, nil, &earnings))
	assert.True(t, earnings.Earnings.Equal(decimal.NewFromInt(40)))

	paypal := fiber.Map{"paypal_email": "Tom@Teacher.test"}
	var payout struct {
		Request idResponse `json:"request"`
	}
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/payouts", teacher,
		fiber.Map{"amount": "30", "method": "paypal", "payment_details": paypal}, &payout))
	assert.Equal(t, http.StatusUnprocessableEntity, a.call(http.MethodPost, "/api/v1/payouts", teacher,
		fiber.Map{"amount": "25", "method": "paypal", "payment_details": paypal}, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, a.call(http.MethodPost, "/api/v1/payouts", teacher,
		fiber.Map{"amount": "5", "method": "paypal", "payment_details": paypal}, nil))

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPatch, "/api/v1/payouts/"+payout.Request.ID, teacher,
		fiber.Map{"status": "completed"}, nil))
	var processed struct {
		Request idResponse `json:"request"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodPatch, "/api/v1/payouts/"+payout.Request.ID, admin,
		fiber.Map{"status": "completed", "admin_notes": "sent"}, &processed))
	assert.Equal(t, "completed", processed.Request.Status)
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPatch, "/api/v1/admin/payouts/"+payout.Request.ID, admin,
		fiber.Map{"status": "rejected"}, nil))

	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/teacher/earnings", teacher, nil, &earnings))
	assert.True(t, earnings.Earnings.Equal(decimal.NewFromInt(10)))
	assert.True(t, earnings.Available.Equal(decimal.NewFromInt(10)))

	var mine []idResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/payouts?status=completed", teacher, nil, &mine))
	assert.Len(t, mine, 1)
}

func TestPublicTeacherHidesUnapproved(t *testing.T) {
	a := newAPI(t)
	token := a.register("Pat Pending", "pat@teacher.test")

	var profile idResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/v1/teacher/apply", token, fiber.Map{
		"headline": "Tutor", "bio": "Bio", "languages": []string{"German"},
	}, &profile))

	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/api/v1/teachers/"+profile.ID, "", nil, nil))
	var listed []idResponse
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/teachers", "", nil, &listed))
	assert.Empty(t, listed)

	var minimums map[string]string
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/v1/payouts/minimums", "", nil, &minimums))
	assert.Equal(t, map[string]string{"paypal": "25.00", "bank_transfer": "100.00"}, minimums)
}
