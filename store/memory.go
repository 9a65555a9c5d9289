package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// table keeps rows in insertion order so listings are stable.
type table[T any] struct {
	rows  map[uuid.UUID]T
	order []uuid.UUID
	clone func(T) T
}

func newTable[T any](clone func(T) T) *table[T] {
	return &table[T]{rows: make(map[uuid.UUID]T), clone: clone}
}

func (t *table[T]) get(id uuid.UUID) (T, bool) {
	row, ok := t.rows[id]
	if !ok {
		return row, false
	}
	return t.clone(row), true
}

func (t *table[T]) put(id uuid.UUID, row T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = t.clone(row)
}

func (t *table[T]) each(fn func(T)) {
	for _, id := range t.order {
		fn(t.clone(t.rows[id]))
	}
}

// overlay reads staged rows first and falls back to the committed table.
type overlay[T any] struct {
	base   *table[T]
	staged *table[T]
}

func (o overlay[T]) get(id uuid.UUID) (T, bool) {
	if row, ok := o.staged.get(id); ok {
		return row, true
	}
	return o.base.get(id)
}

func (o overlay[T]) each(fn func(T)) {
	for _, id := range o.base.order {
		if row, ok := o.staged.get(id); ok {
			fn(row)
			continue
		}
		fn(o.base.clone(o.base.rows[id]))
	}
	for _, id := range o.staged.order {
		if _, committed := o.base.rows[id]; !committed {
			fn(o.staged.clone(o.staged.rows[id]))
		}
	}
}

type source[T any] interface {
	get(id uuid.UUID) (T, bool)
	each(fn func(T))
}

type tables struct {
	users        *table[models.User]
	teachers     *table[models.Teacher]
	lessons      *table[models.Lesson]
	transactions *table[models.Transaction]
	payouts      *table[models.PayoutRequest]
	certificates *table[models.Certificate]
}

func newTables() tables {
	return tables{
		users:        newTable(func(u models.User) models.User { return u }),
		teachers:     newTable(models.Teacher.Clone),
		lessons:      newTable(models.Lesson.Clone),
		transactions: newTable(models.Transaction.Clone),
		payouts:      newTable(models.PayoutRequest.Clone),
		certificates: newTable(func(c models.Certificate) models.Certificate { return c }),
	}
}

// memReader implements Reader over any combination of committed and staged rows.
type memReader struct {
	users        source[models.User]
	teachers     source[models.Teacher]
	lessons      source[models.Lesson]
	transactions source[models.Transaction]
	payouts      source[models.PayoutRequest]
	certificates source[models.Certificate]
}

func lookup[T any](src source[T], id uuid.UUID) (T, error) {
	row, ok := src.get(id)
	if !ok {
		return row, ErrNotFound
	}
	return row, nil
}

func (r memReader) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	return lookup(r.users, id)
}

func (r memReader) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	var found *models.User
	r.users.each(func(u models.User) {
		if found == nil && u.Email == email {
			found = &u
		}
	})
	if found == nil {
		return models.User{}, ErrNotFound
	}
	return *found, nil
}

func (r memReader) GetTeacher(_ context.Context, id uuid.UUID) (models.Teacher, error) {
	return lookup(r.teachers, id)
}

func (r memReader) GetTeacherByEmail(_ context.Context, email string) (models.Teacher, error) {
	var found *models.Teacher
	r.teachers.each(func(t models.Teacher) {
		if found == nil && t.Email == email {
			found = &t
		}
	})
	if found == nil {
		return models.Teacher{}, ErrNotFound
	}
	return *found, nil
}

func (r memReader) ListTeachers(_ context.Context, filter TeacherFilter) ([]models.Teacher, error) {
	out := []models.Teacher{}
	r.teachers.each(func(t models.Teacher) {
		if teacherMatches(t, filter) {
			out = append(out, t)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out, nil
}

func (r memReader) GetLesson(_ context.Context, id uuid.UUID) (models.Lesson, error) {
	return lookup(r.lessons, id)
}

func (r memReader) ListLessons(_ context.Context, filter LessonFilter) ([]models.Lesson, error) {
	out := []models.Lesson{}
	r.lessons.each(func(l models.Lesson) {
		if lessonMatches(l, filter) {
			out = append(out, l)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r memReader) GetTransaction(_ context.Context, id uuid.UUID) (models.Transaction, error) {
	return lookup(r.transactions, id)
}

func (r memReader) ListUserTransactions(_ context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	out := []models.Transaction{}
	r.transactions.each(func(t models.Transaction) {
		if t.UserID == userID {
			out = append(out, t)
		}
	})
	reverse(out)
	return out, nil
}

func (r memReader) GetPayoutRequest(_ context.Context, id uuid.UUID) (models.PayoutRequest, error) {
	return lookup(r.payouts, id)
}

func (r memReader) ListPayoutRequests(_ context.Context, filter PayoutFilter) ([]models.PayoutRequest, error) {
	out := []models.PayoutRequest{}
	r.payouts.each(func(p models.PayoutRequest) {
		if payoutMatches(p, filter) {
			out = append(out, p)
		}
	})
	reverse(out)
	return out, nil
}

func (r memReader) PendingPayoutTotal(_ context.Context, teacherID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	r.payouts.each(func(p models.PayoutRequest) {
		if p.TeacherID == teacherID && p.Status == models.PayoutPending {
			total = total.Add(p.Amount)
		}
	})
	return total, nil
}

func (r memReader) ListCertificates(_ context.Context, studentID uuid.UUID) ([]models.Certificate, error) {
	out := []models.Certificate{}
	r.certificates.each(func(c models.Certificate) {
		if c.StudentID == studentID {
			out = append(out, c)
		}
	})
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Memory is an in-process Store. Readers never block each other; units of
// work run one at a time and publish their writes on commit.
type Memory struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	data    tables
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{data: newTables(), now: time.Now}
}

func (m *Memory) committed() memReader {
	return memReader{
		users:        m.data.users,
		teachers:     m.data.teachers,
		lessons:      m.data.lessons,
		transactions: m.data.transactions,
		payouts:      m.data.payouts,
		certificates: m.data.certificates,
	}
}

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().GetUser(ctx, id)
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().GetUserByEmail(ctx, email)
}

func (m *Memory) GetTeacher(ctx context.Context, id uuid.UUID) (models.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().GetTeacher(ctx, id)
}

func (m *Memory) GetTeacherByEmail(ctx context.Context, email string) (models.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().GetTeacherByEmail(ctx, email)
}

func (m *Memory) ListTeachers(ctx context.Context, filter TeacherFilter) ([]models.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().ListTeachers(ctx, filter)
}

func (m *Memory) GetLesson(ctx context.Context, id uuid.UUID) (models.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().GetLesson(ctx, id)
}

func (m *Memory) ListLessons(ctx context.Context, filter LessonFilter) ([]models.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().ListLessons(ctx, filter)
}

func (m *Memory) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().GetTransaction(ctx, id)
}

func (m *Memory) ListUserTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().ListUserTransactions(ctx, userID)
}

func (m *Memory) GetPayoutRequest(ctx context.Context, id uuid.UUID) (models.PayoutRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().GetPayoutRequest(ctx, id)
}

func (m *Memory) ListPayoutRequests(ctx context.Context, filter PayoutFilter) ([]models.PayoutRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().ListPayoutRequests(ctx, filter)
}

func (m *Memory) PendingPayoutTotal(ctx context.Context, teacherID uuid.UUID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().PendingPayoutTotal(ctx, teacherID)
}

func (m *Memory) ListCertificates(ctx context.Context, studentID uuid.UUID) ([]models.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed().ListCertificates(ctx, studentID)
}

func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	commit(m.data.users, tx.staged.users)
	commit(m.data.teachers, tx.staged.teachers)
	commit(m.data.lessons, tx.staged.lessons)
	commit(m.data.transactions, tx.staged.transactions)
	commit(m.data.payouts, tx.staged.payouts)
	commit(m.data.certificates, tx.staged.certificates)
	return nil
}

func commit[T any](dst, staged *table[T]) {
	for _, id := range staged.order {
		dst.put(id, staged.rows[id])
	}
}

// memTx reads committed rows without taking m.mu: the committed tables can
// only change under writeMu, which the running unit of work holds.
type memTx struct {
	memReader
	m      *Memory
	staged tables
}

func newMemTx(m *Memory) *memTx {
	staged := newTables()
	return &memTx{
		m:      m,
		staged: staged,
		memReader: memReader{
			users:        overlay[models.User]{m.data.users, staged.users},
			teachers:     overlay[models.Teacher]{m.data.teachers, staged.teachers},
			lessons:      overlay[models.Lesson]{m.data.lessons, staged.lessons},
			transactions: overlay[models.Transaction]{m.data.transactions, staged.transactions},
			payouts:      overlay[models.PayoutRequest]{m.data.payouts, staged.payouts},
			certificates: overlay[models.Certificate]{m.data.certificates, staged.certificates},
		},
	}
}

func (tx *memTx) UserForUpdate(ctx context.Context, id uuid.UUID) (models.User, error) {
	return tx.GetUser(ctx, id)
}

func (tx *memTx) TeacherForUpdate(ctx context.Context, id uuid.UUID) (models.Teacher, error) {
	return tx.GetTeacher(ctx, id)
}

func (tx *memTx) LessonForUpdate(ctx context.Context, id uuid.UUID) (models.Lesson, error) {
	return tx.GetLesson(ctx, id)
}

func (tx *memTx) TransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return tx.GetTransaction(ctx, id)
}

func (tx *memTx) PayoutRequestForUpdate(ctx context.Context, id uuid.UUID) (models.PayoutRequest, error) {
	return tx.GetPayoutRequest(ctx, id)
}

func (tx *memTx) stamp(id *uuid.UUID, createdAt, updatedAt *time.Time) {
	now := tx.m.now().UTC()
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if createdAt != nil && createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt != nil {
		*updatedAt = now
	}
}

func (tx *memTx) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := tx.GetUserByEmail(ctx, u.Email); err == nil {
		return ErrDuplicate
	}
	tx.stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	tx.staged.users.put(u.ID, *u)
	return nil
}

func (tx *memTx) UpdateUser(ctx context.Context, u *models.User) error {
	if _, err := tx.GetUser(ctx, u.ID); err != nil {
		return err
	}
	tx.stamp(&u.ID, nil, &u.UpdatedAt)
	tx.staged.users.put(u.ID, *u)
	return nil
}

func (tx *memTx) CreateTeacher(ctx context.Context, t *models.Teacher) error {
	if _, err := tx.GetTeacherByEmail(ctx, t.Email); err == nil {
		return ErrDuplicate
	}
	tx.stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	tx.staged.teachers.put(t.ID, *t)
	return nil
}

func (tx *memTx) UpdateTeacher(ctx context.Context, t *models.Teacher) error {
	if _, err := tx.GetTeacher(ctx, t.ID); err != nil {
		return err
	}
	tx.stamp(&t.ID, nil, &t.UpdatedAt)
	tx.staged.teachers.put(t.ID, *t)
	return nil
}

func (tx *memTx) CreateLesson(_ context.Context, l *models.Lesson) error {
	tx.stamp(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	tx.staged.lessons.put(l.ID, *l)
	return nil
}

func (tx *memTx) UpdateLesson(ctx context.Context, l *models.Lesson) error {
	if _, err := tx.GetLesson(ctx, l.ID); err != nil {
		return err
	}
	tx.stamp(&l.ID, nil, &l.UpdatedAt)
	tx.staged.lessons.put(l.ID, *l)
	return nil
}

func (tx *memTx) CreateTransaction(_ context.Context, t *models.Transaction) error {
	tx.stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	tx.staged.transactions.put(t.ID, *t)
	return nil
}

func (tx *memTx) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	if _, err := tx.GetTransaction(ctx, t.ID); err != nil {
		return err
	}
	tx.stamp(&t.ID, nil, &t.UpdatedAt)
	tx.staged.transactions.put(t.ID, *t)
	return nil
}

func (tx *memTx) CreatePayoutRequest(_ context.Context, p *models.PayoutRequest) error {
	tx.stamp(&p.ID, &p.RequestedAt, nil)
	tx.staged.payouts.put(p.ID, *p)
	return nil
}

func (tx *memTx) UpdatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error {
	if _, err := tx.GetPayoutRequest(ctx, p.ID); err != nil {
		return err
	}
	tx.staged.payouts.put(p.ID, *p)
	return nil
}

func (tx *memTx) CreateCertificate(_ context.Context, c *models.Certificate) error {
	tx.stamp(&c.ID, &c.IssuedAt, nil)
	tx.staged.certificates.put(c.ID, *c)
	return nil
}
