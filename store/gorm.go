package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the postgres-backed Store. Row locks taken with SELECT ... FOR
// UPDATE serialize concurrent units of work touching the same entity.
type Gorm struct {
	gormReader
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{gormReader{db: db}}
}

func (g *Gorm) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{gormReader{db: tx}})
	})
}

type gormReader struct {
	db *gorm.DB
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func first[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (T, error) {
	var row T
	err := db.WithContext(ctx).Where(query, args...).First(&row).Error
	return row, translate(err)
}

func (r gormReader) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return first[models.User](ctx, r.db, "id = ?", id)
}

func (r gormReader) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return first[models.User](ctx, r.db, "email = ?", email)
}

func (r gormReader) GetTeacher(ctx context.Context, id uuid.UUID) (models.Teacher, error) {
	return first[models.Teacher](ctx, r.db, "id = ?", id)
}

func (r gormReader) GetTeacherByEmail(ctx context.Context, email string) (models.Teacher, error) {
	return first[models.Teacher](ctx, r.db, "email = ?", email)
}

func (r gormReader) ListTeachers(ctx context.Context, filter TeacherFilter) ([]models.Teacher, error) {
	query := r.db.WithContext(ctx).Model(&models.Teacher{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MinRating > 0 {
		query = query.Where("rating >= ?", filter.MinRating)
	}
	if filter.Language != "" {
		query = query.Where("languages ILIKE ?", fmt.Sprintf("%%%q%%", filter.Language))
	}
	teachers := []models.Teacher{}
	err := query.Order("rating desc").Order("created_at asc").Find(&teachers).Error
	return teachers, err
}

func (r gormReader) GetLesson(ctx context.Context, id uuid.UUID) (models.Lesson, error) {
	return first[models.Lesson](ctx, r.db, "id = ?", id)
}

func (r gormReader) ListLessons(ctx context.Context, filter LessonFilter) ([]models.Lesson, error) {
	query := r.db.WithContext(ctx).Model(&models.Lesson{})
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.StartsAfter != nil {
		query = query.Where("starts_at >= ?", *filter.StartsAfter)
	}
	if filter.StartsBefore != nil {
		query = query.Where("starts_at < ?", *filter.StartsBefore)
	}
	lessons := []models.Lesson{}
	err := query.Order("starts_at asc").Order("created_at asc").Find(&lessons).Error
	return lessons, err
}

func (r gormReader) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return first[models.Transaction](ctx, r.db, "id = ?", id)
}

func (r gormReader) ListUserTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&txns).Error
	return txns, err
}

func (r gormReader) GetPayoutRequest(ctx context.Context, id uuid.UUID) (models.PayoutRequest, error) {
	return first[models.PayoutRequest](ctx, r.db, "id = ?", id)
}

func (r gormReader) ListPayoutRequests(ctx context.Context, filter PayoutFilter) ([]models.PayoutRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	requests := []models.PayoutRequest{}
	err := query.Order("requested_at desc").Find(&requests).Error
	return requests, err
}

func (r gormReader) PendingPayoutTotal(ctx context.Context, teacherID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.PayoutRequest{}).
		Where("teacher_id = ? AND status = ?", teacherID, models.PayoutPending).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&result).Error
	return result.Total, err
}

func (r gormReader) ListCertificates(ctx context.Context, studentID uuid.UUID) ([]models.Certificate, error) {
	certs := []models.Certificate{}
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("issued_at asc").Find(&certs).Error
	return certs, err
}

type gormTx struct {
	gormReader
}

func (tx *gormTx) locked() *gorm.DB {
	return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (tx *gormTx) UserForUpdate(ctx context.Context, id uuid.UUID) (models.User, error) {
	return first[models.User](ctx, tx.locked(), "id = ?", id)
}

func (tx *gormTx) TeacherForUpdate(ctx context.Context, id uuid.UUID) (models.Teacher, error) {
	return first[models.Teacher](ctx, tx.locked(), "id = ?", id)
}

func (tx *gormTx) LessonForUpdate(ctx context.Context, id uuid.UUID) (models.Lesson, error) {
	return first[models.Lesson](ctx, tx.locked(), "id = ?", id)
}

func (tx *gormTx) TransactionForUpdate(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return first[models.Transaction](ctx, tx.locked(), "id = ?", id)
}

func (tx *gormTx) PayoutRequestForUpdate(ctx context.Context, id uuid.UUID) (models.PayoutRequest, error) {
	return first[models.PayoutRequest](ctx, tx.locked(), "id = ?", id)
}

func (tx *gormTx) create(ctx context.Context, row interface{}) error {
	return translate(tx.db.WithContext(ctx).Create(row).Error)
}

func (tx *gormTx) save(ctx context.Context, row interface{}) error {
	return translate(tx.db.WithContext(ctx).Save(row).Error)
}

func (tx *gormTx) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return tx.create(ctx, u)
}

func (tx *gormTx) UpdateUser(ctx context.Context, u *models.User) error { return tx.save(ctx, u) }

func (tx *gormTx) CreateTeacher(ctx context.Context, t *models.Teacher) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return tx.create(ctx, t)
}

func (tx *gormTx) UpdateTeacher(ctx context.Context, t *models.Teacher) error { return tx.save(ctx, t) }

func (tx *gormTx) CreateLesson(ctx context.Context, l *models.Lesson) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return tx.create(ctx, l)
}

func (tx *gormTx) UpdateLesson(ctx context.Context, l *models.Lesson) error { return tx.save(ctx, l) }

func (tx *gormTx) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return tx.create(ctx, t)
}

func (tx *gormTx) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	return tx.save(ctx, t)
}

func (tx *gormTx) CreatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return tx.create(ctx, p)
}

func (tx *gormTx) UpdatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error {
	return tx.save(ctx, p)
}

func (tx *gormTx) CreateCertificate(ctx context.Context, c *models.Certificate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return tx.create(ctx, c)
}
