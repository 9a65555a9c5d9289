package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	slog.Info("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Teacher{},
		&models.Lesson{},
		&models.Transaction{},
		&models.PayoutRequest{},
		&models.Certificate{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	slog.Info("✅ Database migration successful")
	return nil
}

type AdminSeed struct {
	Email    string
	Password string
	FullName string
}

// SeedAdmin creates the admin account once. It is a no-op when the email is
// empty or already registered.
func SeedAdmin(ctx context.Context, s store.Store, seed AdminSeed) error {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		slog.Warn("admin credentials not configured, skipping admin seed")
		return nil
	}

	if _, err := s.GetUserByEmail(ctx, email); err == nil {
		slog.Info("Admin user already exists.")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check for admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		FullName: seed.FullName,
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	err = s.Atomic(ctx, func(tx store.Tx) error { return tx.CreateUser(ctx, &admin) })
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("seed admin user: %w", err)
	}

	slog.Info("✅ Admin user seeded successfully")
	return nil
}
