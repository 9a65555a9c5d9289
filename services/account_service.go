package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 72 * time.Hour

type AccountService struct {
	store     store.Store
	jwtSecret []byte
	now       func() time.Time
}

func NewAccountService(s store.Store, jwtSecret string) *AccountService {
	return &AccountService{store: s, jwtSecret: []byte(jwtSecret), now: time.Now}
}

func (a *AccountService) Register(ctx context.Context, fullName, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || email == "" || len(password) < 6 {
		return models.User{}, fmt.Errorf("%w: name, email and a password of at least 6 characters are required", ErrInvalidInput)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		FullName: fullName,
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleStudent,
		IsActive: true,
	}
	err = a.store.Atomic(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, &user)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return models.User{}, ErrEmailExists
	}
	if err != nil {
		return models.User{}, wrap("register", err)
	}
	return user, nil
}

// Login checks the credentials and issues a signed token.
func (a *AccountService) Login(ctx context.Context, email, password string) (string, models.User, error) {
	user, err := a.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return "", models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", models.User{}, wrap("login", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", models.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", models.User{}, ErrAccountDisabled
	}

	token, err := a.IssueToken(user)
	if err != nil {
		return "", models.User{}, err
	}
	return token, user, nil
}

func (a *AccountService) IssueToken(user models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     a.now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token issued by IssueToken and returns the user id.
func (a *AccountService) ParseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidCredentials
	}
	raw, _ := claims["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return id, nil
}

func (a *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := a.store.GetUser(ctx, userID)
	return user, wrap("get user", err)
}
