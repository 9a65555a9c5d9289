package handlers

import (
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID               string    `json:"id"`
	FullName         string    `json:"full_name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	WalletBalance    string    `json:"wallet_balance"`
	CompletedLessons int       `json:"completed_lessons"`
	HoursLearned     float64   `json:"hours_learned"`
	CreatedAt        time.Time `json:"created_at"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:               u.ID.String(),
		FullName:         u.FullName,
		Email:            u.Email,
		Role:             string(u.Role),
		WalletBalance:    u.WalletBalance.StringFixed(2),
		CompletedLessons: u.CompletedLessons,
		HoursLearned:     u.HoursLearned,
		CreatedAt:        u.CreatedAt,
	}
}

func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := h.Accounts.Register(c.UserContext(), req.FullName, req.Email, req.Password)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
}

func (h *Handler) LoginUser(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	token, user, err := h.Accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "user": toUserResponse(user)})
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	user, err := h.Accounts.GetUser(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(toUserResponse(user))
}
