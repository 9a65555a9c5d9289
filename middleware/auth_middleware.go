package middleware

import (
	"strings"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Protected validates the bearer token. Browsers opening a websocket cannot
// set headers, so the token may also come in the query string.
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		TokenLookup:  "header:Authorization,query:token",
		AuthScheme:   "Bearer",
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

func claims(c *fiber.Ctx) jwt.MapClaims {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	return claims
}

// UserID returns the authenticated user's id.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	raw, _ := claims(c)["user_id"].(string)
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// Role returns the role carried by the token.
func Role(c *fiber.Ctx) models.Role {
	role, _ := claims(c)["role"].(string)
	return models.Role(role)
}

func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if Role(c) != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Admin access required",
			})
		}
		return c.Next()
	}
}

// TeacherRequired lets admins through as well.
func TeacherRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role := Role(c); role != models.RoleTeacher && role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Teacher access required",
			})
		}
		return c.Next()
	}
}
