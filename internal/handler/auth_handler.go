package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login handles POST /v1/auth/login with a Firebase ID token as bearer
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return fail(c, fiber.StatusUnauthorized, "missing authorization header")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	resp, err := h.authService.Login(c.UserContext(), token)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, err.Error())
	}

	return ok(c, resp)
}
