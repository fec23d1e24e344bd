package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils/middleware"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
	"github.com/sahilchouksey/fitcamp-api/utils/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users                *services.UserService
	validator            *validation.Validator
	bruteForceProtection *middleware.BruteForceProtection
}

// NewAuthHandler creates a new auth handler; bruteForceProtection may be nil
func NewAuthHandler(users *services.UserService, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		users:                users,
		validator:            validation.NewValidator(),
		bruteForceProtection: bruteForceProtection,
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Account  string `json:"account" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"omitempty,max=64"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Account = validation.SanitizeString(req.Account)
	req.Name = validation.SanitizeString(req.Name)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	user, err := h.users.Register(c.UserContext(), req.Account, req.Password, req.Name)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Registration successful", user.Summary())
}
