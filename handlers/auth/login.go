package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils/middleware"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
	"github.com/sahilchouksey/fitcamp-api/utils/validation"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Account    string `json:"account" validate:"required"`
	Password   string `json:"password" validate:"required"`
	DeviceInfo string `json:"deviceInfo" validate:"omitempty,max=255"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Account = validation.SanitizeString(req.Account)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	ctx := c.UserContext()
	ip := c.IP()

	result, err := h.users.Login(ctx, req.Account, req.Password, services.DeviceMeta{
		DeviceInfo: req.DeviceInfo,
		UserAgent:  c.Get(fiber.HeaderUserAgent),
		IPAddress:  ip,
	})
	if err != nil {
		// Record failed attempt even if user not found
		if errors.Is(err, services.ErrWrongPassword) && h.bruteForceProtection != nil {
			_ = h.bruteForceProtection.RecordFailedAttempt(ctx, ip, req.Account)
		}
		return response.FromError(c, err)
	}

	// Clear failed attempts on successful login
	if h.bruteForceProtection != nil {
		_ = h.bruteForceProtection.RecordSuccessfulAttempt(ctx, ip)
	}

	return response.SuccessWithMessage(c, "Login successful", result)
}

// Logout handles POST /api/v1/auth/logout for the calling session
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, ok := middleware.GetToken(c)
	if !ok {
		return response.Unauthorized(c, string(services.KindUnauthenticated), "")
	}

	if err := h.users.Logout(c.UserContext(), token); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}

// LogoutAll handles POST /api/v1/auth/logout-all, closing every session of the caller
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, string(services.KindUnauthenticated), "")
	}

	closed, err := h.users.LogoutAll(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Logged out from all devices", fiber.Map{
		"sessions_closed": closed,
	})
}
