package user

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils/middleware"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
	"github.com/sahilchouksey/fitcamp-api/utils/validation"
)

// UserHandler handles profile, session and account closure requests
type UserHandler struct {
	users     *services.UserService
	sessions  *services.SessionService
	validator *validation.Validator
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService, sessions *services.SessionService) *UserHandler {
	return &UserHandler{
		users:     users,
		sessions:  sessions,
		validator: validation.NewValidator(),
	}
}

// UpdateProfileRequest represents the request body for updating the own profile
type UpdateProfileRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=64"`
	Profile *string `json:"profile" validate:"omitempty,max=2000"`
}

// UpdateAvatarRequest represents the request body for changing the avatar reference
type UpdateAvatarRequest struct {
	Avatar string `json:"avatar" validate:"required,max=512"`
}

// UnregisterRequest confirms account closure with the current password
type UnregisterRequest struct {
	Password string `json:"password" validate:"required"`
}

// OnlineUsers handles GET /api/v1/users/online
func (h *UserHandler) OnlineUsers(c *fiber.Ctx) error {
	users, err := h.sessions.GetOnlineUsers(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, users)
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)

	profile, err := h.users.GetProfile(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, profile)
}

// UpdateMe handles PUT /api/v1/users/me
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	user, err := h.users.UpdateProfile(c.UserContext(), userID, req.Name, req.Profile)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Profile updated", user)
}

// UpdateAvatar handles PUT /api/v1/users/me/avatar
func (h *UserHandler) UpdateAvatar(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)

	var req UpdateAvatarRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	user, err := h.users.UpdateAvatar(c.UserContext(), userID, req.Avatar)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Avatar updated", user)
}

// SessionView is an active session as listed to its owner
type SessionView struct {
	model.UserSession
	Current bool `json:"current"` // the session making this request
}

// Sessions handles GET /api/v1/users/me/sessions
func (h *UserHandler) Sessions(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)
	currentID, _ := middleware.GetSessionID(c)

	sessions, err := h.sessions.ListActiveSessions(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = SessionView{UserSession: s, Current: s.ID == currentID}
	}
	return response.Success(c, views)
}

// Unregister handles DELETE /api/v1/users/me
func (h *UserHandler) Unregister(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)

	var req UnregisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if err := h.users.Unregister(c.UserContext(), userID, req.Password); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Account deleted", nil)
}
