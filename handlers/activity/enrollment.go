package activity

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/utils/middleware"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
)

// JoinActivity handles POST /api/v1/activities/:id/join
func (h *ActivityHandler) JoinActivity(c *fiber.Ctx) error {
	return h.enroll(c, h.enrollment.Join, "Joined activity")
}

// LeaveActivity handles POST /api/v1/activities/:id/leave
func (h *ActivityHandler) LeaveActivity(c *fiber.Ctx) error {
	return h.enroll(c, h.enrollment.Leave, "Left activity")
}

// FavoriteActivity handles POST /api/v1/activities/:id/favorite
func (h *ActivityHandler) FavoriteActivity(c *fiber.Ctx) error {
	return h.enroll(c, h.enrollment.Favorite, "Added to favorites")
}

// UnfavoriteActivity handles POST /api/v1/activities/:id/unfavorite
func (h *ActivityHandler) UnfavoriteActivity(c *fiber.Ctx) error {
	return h.enroll(c, h.enrollment.Unfavorite, "Removed from favorites")
}

// enroll runs one enrollment operation for the authenticated user
func (h *ActivityHandler) enroll(c *fiber.Ctx, op func(ctx context.Context, userID, activityID uint) error, message string) error {
	userID, _ := middleware.GetUserID(c)
	id, err := activityID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid activity ID")
	}

	if err := op(c.UserContext(), userID, id); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, message, nil)
}
