package activity

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/utils/middleware"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
	"github.com/sahilchouksey/fitcamp-api/utils/validation"
)

// CreateCommentRequest represents the request body for commenting on an activity
type CreateCommentRequest struct {
	Content    string `json:"content" validate:"required,max=2000"`
	Picture    string `json:"picture" validate:"omitempty,max=512"`
	StarNumber int    `json:"star_number" validate:"required,gte=1,lte=5"`
}

// ListComments handles GET /api/v1/activities/:id/comments
func (h *ActivityHandler) ListComments(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid activity ID")
	}

	comments, err := h.comments.ListByActivity(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, comments)
}

// CreateComment handles POST /api/v1/activities/:id/comments
func (h *ActivityHandler) CreateComment(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)
	id, err := activityID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid activity ID")
	}

	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Content = validation.SanitizeString(req.Content)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	comment, err := h.comments.Create(c.UserContext(), userID, id, req.Content, req.Picture, req.StarNumber)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Comment created", comment)
}
