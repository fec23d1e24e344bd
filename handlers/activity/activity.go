package activity

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils/middleware"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
	"github.com/sahilchouksey/fitcamp-api/utils/validation"
)

// ActivityHandler handles activity, enrollment and comment requests
type ActivityHandler struct {
	activities *services.ActivityService
	enrollment *services.EnrollmentService
	lifecycle  *services.LifecycleService
	comments   *services.CommentService
	validator  *validation.Validator
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(
	activities *services.ActivityService,
	enrollment *services.EnrollmentService,
	lifecycle *services.LifecycleService,
	comments *services.CommentService,
) *ActivityHandler {
	return &ActivityHandler{
		activities: activities,
		enrollment: enrollment,
		lifecycle:  lifecycle,
		comments:   comments,
		validator:  validation.NewValidator(),
	}
}

// CreateActivityRequest represents the request body for creating an activity
type CreateActivityRequest struct {
	Title             string    `json:"title" validate:"required,min=1,max=255"`
	Profile           string    `json:"profile" validate:"omitempty,max=5000"`
	Date              time.Time `json:"date" validate:"required"`
	Location          string    `json:"location" validate:"omitempty,max=255"`
	OrganizerName     string    `json:"organizer_name" validate:"omitempty,max=64"`
	Picture           string    `json:"picture" validate:"omitempty,max=512"`
	ParticipantsLimit int       `json:"participants_limit" validate:"required,gte=1"`
	Fee               float64   `json:"fee" validate:"gte=0"`
	Type              string    `json:"type" validate:"omitempty,activity_type"`
}

// UpdateActivityRequest represents the request body for updating an activity
type UpdateActivityRequest struct {
	Title             *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Profile           *string    `json:"profile" validate:"omitempty,max=5000"`
	Date              *time.Time `json:"date"`
	Location          *string    `json:"location" validate:"omitempty,max=255"`
	OrganizerName     *string    `json:"organizer_name" validate:"omitempty,max=64"`
	Picture           *string    `json:"picture" validate:"omitempty,max=512"`
	ParticipantsLimit *int       `json:"participants_limit" validate:"omitempty,gte=1"`
	Fee               *float64   `json:"fee" validate:"omitempty,gte=0"`
	Type              *string    `json:"type" validate:"omitempty,activity_type"`
}

// ListActivities handles GET /api/v1/activities
func (h *ActivityHandler) ListActivities(c *fiber.Ctx) error {
	// Parse query parameters
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	result, err := h.activities.List(c.UserContext(), services.ActivityFilter{
		Type:    c.Query("type", ""),
		Keyword: c.Query("keyword", ""),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, result.Items, response.CalculatePagination(result.Page, result.Limit, result.Total))
}

// SearchActivities handles GET /api/v1/activities/search?keyword=
func (h *ActivityHandler) SearchActivities(c *fiber.Ctx) error {
	items, err := h.activities.Search(c.UserContext(), c.Query("keyword", ""))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, items)
}

// GetActivity handles GET /api/v1/activities/:id
func (h *ActivityHandler) GetActivity(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid activity ID")
	}

	detail, err := h.activities.GetByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, detail)
}

// CreateActivity handles POST /api/v1/activities
func (h *ActivityHandler) CreateActivity(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)

	var req CreateActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Title = validation.SanitizeString(req.Title)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	activity, err := h.activities.Create(c.UserContext(), userID, services.ActivityInput{
		Title:             req.Title,
		Profile:           req.Profile,
		Date:              req.Date,
		Location:          req.Location,
		OrganizerName:     req.OrganizerName,
		Picture:           req.Picture,
		ParticipantsLimit: req.ParticipantsLimit,
		Fee:               req.Fee,
		Type:              model.ActivityType(req.Type),
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Activity created", activity)
}

// UpdateActivity handles PUT /api/v1/activities/:id
func (h *ActivityHandler) UpdateActivity(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)
	id, err := activityID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid activity ID")
	}

	var req UpdateActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	patch := services.ActivityPatch{
		Title:             req.Title,
		Profile:           req.Profile,
		Date:              req.Date,
		Location:          req.Location,
		OrganizerName:     req.OrganizerName,
		Picture:           req.Picture,
		ParticipantsLimit: req.ParticipantsLimit,
		Fee:               req.Fee,
	}
	if req.Type != nil {
		t := model.ActivityType(*req.Type)
		patch.Type = &t
	}

	activity, err := h.activities.Update(c.UserContext(), userID, id, patch)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Activity updated", activity)
}

// DeleteActivity handles DELETE /api/v1/activities/:id; only the creator may delete
func (h *ActivityHandler) DeleteActivity(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserID(c)
	id, err := activityID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid activity ID")
	}

	if err := h.lifecycle.DeleteOwnedActivity(c.UserContext(), userID, id); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessWithMessage(c, "Activity deleted", nil)
}

func activityID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}
