package response

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
)

// Response represents the standardized API envelope.
// Data is null on every failure.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
}

// PaginatedData wraps a page of items with its metadata
type PaginatedData struct {
	Items      interface{}    `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// Success returns a successful response
func Success(c *fiber.Ctx, data interface{}) error {
	return SuccessWithMessage(c, "ok", data)
}

// SuccessWithMessage returns a successful response with a message
func SuccessWithMessage(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Fail returns a business failure. The transport status stays 200; clients branch on the envelope.
func Fail(c *fiber.Ctx, code, message string) error {
	return Error(c, fiber.StatusOK, code, message)
}

// Error returns a failure envelope with an explicit status
func Error(c *fiber.Ctx, statusCode int, code, message string) error {
	return c.Status(statusCode).JSON(Response{
		Success: false,
		Message: message,
		Data:    nil,
		Code:    code,
	})
}

// FromError maps a service error to the envelope.
// Unknown failures are logged and reported as INTERNAL without leaking details.
func FromError(c *fiber.Ctx, err error) error {
	se := services.AsError(err)
	if se.Kind == services.KindInternal {
		logger.Error(c.UserContext()).Err(err).Str("path", c.Path()).Msg("request failed")
		return Fail(c, se.Code, "Internal server error")
	}
	return Fail(c, se.Code, se.Message)
}

// Unauthorized returns a 401 response; used only by the auth gate
func Unauthorized(c *fiber.Ctx, code, message string) error {
	if message == "" {
		message = "Unauthorized access"
	}
	return Error(c, fiber.StatusUnauthorized, code, message)
}

// BadRequest returns a malformed request failure
func BadRequest(c *fiber.Ctx, message string) error {
	return Fail(c, "BAD_REQUEST", message)
}

// ValidationError returns a failure listing the invalid fields
func ValidationError(c *fiber.Ctx, fields map[string]string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": false,
		"message": "Validation failed",
		"data":    nil,
		"code":    string(services.KindInvalidInput),
		"fields":  fields,
	})
}

// TooManyRequests returns a 429 Too Many Requests response
func TooManyRequests(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Too many requests"
	}
	return Error(c, fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS", message)
}

// InternalServerError returns a 500 response for failures outside the business envelope
func InternalServerError(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return Error(c, fiber.StatusInternalServerError, "INTERNAL", message)
}

// Paginated returns a page of items with its metadata
func Paginated(c *fiber.Ctx, items interface{}, pagination PaginationMeta) error {
	return Success(c, PaginatedData{Items: items, Pagination: pagination})
}

// CalculatePagination calculates pagination metadata
func CalculatePagination(page, limit int, total int64) PaginationMeta {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return PaginationMeta{
		CurrentPage: page,
		PerPage:     limit,
		Total:       total,
		TotalPages:  totalPages,
	}
}
