package response

import (
	"errors"
	"log"

	"github.com/Kyz7/microblog/internal/apperr"
	"github.com/Kyz7/microblog/internal/pagination"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

type StandardResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Data       interface{}      `json:"data,omitempty"`
	Error      *ErrorDetail     `json:"error,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

type ErrorDetail struct {
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	Description string      `json:"description"`
	Details     interface{} `json:"details,omitempty"`
}

func Success(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Paginated writes page.Data with its pagination block next to it.
func Paginated[T any](c *fiber.Ctx, page *pagination.Page[T], message string) error {
	return c.JSON(StandardResponse{
		Success:    true,
		Message:    message,
		Data:       page.Data,
		Pagination: &page.Pagination,
	})
}

func Created(c *fiber.Ctx, data interface{}, message string) error {
	return c.Status(fiber.StatusCreated).JSON(StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func Error(c *fiber.Ctx, statusCode int, errorCode string, message string, details interface{}) error {
	return c.Status(statusCode).JSON(StandardResponse{
		Success: false,
		Error: &ErrorDetail{
			Code:        errorCode,
			Message:     message,
			Description: utils.StatusMessage(statusCode),
			Details:     details,
		},
	})
}

func BadRequest(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, "BAD_REQUEST", message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, "FORBIDDEN", message, nil)
}

func NotFound(c *fiber.Ctx, resource string) error {
	return Error(c, fiber.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, "CONFLICT", message, nil)
}

func ValidationError(c *fiber.Ctx, errors interface{}) error {
	return Error(c, fiber.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", errors)
}

func InternalError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

// Token failures share one body whatever the internal cause.
const invalidTokenMessage = "Invalid or expired token"

// FromError renders err according to its kind. Anything unclassified is a
// 500 whose text is not exposed.
func FromError(c *fiber.Ctx, err error) error {
	var verr *apperr.ValidationError
	var ferr *fiber.Error

	switch {
	case errors.As(err, &verr):
		return ValidationError(c, verr.Fields)
	case apperr.IsAuthFailure(err):
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			return Unauthorized(c, "Invalid username or password")
		}
		return Unauthorized(c, invalidTokenMessage)
	case errors.Is(err, apperr.ErrBadRequest):
		return BadRequest(c, err.Error(), nil)
	case errors.Is(err, apperr.ErrNotFound):
		return Error(c, fiber.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, apperr.ErrForbidden):
		return Forbidden(c, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		return Conflict(c, err.Error())
	case errors.As(err, &ferr):
		return Error(c, ferr.Code, codeForStatus(ferr.Code), ferr.Message, nil)
	default:
		log.Printf("❌ %s %s: %v", c.Method(), c.Path(), err)
		return InternalError(c, "Internal server error")
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	case fiber.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	}
	if status >= fiber.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "ERROR"
}
