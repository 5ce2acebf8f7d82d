package handlerUtil

import (
	"VoiceBridge/internal/api/call"
	"VoiceBridge/pkg/log"
	"VoiceBridge/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code,omitempty"`
	RetryAfterSecs int    `json:"retry_after_secs,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var retry *call.RetryAfterError
	if errors.As(err, &retry) {
		h.logger.WithFields(fields).Warn("Outbound call rate limited")
		c.Set(fiber.HeaderRetryAfter, utils.ToString(retry.RetryAfterSecs()))
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
			Error:          call.ErrRateLimited.Error(),
			Code:           "RATE_LIMITED",
			RetryAfterSecs: retry.RetryAfterSecs(),
		})
	}

	if errors.Is(err, call.ErrNumberNotAllowed) {
		h.logger.WithFields(fields).Warn("Number not on allow-list")
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error: call.ErrNumberNotAllowed.Error(),
			Code:  "NUMBER_NOT_ALLOWED",
		})
	}

	if errors.Is(err, call.ErrPlaceCallFailed) {
		h.logger.WithFields(fields).Error("Provider refused outbound call")
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error: call.ErrPlaceCallFailed.Error(),
			Code:  "PLACE_CALL_FAILED",
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(ErrorResponse{Error: respErr.Error()})
	}

	traceID := log.ErrorWithTraceID(h.logger, fields, "Unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: "An unexpected error occurred",
		Code:  traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
