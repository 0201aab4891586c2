package handlerUtil

import (
	"AttendanceBackend/internal/api/attendance"
	"AttendanceBackend/internal/api/notification"
	"AttendanceBackend/pkg/log"
	"AttendanceBackend/pkg/response"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// domainErrors gives client-facing codes to the sentinels a client is
// expected to branch on. Order matters: the first match wins.
var domainErrors = []struct {
	err     error
	code    string
	message string
}{
	{attendance.ErrInvalidClassID, "INVALID_CLASS_ID", "Invalid class ID"},
	{attendance.ErrClassNotFound, "CLASS_NOT_FOUND", "Class not found"},
	{attendance.ErrNotClassOwner, "NOT_CLASS_OWNER", "Not authorized for this class"},
	{attendance.ErrStudentNotFound, "STUDENT_NOT_FOUND", "Student not found"},
	{attendance.ErrNoImages, "NO_IMAGES", "At least one image is required"},
	{attendance.ErrNoFaceFound, "NO_FACE_FOUND", "No faces detected in any of the images"},
	{attendance.ErrInvalidFileType, "INVALID_FILE_TYPE", "Invalid file type. Only images are allowed."},
	{attendance.ErrFileTooLarge, "FILE_TOO_LARGE", "File too large. Maximum size is 5MB."},
	{attendance.ErrFailedToUploadFile, "UPLOAD_FAILED", "Failed to upload file"},
	{attendance.ErrFaceModelFailure, "FACE_MODEL_UNAVAILABLE", "Face recognition service unavailable"},
	{notification.ErrRecipientNotFound, "RECIPIENT_NOT_FOUND", "Recipient not found"},
	{notification.ErrMessageToSelf, "MESSAGE_TO_SELF", "Cannot send a message to yourself"},
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if !errors.As(err, &respErr) {
		traceID := log.ErrorWithTraceID(h.logger, fields, "Unexpected error")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "An unexpected error occurred",
			TraceID: traceID,
		})
	}
	fields["code"] = respErr.Code

	for _, known := range domainErrors {
		if errors.Is(err, known.err) {
			h.logger.WithFields(fields).Warn(known.message)
			return c.Status(respErr.Code).JSON(ErrorResponse{
				Error: known.message,
				Code:  known.code,
			})
		}
	}

	if respErr.Code >= fiber.StatusInternalServerError {
		h.logger.WithFields(fields).Error("Operation failed with error response")
	} else {
		h.logger.WithFields(fields).Warn("Operation failed with error response")
	}
	return c.Status(respErr.Code).JSON(ErrorResponse{
		Error: respErr.Err.Error(),
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
