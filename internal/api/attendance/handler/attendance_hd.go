package attendanceHandler

import (
	"AttendanceBackend/internal/api/attendance"
	contextPkg "AttendanceBackend/pkg/context"
	"AttendanceBackend/pkg/handlerUtil"
	jwtPkg "AttendanceBackend/pkg/jwt"
	"AttendanceBackend/pkg/log"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"time"
)

func (h *AttendanceHandler) ConfirmAttendance(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	user, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	var req attendance.ConfirmAttendanceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"class_id":   ctx.Params("class_id"),
		"students":   len(req.StudentIDs),
	}).Debug("Confirming automatic attendance")

	res, err := h.attendanceService.ConfirmAttendance(c, user, ctx.Params("class_id"), req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "confirm_attendance")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, res)
	}
}
