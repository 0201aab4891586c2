package attendanceHandler

import (
	"AttendanceBackend/internal/api/attendance"
	contextPkg "AttendanceBackend/pkg/context"
	"AttendanceBackend/pkg/handlerUtil"
	"AttendanceBackend/pkg/log"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"time"
)

func (h *AttendanceHandler) EnrollFaces(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	form, err := ctx.MultipartForm()
	if err != nil {
		return errHandler.Handle(ctx, requestID, attendance.ErrNoImages, ctx.Path(), "parse_multipart_form")
	}

	images := form.File["images"]
	studentID := ctx.Params("student_id")

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"student_id": studentID,
		"images":     len(images),
	}).Debug("Processing face enrollment")

	res, err := h.attendanceService.EnrollFaces(c, studentID, images)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "enroll_faces")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}
