package attendanceHandler

import (
	"AttendanceBackend/internal/api/attendance"
	contextPkg "AttendanceBackend/pkg/context"
	"AttendanceBackend/pkg/log"
	"errors"
	"fmt"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/net/context"
)

func (h *AttendanceHandler) handleAttendanceStream(c *websocket.Conn) {
	c.SetReadLimit(h.readLimit)
	h.serveStream(c, c.Params("class_id"))
}

// serveStream runs one attendance capture session to completion. It returns
// only after the connection has been released.
func (h *AttendanceHandler) serveStream(conn StreamConn, classID string) sessionSummary {
	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(contextPkg.WithRequestID(context.Background(), sessionID))
	defer cancel()
	ctx = contextPkg.WithSessionID(ctx, sessionID)

	logger := log.WithSession(ctx, h.log, classID)
	logger.Info("Attendance stream connection accepted")

	s := newSession(sessionID, conn, h.attendanceService, logger, h.receiveTimeout, h.writeTimeout)

	class, roster, err := h.attendanceService.OpenSession(ctx, classID)
	if err != nil {
		return s.reject(rejectReason(err))
	}

	if !h.sessions.add(s) {
		return s.turnAway()
	}
	defer h.sessions.remove(s)

	logger.WithField("students", roster.StudentCount()).Info("Attendance stream active")
	return s.run(ctx, class, roster)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, attendance.ErrClassNotFound):
		return "Class not found"
	case errors.Is(err, attendance.ErrInvalidClassID):
		return "Invalid class ID"
	default:
		return truncateReason(fmt.Sprintf("Connection failed: %v", err))
	}
}

// Close frame payloads are limited to 125 bytes, two of which hold the code.
func truncateReason(reason string) string {
	const maxReason = 123
	if len(reason) <= maxReason {
		return reason
	}
	return reason[:maxReason]
}
