package attendanceHandler

import (
	attendanceService "AttendanceBackend/internal/api/attendance/service"
	"AttendanceBackend/internal/entity"
	"AttendanceBackend/internal/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"os"
	"time"
)

const (
	defaultReceiveTimeout  = 10 * time.Millisecond
	defaultWriteTimeout    = 10 * time.Second
	defaultStreamReadLimit = 8 << 20
)

type AttendanceHandler struct {
	log               *logrus.Logger
	validator         *validator.Validate
	middleware        middleware.Middleware
	attendanceService attendanceService.IAttendanceService
	sessions          *sessionTracker
	receiveTimeout    time.Duration
	writeTimeout      time.Duration
	readLimit         int64
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	as attendanceService.IAttendanceService,
) *AttendanceHandler {
	return &AttendanceHandler{
		log:               log,
		validator:         validator,
		middleware:        middleware,
		attendanceService: as,
		sessions:          newSessionTracker(),
		receiveTimeout:    durationFromEnv("STREAM_RECEIVE_TIMEOUT", defaultReceiveTimeout),
		writeTimeout:      durationFromEnv("STREAM_WRITE_TIMEOUT", defaultWriteTimeout),
		readLimit:         defaultStreamReadLimit,
	}
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	timeout, err := time.ParseDuration(os.Getenv(key))
	if err != nil || timeout <= 0 {
		return fallback
	}
	return timeout
}

func (h *AttendanceHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	auto := srv.Group("/faculty/attendance/auto")
	auto.Use("/stream", wsMiddleware)
	auto.Get("/stream/:class_id", websocket.New(h.handleAttendanceStream))
	auto.Post("/:class_id",
		h.middleware.NewRateLimiter,
		h.middleware.NewTokenMiddleware,
		h.middleware.RequireRole(entity.RoleAdmin, entity.RoleFaculty),
		h.ConfirmAttendance,
	)

	students := srv.Group("/students")
	students.Post("/:student_id/faces",
		h.middleware.NewRateLimiter,
		h.middleware.NewTokenMiddleware,
		h.middleware.RequireRole(entity.RoleAdmin),
		h.EnrollFaces,
	)
}

// Shutdown stops every live attendance stream and waits for them to release
// their connections.
func (h *AttendanceHandler) Shutdown(ctx context.Context) error {
	active := h.sessions.active()
	if active > 0 {
		h.log.WithField("sessions", active).Info("Stopping attendance streams")
	}
	return h.sessions.stopAll(ctx)
}
