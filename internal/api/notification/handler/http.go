package notificationHandler

import (
	notificationService "AttendanceBackend/internal/api/notification/service"
	"AttendanceBackend/internal/middleware"
	"AttendanceBackend/pkg/connhub"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// Registry tracks the notification sockets of each user.
type Registry interface {
	Register(conn connhub.Connection, subjectID string) int
	Unregister(conn connhub.Connection, subjectID string)
}

type NotificationHandler struct {
	log                 *logrus.Logger
	validator           *validator.Validate
	middleware          middleware.Middleware
	notificationService notificationService.INotificationService
	registry            Registry
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ns notificationService.INotificationService,
	registry Registry,
) *NotificationHandler {
	return &NotificationHandler{
		log:                 log,
		validator:           validator,
		middleware:          middleware,
		notificationService: ns,
		registry:            registry,
	}
}

func (h *NotificationHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	notifications := srv.Group("/notifications")
	notifications.Use("/ws", wsMiddleware)
	notifications.Get("/ws", websocket.New(h.handleNotificationSocket))
	srv.Post("/notifications",
		h.middleware.NewRateLimiter,
		h.middleware.NewTokenMiddleware,
		h.SendMessage,
	)
}
