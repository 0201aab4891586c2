package notificationHandler

import (
	"AttendanceBackend/internal/api/notification"
	"AttendanceBackend/internal/middleware"
	"AttendanceBackend/pkg/connhub"
	jwtPkg "AttendanceBackend/pkg/jwt"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const closeWriteTimeout = time.Second

// SocketConn is the websocket surface the notification socket uses.
type SocketConn interface {
	connhub.MessageWriter
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

func (h *NotificationHandler) handleNotificationSocket(c *websocket.Conn) {
	h.serveSocket(c, c.Query("token"))
}

// serveSocket authenticates the connection, keeps it registered for pushes
// and answers keepalive pings until the client goes away.
func (h *NotificationHandler) serveSocket(conn SocketConn, rawToken string) {
	defer conn.Close()

	if rawToken == "" {
		h.reject(conn, "Missing token")
		return
	}

	token, err := jwtPkg.VerifyToken(rawToken, middleware.AccessTokenSecret)
	if err != nil {
		h.log.WithError(err).Warn("Notification socket token rejected")
		h.reject(conn, "Invalid token")
		return
	}
	user, err := jwtPkg.UserFromToken(token)
	if err != nil {
		h.log.WithError(err).Warn("Notification socket token rejected")
		h.reject(conn, "Invalid token")
		return
	}

	guarded := connhub.Guard(conn)
	h.registry.Register(guarded, user.ID)
	defer h.registry.Unregister(guarded, user.ID)

	logger := h.log.WithField("user_id", user.ID)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("Notification socket closed unexpectedly")
			} else {
				logger.Debug("Notification socket closed")
			}
			return
		}

		if string(msg) != notification.PingMessage {
			logger.WithField("size", len(msg)).Debug("Ignoring client message")
			continue
		}
		if err := guarded.WriteMessage(websocket.TextMessage, []byte(notification.PongMessage)); err != nil {
			logger.WithError(err).Debug("Failed to answer ping")
			return
		}
	}
}

func (h *NotificationHandler) reject(conn SocketConn, reason string) {
	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(closeWriteTimeout))
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"reason": reason,
			"error":  err.Error(),
		}).Debug("Failed to send close frame")
	}
}
