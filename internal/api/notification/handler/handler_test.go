package notificationHandler

import (
	"AttendanceBackend/internal/api/notification"
	"AttendanceBackend/internal/entity"
	"AttendanceBackend/internal/middleware"
	"AttendanceBackend/pkg/connhub"
	jwtPkg "AttendanceBackend/pkg/jwt"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const testSecret = "notification-secret"

type fakeSocket struct {
	incoming chan []byte

	mu       sync.Mutex
	texts    []string
	closes   []string
	closed   chan struct{}
	closeMux sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		incoming: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-f.incoming:
		if !ok {
			return 0, nil, net.ErrClosed
		}
		return websocket.TextMessage, msg, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeSocket) WriteJSON(v interface{}) error {
	return nil
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, string(data))
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data) >= 2 {
		f.closes = append(f.closes, string(data[2:]))
	}
	return nil
}

func (f *fakeSocket) Close() error {
	f.closeMux.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) written() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...), append([]string(nil), f.closes...)
}

type stubService struct {
	mu  sync.Mutex
	got []notification.SendNotificationRequest
	err error
}

func (s *stubService) SendMessage(ctx context.Context, sender entity.UserLoginData, req notification.SendNotificationRequest) (notification.SendNotificationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return notification.SendNotificationResponse{}, s.err
	}
	s.got = append(s.got, req)
	return notification.SendNotificationResponse{MessageID: "m-1", ThreadID: "t-1"}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHandler(service *stubService, registry *connhub.Registry) *NotificationHandler {
	logger := quietLogger()
	return New(logger, validator.New(), middleware.New(logger), service, registry)
}

func token(t *testing.T, id string) string {
	t.Helper()
	raw, _, err := jwtPkg.Sign(map[string]interface{}{
		"id":    id,
		"email": id + "@campus.test",
		"role":  string(entity.RoleStudent),
	}, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return raw
}

func TestSocketRejectsBadTokens(t *testing.T) {
	t.Setenv(middleware.AccessTokenSecret, testSecret)

	cases := []struct {
		name   string
		token  string
		reason string
	}{
		{"missing", "", "Missing token"},
		{"garbage", "not-a-jwt", "Invalid token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			registry := connhub.NewRegistry(quietLogger())
			h := newTestHandler(&stubService{}, registry)
			conn := newFakeSocket()

			h.serveSocket(conn, tc.token)

			_, closes := conn.written()
			if len(closes) != 1 || closes[0] != tc.reason {
				t.Fatalf("expected close reason %q, got %v", tc.reason, closes)
			}
			select {
			case <-conn.closed:
			default:
				t.Fatal("connection should be closed")
			}
		})
	}
}

func TestSocketRegistersAndAnswersPing(t *testing.T) {
	t.Setenv(middleware.AccessTokenSecret, testSecret)
	registry := connhub.NewRegistry(quietLogger())
	h := newTestHandler(&stubService{}, registry)
	conn := newFakeSocket()

	done := make(chan struct{})
	go func() {
		h.serveSocket(conn, token(t, "student-user"))
		close(done)
	}()

	conn.incoming <- []byte("hello")
	conn.incoming <- []byte(notification.PingMessage)

	deadline := time.Now().Add(2 * time.Second)
	for {
		texts, _ := conn.written()
		if len(texts) == 1 {
			if texts[0] != notification.PongMessage {
				t.Fatalf("expected pong, got %q", texts[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("ping was not answered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := registry.Connections("student-user"); got != 1 {
		t.Fatalf("expected one registered connection, got %d", got)
	}

	close(conn.incoming)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("socket did not exit")
	}
	if got := registry.Connections("student-user"); got != 0 {
		t.Fatalf("closed socket should be unregistered, got %d", got)
	}
}

func newTestApp(h *NotificationHandler) *fiber.App {
	app := fiber.New()
	app.Use(h.middleware.NewRequestIDMiddleware())
	h.Start(app.Group("/api/v1"))
	return app
}

func TestSendMessageEndpoint(t *testing.T) {
	t.Setenv(middleware.AccessTokenSecret, testSecret)

	cases := []struct {
		name string
		auth bool
		body string
		err  error
		want int
	}{
		{"unauthenticated", false, `{"recipient_id":"u2","subject":"s","message":"m"}`, nil, fiber.StatusUnauthorized},
		{"missing subject", true, `{"recipient_id":"u2","message":"m"}`, nil, fiber.StatusBadRequest},
		{"sent", true, `{"recipient_id":"u2","subject":"s","message":"m"}`, nil, fiber.StatusCreated},
		{"unknown recipient", true, `{"recipient_id":"u9","subject":"s","message":"m"}`, notification.ErrRecipientNotFound, fiber.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubService{err: tc.err}
			app := newTestApp(newTestHandler(service, connhub.NewRegistry(quietLogger())))

			req := httptest.NewRequest("POST", "/api/v1/notifications", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.auth {
				req.Header.Set("Authorization", "Bearer "+token(t, "u1"))
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestSocketRouteRequiresUpgrade(t *testing.T) {
	app := newTestApp(newTestHandler(&stubService{}, connhub.NewRegistry(quietLogger())))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/notifications/ws", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}
