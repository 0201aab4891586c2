package middleware

import (
	"AttendanceBackend/pkg/log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

const maxLoggedBody = 2048

var sensitiveFields = []string{
	"password", "token", "secret", "key", "auth",
	"credential", "authorization",
}

// Fields redacted only under a path prefix. Frames and images are large and
// biometric, message bodies are private.
var redactedByPath = map[string][]string{
	"/faces":         {"image", "images"},
	"/attendance":    {"image"},
	"/notifications": {"message"},
}

func LoggerConfig() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = "unknown"
		}

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil && status == fiber.StatusInternalServerError {
			return err
		}

		logFields := log.Fields{
			"request_id":    requestID,
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get("User-Agent"),
			"response_size": len(c.Response().Body()),
		}

		if status == fiber.StatusSwitchingProtocols {
			log.Debug(logFields, "Websocket upgraded")
			return err
		}

		if body := c.Request().Body(); len(body) > 0 {
			logFields["request_body"] = sanitizeRequestBody(c.Path(), string(c.Request().Header.ContentType()), body)
		}

		switch {
		case status >= 500:
			log.Error(logFields, "Server error")
		case status >= 400:
			log.Warn(logFields, "Client error")
		default:
			log.Info(logFields, "Success")
		}

		return err
	}
}

func sanitizeRequestBody(path, contentType string, body []byte) string {
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return "[multipart body]"
	}

	var jsonBody map[string]interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	fields := sensitiveFields
	for prefix, extra := range redactedByPath {
		if strings.Contains(path, prefix) {
			fields = append(append([]string(nil), fields...), extra...)
		}
	}

	for _, field := range fields {
		if _, exists := jsonBody[field]; exists {
			jsonBody[field] = "[SECRET]"
		}
	}

	sanitized, err := jsoniter.MarshalToString(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}
	if len(sanitized) > maxLoggedBody {
		return sanitized[:maxLoggedBody] + "...[truncated]"
	}

	return sanitized
}
