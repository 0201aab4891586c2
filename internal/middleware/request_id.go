package middleware

import (
	"AttendanceBackend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"time"
)

const (
	RequestIDKey       = "X-Request-ID"
	maxRequestIDLength = 64
)

// NewRequestIDMiddleware stamps every request with an id, reusing a sane
// client supplied X-Request-ID.
func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if !validRequestID(requestID) {
			id, err := utilsInstance.NewULIDFromTimestamp(time.Now())
			if err != nil {
				id = uuid.NewString()
			}
			requestID = id
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
