package middleware

import (
	"AttendanceBackend/internal/entity"
	jwtPkg "AttendanceBackend/pkg/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
)

func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"client_ip":  ctx.IP(),
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
		})
	}

	user, err := jwtPkg.UserFromToken(userToken)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Token claims check")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
		})
	}
	ctx.Locals("user", user)

	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"user_id":    user.ID,
		"role":       user.Role,
	}).Debug("Authentication successful")
	return ctx.Next()
}

// RequireRole lets the request through only for the given roles. It must run
// after NewTokenMiddleware.
func (m *middleware) RequireRole(roles ...entity.UserRole) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user, err := jwtPkg.GetUserLoginData(ctx)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized, access token invalid or expired",
			})
		}

		for _, role := range roles {
			if user.Role == role {
				return ctx.Next()
			}
		}

		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"user_id":    user.ID,
			"role":       user.Role,
			"path":       ctx.Path(),
		}).Warn("Insufficient role")
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not enough permissions",
		})
	}
}
