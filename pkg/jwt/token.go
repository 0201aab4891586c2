package jwtPkg

import (
	"AttendanceBackend/internal/entity"
	"errors"
	"fmt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"os"
	"strings"
	"time"
)

var (
	ErrEmptyToken          = errors.New("empty token")
	ErrSecretNotSet        = errors.New("JWT secret not configured")
	ErrMissingClaims       = errors.New("token claims are missing required fields")
	ErrInvalidHeaderFormat = errors.New("invalid Authorization format")
)

func Sign(data map[string]interface{}, expiresIn time.Duration) (string, int64, error) {
	expiredAt := time.Now().Add(expiresIn).Unix()

	secret := os.Getenv("JWT_ACCESS_TOKEN_SECRET")
	if secret == "" {
		return "", 0, fmt.Errorf("JWT_ACCESS_TOKEN_SECRET not set")
	}

	claims := jwt.MapClaims{}
	claims["exp"] = expiredAt
	claims["authorization"] = true

	for k, v := range data {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

func VerifyTokenHeader(c *fiber.Ctx, secretEnvKey string) (*jwt.Token, error) {
	header := c.Get("Authorization")
	if header == "" {
		return nil, errors.New("empty Authorization header")
	}

	parts := strings.Split(header, "Bearer ")
	if len(parts) != 2 {
		logrus.WithField("header_parts", len(parts)).Debug("Invalid Authorization format")
		return nil, ErrInvalidHeaderFormat
	}

	return VerifyToken(strings.TrimSpace(parts[1]), secretEnvKey)
}

// VerifyToken parses a raw token, as sent in an Authorization header or a
// websocket query string.
func VerifyToken(accessToken string, secretEnvKey string) (*jwt.Token, error) {
	if accessToken == "" {
		return nil, ErrEmptyToken
	}

	secret := os.Getenv(secretEnvKey)
	if secret == "" {
		logrus.WithField("env", secretEnvKey).Error("JWT secret environment variable not set")
		return nil, ErrSecretNotSet
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		logrus.WithError(err).Debug("Failed to parse JWT token")
		return nil, err
	}

	return token, nil
}

// UserFromToken extracts the login data carried by a verified token.
func UserFromToken(token *jwt.Token) (entity.UserLoginData, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.UserLoginData{}, ErrMissingClaims
	}

	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if id == "" || email == "" || role == "" {
		return entity.UserLoginData{}, ErrMissingClaims
	}

	return entity.UserLoginData{
		ID:    id,
		Email: email,
		Role:  entity.UserRole(role),
	}, nil
}

func GetUserLoginData(c *fiber.Ctx) (entity.UserLoginData, error) {
	user, ok := c.Locals("user").(entity.UserLoginData)
	if !ok {
		return entity.UserLoginData{}, fiber.ErrUnauthorized
	}

	return user, nil
}
