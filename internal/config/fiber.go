package config

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               "Attendance Backend",
			BodyLimit:             50 * 1024 * 1024,
			DisableKeepalive:      false,
			CaseSensitive:         true,
			EnablePrintRoutes:     false,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler: func(ctx *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				if e, ok := err.(*fiber.Error); ok {
					code = e.Code
				}
				if code >= fiber.StatusInternalServerError {
					logger.WithFields(logrus.Fields{
						"path":  ctx.Path(),
						"error": err.Error(),
					}).Error("Unhandled request error")
				}
				return ctx.Status(code).JSON(fiber.Map{"error": err.Error()})
			},
		})

	return app
}
