package config

import (
	"AttendanceBackend/database/postgres"
	attendanceHandler "AttendanceBackend/internal/api/attendance/handler"
	attendanceRepository "AttendanceBackend/internal/api/attendance/repository"
	attendanceService "AttendanceBackend/internal/api/attendance/service"
	notificationHandler "AttendanceBackend/internal/api/notification/handler"
	notificationRepository "AttendanceBackend/internal/api/notification/repository"
	notificationService "AttendanceBackend/internal/api/notification/service"
	"AttendanceBackend/internal/middleware"
	"AttendanceBackend/internal/recognition"
	"AttendanceBackend/pkg/connhub"
	"AttendanceBackend/pkg/faceai"
	"AttendanceBackend/pkg/redis"
	"AttendanceBackend/pkg/s3"
	"AttendanceBackend/pkg/utils"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"os"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	faceModel   faceai.IFaceModel
	registry    *connhub.Registry
	streams     *attendanceHandler.AttendanceHandler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithFaceModel(faceModel faceai.IFaceModel) ServerOption {
	return func(s *Server) error {
		s.faceModel = faceModel
		return nil
	}
}

func WithConnectionRegistry() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before connection registry")
		}
		s.registry = connhub.NewRegistry(s.log)
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	if s.faceModel == nil || s.registry == nil || s.middleware == nil {
		return errors.New("face model, connection registry and middleware are required")
	}

	// Attendance Domain
	engine := recognition.New(s.faceModel, s.log)
	attendanceRepo := attendanceRepository.New(s.db, s.log)
	attendanceServices := attendanceService.NewAttendanceService(s.log, attendanceRepo, engine, s.redisServer, s.s3Client, s.registry, s.utils)
	attendanceHandlers := attendanceHandler.New(s.log, s.validator, s.middleware, attendanceServices)
	s.streams = attendanceHandlers

	// Notification Domain
	notificationRepo := notificationRepository.New(s.db, s.log)
	notificationServices := notificationService.NewNotificationService(s.log, notificationRepo, s.registry, s.utils)
	notificationHandlers := notificationHandler.New(s.log, s.validator, s.middleware, notificationServices, s.registry)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, attendanceHandlers, notificationHandlers)
	return nil
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	s.log.WithField("port", port).Info("Listening")
	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops live attendance streams first so each one can close with
// its going-away frame, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.streams != nil {
		if err := s.streams.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("attendance streams: %w", err))
		}
	}
	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if s.faceModel != nil {
		s.faceModel.CloseConnection()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
