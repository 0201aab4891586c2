package main

import (
	"AttendanceBackend/internal/config"
	"AttendanceBackend/pkg/faceai"
	"AttendanceBackend/pkg/log"
	"AttendanceBackend/pkg/redis"
	"golang.org/x/net/context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envErr := godotenv.Load()
	logger := log.NewLogger()
	if envErr != nil {
		logger.WithError(envErr).Warn("No .env file loaded, using process environment")
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	faceModel := faceai.New(logger)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithFaceModel(faceModel),
		config.WithConnectionRegistry(),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithUtils(),
	)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to build server")
	}

	if err := server.RegisterHandler(); err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to register handlers")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatal(log.Fields{"error": err.Error()}, "Error starting server")
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		return
	}
	logger.Info("Server stopped")
}
