package notificationService

import (
	"AttendanceBackend/internal/api/notification"
	notificationRepository "AttendanceBackend/internal/api/notification/repository"
	"AttendanceBackend/internal/entity"
	"AttendanceBackend/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type INotificationService interface {
	SendMessage(ctx context.Context, sender entity.UserLoginData, req notification.SendNotificationRequest) (notification.SendNotificationResponse, error)
}

// Registry is the live-connection side of notifications.
type Registry interface {
	Deliver(message interface{}, subjectID string) int
}

type notificationService struct {
	log                    *logrus.Logger
	notificationRepository notificationRepository.Repository
	registry               Registry
	utils                  utils.IUtils
}

func NewNotificationService(
	log *logrus.Logger,
	nr notificationRepository.Repository,
	registry Registry,
	utils utils.IUtils,
) INotificationService {
	return &notificationService{
		log:                    log,
		notificationRepository: nr,
		registry:               registry,
		utils:                  utils,
	}
}
