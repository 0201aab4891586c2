package notificationService

import (
	"AttendanceBackend/internal/api/notification"
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

const unknownSender = "Unknown"

// SendMessage stores a message and pushes it to the recipient's live sockets.
// A recipient with no open socket still gets the stored message.
func (s *notificationService) SendMessage(ctx context.Context, sender entity.UserLoginData, req notification.SendNotificationRequest) (notification.SendNotificationResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if req.RecipientID == sender.ID {
		return notification.SendNotificationResponse{}, notification.ErrMessageToSelf
	}

	repo, err := s.notificationRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return notification.SendNotificationResponse{}, err
	}

	if _, err := repo.Users.GetUserName(ctx, req.RecipientID); err != nil {
		return notification.SendNotificationResponse{}, err
	}

	senderName, err := repo.Users.GetUserName(ctx, sender.ID)
	if err != nil || senderName == "" {
		senderName = unknownSender
	}

	now := time.Now().UTC()
	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate message id")
		return notification.SendNotificationResponse{}, notification.ErrInternalServerError
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	message := entity.Message{
		ID:          id,
		SenderID:    sender.ID,
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
		Body:        req.Message,
		ThreadID:    threadID,
		ReplyTo:     req.ReplyTo,
		CreatedAt:   now,
	}

	if err := repo.Messages.CreateMessage(ctx, message); err != nil {
		return notification.SendNotificationResponse{}, err
	}

	delivered := s.registry.Deliver(notification.NewMessageNotification{
		Type:       notification.TypeNewMessage,
		MessageID:  message.ID,
		ThreadID:   message.ThreadID,
		SenderID:   message.SenderID,
		SenderName: senderName,
		Subject:    message.Subject,
		Message:    message.Body,
		CreatedAt:  message.CreatedAt,
	}, message.RecipientID)

	s.log.WithFields(logrus.Fields{
		"request_id":   requestID,
		"message_id":   message.ID,
		"recipient_id": message.RecipientID,
		"delivered":    delivered,
	}).Info("Message sent")

	return notification.SendNotificationResponse{
		Message:   "Message sent successfully",
		MessageID: message.ID,
		ThreadID:  message.ThreadID,
		Delivered: delivered,
	}, nil
}
