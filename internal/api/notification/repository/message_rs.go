package notificationRepository

import (
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"database/sql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (r *messageRepository) CreateMessage(c context.Context, message entity.Message) error {
	requestID := contextPkg.GetRequestID(c)

	replyTo := sql.NullString{}
	if message.ReplyTo != nil {
		replyTo = sql.NullString{String: *message.ReplyTo, Valid: true}
	}

	argsKV := map[string]interface{}{
		"id":           message.ID,
		"sender_id":    message.SenderID,
		"recipient_id": message.RecipientID,
		"subject":      message.Subject,
		"body":         message.Body,
		"thread_id":    message.ThreadID,
		"reply_to":     replyTo,
		"read":         message.Read,
		"created_at":   message.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateMessage, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateMessage")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id":   requestID,
			"recipient_id": message.RecipientID,
			"error":        err.Error(),
		}).Error("Database error when creating message")
		return err
	}

	return nil
}
