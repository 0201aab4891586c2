package notificationRepository

import (
	"AttendanceBackend/internal/api/notification"
	contextPkg "AttendanceBackend/pkg/context"
	"database/sql"
	"errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (r *userRepository) GetUserName(c context.Context, userID string) (string, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryGetUserName, map[string]interface{}{
		"id": userID,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetUserName named query preparation err")
		return "", err
	}
	query = r.q.Rebind(query)

	var name sql.NullString
	if err := r.q.QueryRowxContext(c, query, args...).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", notification.ErrRecipientNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"user_id":    userID,
			"error":      err.Error(),
		}).Error("GetUserName execution err")
		return "", err
	}

	return name.String, nil
}
