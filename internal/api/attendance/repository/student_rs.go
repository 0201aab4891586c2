package attendanceRepository

import (
	contextPkg "AttendanceBackend/pkg/context"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (r *studentRepository) Exists(c context.Context, studentID string) (bool, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryStudentExists, map[string]interface{}{
		"student_id": studentID,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Exists named query preparation err")
		return false, err
	}
	query = r.q.Rebind(query)

	var exists bool
	if err := r.q.QueryRowxContext(c, query, args...).Scan(&exists); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Exists execution err")
		return false, err
	}

	return exists, nil
}

type studentUserDB struct {
	ID        string `db:"id"`
	StudentID string `db:"student_id"`
}

// UserIDsByStudentIDs maps student ids to the ids of their user accounts.
func (r *studentRepository) UserIDsByStudentIDs(c context.Context, studentIDs []string) (map[string]string, error) {
	requestID := contextPkg.GetRequestID(c)
	result := make(map[string]string, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.Named(queryUserIDsByStudentIDs, map[string]interface{}{
		"student_ids": pq.Array(studentIDs),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UserIDsByStudentIDs named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var rows []studentUserDB
	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UserIDsByStudentIDs execution err")
		return nil, err
	}

	for _, row := range rows {
		result[row.StudentID] = row.ID
	}
	return result, nil
}
