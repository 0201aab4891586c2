package attendanceRepository

import (
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (r *attendanceRepository) CreateRecord(c context.Context, record entity.AttendanceRecord) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":                     record.ID,
		"class_id":               record.ClassID,
		"date":                   record.Date,
		"students_present":       pq.Array(record.StudentsPresent),
		"method":                 string(record.Method),
		"marked_by":              record.MarkedBy,
		"total_faces_detected":   record.TotalFacesDetected,
		"total_faces_recognized": record.TotalFacesRecognized,
		"created_at":             record.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateAttendanceRecord, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateRecord")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"class_id":   record.ClassID,
			"error":      err.Error(),
		}).Error("Database error when creating attendance record")
		return err
	}

	return nil
}
