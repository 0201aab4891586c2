package attendanceRepository

import (
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

type FaceEncodingDB struct {
	StudentID string          `db:"student_id"`
	Vector    pq.Float32Array `db:"vector"`
}

// LoadRoster returns the stored vectors of the given students. Students with
// no stored vectors are absent from the result.
func (r *encodingRepository) LoadRoster(c context.Context, studentIDs []string) (entity.Roster, error) {
	requestID := contextPkg.GetRequestID(c)
	roster := entity.Roster{}
	if len(studentIDs) == 0 {
		return roster, nil
	}

	argsKV := map[string]interface{}{
		"student_ids": pq.Array(studentIDs),
	}

	query, args, err := sqlx.Named(queryLoadRoster, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("LoadRoster named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	var rows []FaceEncodingDB
	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("LoadRoster execution err")
		return nil, err
	}

	for _, row := range rows {
		if len(row.Vector) == 0 {
			continue
		}
		vector := make(entity.FeatureVector, len(row.Vector))
		copy(vector, row.Vector)
		roster[row.StudentID] = append(roster[row.StudentID], vector)
	}

	return roster, nil
}

func (r *encodingRepository) SaveVectors(c context.Context, encodings []entity.FaceEncoding) error {
	requestID := contextPkg.GetRequestID(c)

	for _, encoding := range encodings {
		createdAt := encoding.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		argsKV := map[string]interface{}{
			"id":         encoding.ID,
			"student_id": encoding.StudentID,
			"vector":     pq.Float32Array(encoding.Vector),
			"image_url":  encoding.ImageURL,
			"created_at": createdAt,
		}

		query, args, err := sqlx.Named(queryCreateEncoding, argsKV)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to build SQL query for SaveVectors")
			return err
		}
		query = r.q.Rebind(query)

		if _, err := r.q.ExecContext(c, query, args...); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"student_id": encoding.StudentID,
				"error":      err.Error(),
			}).Error("Database error when saving face encoding")
			return err
		}
	}

	return nil
}

func (r *encodingRepository) DeleteByStudentID(c context.Context, studentID string) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryDeleteEncodingsByStudentID, map[string]interface{}{
		"student_id": studentID,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteByStudentID named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"student_id": studentID,
			"error":      err.Error(),
		}).Error("Database error when deleting face encodings")
		return err
	}

	return nil
}
