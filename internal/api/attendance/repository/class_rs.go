package attendanceRepository

import (
	"AttendanceBackend/internal/api/attendance"
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"database/sql"
	"errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

type ClassDB struct {
	ID               sql.NullString `db:"id"`
	Name             sql.NullString `db:"name"`
	Code             sql.NullString `db:"code"`
	FacultyID        sql.NullString `db:"faculty_id"`
	EnrolledStudents pq.StringArray `db:"enrolled_students"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (r *classRepository) GetClassByID(c context.Context, id string) (entity.Class, error) {
	requestID := contextPkg.GetRequestID(c)
	var class ClassDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetClassByID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetClassByID named query preparation err")
		return entity.Class{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&class); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"class_id":   id,
			}).Warn("GetClassByID no rows found")
			return entity.Class{}, attendance.ErrClassNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetClassByID execution err")
		return entity.Class{}, err
	}

	return makeClass(class), nil
}

func makeClass(class ClassDB) entity.Class {
	enrolled := make([]string, 0, len(class.EnrolledStudents))
	enrolled = append(enrolled, class.EnrolledStudents...)

	return entity.Class{
		ID:               class.ID.String,
		Name:             class.Name.String,
		Code:             class.Code.String,
		FacultyID:        class.FacultyID.String,
		EnrolledStudents: enrolled,
		CreatedAt:        class.CreatedAt,
	}
}
