package attendanceRepository

import (
	"AttendanceBackend/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Classes:    &classRepository{q: sqlExecutor, log: r.log},
		Encodings:  &encodingRepository{q: sqlExecutor, log: r.log},
		Attendance: &attendanceRepository{q: sqlExecutor, log: r.log},
		Students:   &studentRepository{q: sqlExecutor, log: r.log},
		Commit:     commitFunc,
		Rollback:   rollbackFunc,
	}, nil
}

type Client struct {
	Classes interface {
		GetClassByID(c context.Context, id string) (entity.Class, error)
	}

	// Encodings is the feature store.
	Encodings interface {
		LoadRoster(c context.Context, studentIDs []string) (entity.Roster, error)
		SaveVectors(c context.Context, encodings []entity.FaceEncoding) error
		DeleteByStudentID(c context.Context, studentID string) error
	}

	Attendance interface {
		CreateRecord(c context.Context, record entity.AttendanceRecord) error
	}

	Students interface {
		Exists(c context.Context, studentID string) (bool, error)
		UserIDsByStudentIDs(c context.Context, studentIDs []string) (map[string]string, error)
	}

	Commit   func() error
	Rollback func() error
}

type classRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type encodingRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type attendanceRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type studentRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
