package attendanceService

import (
	"AttendanceBackend/internal/api/attendance"
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"AttendanceBackend/pkg/response"
	"errors"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// OpenSession resolves the class a streaming session targets and loads its
// roster. Zero enrolled students or zero stored vectors is not an error.
func (s *attendanceService) OpenSession(ctx context.Context, classID string) (entity.Class, entity.Roster, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := ulid.ParseStrict(classID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"class_id":   classID,
			"error":      err.Error(),
		}).Warn("Rejecting malformed class id")
		return entity.Class{}, nil, attendance.ErrInvalidClassID
	}

	repo, err := s.attendanceRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.Class{}, nil, err
	}

	class, err := repo.Classes.GetClassByID(ctx, classID)
	if err != nil {
		if errors.Is(err, attendance.ErrClassNotFound) {
			return entity.Class{}, nil, err
		}
		return entity.Class{}, nil, response.Wrap(attendance.ErrInvalidClassID, "load class %s: %v", classID, err)
	}

	if len(class.EnrolledStudents) == 0 {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"class_id":   classID,
		}).Warn("No students enrolled in class")
	}

	roster, err := s.LoadRoster(ctx, class.EnrolledStudents)
	if err != nil {
		return entity.Class{}, nil, err
	}

	fields := logrus.Fields{
		"request_id": requestID,
		"class_id":   classID,
		"students":   roster.StudentCount(),
		"vectors":    roster.VectorCount(),
	}
	if roster.StudentCount() == 0 {
		s.log.WithFields(fields).Warn("No face encodings loaded for class")
	} else {
		s.log.WithFields(fields).Info("Loaded face encodings for class")
	}

	return class, roster, nil
}

// LoadRoster reads through the vector cache, falling back to the feature
// store for misses. Students without stored vectors are absent.
func (s *attendanceService) LoadRoster(ctx context.Context, studentIDs []string) (entity.Roster, error) {
	requestID := contextPkg.GetRequestID(ctx)
	roster := entity.Roster{}

	studentIDs = unique(studentIDs)
	if len(studentIDs) == 0 {
		return roster, nil
	}

	misses := studentIDs
	if s.cache != nil {
		hits, cacheMisses, err := s.cache.GetFaceVectors(ctx, studentIDs)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Face vector cache unavailable, reading feature store")
		} else {
			for studentID, vectors := range hits {
				if len(vectors) > 0 {
					roster[studentID] = vectors
				}
			}
			misses = cacheMisses
		}
	}

	if len(misses) == 0 {
		return roster, nil
	}

	repo, err := s.attendanceRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return nil, err
	}

	stored, err := repo.Encodings.LoadRoster(ctx, misses)
	if err != nil {
		return nil, err
	}

	for studentID, vectors := range stored {
		if len(vectors) == 0 {
			continue
		}
		roster[studentID] = vectors
		if s.cache != nil {
			if err := s.cache.SetFaceVectors(ctx, studentID, vectors); err != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"student_id": studentID,
					"error":      err.Error(),
				}).Warn("Failed to cache face vectors")
			}
		}
	}

	return roster, nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
