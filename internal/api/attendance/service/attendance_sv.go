package attendanceService

import (
	"AttendanceBackend/internal/api/attendance"
	attendanceRepository "AttendanceBackend/internal/api/attendance/repository"
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

const attendanceMarkedType = "attendance_marked"

// ConfirmAttendance persists the students a faculty member accepted from a
// streaming session. Unknown or unenrolled ids are dropped, duplicates are
// collapsed.
func (s *attendanceService) ConfirmAttendance(ctx context.Context, user entity.UserLoginData, classID string, req attendance.ConfirmAttendanceRequest) (attendance.ConfirmAttendanceResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := ulid.ParseStrict(classID); err != nil {
		return attendance.ConfirmAttendanceResponse{}, attendance.ErrInvalidClassID
	}

	repo, err := s.attendanceRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return attendance.ConfirmAttendanceResponse{}, err
	}

	class, err := repo.Classes.GetClassByID(ctx, classID)
	if err != nil {
		return attendance.ConfirmAttendanceResponse{}, err
	}

	if !user.IsAdmin() && class.FacultyID != user.ID {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"class_id":   classID,
			"user_id":    user.ID,
		}).Warn("User does not own class")
		return attendance.ConfirmAttendanceResponse{}, attendance.ErrNotClassOwner
	}

	present := make([]string, 0, len(req.StudentIDs))
	var rejected []string
	for _, studentID := range unique(req.StudentIDs) {
		if class.IsEnrolled(studentID) {
			present = append(present, studentID)
		} else {
			rejected = append(rejected, studentID)
		}
	}
	if len(rejected) > 0 {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"class_id":   classID,
			"rejected":   rejected,
		}).Warn("Some recognized students are not enrolled")
	}

	now := time.Now()
	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return attendance.ConfirmAttendanceResponse{}, attendance.ErrInternalServerError
	}

	record := entity.AttendanceRecord{
		ID:                   id,
		ClassID:              classID,
		Date:                 now,
		StudentsPresent:      present,
		Method:               entity.AttendanceMethodAuto,
		MarkedBy:             user.ID,
		TotalFacesDetected:   req.TotalFacesDetected,
		TotalFacesRecognized: req.TotalFacesRecognized,
		CreatedAt:            now,
	}

	if err := repo.Attendance.CreateRecord(ctx, record); err != nil {
		return attendance.ConfirmAttendanceResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"class_id":   classID,
		"marked":     len(present),
	}).Info("Attendance recorded")

	s.notifyMarked(ctx, repo, class, record)

	return attendance.ConfirmAttendanceResponse{
		Message:              "Attendance recorded successfully",
		AttendanceID:         record.ID,
		TotalFacesDetected:   record.TotalFacesDetected,
		TotalFacesRecognized: record.TotalFacesRecognized,
		StudentsMarked:       len(present),
		StudentsList:         present,
	}, nil
}

func (s *attendanceService) notifyMarked(ctx context.Context, repo attendanceRepository.Client, class entity.Class, record entity.AttendanceRecord) {
	if s.notifier == nil || len(record.StudentsPresent) == 0 {
		return
	}
	requestID := contextPkg.GetRequestID(ctx)

	userIDs, err := repo.Students.UserIDsByStudentIDs(ctx, record.StudentsPresent)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Skipping attendance notifications")
		return
	}

	delivered := 0
	for _, studentID := range record.StudentsPresent {
		userID, ok := userIDs[studentID]
		if !ok {
			continue
		}
		delivered += s.notifier.Deliver(attendance.AttendanceMarkedNotification{
			Type:         attendanceMarkedType,
			AttendanceID: record.ID,
			ClassID:      class.ID,
			ClassName:    class.Name,
			StudentID:    studentID,
			Method:       string(record.Method),
			MarkedAt:     record.CreatedAt,
		}, userID)
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"class_id":    class.ID,
		"connections": delivered,
	}).Debug("Attendance notifications delivered")
}
