package entity

import "time"

type Class struct {
	ID               string
	Name             string
	Code             string
	FacultyID        string
	EnrolledStudents []string
	CreatedAt        time.Time
}

// IsEnrolled reports whether studentID belongs to the class roster.
func (c Class) IsEnrolled(studentID string) bool {
	for _, id := range c.EnrolledStudents {
		if id == studentID {
			return true
		}
	}
	return false
}

type AttendanceMethod string

const (
	AttendanceMethodAuto   AttendanceMethod = "auto"
	AttendanceMethodManual AttendanceMethod = "manual"
)

type AttendanceRecord struct {
	ID                   string
	ClassID              string
	Date                 time.Time
	StudentsPresent      []string
	Method               AttendanceMethod
	MarkedBy             string
	TotalFacesDetected   int
	TotalFacesRecognized int
	CreatedAt            time.Time
}
