package attendanceService

import (
	"AttendanceBackend/internal/api/attendance"
	attendanceRepository "AttendanceBackend/internal/api/attendance/repository"
	"AttendanceBackend/internal/entity"
	"AttendanceBackend/pkg/redis"
	"AttendanceBackend/pkg/s3"
	"AttendanceBackend/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"mime/multipart"
	"os"
)

type IAttendanceService interface {
	OpenSession(ctx context.Context, classID string) (entity.Class, entity.Roster, error)
	LoadRoster(ctx context.Context, studentIDs []string) (entity.Roster, error)
	DecodeFrame(image []byte) (*entity.Frame, error)
	AnalyzeFrame(ctx context.Context, frame *entity.Frame, roster entity.Roster) attendance.FrameAnalysis
	CaptureDebugFrame(classID string, frameNo int, analysis attendance.FrameAnalysis)
	ConfirmAttendance(ctx context.Context, user entity.UserLoginData, classID string, req attendance.ConfirmAttendanceRequest) (attendance.ConfirmAttendanceResponse, error)
	EnrollFaces(ctx context.Context, studentID string, images []*multipart.FileHeader) (attendance.EnrollFacesResponse, error)
}

// Recognizer is the recognition engine as seen by the service.
type Recognizer interface {
	Recognize(ctx context.Context, frame *entity.Frame, roster entity.Roster) entity.RecognitionResult
	EncodeFirstFace(ctx context.Context, frame *entity.Frame) (entity.FeatureVector, bool, error)
}

// Notifier pushes out-of-band messages to every live connection of a user.
type Notifier interface {
	Deliver(message interface{}, subjectID string) int
}

type attendanceService struct {
	log                  *logrus.Logger
	attendanceRepository attendanceRepository.Repository
	recognizer           Recognizer
	cache                redis.IRedis
	s3                   s3.ItfS3
	notifier             Notifier
	utils                utils.IUtils
	debugFrames          bool
}

type Option func(*attendanceService)

// WithDebugFrames overrides DEBUG_FRAMES_ENABLED.
func WithDebugFrames(enabled bool) Option {
	return func(s *attendanceService) {
		s.debugFrames = enabled
	}
}

func NewAttendanceService(
	log *logrus.Logger,
	ar attendanceRepository.Repository,
	recognizer Recognizer,
	cache redis.IRedis,
	s3 s3.ItfS3,
	notifier Notifier,
	utils utils.IUtils,
	opts ...Option,
) IAttendanceService {
	s := &attendanceService{
		log:                  log,
		attendanceRepository: ar,
		recognizer:           recognizer,
		cache:                cache,
		s3:                   s3,
		notifier:             notifier,
		utils:                utils,
		debugFrames:          os.Getenv("DEBUG_FRAMES_ENABLED") == "true",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
