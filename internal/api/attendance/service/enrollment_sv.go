package attendanceService

import (
	"AttendanceBackend/internal/api/attendance"
	"AttendanceBackend/internal/entity"
	contextPkg "AttendanceBackend/pkg/context"
	"AttendanceBackend/pkg/response"
	"AttendanceBackend/pkg/utils"
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
	"io"
	"mime/multipart"
	"time"
)

const enrollmentWorkers = 4

type enrolledImage struct {
	vector   entity.FeatureVector
	imageURL string
}

// EnrollFaces replaces a student's stored vectors with one vector per image
// in which a face was found.
func (s *attendanceService) EnrollFaces(ctx context.Context, studentID string, images []*multipart.FileHeader) (attendance.EnrollFacesResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(images) == 0 {
		return attendance.EnrollFacesResponse{}, attendance.ErrNoImages
	}

	for _, image := range images {
		if err := s.utils.ValidateImageFile(image); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"student_id": studentID,
				"error":      err.Error(),
			}).Warn("Rejected enrollment image")
			if errors.Is(err, utils.ErrFileTooLarge) {
				return attendance.EnrollFacesResponse{}, attendance.ErrFileTooLarge
			}
			return attendance.EnrollFacesResponse{}, attendance.ErrInvalidFileType
		}
	}

	repo, err := s.attendanceRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return attendance.EnrollFacesResponse{}, err
	}

	exists, err := repo.Students.Exists(ctx, studentID)
	if err != nil {
		return attendance.EnrollFacesResponse{}, err
	}
	if !exists {
		return attendance.EnrollFacesResponse{}, attendance.ErrStudentNotFound
	}

	results := make([]*enrolledImage, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrollmentWorkers)

	for i, image := range images {
		g.Go(func() error {
			enrolled, err := s.enrollImage(gctx, studentID, image)
			if err != nil {
				return err
			}
			results[i] = enrolled
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"student_id": studentID,
			"error":      err.Error(),
		}).Error("Enrollment failed")
		return attendance.EnrollFacesResponse{}, err
	}

	now := time.Now()
	encodings := make([]entity.FaceEncoding, 0, len(images))
	for _, enrolled := range results {
		if enrolled == nil {
			continue
		}
		id, err := s.utils.NewULIDFromTimestamp(now)
		if err != nil {
			return attendance.EnrollFacesResponse{}, attendance.ErrInternalServerError
		}
		encodings = append(encodings, entity.FaceEncoding{
			ID:        id,
			StudentID: studentID,
			Vector:    enrolled.vector,
			ImageURL:  enrolled.imageURL,
			CreatedAt: now,
		})
	}

	if len(encodings) == 0 {
		return attendance.EnrollFacesResponse{}, attendance.ErrNoFaceFound
	}

	if err := s.replaceVectors(ctx, studentID, encodings); err != nil {
		return attendance.EnrollFacesResponse{}, err
	}

	if s.cache != nil {
		if err := s.cache.DeleteFaceVectors(ctx, studentID); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"student_id": studentID,
				"error":      err.Error(),
			}).Warn("Failed to invalidate cached face vectors")
		}
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"student_id": studentID,
		"images":     len(images),
		"encodings":  len(encodings),
	}).Info("Face data enrolled")

	return attendance.EnrollFacesResponse{
		Message:         "Face data uploaded and trained successfully",
		ImagesProcessed: len(encodings),
		TotalImages:     len(images),
		FacesDetected:   len(encodings),
	}, nil
}

// enrollImage returns nil without error when the image holds no usable face.
func (s *attendanceService) enrollImage(ctx context.Context, studentID string, image *multipart.FileHeader) (*enrolledImage, error) {
	data, err := readFile(image)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", image.Filename, err)
	}

	location, err := s.s3.UploadFile(image, fmt.Sprintf("faces/%s/", studentID))
	if err != nil {
		return nil, response.Wrap(attendance.ErrFailedToUploadFile, "upload %s: %v", image.Filename, err)
	}

	frame, err := s.DecodeFrame(data)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"student_id": studentID,
			"file":       image.Filename,
			"error":      err.Error(),
		}).Warn("Enrollment image could not be decoded")
		return nil, nil
	}

	vector, ok, err := s.recognizer.EncodeFirstFace(ctx, frame)
	if err != nil {
		return nil, response.Wrap(attendance.ErrFaceModelFailure, "encode %s: %v", image.Filename, err)
	}
	if !ok {
		s.log.WithFields(logrus.Fields{
			"student_id": studentID,
			"file":       image.Filename,
		}).Info("No face found in enrollment image")
		return nil, nil
	}

	return &enrolledImage{vector: vector, imageURL: location}, nil
}

func (s *attendanceService) replaceVectors(ctx context.Context, studentID string, encodings []entity.FaceEncoding) (err error) {
	repo, err := s.attendanceRepository.NewClient(true)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := repo.Rollback(); rbErr != nil {
				s.log.WithError(rbErr).Error("Failed to roll back face encodings")
			}
		}
	}()

	if err = repo.Encodings.DeleteByStudentID(ctx, studentID); err != nil {
		return err
	}
	if err = repo.Encodings.SaveVectors(ctx, encodings); err != nil {
		return err
	}
	return repo.Commit()
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
