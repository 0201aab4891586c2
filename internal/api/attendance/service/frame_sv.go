package attendanceService

import (
	"AttendanceBackend/internal/api/attendance"
	"AttendanceBackend/internal/entity"
	"AttendanceBackend/pkg/imaging"
	"fmt"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const debugFrameWarmup = 5

func (s *attendanceService) DecodeFrame(image []byte) (*entity.Frame, error) {
	frame, err := imaging.DecodeFrame(image)
	if err != nil {
		return nil, err
	}
	if !frame.IsColor() {
		return nil, fmt.Errorf("decoded frame is not 3-channel: %d channels", frame.Channels)
	}
	return &frame, nil
}

// AnalyzeFrame recognizes faces in frame and renders the annotated copy sent
// back to the client.
func (s *attendanceService) AnalyzeFrame(ctx context.Context, frame *entity.Frame, roster entity.Roster) attendance.FrameAnalysis {
	analysis := attendance.FrameAnalysis{
		Result: s.recognizer.Recognize(ctx, frame, roster),
	}
	if frame == nil {
		return analysis
	}

	annotated := imaging.Annotate(*frame, analysis.Result.Detections)
	encoded, err := imaging.EncodeJPEG(annotated, imaging.DefaultJPEGQuality)
	if err != nil {
		s.log.WithError(err).Error("Failed to encode annotated frame")
		return analysis
	}
	analysis.AnnotatedFrame = encoded

	return analysis
}

// CaptureDebugFrame uploads the annotated frame for offline inspection. Only
// frames with faces are kept, and after the warmup only those with detections.
func (s *attendanceService) CaptureDebugFrame(classID string, frameNo int, analysis attendance.FrameAnalysis) {
	if !s.debugFrames || s.s3 == nil {
		return
	}
	if analysis.Result.TotalDetected == 0 || len(analysis.AnnotatedFrame) == 0 {
		return
	}
	if frameNo > debugFrameWarmup && len(analysis.Result.Detections) == 0 {
		return
	}

	key := fmt.Sprintf("debug_frames/frame_%d_detected_%s.jpg", frameNo, classID)
	location, err := s.s3.PutObject(key, analysis.AnnotatedFrame, "image/jpeg")
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"class_id": classID,
			"frame":    frameNo,
			"error":    err.Error(),
		}).Warn("Failed to store debug frame")
		return
	}

	s.log.WithFields(logrus.Fields{
		"class_id": classID,
		"frame":    frameNo,
		"location": location,
	}).Debug("Stored debug frame")
}
