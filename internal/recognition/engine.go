package recognition

import (
	"AttendanceBackend/internal/entity"
	"fmt"
	"golang.org/x/net/context"

	"github.com/sirupsen/logrus"
)

// Locator finds face regions in an RGB frame.
type Locator interface {
	Locate(ctx context.Context, frame entity.Frame) ([]entity.FaceLocation, error)
}

// Encoder computes one vector per located region of an RGB frame.
type Encoder interface {
	Encode(ctx context.Context, frame entity.Frame, locations []entity.FaceLocation) ([]entity.FeatureVector, error)
}

type FaceModel interface {
	Locator
	Encoder
}

type Engine struct {
	model FaceModel
	log   *logrus.Logger
}

func New(model FaceModel, log *logrus.Logger) *Engine {
	return &Engine{
		model: model,
		log:   log,
	}
}

// Recognize detects faces in frame and matches each against roster. Frames
// that are absent, empty or not 3-channel, and any model failure, yield the
// empty result.
func (e *Engine) Recognize(ctx context.Context, frame *entity.Frame, roster entity.Roster) (result entity.RecognitionResult) {
	result = entity.EmptyRecognitionResult()
	if frame == nil || !frame.IsColor() {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", fmt.Sprint(r)).Error("Face model panicked, dropping frame")
			result = entity.EmptyRecognitionResult()
		}
	}()

	rgb := frame.WithOrder(entity.ChannelOrderRGB)

	locations, err := e.model.Locate(ctx, rgb)
	if err != nil {
		e.log.WithError(err).Error("Failed to locate faces")
		return result
	}
	if len(locations) == 0 {
		return result
	}

	if len(roster) == 0 {
		return e.unrecognized(locations)
	}

	vectors, err := e.model.Encode(ctx, rgb, locations)
	if err != nil {
		e.log.WithError(err).Error("Failed to encode faces")
		return entity.EmptyRecognitionResult()
	}
	if len(vectors) != len(locations) {
		e.log.WithFields(logrus.Fields{
			"locations": len(locations),
			"encodings": len(vectors),
		}).Warn("Face encodings do not cover every located face")
	}

	for i, location := range locations {
		box := location.Box()
		if box.Degenerate() {
			continue
		}
		result.TotalDetected++
		if i >= len(vectors) {
			continue
		}

		detection := newDetection(box)
		if match, ok := BestMatch(vectors[i], roster); ok {
			studentID := match.StudentID
			detection.StudentID = &studentID
			detection.Recognized = true
			result.MatchedStudentIDs = append(result.MatchedStudentIDs, studentID)
		}
		result.Detections = append(result.Detections, detection)
	}
	result.TotalRecognized = len(result.MatchedStudentIDs)

	return result
}

// EncodeFirstFace returns the vector of the first face found in frame, used
// when enrolling a student from a still image.
func (e *Engine) EncodeFirstFace(ctx context.Context, frame *entity.Frame) (entity.FeatureVector, bool, error) {
	if frame == nil || !frame.IsColor() {
		return nil, false, nil
	}
	rgb := frame.WithOrder(entity.ChannelOrderRGB)

	locations, err := e.model.Locate(ctx, rgb)
	if err != nil {
		return nil, false, fmt.Errorf("locate faces: %w", err)
	}
	if len(locations) == 0 {
		return nil, false, nil
	}

	vectors, err := e.model.Encode(ctx, rgb, locations[:1])
	if err != nil {
		return nil, false, fmt.Errorf("encode face: %w", err)
	}
	if len(vectors) == 0 {
		return nil, false, nil
	}
	return vectors[0], true, nil
}

func (e *Engine) unrecognized(locations []entity.FaceLocation) entity.RecognitionResult {
	result := entity.EmptyRecognitionResult()
	for _, location := range locations {
		box := location.Box()
		if box.Degenerate() {
			continue
		}
		result.TotalDetected++
		result.Detections = append(result.Detections, newDetection(box))
	}
	return result
}

func newDetection(box entity.BoundingBox) entity.Detection {
	return entity.Detection{
		X:      box.X,
		Y:      box.Y,
		Width:  box.Width,
		Height: box.Height,
	}
}
