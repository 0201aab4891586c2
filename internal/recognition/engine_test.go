package recognition

import (
	"AttendanceBackend/internal/entity"
	"errors"
	"golang.org/x/net/context"
	"io"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
)

type stubModel struct {
	locations   []entity.FaceLocation
	vectors     []entity.FeatureVector
	locateErr   error
	encodeErr   error
	panicOn     string
	seenOrder   entity.ChannelOrder
	locateCalls int
	encodeCalls int
}

func (s *stubModel) Locate(ctx context.Context, frame entity.Frame) ([]entity.FaceLocation, error) {
	s.locateCalls++
	s.seenOrder = frame.Order
	if s.panicOn == "locate" {
		panic("detector blew up")
	}
	if s.locateErr != nil {
		return nil, s.locateErr
	}
	return s.locations, nil
}

func (s *stubModel) Encode(ctx context.Context, frame entity.Frame, locations []entity.FaceLocation) ([]entity.FeatureVector, error) {
	s.encodeCalls++
	if s.encodeErr != nil {
		return nil, s.encodeErr
	}
	if len(s.vectors) > len(locations) {
		return s.vectors[:len(locations)], nil
	}
	return s.vectors, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func colorFrame(width, height int) *entity.Frame {
	return &entity.Frame{
		Width:    width,
		Height:   height,
		Channels: 3,
		Order:    entity.ChannelOrderBGR,
		Pix:      make([]byte, width*height*3),
	}
}

func assertEmpty(t *testing.T, result entity.RecognitionResult) {
	t.Helper()
	if len(result.MatchedStudentIDs) != 0 || result.TotalDetected != 0 || result.TotalRecognized != 0 || len(result.Detections) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.MatchedStudentIDs == nil || result.Detections == nil {
		t.Fatal("empty result must carry non-nil slices so it encodes as []")
	}
}

func TestRecognizeRejectsUnusableFrames(t *testing.T) {
	gray := &entity.Frame{Width: 2, Height: 2, Channels: 1, Pix: make([]byte, 4)}
	short := &entity.Frame{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 5)}

	frames := map[string]*entity.Frame{
		"nil":          nil,
		"empty":        {},
		"single plane": gray,
		"truncated":    short,
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			model := &stubModel{locations: []entity.FaceLocation{{Top: 0, Right: 1, Bottom: 1, Left: 0}}}
			engine := New(model, quietLogger())

			assertEmpty(t, engine.Recognize(context.Background(), frame, entity.Roster{}))
			if model.locateCalls != 0 {
				t.Fatalf("detector must not run on an unusable frame")
			}
		})
	}
}

func TestRecognizeConvertsToRGBBeforeDetection(t *testing.T) {
	model := &stubModel{}
	engine := New(model, quietLogger())

	engine.Recognize(context.Background(), colorFrame(4, 4), entity.Roster{})

	if model.seenOrder != entity.ChannelOrderRGB {
		t.Fatalf("detector saw %s frame", model.seenOrder)
	}
}

func TestRecognizeEmptyRosterReportsUnknownFaces(t *testing.T) {
	model := &stubModel{
		locations: []entity.FaceLocation{
			{Top: 10, Right: 60, Bottom: 70, Left: 20},
			{Top: 5, Right: 30, Bottom: 40, Left: 8},
		},
	}
	engine := New(model, quietLogger())

	result := engine.Recognize(context.Background(), colorFrame(100, 100), entity.Roster{})

	if result.TotalDetected != 2 || result.TotalRecognized != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(result.Detections))
	}
	first := result.Detections[0]
	if first.X != 20 || first.Y != 10 || first.Width != 40 || first.Height != 60 {
		t.Fatalf("unexpected box: %+v", first)
	}
	for _, d := range result.Detections {
		if d.Recognized || d.StudentID != nil {
			t.Fatalf("expected unrecognized detection, got %+v", d)
		}
	}
	if model.encodeCalls != 0 {
		t.Fatal("encoder should not run without a roster to match against")
	}
}

func TestRecognizeMatchesClosestStudent(t *testing.T) {
	model := &stubModel{
		locations: []entity.FaceLocation{
			{Top: 0, Right: 50, Bottom: 50, Left: 0},
			{Top: 0, Right: 150, Bottom: 50, Left: 100},
		},
		vectors: []entity.FeatureVector{vectorAt(0), vectorAt(10)},
	}
	roster := entity.Roster{
		"alice": {vectorAt(0.3)},
		"bob":   {vectorAt(0.5)},
	}
	engine := New(model, quietLogger())

	result := engine.Recognize(context.Background(), colorFrame(200, 100), roster)

	if result.TotalDetected != 2 || result.TotalRecognized != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.MatchedStudentIDs) != 1 || result.MatchedStudentIDs[0] != "alice" {
		t.Fatalf("expected [alice], got %v", result.MatchedStudentIDs)
	}
	if !result.Detections[0].Recognized || *result.Detections[0].StudentID != "alice" {
		t.Fatalf("first face should be alice, got %+v", result.Detections[0])
	}
	if result.Detections[1].Recognized || result.Detections[1].StudentID != nil {
		t.Fatalf("second face should be unknown, got %+v", result.Detections[1])
	}
}

func TestRecognizeKeepsDuplicateMatches(t *testing.T) {
	model := &stubModel{
		locations: []entity.FaceLocation{
			{Top: 0, Right: 10, Bottom: 10, Left: 0},
			{Top: 0, Right: 30, Bottom: 10, Left: 20},
		},
		vectors: []entity.FeatureVector{vectorAt(0.1), vectorAt(0.2)},
	}
	roster := entity.Roster{"alice": {vectorAt(0)}}
	engine := New(model, quietLogger())

	result := engine.Recognize(context.Background(), colorFrame(40, 20), roster)

	if len(result.MatchedStudentIDs) != 2 || result.TotalRecognized != 2 {
		t.Fatalf("expected alice twice, got %v", result.MatchedStudentIDs)
	}
}

func TestRecognizeSkipsDegenerateBoxes(t *testing.T) {
	model := &stubModel{
		locations: []entity.FaceLocation{
			{Top: 10, Right: 10, Bottom: 20, Left: 10},
			{Top: 20, Right: 30, Bottom: 10, Left: 0},
			{Top: 0, Right: 10, Bottom: 10, Left: 0},
		},
		vectors: []entity.FeatureVector{vectorAt(0), vectorAt(0), vectorAt(0)},
	}
	roster := entity.Roster{"alice": {vectorAt(0)}}
	engine := New(model, quietLogger())

	result := engine.Recognize(context.Background(), colorFrame(40, 40), roster)

	if result.TotalDetected != 1 || len(result.Detections) != 1 {
		t.Fatalf("degenerate boxes must be neither counted nor emitted: %+v", result)
	}
	if result.Detections[0].Width != 10 {
		t.Fatalf("unexpected surviving box: %+v", result.Detections[0])
	}
}

func TestRecognizeToleratesMissingEncodings(t *testing.T) {
	model := &stubModel{
		locations: []entity.FaceLocation{
			{Top: 0, Right: 10, Bottom: 10, Left: 0},
			{Top: 0, Right: 30, Bottom: 10, Left: 20},
		},
		vectors: []entity.FeatureVector{vectorAt(0)},
	}
	roster := entity.Roster{"alice": {vectorAt(0)}}
	engine := New(model, quietLogger())

	result := engine.Recognize(context.Background(), colorFrame(40, 20), roster)

	if result.TotalDetected != 2 {
		t.Fatalf("expected both regions counted, got %d", result.TotalDetected)
	}
	if len(result.Detections) != 1 || result.TotalRecognized != 1 {
		t.Fatalf("only the encoded face should be emitted: %+v", result)
	}
}

func TestRecognizeSwallowsModelFailures(t *testing.T) {
	tests := map[string]*stubModel{
		"locate error": {locateErr: errors.New("detector down")},
		"encode error": {
			locations: []entity.FaceLocation{{Top: 0, Right: 10, Bottom: 10, Left: 0}},
			encodeErr: errors.New("encoder down"),
		},
		"panic": {panicOn: "locate"},
	}

	for name, model := range tests {
		t.Run(name, func(t *testing.T) {
			engine := New(model, quietLogger())
			roster := entity.Roster{"alice": {vectorAt(0)}}

			assertEmpty(t, engine.Recognize(context.Background(), colorFrame(20, 20), roster))
		})
	}
}

func TestRecognizeIsIdempotent(t *testing.T) {
	model := &stubModel{
		locations: []entity.FaceLocation{
			{Top: 0, Right: 10, Bottom: 10, Left: 0},
			{Top: 0, Right: 30, Bottom: 10, Left: 20},
		},
		vectors: []entity.FeatureVector{vectorAt(0.1), vectorAt(5.05)},
	}
	roster := entity.Roster{
		"alice": {vectorAt(0)},
		"bob":   {vectorAt(5)},
	}
	engine := New(model, quietLogger())
	frame := colorFrame(40, 20)

	first := engine.Recognize(context.Background(), frame, roster)
	second := engine.Recognize(context.Background(), frame, roster)

	if first.TotalDetected != second.TotalDetected || first.TotalRecognized != second.TotalRecognized {
		t.Fatalf("counts differ: %+v vs %+v", first, second)
	}
	a := append([]string(nil), first.MatchedStudentIDs...)
	b := append([]string(nil), second.MatchedStudentIDs...)
	sort.Strings(a)
	sort.Strings(b)
	if len(a) != len(b) {
		t.Fatalf("matched sets differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("matched sets differ: %v vs %v", a, b)
		}
	}
}

func TestEncodeFirstFace(t *testing.T) {
	model := &stubModel{
		locations: []entity.FaceLocation{{Top: 0, Right: 10, Bottom: 10, Left: 0}},
		vectors:   []entity.FeatureVector{vectorAt(1)},
	}
	engine := New(model, quietLogger())

	vector, ok, err := engine.EncodeFirstFace(context.Background(), colorFrame(20, 20))
	if err != nil || !ok {
		t.Fatalf("expected a vector, got ok=%v err=%v", ok, err)
	}
	if vector[0] != 1 {
		t.Fatalf("unexpected vector %v", vector)
	}

	_, ok, err = New(&stubModel{}, quietLogger()).EncodeFirstFace(context.Background(), colorFrame(20, 20))
	if err != nil || ok {
		t.Fatalf("expected no face, got ok=%v err=%v", ok, err)
	}
}
