package entity

import "time"

// FeatureVectorSize is the dimension of descriptors produced by the face model.
const FeatureVectorSize = 128

// FeatureVector is one face's identity signature computed from a single image.
type FeatureVector []float32

// Roster maps a student id to that student's stored vectors. Students without
// vectors are never keys.
type Roster map[string][]FeatureVector

func (r Roster) StudentCount() int {
	return len(r)
}

func (r Roster) VectorCount() int {
	total := 0
	for _, vectors := range r {
		total += len(vectors)
	}
	return total
}

// FaceLocation is a face region as reported by the detector, in the
// (top, right, bottom, left) convention.
type FaceLocation struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func (l FaceLocation) Box() BoundingBox {
	return BoundingBox{
		X:      l.Left,
		Y:      l.Top,
		Width:  l.Right - l.Left,
		Height: l.Bottom - l.Top,
	}
}

type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (b BoundingBox) Degenerate() bool {
	return b.Width <= 0 || b.Height <= 0
}

type Detection struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	StudentID  *string `json:"student_id"`
	Recognized bool    `json:"recognized"`
}

func (d Detection) Label() string {
	if d.Recognized && d.StudentID != nil {
		return *d.StudentID
	}
	return "Unknown"
}

type RecognitionResult struct {
	MatchedStudentIDs []string
	TotalDetected     int
	TotalRecognized   int
	Detections        []Detection
}

func EmptyRecognitionResult() RecognitionResult {
	return RecognitionResult{
		MatchedStudentIDs: []string{},
		Detections:        []Detection{},
	}
}

type FaceEncoding struct {
	ID        string
	StudentID string
	Vector    FeatureVector
	ImageURL  string
	CreatedAt time.Time
}
