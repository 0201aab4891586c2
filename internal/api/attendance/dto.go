package attendance

import (
	"AttendanceBackend/internal/entity"
	"AttendanceBackend/pkg/utils"
	"encoding/base64"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const StopAction = "stop"

type MessageKind int

const (
	KindMalformed MessageKind = iota
	KindStop
	KindFrame
	KindEmpty
)

func (k MessageKind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindFrame:
		return "frame"
	case KindEmpty:
		return "empty"
	default:
		return "malformed"
	}
}

// StreamMessage is one client message after boundary decoding. Image is set
// only for KindFrame, Err only for KindMalformed.
type StreamMessage struct {
	Kind  MessageKind
	Image []byte
	Err   error
}

type streamPayload struct {
	Action *string `json:"action"`
	Image  *string `json:"image"`
}

// ParseStreamMessage classifies a raw client payload. Non-object JSON and bad
// base64 are malformed; an absent or empty image is empty.
func ParseStreamMessage(data []byte) StreamMessage {
	var payload streamPayload
	if err := jsoniter.Unmarshal(data, &payload); err != nil {
		return StreamMessage{Kind: KindMalformed, Err: err}
	}

	if payload.Action != nil && *payload.Action == StopAction {
		return StreamMessage{Kind: KindStop}
	}

	if payload.Image == nil || *payload.Image == "" {
		return StreamMessage{Kind: KindEmpty}
	}

	image, err := utils.DecodeBase64Image(*payload.Image)
	if err != nil {
		return StreamMessage{Kind: KindMalformed, Err: err}
	}
	if len(image) == 0 {
		return StreamMessage{Kind: KindEmpty}
	}

	return StreamMessage{Kind: KindFrame, Image: image}
}

type RecognitionMessage struct {
	RecognizedStudents   []string           `json:"recognized_students"`
	TotalFacesDetected   int                `json:"total_faces_detected"`
	TotalFacesRecognized int                `json:"total_faces_recognized"`
	FaceDetections       []entity.Detection `json:"face_detections"`
	AnnotatedFrame       string             `json:"annotated_frame,omitempty"`
}

func NewRecognitionMessage(analysis FrameAnalysis) RecognitionMessage {
	msg := RecognitionMessage{
		RecognizedStudents:   analysis.Result.MatchedStudentIDs,
		TotalFacesDetected:   analysis.Result.TotalDetected,
		TotalFacesRecognized: analysis.Result.TotalRecognized,
		FaceDetections:       analysis.Result.Detections,
	}
	if msg.RecognizedStudents == nil {
		msg.RecognizedStudents = []string{}
	}
	if msg.FaceDetections == nil {
		msg.FaceDetections = []entity.Detection{}
	}
	if len(analysis.AnnotatedFrame) > 0 {
		msg.AnnotatedFrame = base64.StdEncoding.EncodeToString(analysis.AnnotatedFrame)
	}
	return msg
}

type StopAcknowledgement struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewStopAcknowledgement() StopAcknowledgement {
	return StopAcknowledgement{
		Status:  "stopped",
		Message: "Processing stopped",
	}
}

// FrameAnalysis is the outcome of one decoded frame. AnnotatedFrame holds
// JPEG bytes and is nil when re-encoding failed.
type FrameAnalysis struct {
	Result         entity.RecognitionResult
	AnnotatedFrame []byte
}

type ConfirmAttendanceRequest struct {
	StudentIDs           []string `json:"student_ids" validate:"dive,required"`
	TotalFacesDetected   int      `json:"total_faces_detected" validate:"gte=0"`
	TotalFacesRecognized int      `json:"total_faces_recognized" validate:"gte=0"`
}

type ConfirmAttendanceResponse struct {
	Message              string   `json:"message"`
	AttendanceID         string   `json:"attendance_id"`
	TotalFacesDetected   int      `json:"total_faces_detected"`
	TotalFacesRecognized int      `json:"total_faces_recognized"`
	StudentsMarked       int      `json:"students_marked"`
	StudentsList         []string `json:"students_list"`
}

type AttendanceMarkedNotification struct {
	Type         string    `json:"type"`
	AttendanceID string    `json:"attendance_id"`
	ClassID      string    `json:"class_id"`
	ClassName    string    `json:"class_name"`
	StudentID    string    `json:"student_id"`
	Method       string    `json:"method"`
	MarkedAt     time.Time `json:"marked_at"`
}

type EnrollFacesResponse struct {
	Message         string `json:"message"`
	ImagesProcessed int    `json:"images_processed"`
	TotalImages     int    `json:"total_images"`
	FacesDetected   int    `json:"faces_detected"`
}
