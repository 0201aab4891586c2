package attendanceHandler

import (
	"AttendanceBackend/internal/api/attendance"
	"AttendanceBackend/internal/entity"
	"errors"
	"golang.org/x/net/context"
	"io"
	"mime/multipart"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	testClassID        = "01HZX3F7Q2M8V6N4K1B9C0D5EA"
	testReceiveTimeout = 150 * time.Millisecond
)

type fakeRead struct {
	data []byte
	err  error
}

type controlFrame struct {
	code   int
	reason string
}

type fakeConn struct {
	incoming chan fakeRead

	mu       sync.Mutex
	written  []interface{}
	controls []controlFrame
	writeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn(reads ...fakeRead) *fakeConn {
	c := &fakeConn{
		incoming: make(chan fakeRead, len(reads)+8),
		closed:   make(chan struct{}),
	}
	for _, r := range reads {
		c.incoming <- r
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-c.incoming:
		if r.err != nil {
			return 0, nil, r.err
		}
		return websocket.TextMessage, r.data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.controls = append(c.controls, controlFrame{
			code:   int(data[0])<<8 | int(data[1]),
			reason: string(data[2:]),
		})
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) snapshot() ([]interface{}, []controlFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.written...), append([]controlFrame(nil), c.controls...)
}

// stalledConn never finishes a data write before its deadline, like a peer
// that stopped reading.
type stalledConn struct {
	*fakeConn

	deadlineMu   sync.Mutex
	deadline     time.Time
	writeStarted chan struct{}
	startOnce    sync.Once
}

func newStalledConn(reads ...fakeRead) *stalledConn {
	return &stalledConn{fakeConn: newFakeConn(reads...), writeStarted: make(chan struct{})}
}

func (c *stalledConn) SetWriteDeadline(t time.Time) error {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()
	c.deadline = t
	return nil
}

func (c *stalledConn) WriteJSON(v interface{}) error {
	c.startOnce.Do(func() { close(c.writeStarted) })

	c.deadlineMu.Lock()
	deadline := c.deadline
	c.deadlineMu.Unlock()

	var expired <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-expired:
		return &net.OpError{Op: "write", Net: "tcp", Err: os.ErrDeadlineExceeded}
	case <-c.closed:
		return net.ErrClosed
	}
}

func text(s string) fakeRead {
	return fakeRead{data: []byte(s)}
}

func clientClose() fakeRead {
	return fakeRead{err: &fastws.CloseError{Code: fastws.CloseNormalClosure}}
}

// stubService treats the bytes "bad" as undecodable and reports no faces.
type stubService struct {
	mu        sync.Mutex
	openErr   error
	roster    entity.Roster
	analyzed  int
	debugSeen []int
}

func (s *stubService) OpenSession(ctx context.Context, classID string) (entity.Class, entity.Roster, error) {
	if s.openErr != nil {
		return entity.Class{}, nil, s.openErr
	}
	return entity.Class{ID: classID}, s.roster, nil
}

func (s *stubService) LoadRoster(ctx context.Context, studentIDs []string) (entity.Roster, error) {
	return s.roster, nil
}

func (s *stubService) DecodeFrame(image []byte) (*entity.Frame, error) {
	if string(image) == "bad" {
		return nil, errors.New("undecodable")
	}
	return &entity.Frame{Width: 1, Height: 1, Channels: 3, Pix: []byte{1, 2, 3}}, nil
}

func (s *stubService) AnalyzeFrame(ctx context.Context, frame *entity.Frame, roster entity.Roster) attendance.FrameAnalysis {
	s.mu.Lock()
	s.analyzed++
	s.mu.Unlock()
	return attendance.FrameAnalysis{Result: entity.EmptyRecognitionResult(), AnnotatedFrame: []byte{0xFF, 0xD8}}
}

func (s *stubService) CaptureDebugFrame(classID string, frameNo int, analysis attendance.FrameAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugSeen = append(s.debugSeen, frameNo)
}

func (s *stubService) ConfirmAttendance(ctx context.Context, user entity.UserLoginData, classID string, req attendance.ConfirmAttendanceRequest) (attendance.ConfirmAttendanceResponse, error) {
	return attendance.ConfirmAttendanceResponse{AttendanceID: "att-1", StudentsMarked: len(req.StudentIDs), StudentsList: req.StudentIDs}, nil
}

func (s *stubService) EnrollFaces(ctx context.Context, studentID string, images []*multipart.FileHeader) (attendance.EnrollFacesResponse, error) {
	return attendance.EnrollFacesResponse{TotalImages: len(images)}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHandler(service *stubService) *AttendanceHandler {
	return &AttendanceHandler{
		log:               quietLogger(),
		attendanceService: service,
		sessions:          newSessionTracker(),
		receiveTimeout:    testReceiveTimeout,
		writeTimeout:      time.Second,
		readLimit:         defaultStreamReadLimit,
	}
}

func runWithDeadline(t *testing.T, fn func() sessionSummary) sessionSummary {
	t.Helper()
	done := make(chan sessionSummary, 1)
	go func() { done <- fn() }()
	select {
	case summary := <-done:
		return summary
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return sessionSummary{}
	}
}

func TestStreamStopAcknowledgesAndDrains(t *testing.T) {
	frame := `{"image":"aGk="}`
	conn := newFakeConn(text(frame), text(frame), text(frame), text(`{"action":"stop"}`), text(frame))
	service := &stubService{}
	h := newTestHandler(service)

	summary := runWithDeadline(t, func() sessionSummary { return h.serveStream(conn, testClassID) })

	written, controls := conn.snapshot()
	if len(written) != 4 {
		t.Fatalf("expected 3 results and 1 acknowledgement, got %d messages", len(written))
	}
	for i := 0; i < 3; i++ {
		msg, ok := written[i].(attendance.RecognitionMessage)
		if !ok {
			t.Fatalf("message %d should be a recognition result, got %T", i, written[i])
		}
		if msg.TotalFacesDetected != 0 || len(msg.FaceDetections) != 0 {
			t.Fatalf("message %d should report no faces, got %+v", i, msg)
		}
		if msg.AnnotatedFrame == "" {
			t.Fatalf("message %d should carry the annotated frame", i)
		}
	}
	ack, ok := written[3].(attendance.StopAcknowledgement)
	if !ok || ack.Status != "stopped" || ack.Message != "Processing stopped" {
		t.Fatalf("unexpected acknowledgement %#v", written[3])
	}

	if len(controls) != 1 || controls[0].code != websocket.CloseNormalClosure || controls[0].reason != "Stop detection requested" {
		t.Fatalf("expected one normal closure, got %+v", controls)
	}

	if summary.State != stateClosed {
		t.Fatalf("expected closed state, got %s", summary.State)
	}
	if summary.Counters.Processed != 3 || summary.Counters.Received != 4 || summary.Counters.Drained != 1 {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	if service.analyzed != 3 {
		t.Fatalf("frames after stop must not be analyzed, got %d", service.analyzed)
	}
	if h.sessions.active() != 0 {
		t.Fatal("finished session should be untracked")
	}
}

func TestStreamSkipsMalformedMessages(t *testing.T) {
	conn := newFakeConn(text("this is not json"), text(`{"image":"aGk="}`), clientClose())
	h := newTestHandler(&stubService{})

	summary := runWithDeadline(t, func() sessionSummary { return h.serveStream(conn, testClassID) })

	written, controls := conn.snapshot()
	if len(written) != 1 {
		t.Fatalf("expected exactly one response, got %d", len(written))
	}
	if _, ok := written[0].(attendance.RecognitionMessage); !ok {
		t.Fatalf("expected a recognition result, got %T", written[0])
	}
	if len(controls) != 0 {
		t.Fatalf("client close should not trigger a server close frame, got %+v", controls)
	}
	if summary.State != stateClosed || summary.Counters.Received != 2 || summary.Counters.Processed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestStreamCountsOnlyDecodableFrames(t *testing.T) {
	conn := newFakeConn(
		text(`{"image":""}`),
		text(`{"other":true}`),
		text(`{"image":"!!!"}`),
		text(`{"image":"YmFk"}`),
		text(`{"image":"aGk="}`),
		clientClose(),
	)
	service := &stubService{}
	h := newTestHandler(service)

	summary := runWithDeadline(t, func() sessionSummary { return h.serveStream(conn, testClassID) })

	if summary.Counters.Received != 5 || summary.Counters.Processed != 1 {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
	written, _ := conn.snapshot()
	if len(written) != 1 {
		t.Fatalf("expected one response, got %d", len(written))
	}
	if len(service.debugSeen) != 1 || service.debugSeen[0] != 2 {
		t.Fatalf("debug sink should see the second decoded-image frame, got %v", service.debugSeen)
	}
}

func TestStreamRejectsUnknownClass(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"invalid id", attendance.ErrInvalidClassID, "Invalid class ID"},
		{"not found", attendance.ErrClassNotFound, "Class not found"},
		{"store failure", errors.New("dial tcp: refused"), "Connection failed: dial tcp: refused"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := newFakeConn()
			h := newTestHandler(&stubService{openErr: tc.err})

			summary := runWithDeadline(t, func() sessionSummary { return h.serveStream(conn, "whatever") })

			_, controls := conn.snapshot()
			if len(controls) != 1 || controls[0].code != websocket.ClosePolicyViolation || controls[0].reason != tc.reason {
				t.Fatalf("expected policy violation %q, got %+v", tc.reason, controls)
			}
			if summary.State != stateErrored {
				t.Fatalf("expected errored state, got %s", summary.State)
			}
			select {
			case <-conn.closed:
			default:
				t.Fatal("rejected connection should be closed")
			}
		})
	}
}

func TestStreamEndsWhenPeerIsGone(t *testing.T) {
	conn := newFakeConn(text(`{"image":"aGk="}`), text(`{"image":"aGk="}`))
	conn.writeErr = errors.New("websocket: close sent")
	service := &stubService{}
	h := newTestHandler(service)

	summary := runWithDeadline(t, func() sessionSummary { return h.serveStream(conn, testClassID) })

	if summary.State != stateClosed {
		t.Fatalf("expected closed state, got %s", summary.State)
	}
	if service.analyzed != 1 {
		t.Fatalf("session should stop after the failed send, analyzed %d", service.analyzed)
	}
}

func TestStreamIdleSessionStopsOnShutdown(t *testing.T) {
	conn := newFakeConn()
	h := newTestHandler(&stubService{})

	done := make(chan sessionSummary, 1)
	go func() { done <- h.serveStream(conn, testClassID) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.sessions.active() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	summary := <-done
	if summary.State != stateClosed {
		t.Fatalf("expected closed state, got %s", summary.State)
	}
	_, controls := conn.snapshot()
	if len(controls) != 1 || controls[0].code != websocket.CloseGoingAway {
		t.Fatalf("expected a going-away close, got %+v", controls)
	}
}

func TestStreamStalledWriteDoesNotBlockShutdown(t *testing.T) {
	conn := newStalledConn(text(`{"image":"aGk="}`))
	h := newTestHandler(&stubService{})
	h.writeTimeout = 100 * time.Millisecond

	done := make(chan sessionSummary, 1)
	go func() { done <- h.serveStream(conn, testClassID) }()

	select {
	case <-conn.writeStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("session never sent a result")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown should not wait on a stalled peer: %v", err)
	}

	summary := <-done
	if summary.State != stateClosed {
		t.Fatalf("a timed out send means the peer is gone, got %s", summary.State)
	}
	if summary.Counters.Processed != 1 {
		t.Fatalf("unexpected counters %+v", summary.Counters)
	}
}

func TestStreamTurnedAwayOnceShutdownBegins(t *testing.T) {
	service := &stubService{}
	h := newTestHandler(service)
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	conn := newFakeConn(text(`{"image":"aGk="}`))
	summary := runWithDeadline(t, func() sessionSummary { return h.serveStream(conn, testClassID) })

	written, controls := conn.snapshot()
	if len(written) != 0 || service.analyzed != 0 {
		t.Fatalf("a late stream must not be served, wrote %d, analyzed %d", len(written), service.analyzed)
	}
	if len(controls) != 1 || controls[0].code != websocket.CloseGoingAway || controls[0].reason != "Server shutting down" {
		t.Fatalf("expected a going-away close, got %+v", controls)
	}
	if summary.State != stateClosed {
		t.Fatalf("expected closed state, got %s", summary.State)
	}
	if h.sessions.active() != 0 {
		t.Fatal("a turned away session must not be tracked")
	}
	select {
	case <-conn.closed:
	default:
		t.Fatal("turned away connection should be closed")
	}
}

func TestIsConnectionClosed(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{net.ErrClosed, true},
		{errors.New("write tcp: broken pipe"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("websocket: close sent"), true},
		{os.ErrDeadlineExceeded, true},
		{&net.OpError{Op: "write", Net: "tcp", Err: os.ErrDeadlineExceeded}, true},
		{errors.New("json: unsupported value"), false},
	}
	for _, tc := range cases {
		if got := isConnectionClosed(tc.err); got != tc.want {
			t.Errorf("isConnectionClosed(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
