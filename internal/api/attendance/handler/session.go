package attendanceHandler

import (
	"AttendanceBackend/internal/api/attendance"
	attendanceService "AttendanceBackend/internal/api/attendance/service"
	"AttendanceBackend/internal/entity"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	stopCloseReason     = "Stop detection requested"
	shutdownCloseReason = "Server shutting down"
	controlWriteTimeout = time.Second
)

// StreamConn is the part of a websocket connection a session drives. Reads
// happen on one goroutine, writes on another.
type StreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type sessionState int

const (
	stateAccepting sessionState = iota
	stateActive
	stateStopping
	stateClosed
	stateErrored
)

func (s sessionState) String() string {
	switch s {
	case stateAccepting:
		return "accepting"
	case stateActive:
		return "active"
	case stateStopping:
		return "stopping"
	case stateClosed:
		return "closed"
	default:
		return "errored"
	}
}

type sessionCounters struct {
	Received  int
	Processed int
	WithFaces int
	Drained   int
}

type sessionSummary struct {
	State    sessionState
	Counters sessionCounters
}

type inbound struct {
	data []byte
	err  error
}

type receiveOutcome int

const (
	receivedMessage receiveOutcome = iota
	receiveTimedOut
	receiveCancelled
)

// session owns one streaming connection. Only the goroutine running run
// touches counters, state and roster.
type session struct {
	id             string
	class          entity.Class
	roster         entity.Roster
	conn           StreamConn
	service        attendanceService.IAttendanceService
	log            *logrus.Entry
	receiveTimeout time.Duration
	writeTimeout   time.Duration

	state    sessionState
	counters sessionCounters
	frameNo  int

	stopRequested atomic.Bool
	inbox         chan inbound
	done          chan struct{}
	pumpDone      chan struct{}
	releaseOnce   sync.Once
}

func newSession(id string, conn StreamConn, service attendanceService.IAttendanceService, log *logrus.Entry, receiveTimeout, writeTimeout time.Duration) *session {
	return &session{
		id:             id,
		conn:           conn,
		service:        service,
		log:            log,
		receiveTimeout: receiveTimeout,
		writeTimeout:   writeTimeout,
		state:          stateAccepting,
		inbox:          make(chan inbound),
		done:           make(chan struct{}),
		pumpDone:       make(chan struct{}),
	}
}

// RequestStop asks the session to wind down at its next receive timeout.
// Safe to call from any goroutine.
func (s *session) RequestStop() {
	s.stopRequested.Store(true)
}

// reject closes a session that never became active.
func (s *session) reject(reason string) sessionSummary {
	s.log.WithField("reason", reason).Warn("Rejecting attendance stream")
	s.closeWith(websocket.ClosePolicyViolation, reason)
	s.state = stateErrored
	if err := s.conn.Close(); err != nil {
		s.log.WithError(err).Debug("Close after rejection failed")
	}
	return sessionSummary{State: s.state, Counters: s.counters}
}

// turnAway closes a session that arrived after shutdown began.
func (s *session) turnAway() sessionSummary {
	s.log.Info("Server shutting down, turning attendance stream away")
	s.closeWith(websocket.CloseGoingAway, shutdownCloseReason)
	s.state = stateClosed
	if err := s.conn.Close(); err != nil {
		s.log.WithError(err).Debug("Close after turning away failed")
	}
	return sessionSummary{State: s.state, Counters: s.counters}
}

func (s *session) run(ctx context.Context, class entity.Class, roster entity.Roster) sessionSummary {
	s.class = class
	s.roster = roster
	s.state = stateActive

	go s.pump()
	defer s.release()

	for s.state == stateActive {
		if s.stopRequested.Load() {
			s.log.Info("Stop requested by server")
			s.closeWith(websocket.CloseGoingAway, shutdownCloseReason)
			s.state = stateStopping
			break
		}

		in, outcome := s.receive(ctx)
		switch outcome {
		case receiveTimedOut:
			continue
		case receiveCancelled:
			s.log.Info("Session context cancelled")
			s.state = stateErrored
			continue
		}

		if in.err != nil {
			s.logReadError(in.err)
			s.state = stateClosed
			continue
		}

		s.counters.Received++
		s.handle(ctx, attendance.ParseStreamMessage(in.data))
	}

	if s.state == stateStopping {
		s.drain(ctx)
		s.state = stateClosed
	}

	return sessionSummary{State: s.state, Counters: s.counters}
}

func (s *session) handle(ctx context.Context, msg attendance.StreamMessage) {
	switch msg.Kind {
	case attendance.KindMalformed:
		s.log.WithFields(logrus.Fields{
			"message": s.counters.Received,
			"error":   msg.Err.Error(),
		}).Warn("Skipping malformed message")

	case attendance.KindEmpty:
		s.log.WithField("message", s.counters.Received).Debug("Skipping message without image")

	case attendance.KindStop:
		s.log.WithFields(s.counterFields()).Info("Stop message received")
		if err := s.send(attendance.NewStopAcknowledgement()); err != nil {
			s.log.WithError(err).Warn("Could not send stop acknowledgement")
		}
		s.closeWith(websocket.CloseNormalClosure, stopCloseReason)
		s.state = stateStopping

	case attendance.KindFrame:
		s.processFrame(ctx, msg.Image)
	}
}

func (s *session) processFrame(ctx context.Context, image []byte) {
	s.frameNo++

	frame, err := s.service.DecodeFrame(image)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"frame": s.frameNo,
			"error": err.Error(),
		}).Warn("Skipping undecodable frame")
		return
	}
	s.counters.Processed++

	analysis := s.service.AnalyzeFrame(ctx, frame, s.roster)
	if analysis.Result.TotalDetected > 0 {
		s.counters.WithFaces++
	}
	s.service.CaptureDebugFrame(s.class.ID, s.frameNo, analysis)

	if err := s.send(attendance.NewRecognitionMessage(analysis)); err != nil {
		s.log.WithFields(logrus.Fields{
			"frame": s.frameNo,
			"error": err.Error(),
		}).Error("Error sending recognition result")
		if isConnectionClosed(err) {
			s.state = stateClosed
		} else {
			s.state = stateErrored
		}
	}
}

// send writes v, giving up after writeTimeout so a stalled peer cannot hold
// the session open.
func (s *session) send(v interface{}) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// receive waits at most receiveTimeout for the next message.
func (s *session) receive(ctx context.Context) (inbound, receiveOutcome) {
	timer := time.NewTimer(s.receiveTimeout)
	defer timer.Stop()

	select {
	case in, ok := <-s.inbox:
		if !ok {
			return inbound{err: net.ErrClosed}, receivedMessage
		}
		return in, receivedMessage
	case <-timer.C:
		return inbound{}, receiveTimedOut
	case <-ctx.Done():
		return inbound{}, receiveCancelled
	}
}

// drain discards frames the client sent before it saw the stop.
func (s *session) drain(ctx context.Context) {
	for {
		in, outcome := s.receive(ctx)
		if outcome != receivedMessage || in.err != nil {
			break
		}
		s.counters.Drained++
	}
	if s.counters.Drained > 0 {
		s.log.WithField("drained", s.counters.Drained).Info("Drained queued messages without processing")
	}
}

// pump forwards reads to the session loop until the connection fails or the
// session is released.
func (s *session) pump() {
	defer close(s.pumpDone)
	defer close(s.inbox)

	for {
		_, data, err := s.conn.ReadMessage()
		select {
		case s.inbox <- inbound{data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *session) release() {
	s.releaseOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.log.WithError(err).Debug("Connection already closed")
		}
		<-s.pumpDone

		fields := s.counterFields()
		fields["state"] = s.state.String()
		fields["drained"] = s.counters.Drained
		s.log.WithFields(fields).Info("Attendance stream finished")
	})
}

func (s *session) closeWith(code int, reason string) {
	err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(controlWriteTimeout))
	if err != nil && !isConnectionClosed(err) {
		s.log.WithError(err).Warn("Error closing websocket")
	}
}

func (s *session) logReadError(err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.log.Info("Client disconnected")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.log.WithError(err).Warn("Client closed the stream unexpectedly")
	default:
		s.log.WithError(err).Warn("Stream read failed")
	}
}

func (s *session) counterFields() logrus.Fields {
	return logrus.Fields{
		"received":   s.counters.Received,
		"processed":  s.counters.Processed,
		"with_faces": s.counters.WithFaces,
	}
}

// isConnectionClosed reports whether a write failed because the peer is gone.
// A write that hit its deadline counts as gone.
func isConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"close", "disconnect", "broken pipe", "reset by peer", "i/o timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
