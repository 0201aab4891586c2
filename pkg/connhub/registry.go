package connhub

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Connection is anything a JSON message can be pushed to.
type Connection interface {
	WriteJSON(v interface{}) error
}

// Registry maps a subject (user) id to its live connections. One subject may
// hold several connections, one per device.
type Registry struct {
	mu       sync.RWMutex
	subjects map[string]map[Connection]struct{}
	log      *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		subjects: make(map[string]map[Connection]struct{}),
		log:      log,
	}
}

// Register adds conn under subjectID and returns how many connections the
// subject now has.
func (r *Registry) Register(conn Connection, subjectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.subjects[subjectID]
	if !ok {
		conns = make(map[Connection]struct{})
		r.subjects[subjectID] = conns
	}
	conns[conn] = struct{}{}

	r.log.WithFields(logrus.Fields{
		"subject_id":  subjectID,
		"connections": len(conns),
	}).Info("Connection registered")
	return len(conns)
}

func (r *Registry) Unregister(conn Connection, subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(conn, subjectID)
	r.log.WithField("subject_id", subjectID).Info("Connection unregistered")
}

func (r *Registry) removeLocked(conn Connection, subjectID string) {
	conns, ok := r.subjects[subjectID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.subjects, subjectID)
	}
}

// Deliver pushes message to every connection of subjectID. A connection whose
// write fails is dropped; the others still receive the message. It returns the
// number of successful deliveries.
func (r *Registry) Deliver(message interface{}, subjectID string) int {
	r.mu.RLock()
	targets := make([]Connection, 0, len(r.subjects[subjectID]))
	for conn := range r.subjects[subjectID] {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	var failed []Connection
	delivered := 0
	for _, conn := range targets {
		if err := conn.WriteJSON(message); err != nil {
			r.log.WithFields(logrus.Fields{
				"subject_id": subjectID,
				"error":      err.Error(),
			}).Warn("Dropping connection after failed delivery")
			failed = append(failed, conn)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		r.mu.Lock()
		for _, conn := range failed {
			r.removeLocked(conn, subjectID)
		}
		r.mu.Unlock()
	}

	return delivered
}

func (r *Registry) Connections(subjectID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subjects[subjectID])
}
