package attendanceHandler

import (
	"sync"

	"golang.org/x/net/context"
)

// sessionTracker knows every live stream so shutdown can stop them.
type sessionTracker struct {
	mu       sync.Mutex
	sessions map[string]*session
	stopping bool
	wg       sync.WaitGroup
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{
		sessions: make(map[string]*session),
	}
}

// add tracks s. It refuses once stopAll has begun.
func (t *sessionTracker) add(s *session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopping {
		return false
	}
	t.sessions[s.id] = s
	t.wg.Add(1)
	return true
}

func (t *sessionTracker) remove(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[s.id]; !ok {
		return
	}
	delete(t.sessions, s.id)
	t.wg.Done()
}

func (t *sessionTracker) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// stopAll asks every session to stop and waits until they have finished or
// ctx expires.
func (t *sessionTracker) stopAll(ctx context.Context) error {
	t.mu.Lock()
	t.stopping = true
	for _, s := range t.sessions {
		s.RequestStop()
	}
	t.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
