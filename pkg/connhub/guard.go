package connhub

import "sync"

// MessageWriter is the write side of a websocket connection.
type MessageWriter interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
}

// GuardedConn serializes writes to a websocket that is written to from more
// than one goroutine: the registry pushes while the read loop answers pings.
type GuardedConn struct {
	mu   sync.Mutex
	conn MessageWriter
}

func Guard(conn MessageWriter) *GuardedConn {
	return &GuardedConn{conn: conn}
}

func (g *GuardedConn) WriteJSON(v interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn.WriteJSON(v)
}

func (g *GuardedConn) WriteMessage(messageType int, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn.WriteMessage(messageType, data)
}
