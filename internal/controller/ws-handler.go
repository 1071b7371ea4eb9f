package controller

import (
	"sync"

	"github.com/readyornot/sync-server/pkg/wsrouter"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// safeConn serializes writes: pushed events race with handler replies on the
// same socket otherwise. Reads stay on the single read loop and take no lock.
type safeConn struct {
	mu   sync.Mutex
	conn wsrouter.Conn
}

func newSafeConn(conn wsrouter.Conn) *safeConn {
	return &safeConn{conn: conn}
}

func (s *safeConn) ReadJSON(v any) error {
	return s.conn.ReadJSON(v)
}

func (s *safeConn) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeConn) Close() error {
	return s.conn.Close()
}
