package connection

// Conn is the write surface kept per team device. The repo never reads from a
// device; it only pushes events and closes. Implementations must serialize
// WriteJSON, because the relay fan-out and the device's own read-loop replies
// share the connection.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}
