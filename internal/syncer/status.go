package syncer

import "time"

// Role identifies one context participating in a session's sync channel.
type Role string

const (
	RoleHost         Role = "host"
	RolePresentation Role = "presentation"
	RoleDisplay      Role = "display"
)

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// ConnectionState is the tuple reported to status subscribers. Subscribers
// are notified only when Status or Reason changes; Latency updates silently.
type ConnectionState struct {
	Status  ConnectionStatus
	Latency time.Duration
	Reason  string
}

func (s ConnectionState) changed(other ConnectionState) bool {
	return s.Status != other.Status || s.Reason != other.Reason
}

func sessionChannelName(sessionId string) string {
	return "readyornot:session:" + sessionId + ":sync"
}
