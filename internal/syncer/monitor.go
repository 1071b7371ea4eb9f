package syncer

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/pkg/broadcast"
)

type MonitorConfig struct {
	ProbeInterval time.Duration
	ReplyTimeout  time.Duration
}

// DefaultMonitorConfig suits UI-liveness indication.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ProbeInterval: 3 * time.Second,
		ReplyTimeout:  5 * time.Second,
	}
}

// VideoMonitorConfig probes at a finer resolution for playback-sync needs.
func VideoMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ProbeInterval: 500 * time.Millisecond,
		ReplyTimeout:  5 * time.Second,
	}
}

// Monitor decides, from one role's perspective, whether the counterpart on
// the session channel is alive and at what latency. It probes on a fixed
// interval, answers the peer's probes immediately, and downgrades to
// disconnected when a probe goes unanswered past the reply timeout.
type Monitor struct {
	sessionId string
	role      Role
	ch        *broadcast.Channel
	clock     clockwork.Clock
	cfg       MonitorConfig
	logger    *slog.Logger

	mu          sync.Mutex
	state       ConnectionState
	subs        map[int]func(ConnectionState)
	nextSubId   int
	running     bool
	terminal    bool
	destroyed   bool
	stopCh      chan struct{}
	replyTimer  clockwork.Timer
	unsubscribe func()
}

func NewMonitor(sessionId string, role Role, ch *broadcast.Channel, clock clockwork.Clock, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	m := &Monitor{
		sessionId: sessionId,
		role:      role,
		ch:        ch,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		state:     ConnectionState{Status: StatusDisconnected},
		subs:      make(map[int]func(ConnectionState)),
	}
	m.unsubscribe = ch.Subscribe(m.handleMessage)

	return m
}

// Start begins the probe loop. Calling Start on a running, destroyed or
// terminated monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running || m.destroyed || m.terminal {
		m.mu.Unlock()
		return
	}
	m.running = true
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.mu.Unlock()

	go m.probeLoop(stopCh)
}

func (m *Monitor) probeLoop(stopCh chan struct{}) {
	ticker := m.clock.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			m.sendProbe()
		}
	}
}

// ForceHealthCheck sends one probe immediately without waiting for the
// interval.
func (m *Monitor) ForceHealthCheck() {
	m.sendProbe()
}

// ForceReconnect stops probing, resets status and restarts the loop.
func (m *Monitor) ForceReconnect() {
	m.mu.Lock()
	if m.destroyed || m.terminal {
		m.mu.Unlock()
		return
	}
	m.stopLocked()
	m.setStateLocked(StatusDisconnected, 0, "reconnecting")
	m.mu.Unlock()

	m.Start()
	m.sendProbe()
}

// ForceDisconnect marks the peer gone without waiting for a heartbeat
// timeout. Probing stops; only an explicit reconnect resumes it.
func (m *Monitor) ForceDisconnect(reason string) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.stopLocked()
	m.setStateLocked(StatusDisconnected, 0, reason)
	m.mu.Unlock()
}

func (m *Monitor) sendProbe() {
	m.mu.Lock()
	if m.destroyed || m.terminal {
		m.mu.Unlock()
		return
	}

	if m.state.Status == StatusDisconnected {
		m.setStateLocked(StatusConnecting, 0, "awaiting reply")
	}

	// The no-reply timeout is armed once per silence window: a reply clears
	// it, the next probe re-arms it.
	if m.replyTimer == nil {
		m.replyTimer = m.clock.AfterFunc(m.cfg.ReplyTimeout, m.onReplyTimeout)
	}

	now := m.clock.Now().UnixMilli()
	m.mu.Unlock()

	m.publish(&domain.StatusMessage{
		Type:      domain.MessageTypeStatus,
		SessionId: m.sessionId,
		Status:    domain.StatusPing,
		Role:      string(m.role),
		SentAt:    now,
		Timestamp: now,
	})
}

func (m *Monitor) onReplyTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.replyTimer = nil
	if m.destroyed || m.terminal {
		return
	}

	if m.state.Status != StatusDisconnected {
		m.setStateLocked(StatusDisconnected, 0, "peer unresponsive")
	}
}

func (m *Monitor) handleMessage(raw json.RawMessage) {
	var header domain.MessageHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		m.logger.Debug("undecodable sync message discarded", "error", err)
		return
	}
	if header.Type != domain.MessageTypeStatus {
		return
	}
	if header.SessionId != m.sessionId {
		m.logger.Debug("status for other session discarded", "session_id", header.SessionId)
		return
	}

	var msg domain.StatusMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.logger.Debug("undecodable status message discarded", "error", err)
		return
	}

	switch msg.Status {
	case domain.StatusPing:
		if msg.Role == string(m.role) {
			return
		}
		m.replyToProbe(&msg)
	case domain.StatusPong:
		// A pong carries the originating prober's role; accept only our own.
		if msg.Role != string(m.role) {
			return
		}
		m.onReply(&msg)
	case domain.StatusReady:
		if msg.Role == string(m.role) {
			return
		}
		m.onPeerReady()
	case domain.StatusDisconnect:
		if msg.Role == string(m.role) {
			return
		}
		m.onPeerDisconnect()
	case domain.StatusSessionEnded:
		m.onSessionEnded()
	}
}

func (m *Monitor) replyToProbe(probe *domain.StatusMessage) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now().UnixMilli()
	m.mu.Unlock()

	m.publish(&domain.StatusMessage{
		Type:      domain.MessageTypeStatus,
		SessionId: m.sessionId,
		Status:    domain.StatusPong,
		Role:      probe.Role,
		SentAt:    probe.SentAt,
		Timestamp: now,
	})
}

func (m *Monitor) onReply(pong *domain.StatusMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || m.terminal {
		return
	}

	latency := time.Duration(m.clock.Now().UnixMilli()-pong.SentAt) * time.Millisecond
	if m.replyTimer != nil {
		m.replyTimer.Stop()
		m.replyTimer = nil
	}
	m.setStateLocked(StatusConnected, latency, "")
}

func (m *Monitor) onPeerReady() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || m.terminal {
		return
	}

	if m.replyTimer != nil {
		m.replyTimer.Stop()
		m.replyTimer = nil
	}
	m.setStateLocked(StatusConnected, m.state.Latency, "")
}

func (m *Monitor) onPeerDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || m.terminal {
		return
	}
	m.setStateLocked(StatusDisconnected, 0, "peer disconnected")
}

// onSessionEnded handles the terminal host signal: status drops to
// disconnected and probing never resumes.
func (m *Monitor) onSessionEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || m.terminal {
		return
	}
	m.terminal = true
	m.stopLocked()
	m.setStateLocked(StatusDisconnected, 0, "session ended")
}

// Subscribe registers a status listener. The listener fires immediately with
// the current state so late subscribers never miss it, then on every change.
func (m *Monitor) Subscribe(fn func(ConnectionState)) func() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return func() {}
	}

	id := m.nextSubId
	m.nextSubId++
	m.subs[id] = fn
	current := m.state
	m.mu.Unlock()

	fn(current)

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Destroy is idempotent. After it returns no subscriber callback fires again,
// even if messages keep arriving on the channel.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.stopLocked()
	m.subs = make(map[int]func(ConnectionState))
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Monitor) stopLocked() {
	if m.running {
		close(m.stopCh)
		m.running = false
	}
	if m.replyTimer != nil {
		m.replyTimer.Stop()
		m.replyTimer = nil
	}
}

func (m *Monitor) setStateLocked(status ConnectionStatus, latency time.Duration, reason string) {
	next := ConnectionState{Status: status, Latency: latency, Reason: reason}
	notify := next.changed(m.state)
	m.state = next

	if !notify {
		return
	}

	m.logger.Debug("connection state changed",
		"session_id", m.sessionId,
		"role", string(m.role),
		"status", string(status),
		"reason", reason,
	)

	subs := make([]func(ConnectionState), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}

	go func() {
		for _, fn := range subs {
			fn(next)
		}
	}()
}

func (m *Monitor) publish(msg *domain.StatusMessage) {
	if err := m.ch.Publish(msg); err != nil {
		m.logger.Warn("failed to publish status", "error", err)
	}
}
