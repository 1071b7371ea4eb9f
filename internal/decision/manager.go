// Package decision tracks whether a session's timed decision window is open.
// One manager exists per session; it is self-managing once started and is
// observed by consumers through subscription.
package decision

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDurationSeconds applies when an interactive slide carries no
// configured duration.
const DefaultDurationSeconds = 300

type State struct {
	IsActive     bool
	TimerEndTime time.Time
}

type Manager struct {
	sessionId string
	clock     clockwork.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	active    bool
	endTime   time.Time
	timer     clockwork.Timer
	subs      map[int]func(State)
	nextSubId int
	destroyed bool
}

func NewManager(sessionId string, clock clockwork.Clock, logger *slog.Logger) *Manager {
	return &Manager{
		sessionId: sessionId,
		clock:     clock,
		logger:    logger,
		subs:      make(map[int]func(State)),
	}
}

// Start opens the window for the given duration. Starting while already
// active is a no-op: the running window keeps its end time.
func (m *Manager) Start(durationSeconds int) {
	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	if m.active {
		m.mu.Unlock()
		m.logger.Debug("decision timer already active, start ignored", "session_id", m.sessionId)
		return
	}

	duration := time.Duration(durationSeconds) * time.Second
	m.active = true
	m.endTime = m.clock.Now().Add(duration)
	m.timer = m.clock.AfterFunc(duration, m.expire)
	m.notifyLocked()
	m.mu.Unlock()

	m.logger.Debug("decision timer started",
		"session_id", m.sessionId,
		"duration_seconds", durationSeconds,
	)
}

// Stop closes the window early. Stopping an inactive manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || !m.active {
		return
	}

	m.clearLocked()
	m.notifyLocked()
	m.logger.Debug("decision timer stopped", "session_id", m.sessionId)
}

func (m *Manager) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || !m.active {
		return
	}

	m.clearLocked()
	m.notifyLocked()
	m.logger.Debug("decision timer expired", "session_id", m.sessionId)
}

func (m *Manager) clearLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.active = false
	m.endTime = time.Time{}
}

func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// TimerEndTime returns the window's end and whether one is set.
func (m *Manager) TimerEndTime() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endTime, m.active
}

// Subscribe registers a listener, invoked immediately with the current state
// and then on every change.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return func() {}
	}

	id := m.nextSubId
	m.nextSubId++
	m.subs[id] = fn
	current := State{IsActive: m.active, TimerEndTime: m.endTime}
	m.mu.Unlock()

	fn(current)

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Destroy cancels the timer and drops all subscribers. Idempotent.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}
	m.destroyed = true
	m.clearLocked()
	m.subs = make(map[int]func(State))
}

func (m *Manager) notifyLocked() {
	state := State{IsActive: m.active, TimerEndTime: m.endTime}
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}

	go func() {
		for _, fn := range subs {
			fn(state)
		}
	}()
}
