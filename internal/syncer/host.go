package syncer

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/pkg/broadcast"
)

// HostManager is the host-side facade over a session's sync channel. It owns
// the host connection monitor, caches presentation status, and exposes the
// command and broadcast operations the facilitator console drives. Every send
// is fire-and-forget: a missing presentation makes delivery a no-op, never an
// error.
type HostManager struct {
	sessionId string
	ch        *broadcast.Channel
	monitor   *Monitor
	clock     clockwork.Clock
	logger    *slog.Logger

	mu              sync.Mutex
	destroyed       bool
	wasConnected    bool
	currentSlide    *domain.Slide
	currentTeamData *domain.TeamDataSnapshot
	videoReadySubs  map[int]func()
	nextSubId       int
	unsubscribe     func()
	monitorUnsub    func()
}

func NewHostManager(sessionId string, channels *broadcast.Registry, clock clockwork.Clock, cfg MonitorConfig, logger *slog.Logger) *HostManager {
	ch := channels.GetOrCreate(sessionChannelName(sessionId))
	h := &HostManager{
		sessionId:      sessionId,
		ch:             ch,
		clock:          clock,
		logger:         logger,
		videoReadySubs: make(map[int]func()),
	}
	h.monitor = NewMonitor(sessionId, RoleHost, ch, clock, cfg, logger)
	h.unsubscribe = ch.Subscribe(h.handleMessage)
	h.monitorUnsub = h.monitor.Subscribe(h.onMonitorState)
	h.monitor.Start()

	return h
}

func (h *HostManager) SessionId() string {
	return h.sessionId
}

// SendCommand builds and publishes a host command. Safe to call with no
// subscriber present.
func (h *HostManager) SendCommand(action domain.CommandAction, data *domain.CommandData) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		h.logger.Debug("command on destroyed manager ignored", "action", string(action))
		return
	}
	now := h.clock.Now().UnixMilli()
	h.mu.Unlock()

	cmd := domain.Command{
		Type:      domain.MessageTypeCommand,
		SessionId: h.sessionId,
		CommandId: uuid.NewString(),
		Action:    action,
		Timestamp: now,
	}
	if data != nil {
		cmd.Data = *data
	}

	h.publish(&cmd)
}

// SendSlideUpdate broadcasts the active slide, with an optional team-data
// snapshot, and remembers it for reconnect reconciliation.
func (h *HostManager) SendSlideUpdate(slide domain.Slide, teamData *domain.TeamDataSnapshot) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.currentSlide = &slide
	h.currentTeamData = teamData
	now := h.clock.Now().UnixMilli()
	h.mu.Unlock()

	h.publish(&domain.SlideUpdate{
		Type:      domain.MessageTypeSlideUpdate,
		SessionId: h.sessionId,
		Slide:     slide,
		TeamData:  teamData,
		Timestamp: now,
	})
}

// SendJoinInfo shows the team-onboarding overlay on the presentation.
func (h *HostManager) SendJoinInfo(url, qrDataURL string) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	now := h.clock.Now().UnixMilli()
	h.mu.Unlock()

	h.publish(&domain.JoinInfo{
		Type:      domain.MessageTypeJoinInfo,
		SessionId: h.sessionId,
		URL:       url,
		QRDataURL: qrDataURL,
		Timestamp: now,
	})
}

// SendJoinInfoClose hides the overlay again.
func (h *HostManager) SendJoinInfoClose() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	now := h.clock.Now().UnixMilli()
	h.mu.Unlock()

	h.publish(&domain.JoinInfo{
		Type:      domain.MessageTypeJoinInfoClose,
		SessionId: h.sessionId,
		Timestamp: now,
	})
}

// OnPresentationStatus subscribes to presentation connectivity. The callback
// fires immediately with the cached state, then on every change.
func (h *HostManager) OnPresentationStatus(fn func(ConnectionState)) func() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return func() {}
	}
	h.mu.Unlock()

	return h.monitor.Subscribe(fn)
}

// OnPresentationVideoReady fires when the presentation reports its element
// finished buffering the current source.
func (h *HostManager) OnPresentationVideoReady(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return func() {}
	}

	id := h.nextSubId
	h.nextSubId++
	h.videoReadySubs[id] = fn

	return func() {
		h.mu.Lock()
		delete(h.videoReadySubs, id)
		h.mu.Unlock()
	}
}

func (h *HostManager) PresentationState() ConnectionState {
	return h.monitor.State()
}

// OpenDisplay is the only path back into connecting: an explicit new display
// action restarts probing.
func (h *HostManager) OpenDisplay() {
	h.monitor.ForceReconnect()
}

// ForceDisconnect is called when the host detects the presentation window is
// gone (a polled window-handle check; the browser boundary exposes no close
// event), so the UI updates without waiting for a heartbeat timeout.
func (h *HostManager) ForceDisconnect() {
	h.monitor.ForceDisconnect("display window closed")
}

// EndSession broadcasts the terminal end-of-session signal.
func (h *HostManager) EndSession() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	now := h.clock.Now().UnixMilli()
	h.mu.Unlock()

	h.publish(&domain.StatusMessage{
		Type:      domain.MessageTypeStatus,
		SessionId: h.sessionId,
		Status:    domain.StatusSessionEnded,
		Role:      string(RoleHost),
		Timestamp: now,
	})
}

// Destroy is idempotent and releases the channel subscription and monitor.
// No callback fires after it returns.
func (h *HostManager) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	h.videoReadySubs = make(map[int]func())
	unsubscribe := h.unsubscribe
	monitorUnsub := h.monitorUnsub
	h.unsubscribe = nil
	h.monitorUnsub = nil
	h.mu.Unlock()

	if monitorUnsub != nil {
		monitorUnsub()
	}
	h.monitor.Destroy()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// onMonitorState re-sends the current slide each time the presentation comes
// up, so a display that joined late starts from the live state.
func (h *HostManager) onMonitorState(state ConnectionState) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}

	connected := state.Status == StatusConnected
	justConnected := connected && !h.wasConnected
	h.wasConnected = connected

	var slide *domain.Slide
	var teamData *domain.TeamDataSnapshot
	var now int64
	if justConnected && h.currentSlide != nil {
		slide = h.currentSlide
		teamData = h.currentTeamData
		now = h.clock.Now().UnixMilli()
	}
	h.mu.Unlock()

	if slide == nil {
		return
	}

	h.logger.Debug("presentation connected, re-sending current slide",
		"session_id", h.sessionId,
		"slide_id", slide.Id,
	)
	h.publish(&domain.SlideUpdate{
		Type:      domain.MessageTypeSlideUpdate,
		SessionId: h.sessionId,
		Slide:     *slide,
		TeamData:  teamData,
		Timestamp: now,
	})
}

func (h *HostManager) handleMessage(raw json.RawMessage) {
	var header domain.MessageHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return
	}
	if header.Type != domain.MessageTypeStatus {
		return
	}
	if header.SessionId != h.sessionId {
		h.logger.Debug("status for other session discarded", "session_id", header.SessionId)
		return
	}

	var msg domain.StatusMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	if msg.Status != domain.StatusVideoReady {
		return
	}

	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	subs := make([]func(), 0, len(h.videoReadySubs))
	for _, fn := range h.videoReadySubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (h *HostManager) publish(msg any) {
	if err := h.ch.Publish(msg); err != nil {
		h.logger.Warn("failed to publish sync message", "error", err)
	}
}
