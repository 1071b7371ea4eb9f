package syncer

import (
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/video"
	"github.com/readyornot/sync-server/pkg/broadcast"
)

type ReceiverConfig struct {
	// DriftThreshold is the playhead divergence, in seconds, below which a
	// play target or sync nudge is left alone.
	DriftThreshold float64
	// DriftCorrection enables the rate-limited sync nudge. When off, sync
	// commands are acknowledged-and-ignored and play/seek/pause carry all
	// authority.
	DriftCorrection bool
	// DriftSuppressAfterPlay blocks correction right after playback starts,
	// where a nudge is audible.
	DriftSuppressAfterPlay time.Duration
	// DriftSuppressAfterSeek blocks correction while a commanded seek may
	// still be settling.
	DriftSuppressAfterSeek time.Duration
	// DriftMinInterval rate-limits consecutive corrections.
	DriftMinInterval time.Duration
	// ResetVerifyDelay is how long after a reset the playhead is re-checked;
	// some elements silently ignore a position write while buffering.
	ResetVerifyDelay time.Duration
	Monitor          MonitorConfig
}

func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		DriftThreshold:         0.75,
		DriftCorrection:        true,
		DriftSuppressAfterPlay: 5 * time.Second,
		DriftSuppressAfterSeek: 2 * time.Second,
		DriftMinInterval:       10 * time.Second,
		ResetVerifyDelay:       500 * time.Millisecond,
		Monitor:                DefaultMonitorConfig(),
	}
}

// ReceiverHooks are the presentation-surface callbacks the embedding context
// provides. All are optional.
type ReceiverHooks struct {
	OnSlide         func(domain.Slide, *domain.TeamDataSnapshot)
	OnJoinInfo      func(*domain.JoinInfo)
	OnScroll        func(float64)
	OnDecisionReset func()
	OnClose         func()
	OnError         func(error)
}

// Receiver is the presentation-side counterpart of HostManager: a pure
// follower. It applies host commands to its video controller and reports
// status and readiness back; it never originates a command.
type Receiver struct {
	sessionId string
	ch        *broadcast.Channel
	monitor   *Monitor
	video     *video.Controller
	clock     clockwork.Clock
	cfg       ReceiverConfig
	hooks     ReceiverHooks
	logger    *slog.Logger

	mu                sync.Mutex
	destroyed         bool
	lastStateTs       int64
	playbackStartedAt time.Time
	lastSeekAt        time.Time
	lastCorrectionAt  time.Time
	resetTimer        clockwork.Timer
	unsubscribe       func()
}

func NewReceiver(sessionId string, channels *broadcast.Registry, el video.MediaElement, clock clockwork.Clock, cfg ReceiverConfig, hooks ReceiverHooks, logger *slog.Logger) *Receiver {
	ch := channels.GetOrCreate(sessionChannelName(sessionId))
	r := &Receiver{
		sessionId: sessionId,
		ch:        ch,
		clock:     clock,
		cfg:       cfg,
		hooks:     hooks,
		logger:    logger,
	}
	r.video = video.NewController(el, logger)
	r.video.SetOnReady(r.announceVideoReady)
	r.video.SetOnEnded(r.announceVideoEnded)
	r.video.SetOnError(r.onVideoError)
	r.monitor = NewMonitor(sessionId, RolePresentation, ch, clock, cfg.Monitor, logger)
	r.unsubscribe = ch.Subscribe(r.handleMessage)
	r.monitor.Start()
	r.announceReady()

	return r
}

func (r *Receiver) SessionId() string {
	return r.sessionId
}

func (r *Receiver) Video() *video.Controller {
	return r.video
}

func (r *Receiver) ConnectionState() ConnectionState {
	return r.monitor.State()
}

func (r *Receiver) OnConnectionState(fn func(ConnectionState)) func() {
	return r.monitor.Subscribe(fn)
}

func (r *Receiver) handleMessage(raw json.RawMessage) {
	var header domain.MessageHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		r.logger.Debug("undecodable sync message discarded", "error", err)
		return
	}
	if header.SessionId != r.sessionId {
		r.logger.Debug("message for other session discarded", "session_id", header.SessionId)
		return
	}

	switch header.Type {
	case domain.MessageTypeCommand:
		var cmd domain.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			r.logger.Debug("undecodable command discarded", "error", err)
			return
		}
		r.handleCommand(&cmd)
	case domain.MessageTypeSlideUpdate:
		var update domain.SlideUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			r.logger.Debug("undecodable slide update discarded", "error", err)
			return
		}
		r.handleSlideUpdate(&update)
	case domain.MessageTypeJoinInfo:
		var info domain.JoinInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return
		}
		r.handleJoinInfo(&info)
	case domain.MessageTypeJoinInfoClose:
		r.handleJoinInfo(nil)
	}
}

// stateBearing reports whether an action carries playback state whose
// timestamp participates in latest-wins ordering. Polls, nudges and scrolls
// never gate a later-arriving state command.
func stateBearing(action domain.CommandAction) bool {
	switch action {
	case domain.ActionPlay, domain.ActionPause, domain.ActionSeek, domain.ActionReset, domain.ActionVolume:
		return true
	default:
		return false
	}
}

func (r *Receiver) handleCommand(cmd *domain.Command) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}

	if stateBearing(cmd.Action) {
		// Absolute targets plus latest-timestamp-wins make duplicate and
		// out-of-order delivery converge on the host's intended state.
		if cmd.Timestamp < r.lastStateTs {
			r.mu.Unlock()
			r.logger.Debug("stale command discarded",
				"action", string(cmd.Action),
				"timestamp", cmd.Timestamp,
				"last", r.lastStateTs,
			)
			return
		}
		r.lastStateTs = cmd.Timestamp
	}
	r.mu.Unlock()

	switch cmd.Action {
	case domain.ActionPlay:
		r.applyPlay(cmd)
	case domain.ActionPause:
		r.applyPause(cmd)
	case domain.ActionSeek:
		r.applySeek(cmd)
	case domain.ActionReset:
		r.applyReset()
	case domain.ActionDecisionReset:
		if r.hooks.OnDecisionReset != nil {
			r.hooks.OnDecisionReset()
		}
	case domain.ActionSync:
		r.applySync(cmd)
	case domain.ActionVolume:
		r.applyVolume(cmd)
	case domain.ActionClosePresentation:
		if r.hooks.OnClose != nil {
			r.hooks.OnClose()
		}
	case domain.ActionVideoStatusPoll:
		r.announceVideoState()
	case domain.ActionScroll:
		if cmd.Data.ScrollTop != nil && r.hooks.OnScroll != nil {
			r.hooks.OnScroll(*cmd.Data.ScrollTop)
		}
	default:
		r.logger.Debug("unknown command action discarded", "action", string(cmd.Action))
	}
}

func (r *Receiver) applyPlay(cmd *domain.Command) {
	if target := cmd.Data.Time; target != nil {
		if math.Abs(r.video.CurrentTime()-*target) > r.cfg.DriftThreshold {
			r.video.Seek(*target)
			r.noteSeek()
		}
	}

	if err := r.video.Play(); err != nil {
		// Autoplay rejection is retried on user gesture; the controller has
		// already classified and logged it.
		return
	}

	r.mu.Lock()
	r.playbackStartedAt = r.clock.Now()
	r.mu.Unlock()
}

func (r *Receiver) applyPause(cmd *domain.Command) {
	r.video.Pause()

	if target := cmd.Data.Time; target != nil {
		r.video.Seek(*target)
		r.noteSeek()
	}
}

func (r *Receiver) applySeek(cmd *domain.Command) {
	target := cmd.Data.Time
	if target == nil {
		r.logger.Debug("seek without target discarded")
		return
	}

	// Pause before moving the playhead: seeking a playing element lands off
	// target on several engines.
	if r.video.IsPlaying() {
		r.video.Pause()
	}

	r.video.Seek(*target)
	r.noteSeek()
}

func (r *Receiver) applyReset() {
	r.video.Pause()
	r.video.Seek(0)
	r.noteSeek()

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	if r.resetTimer != nil {
		r.resetTimer.Stop()
	}
	// An element that is still buffering can silently swallow the position
	// write; re-check once it has had a moment.
	r.resetTimer = r.clock.AfterFunc(r.cfg.ResetVerifyDelay, r.verifyReset)
	r.mu.Unlock()
}

func (r *Receiver) verifyReset() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.resetTimer = nil
	r.mu.Unlock()

	if r.video.CurrentTime() != 0 {
		r.logger.Debug("reset did not take, re-applying")
		r.video.Seek(0)
	}
}

// applySync is the low-priority drift nudge. It never runs during early
// playback, never overlaps a settling seek, and is rate limited; within those
// guards it snaps the playhead only past the drift threshold.
func (r *Receiver) applySync(cmd *domain.Command) {
	if !r.cfg.DriftCorrection {
		r.logger.Debug("drift correction disabled, sync ignored")
		return
	}

	target := cmd.Data.Time
	if target == nil || !r.video.IsPlaying() {
		return
	}

	now := r.clock.Now()
	r.mu.Lock()
	startedAt := r.playbackStartedAt
	lastSeek := r.lastSeekAt
	lastCorrection := r.lastCorrectionAt
	r.mu.Unlock()

	if startedAt.IsZero() || now.Sub(startedAt) < r.cfg.DriftSuppressAfterPlay {
		return
	}
	if !lastSeek.IsZero() && now.Sub(lastSeek) < r.cfg.DriftSuppressAfterSeek {
		return
	}
	if !lastCorrection.IsZero() && now.Sub(lastCorrection) < r.cfg.DriftMinInterval {
		return
	}

	drift := math.Abs(r.video.CurrentTime() - *target)
	if drift <= r.cfg.DriftThreshold {
		return
	}

	r.logger.Debug("correcting playback drift", "drift", drift, "target", *target)
	r.video.Seek(*target)

	r.mu.Lock()
	r.lastCorrectionAt = now
	r.mu.Unlock()
}

func (r *Receiver) applyVolume(cmd *domain.Command) {
	if cmd.Data.Volume != nil {
		r.video.SetVolume(*cmd.Data.Volume)
	}
	if cmd.Data.Muted != nil {
		r.video.SetMuted(*cmd.Data.Muted)
	}
}

func (r *Receiver) handleSlideUpdate(update *domain.SlideUpdate) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if update.Slide.MediaURL != "" {
		// Controller skips the reload when the source is unchanged.
		r.video.SetSource(update.Slide.MediaURL)
	}

	if r.hooks.OnSlide != nil {
		r.hooks.OnSlide(update.Slide, update.TeamData)
	}
}

func (r *Receiver) handleJoinInfo(info *domain.JoinInfo) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if r.hooks.OnJoinInfo != nil {
		r.hooks.OnJoinInfo(info)
	}
}

func (r *Receiver) noteSeek() {
	r.mu.Lock()
	r.lastSeekAt = r.clock.Now()
	r.mu.Unlock()
}

func (r *Receiver) announceReady() {
	r.announce(domain.StatusReady, nil)
}

func (r *Receiver) announceVideoReady() {
	r.announce(domain.StatusVideoReady, nil)
}

func (r *Receiver) announceVideoEnded() {
	r.announce(domain.StatusVideoEnded, nil)
}

func (r *Receiver) announceVideoState() {
	state := r.video.State()
	r.announce(domain.StatusPong, &domain.VideoStateInfo{
		IsPlaying:   state.IsPlaying,
		CurrentTime: state.CurrentTime,
		Duration:    state.Duration,
		Volume:      state.Volume,
		IsMuted:     state.IsMuted,
		IsReady:     state.IsReady,
	})
}

func (r *Receiver) announce(status string, videoState *domain.VideoStateInfo) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	now := r.clock.Now().UnixMilli()
	r.mu.Unlock()

	msg := domain.StatusMessage{
		Type:      domain.MessageTypeStatus,
		SessionId: r.sessionId,
		Status:    status,
		Role:      string(RolePresentation),
		Video:     videoState,
		Timestamp: now,
	}
	if err := r.ch.Publish(&msg); err != nil {
		r.logger.Warn("failed to publish status", "error", err)
	}
}

func (r *Receiver) onVideoError(err error) {
	if r.hooks.OnError != nil {
		r.hooks.OnError(err)
	}
}

// Destroy announces the disconnect, releases the channel subscription and
// monitor, and cancels pending timers. Idempotent; nothing fires afterwards.
func (r *Receiver) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}

	now := r.clock.Now().UnixMilli()
	r.mu.Unlock()

	// Announce while still live so the host updates without waiting for a
	// heartbeat timeout.
	r.ch.Publish(&domain.StatusMessage{
		Type:      domain.MessageTypeStatus,
		SessionId: r.sessionId,
		Status:    domain.StatusDisconnect,
		Role:      string(RolePresentation),
		Timestamp: now,
	})

	r.mu.Lock()
	r.destroyed = true
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	r.monitor.Destroy()
	if unsubscribe != nil {
		unsubscribe()
	}
}
