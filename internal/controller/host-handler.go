package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/readyornot/sync-server/internal/decision"
	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/realtime"
	sessionservice "github.com/readyornot/sync-server/internal/service/session"
	"github.com/readyornot/sync-server/internal/syncer"
	"github.com/readyornot/sync-server/pkg/wsrouter"
)

// hostConn is the per-socket state of a facilitator console connection.
type hostConn struct {
	c         *controller
	sc        *safeConn
	sessionId string
	host      *syncer.HostManager
	manager   *decision.Manager
}

func (c *controller) hostWS(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")

	if _, err := c.sessionService.GetSession(r.Context(), sessionId); err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	c.ensureRelay(r.Context(), sessionId)

	hc := &hostConn{
		c:         c,
		sc:        newSafeConn(conn),
		sessionId: sessionId,
		host:      c.syncers.HostFor(sessionId),
		manager:   c.decisions.ManagerFor(sessionId),
	}

	statusUnsub := hc.host.OnPresentationStatus(func(state syncer.ConnectionState) {
		hc.sc.WriteJSON(&Output{
			Type: "PRESENTATION_STATUS",
			Payload: map[string]any{
				"status":     string(state.Status),
				"latency_ms": state.Latency.Milliseconds(),
				"reason":     state.Reason,
			},
		})
	})
	defer statusUnsub()

	videoReadyUnsub := hc.host.OnPresentationVideoReady(func() {
		hc.sc.WriteJSON(&Output{Type: "PRESENTATION_VIDEO_READY"})
	})
	defer videoReadyUnsub()

	decisionUnsub := hc.manager.Subscribe(func(state decision.State) {
		hc.sc.WriteJSON(&Output{
			Type: "DECISION_STATE",
			Payload: map[string]any{
				"is_active":      state.IsActive,
				"timer_end_time": state.TimerEndTime.UnixMilli(),
			},
		})
	})
	defer decisionUnsub()

	ctx := context.WithValue(r.Context(), sessionIdCtxKey, sessionId)
	if err := hc.getWSRouter().ServeConn(ctx, hc.sc); err != nil {
		c.logger.InfoContext(r.Context(), "host connection closed", "session_id", sessionId, "error", err)
	}
}

func (hc *hostConn) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(hc.c.wsLoggingMw())

	mux.Handle("ALIVE", hc.handleAlive)

	// playback
	mux.Handle("PLAY", hc.handlePlay)
	mux.Handle("PAUSE", hc.handlePause)
	mux.Handle("SEEK", hc.handleSeek)
	mux.Handle("RESET", hc.handleReset)
	mux.Handle("SYNC", hc.handleSync)
	mux.Handle("VOLUME", hc.handleVolume)
	mux.Handle("VIDEO_STATUS_POLL", hc.handleVideoStatusPoll)

	// presentation surface
	mux.Handle("SLIDE_UPDATE", hc.handleSlideUpdate)
	mux.Handle("SCROLL", hc.handleScroll)
	mux.Handle("JOIN_INFO", hc.handleJoinInfo)
	mux.Handle("JOIN_INFO_CLOSE", hc.handleJoinInfoClose)
	mux.Handle("OPEN_DISPLAY", hc.handleOpenDisplay)
	mux.Handle("DISPLAY_CLOSED", hc.handleDisplayClosed)
	mux.Handle("CLOSE_PRESENTATION", hc.handleClosePresentation)

	// game flow
	mux.Handle("DECISION_RESET", hc.handleDecisionReset)
	mux.Handle("END_SESSION", hc.handleEndSession)

	return mux
}

func (hc *hostConn) handleAlive(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	return nil
}

func (hc *hostConn) handlePlay(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.SendCommand(domain.ActionPlay, nil)
	return nil
}

func (hc *hostConn) handlePause(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.SendCommand(domain.ActionPause, nil)
	return nil
}

type seekInput struct {
	Time float64 `json:"time"`
}

func (hc *hostConn) handleSeek(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input seekInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	hc.host.SendCommand(domain.ActionSeek, &domain.CommandData{Time: &input.Time})
	return nil
}

func (hc *hostConn) handleReset(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.SendCommand(domain.ActionReset, nil)
	return nil
}

func (hc *hostConn) handleSync(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input seekInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	hc.host.SendCommand(domain.ActionSync, &domain.CommandData{Time: &input.Time})
	return nil
}

type volumeInput struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

func (hc *hostConn) handleVolume(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input volumeInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	hc.host.SendCommand(domain.ActionVolume, &domain.CommandData{
		Volume: &input.Volume,
		Muted:  &input.Muted,
	})
	return nil
}

func (hc *hostConn) handleVideoStatusPoll(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.SendCommand(domain.ActionVideoStatusPoll, nil)
	return nil
}

type slideUpdateInput struct {
	Slide           domain.Slide `json:"slide"`
	Phase           domain.Phase `json:"phase"`
	IncludeTeamData bool         `json:"include_team_data"`
}

func (hc *hostConn) handleSlideUpdate(ctx context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input slideUpdateInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	slideId := input.Slide.Id
	phase := input.Phase
	if err := hc.c.sessionService.UpdateSession(ctx, &sessionservice.UpdateSessionParams{
		SessionId:      hc.sessionId,
		CurrentSlideId: &slideId,
		Phase:          &phase,
	}); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	var teamData *domain.TeamDataSnapshot
	if input.IncludeTeamData {
		snapshot, err := hc.c.sessionService.GetTeamDataSnapshot(ctx, hc.sessionId)
		if err != nil {
			return fmt.Errorf("failed to get team data: %w", err)
		}
		teamData = &snapshot
	}

	hc.host.SendSlideUpdate(input.Slide, teamData)

	supervisor := decision.NewSupervisor(hc.manager, hc.c.logger)
	supervisor.Evaluate(input.Slide, input.Phase)

	if endTime, active := hc.manager.TimerEndTime(); active {
		duration := input.Slide.DecisionDurationSeconds
		if duration <= 0 {
			duration = decision.DefaultDurationSeconds
		}
		if err := hc.c.publisher.SendDecisionTime(ctx, hc.sessionId, realtime.DecisionTimePayload{
			SlideId:         input.Slide.Id,
			Round:           input.Slide.Round,
			DurationSeconds: duration,
			TimerEndTime:    endTime.UnixMilli(),
		}); err != nil {
			hc.c.logger.WarnContext(ctx, "failed to publish decision time", "error", err)
		}
	}

	return nil
}

type scrollInput struct {
	ScrollTop float64 `json:"scroll_top"`
}

func (hc *hostConn) handleScroll(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input scrollInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	hc.host.SendCommand(domain.ActionScroll, &domain.CommandData{ScrollTop: &input.ScrollTop})
	return nil
}

type joinInfoInput struct {
	URL       string `json:"url"`
	QRDataURL string `json:"qr_data_url"`
}

func (hc *hostConn) handleJoinInfo(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input joinInfoInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	hc.host.SendJoinInfo(input.URL, input.QRDataURL)
	return nil
}

func (hc *hostConn) handleJoinInfoClose(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.SendJoinInfoClose()
	return nil
}

func (hc *hostConn) handleOpenDisplay(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.OpenDisplay()
	return nil
}

func (hc *hostConn) handleDisplayClosed(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.ForceDisconnect()
	return nil
}

func (hc *hostConn) handleClosePresentation(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.SendCommand(domain.ActionClosePresentation, nil)
	return nil
}

func (hc *hostConn) handleDecisionReset(ctx context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.manager.Stop()
	hc.host.SendCommand(domain.ActionDecisionReset, nil)

	if err := hc.c.publisher.SendDecisionReset(ctx, hc.sessionId); err != nil {
		hc.c.logger.WarnContext(ctx, "failed to publish decision reset", "error", err)
	}

	return nil
}

func (hc *hostConn) handleEndSession(ctx context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	hc.host.EndSession()

	if err := hc.c.publisher.SendSessionEnded(ctx, hc.sessionId); err != nil {
		hc.c.logger.WarnContext(ctx, "failed to publish session ended", "error", err)
	}

	if err := hc.c.sessionService.EndSession(ctx, hc.sessionId); err != nil {
		hc.c.logger.WarnContext(ctx, "failed to end session", "error", err)
	}

	hc.c.stopRelay(hc.sessionId)
	hc.c.decisions.Release(hc.sessionId)
	hc.c.syncers.ReleaseReceiver(hc.sessionId)
	hc.c.syncers.ReleaseHost(hc.sessionId)

	return nil
}
