package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/readyornot/sync-server/internal/decision"
	sessionservice "github.com/readyornot/sync-server/internal/service/session"
	"github.com/readyornot/sync-server/pkg/wsrouter"
)

type teamConn struct {
	c         *controller
	sc        *safeConn
	sessionId string
	teamId    string
	manager   *decision.Manager
}

func (c *controller) teamWS(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")
	teamId := chi.URLParam(r, "team-id")

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	// the relay fan-out and the read loop's replies share this socket, so the
	// conn repo holds the serializing wrapper, never the raw conn
	sc := newSafeConn(conn)

	if err := c.sessionService.ConnectTeamDevice(r.Context(), &sessionservice.ConnectTeamDeviceParams{
		SessionId: sessionId,
		TeamId:    teamId,
		Conn:      sc,
	}); err != nil {
		if errors.Is(err, sessionservice.ErrTeamNotFound) {
			sc.WriteJSON(&Output{Type: "ERROR", Payload: "team not found"})
		} else {
			c.logger.WarnContext(r.Context(), "failed to connect team device", "error", err)
		}
		sc.Close()
		return
	}

	c.ensureRelay(r.Context(), sessionId)

	tc := &teamConn{
		c:         c,
		sc:        sc,
		sessionId: sessionId,
		teamId:    teamId,
		manager:   c.decisions.ManagerFor(sessionId),
	}

	// a device joining mid-window needs the running timer right away
	if endTime, active := tc.manager.TimerEndTime(); active {
		sc.WriteJSON(&Output{
			Type:    "DECISION_STATE",
			Payload: map[string]any{"is_active": true, "timer_end_time": endTime.UnixMilli()},
		})
	}

	ctx := context.WithValue(r.Context(), sessionIdCtxKey, sessionId)
	ctx = context.WithValue(ctx, teamIdCtxKey, teamId)
	if err := tc.getWSRouter().ServeConn(ctx, sc); err != nil {
		c.logger.InfoContext(r.Context(), "team connection closed",
			"session_id", sessionId,
			"team_id", teamId,
			"error", err,
		)
	}

	if err := c.sessionService.DisconnectTeamDevice(r.Context(), sc); err != nil {
		c.logger.DebugContext(r.Context(), "failed to disconnect team device", "error", err)
	}
}

func (tc *teamConn) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(tc.c.wsLoggingMw())

	mux.Handle("ALIVE", tc.handleAlive)
	mux.Handle("SUBMIT_DECISION", tc.handleSubmitDecision)

	return mux
}

func (tc *teamConn) handleAlive(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	return nil
}

type submitDecisionInput struct {
	SlideId int    `json:"slide_id"`
	Round   int    `json:"round"`
	Choice  string `json:"choice"`
}

func (tc *teamConn) handleSubmitDecision(ctx context.Context, conn wsrouter.Conn, payload json.RawMessage) error {
	var input submitDecisionInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if !tc.manager.IsActive() {
		return errors.New("decision window closed")
	}

	submitDecisionResp, err := tc.c.sessionService.SubmitDecision(ctx, &sessionservice.SubmitDecisionParams{
		SessionId: tc.sessionId,
		TeamId:    tc.teamId,
		SlideId:   input.SlideId,
		Round:     input.Round,
		Choice:    input.Choice,
	})
	if err != nil {
		return fmt.Errorf("failed to submit decision: %w", err)
	}

	if err := conn.WriteJSON(&Output{
		Type:    "DECISION_ACCEPTED",
		Payload: submitDecisionResp.Decision,
	}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}
