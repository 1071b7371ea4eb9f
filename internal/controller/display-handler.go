package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/readyornot/sync-server/internal/domain"
	sessionservice "github.com/readyornot/sync-server/internal/service/session"
	"github.com/readyornot/sync-server/internal/syncer"
	"github.com/readyornot/sync-server/internal/video"
	"github.com/readyornot/sync-server/pkg/wsrouter"
)

// displayConn bridges the presentation receiver to a remote rendering
// surface: element operations stream out over the socket, the client streams
// readiness and progress reports back in.
type displayConn struct {
	c         *controller
	sc        *safeConn
	sessionId string
	element   *video.MemoryElement
}

func (c *controller) displayWS(w http.ResponseWriter, r *http.Request) {
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

	dc := &displayConn{
		c:         c,
		sc:        newSafeConn(conn),
		sessionId: sessionId,
		element:   video.NewMemoryElement(),
	}

	dc.element.SetOnOp(func(op video.Op) {
		dc.sc.WriteJSON(&Output{
			Type: "VIDEO_OP",
			Payload: map[string]any{
				"kind":  op.Kind,
				"value": op.Value,
				"flag":  op.Flag,
				"str":   op.Str,
			},
		})
	})

	recv := c.syncers.ReceiverFor(sessionId, dc.element, syncer.ReceiverHooks{
		OnSlide: func(slide domain.Slide, teamData *domain.TeamDataSnapshot) {
			dc.sc.WriteJSON(&Output{
				Type: "SLIDE",
				Payload: map[string]any{
					"slide":     slide,
					"team_data": teamData,
				},
			})
		},
		OnJoinInfo: func(info *domain.JoinInfo) {
			if info == nil {
				dc.sc.WriteJSON(&Output{Type: "JOIN_INFO_CLOSE"})
				return
			}
			dc.sc.WriteJSON(&Output{
				Type: "JOIN_INFO",
				Payload: map[string]any{
					"url":         info.URL,
					"qr_data_url": info.QRDataURL,
				},
			})
		},
		OnScroll: func(scrollTop float64) {
			dc.sc.WriteJSON(&Output{
				Type:    "SCROLL",
				Payload: map[string]any{"scroll_top": scrollTop},
			})
		},
		OnDecisionReset: func() {
			dc.sc.WriteJSON(&Output{Type: "DECISION_RESET"})
		},
		OnClose: func() {
			dc.sc.WriteJSON(&Output{Type: "CLOSE"})
			dc.sc.Close()
		},
		OnError: func(err error) {
			dc.sc.WriteJSON(&Output{
				Type:    "VIDEO_ERROR",
				Payload: map[string]any{"error": err.Error()},
			})
		},
	})

	ctx := context.WithValue(r.Context(), sessionIdCtxKey, sessionId)
	if err := dc.getWSRouter().ServeConn(ctx, dc.sc); err != nil {
		c.logger.InfoContext(r.Context(), "display connection closed", "session_id", sessionId, "error", err)
	}

	// the receiver announces the disconnect to the host as it goes down; a
	// display that was superseded by a newer window must not tear down the
	// successor's receiver
	c.syncers.ReleaseReceiverIf(sessionId, recv)
}

func (dc *displayConn) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(dc.c.wsLoggingMw())

	mux.Handle("ALIVE", dc.handleAlive)
	mux.Handle("VIDEO_READY", dc.handleVideoReady)
	mux.Handle("VIDEO_ENDED", dc.handleVideoEnded)
	mux.Handle("VIDEO_ERROR", dc.handleVideoError)
	mux.Handle("TIME_UPDATE", dc.handleTimeUpdate)
	mux.Handle("USER_GESTURE", dc.handleUserGesture)

	return mux
}

func (dc *displayConn) handleAlive(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	return nil
}

type videoReadyInput struct {
	Duration float64 `json:"duration"`
}

func (dc *displayConn) handleVideoReady(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input videoReadyInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	dc.element.MarkReady(input.Duration)
	return nil
}

func (dc *displayConn) handleVideoEnded(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	dc.element.FireEnded()
	return nil
}

type videoErrorInput struct {
	Message string `json:"message"`
}

func (dc *displayConn) handleVideoError(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input videoErrorInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	dc.element.FireError(errors.New(input.Message))
	return nil
}

type timeUpdateInput struct {
	Time float64 `json:"time"`
}

func (dc *displayConn) handleTimeUpdate(_ context.Context, _ wsrouter.Conn, payload json.RawMessage) error {
	var input timeUpdateInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	dc.element.SyncReportedTime(input.Time)
	return nil
}

func (dc *displayConn) handleUserGesture(_ context.Context, _ wsrouter.Conn, _ json.RawMessage) error {
	dc.element.UserGesture()
	return nil
}
