package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionservice "github.com/readyornot/sync-server/internal/service/session"
	"github.com/readyornot/sync-server/pkg/rest"
)

type createSessionInput struct {
	Facilitator string `json:"facilitator" validate:"required,max=64"`
}

func (c *controller) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionInput

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.DebugContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	createSessionResponse, err := c.sessionService.CreateSession(r.Context(), &sessionservice.CreateSessionParams{
		Facilitator: req.Facilitator,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create session", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createSessionResponse.Session})
}

func (c *controller) getSession(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")

	session, err := c.sessionService.GetSession(r.Context(), sessionId)
	if err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "session not found"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get session", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": session})
}

func (c *controller) getSessionByJoinCode(w http.ResponseWriter, r *http.Request) {
	joinCode := chi.URLParam(r, "join-code")

	session, err := c.sessionService.GetSessionByJoinCode(r.Context(), joinCode)
	if err != nil {
		if errors.Is(err, sessionservice.ErrJoinCodeNotFound) || errors.Is(err, sessionservice.ErrSessionNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "session not found"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get session by join code", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": session})
}

type addTeamInput struct {
	Name  string `json:"name" validate:"required,max=32"`
	Color string `json:"color" validate:"required,min=3,max=7"`
}

func (c *controller) addTeam(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")

	var req addTeamInput

	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	addTeamResponse, err := c.sessionService.AddTeam(r.Context(), &sessionservice.AddTeamParams{
		SessionId: sessionId,
		Name:      req.Name,
		Color:     req.Color,
	})
	if err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "session not found"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to add team", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": addTeamResponse.Team})
}

func (c *controller) getTeams(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")

	teams, err := c.sessionService.GetTeams(r.Context(), sessionId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get teams", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": teams})
}

func (c *controller) removeTeam(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")
	teamId := chi.URLParam(r, "team-id")

	if err := c.sessionService.RemoveTeam(r.Context(), &sessionservice.RemoveTeamParams{
		SessionId: sessionId,
		TeamId:    teamId,
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to remove team", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

type saveRoundDataInput struct {
	Round int                `json:"round" validate:"required,gte=1"`
	KPIs  map[string]float64 `json:"kpis" validate:"required"`
}

func (c *controller) saveRoundData(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")
	teamId := chi.URLParam(r, "team-id")

	var req saveRoundDataInput

	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if err := c.sessionService.SaveRoundData(r.Context(), &sessionservice.SaveRoundDataParams{
		SessionId: sessionId,
		TeamId:    teamId,
		Round:     req.Round,
		KPIs:      req.KPIs,
	}); err != nil {
		if errors.Is(err, sessionservice.ErrTeamNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "team not found"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to save round data", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

func (c *controller) getTeamData(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")

	snapshot, err := c.sessionService.GetTeamDataSnapshot(r.Context(), sessionId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get team data", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snapshot})
}
