package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/readyornot/sync-server/internal/decision"
	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/realtime"
	"github.com/readyornot/sync-server/internal/repository/connection"
	sessionservice "github.com/readyornot/sync-server/internal/service/session"
	"github.com/readyornot/sync-server/internal/syncer"
	"github.com/readyornot/sync-server/pkg/validator"
)

type iSessionService interface {
	CreateSession(context.Context, *sessionservice.CreateSessionParams) (sessionservice.CreateSessionResponse, error)
	GetSession(context.Context, string) (domain.Session, error)
	GetSessionByJoinCode(context.Context, string) (domain.Session, error)
	UpdateSession(context.Context, *sessionservice.UpdateSessionParams) error
	EndSession(context.Context, string) error
	AddTeam(context.Context, *sessionservice.AddTeamParams) (sessionservice.AddTeamResponse, error)
	GetTeams(context.Context, string) ([]domain.Team, error)
	RemoveTeam(context.Context, *sessionservice.RemoveTeamParams) error
	SaveRoundData(context.Context, *sessionservice.SaveRoundDataParams) error
	GetTeamDataSnapshot(context.Context, string) (domain.TeamDataSnapshot, error)
	SubmitDecision(context.Context, *sessionservice.SubmitDecisionParams) (sessionservice.SubmitDecisionResponse, error)
	GetDecisions(context.Context, string) ([]domain.Decision, error)
	ConnectTeamDevice(context.Context, *sessionservice.ConnectTeamDeviceParams) error
	DisconnectTeamDevice(context.Context, connection.Conn) error
	GetConnsBySessionId(context.Context, string) ([]connection.Conn, error)
}

type controller struct {
	sessionService iSessionService
	syncers        *syncer.Registry
	decisions      *decision.Registry
	publisher      *realtime.Publisher
	relay          *realtime.Relay
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	logger         *slog.Logger

	mu         sync.Mutex
	relayStops map[string]func()
}

func NewController(
	sessionService iSessionService,
	syncers *syncer.Registry,
	decisions *decision.Registry,
	publisher *realtime.Publisher,
	relay *realtime.Relay,
	logger *slog.Logger,
) *controller {
	return &controller{
		sessionService: sessionService,
		syncers:        syncers,
		decisions:      decisions,
		publisher:      publisher,
		relay:          relay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:   validator.NewValidator(),
		logger:     logger,
		relayStops: make(map[string]func()),
	}
}

// ensureRelay starts the team-event relay for the session once per instance.
func (c *controller) ensureRelay(ctx context.Context, sessionId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.relayStops[sessionId]; ok {
		return
	}

	c.relayStops[sessionId] = c.relay.Start(context.WithoutCancel(ctx), sessionId)
}

func (c *controller) stopRelay(sessionId string) {
	c.mu.Lock()
	stop, ok := c.relayStops[sessionId]
	delete(c.relayStops, sessionId)
	c.mu.Unlock()

	if ok {
		stop()
	}
}
