package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/readyornot/sync-server/internal/repository/connection"
	"github.com/readyornot/sync-server/internal/repository/session"
	"github.com/readyornot/sync-server/pkg/randstr"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrTeamNotFound     = errors.New("team not found")
	ErrJoinCodeNotFound = errors.New("join code not found")
)

type iSessionRepo interface {
	// session
	SetSession(context.Context, *session.SetSessionParams) error
	GetSession(context.Context, string) (session.Session, error)
	GetSessionIdByJoinCode(context.Context, string) (string, error)
	UpdateSession(context.Context, *session.UpdateSessionParams) error
	RemoveSession(context.Context, string) error
	// team
	SetTeam(context.Context, *session.SetTeamParams) error
	GetTeam(context.Context, string) (session.Team, error)
	GetTeamIds(context.Context, string) ([]string, error)
	RemoveTeam(context.Context, *session.RemoveTeamParams) error
	SetRoundData(context.Context, *session.SetRoundDataParams) error
	GetRoundData(ctx context.Context, teamId string, round int) (map[string]float64, error)
	GetRounds(ctx context.Context, teamId string) ([]int, error)
	// decision
	AddDecision(context.Context, *session.AddDecisionParams) error
	GetDecision(context.Context, string) (session.Decision, error)
	GetDecisionIds(context.Context, string) ([]string, error)
}

type iConnRepo interface {
	Add(connection.Conn, string) error
	RemoveByConn(connection.Conn) error
	RemoveByTeamId(string) error
	GetConn(string) (connection.Conn, error)
	GetTeamId(connection.Conn) (string, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type service struct {
	sessionRepo iSessionRepo
	connRepo    iConnRepo
	generator   iGenerator
	logger      *slog.Logger
	joinCodeLen int
}

func NewService(sessionRepo iSessionRepo, connRepo iConnRepo, logger *slog.Logger, joinCodeLen int) *service {
	s := service{
		sessionRepo: sessionRepo,
		connRepo:    connRepo,
		logger:      logger,
		joinCodeLen: joinCodeLen,
	}

	letterBytes := []byte("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	s.generator = randstr.New(letterBytes)

	return &s
}
