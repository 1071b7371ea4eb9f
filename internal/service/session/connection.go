package session

import (
	"context"
	"errors"

	"github.com/readyornot/sync-server/internal/repository/connection"
	"github.com/readyornot/sync-server/internal/repository/session"
)

type ConnectTeamDeviceParams struct {
	SessionId string
	TeamId    string
	Conn      connection.Conn
}

func (s service) ConnectTeamDevice(ctx context.Context, params *ConnectTeamDeviceParams) error {
	if _, err := s.sessionRepo.GetTeam(ctx, params.TeamId); err != nil {
		if errors.Is(err, session.ErrTeamNotFound) {
			return ErrTeamNotFound
		}

		return err
	}

	// a reconnecting device replaces its previous socket
	s.connRepo.RemoveByTeamId(params.TeamId)

	if err := s.connRepo.Add(params.Conn, params.TeamId); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "team device connected", "session_id", params.SessionId, "team_id", params.TeamId)

	return nil
}

func (s service) DisconnectTeamDevice(ctx context.Context, conn connection.Conn) error {
	teamId, err := s.connRepo.GetTeamId(conn)
	if err != nil {
		return err
	}

	if err := s.connRepo.RemoveByConn(conn); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "team device disconnected", "team_id", teamId)

	return nil
}

// GetConnsBySessionId returns the live sockets of every team in the session.
func (s service) GetConnsBySessionId(ctx context.Context, sessionId string) ([]connection.Conn, error) {
	teamIds, err := s.sessionRepo.GetTeamIds(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	conns := make([]connection.Conn, 0, len(teamIds))
	for _, teamId := range teamIds {
		conn, err := s.connRepo.GetConn(teamId)
		if err != nil {
			continue
		}

		conns = append(conns, conn)
	}

	return conns, nil
}
