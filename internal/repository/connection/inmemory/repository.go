package inmemory

import (
	"log/slog"
	"sync"

	"github.com/readyornot/sync-server/internal/repository/connection"
)

// repo tracks one live websocket per team device, looked up either way.
type repo struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	byConn   map[connection.Conn]string
	byTeamId map[string]connection.Conn
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		logger:   logger,
		byConn:   make(map[connection.Conn]string),
		byTeamId: make(map[string]connection.Conn),
	}
}

func (r *repo) Add(conn connection.Conn, teamId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[conn] != "" || r.byTeamId[teamId] != nil {
		return connection.ErrAlreadyExists
	}

	r.byConn[conn] = teamId
	r.byTeamId[teamId] = conn
	r.logger.Debug("team device connected", "team_id", teamId)

	return nil
}

func (r *repo) RemoveByConn(conn connection.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	teamId, ok := r.byConn[conn]
	if !ok {
		return connection.ErrNotFound
	}

	delete(r.byConn, conn)
	delete(r.byTeamId, teamId)
	r.logger.Debug("team device disconnected", "team_id", teamId)

	return nil
}

func (r *repo) RemoveByTeamId(teamId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byTeamId[teamId]
	if !ok {
		return connection.ErrNotFound
	}

	conn.Close()
	delete(r.byConn, conn)
	delete(r.byTeamId, teamId)

	return nil
}

func (r *repo) GetConn(teamId string) (connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byTeamId[teamId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetTeamId(conn connection.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	teamId, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return teamId, nil
}
