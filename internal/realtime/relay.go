package realtime

import (
	"context"
	"log/slog"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/repository/connection"
)

type iConnProvider interface {
	GetConnsBySessionId(ctx context.Context, sessionId string) ([]connection.Conn, error)
}

// Relay subscribes to a session's team channel and fans each event out to
// the team devices connected to this instance.
type Relay struct {
	publisher *Publisher
	conns     iConnProvider
	logger    *slog.Logger
}

func NewRelay(publisher *Publisher, conns iConnProvider, logger *slog.Logger) *Relay {
	return &Relay{
		publisher: publisher,
		conns:     conns,
		logger:    logger,
	}
}

// Start begins relaying for the session. The returned stop func detaches the
// subscription; connected devices are untouched.
func (r *Relay) Start(ctx context.Context, sessionId string) func() {
	return r.publisher.Subscribe(ctx, sessionId, func(event domain.TeamEvent) {
		conns, err := r.conns.GetConnsBySessionId(ctx, sessionId)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to get team conns", "session_id", sessionId, "error", err)
			return
		}

		for _, conn := range conns {
			if err := conn.WriteJSON(event); err != nil {
				r.logger.WarnContext(ctx, "failed to write team event", "error", err)
			}
		}
	})
}
