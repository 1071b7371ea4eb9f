package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/readyornot/sync-server/pkg/ctxlogger"
	"github.com/readyornot/sync-server/pkg/wsrouter"
)

func (c *controller) wsLoggingMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, conn wsrouter.Conn, payload json.RawMessage) error {
			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", messageType))
			if sessionId := c.getSessionIdFromCtx(ctx); sessionId != "" {
				ctx = ctxlogger.AppendCtx(ctx, slog.String("session_id", sessionId))
			}
			if teamId := c.getTeamIdFromCtx(ctx); teamId != "" {
				ctx = ctxlogger.AppendCtx(ctx, slog.String("team_id", teamId))
			}
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()
			err := next(ctx, conn, payload)

			c.logger.DebugContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"error", err,
			)

			return err
		}
	}
}
