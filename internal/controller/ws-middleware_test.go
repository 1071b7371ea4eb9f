package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readyornot/sync-server/pkg/ctxlogger"
	"github.com/readyornot/sync-server/pkg/wsrouter"
)

func TestWsLoggingMwTagsConnectionScope(t *testing.T) {
	var buf bytes.Buffer
	c := &controller{
		logger: slog.New(ctxlogger.ContextHandler{
			Handler: slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		}),
	}

	handled := false
	handler := c.wsLoggingMw()(func(ctx context.Context, conn wsrouter.Conn, payload json.RawMessage) error {
		handled = true
		return nil
	})

	ctx := context.WithValue(context.Background(), sessionIdCtxKey, "sess-1")
	ctx = context.WithValue(ctx, teamIdCtxKey, "team-9")

	require.NoError(t, handler(ctx, nil, nil))
	assert.True(t, handled)

	logs := buf.String()
	assert.Contains(t, logs, `"session_id":"sess-1"`)
	assert.Contains(t, logs, `"team_id":"team-9"`)
}

func TestWsLoggingMwPropagatesHandlerError(t *testing.T) {
	c := &controller{
		logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}

	wantErr := errors.New("boom")
	handler := c.wsLoggingMw()(func(ctx context.Context, conn wsrouter.Conn, payload json.RawMessage) error {
		return wantErr
	})

	assert.ErrorIs(t, handler(context.Background(), nil, nil), wantErr)
}
