package controller

import "context"

type contextKey int

const (
	sessionIdCtxKey contextKey = iota
	teamIdCtxKey
)

func (c *controller) getSessionIdFromCtx(ctx context.Context) string {
	sessionId, ok := ctx.Value(sessionIdCtxKey).(string)
	if !ok {
		return ""
	}

	return sessionId
}

func (c *controller) getTeamIdFromCtx(ctx context.Context) string {
	teamId, ok := ctx.Value(teamIdCtxKey).(string)
	if !ok {
		return ""
	}

	return teamId
}
