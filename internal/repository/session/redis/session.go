package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/readyornot/sync-server/internal/repository/session"
	omitnilpointers "github.com/readyornot/sync-server/pkg/omit-nil-pointers"
)

func (r repo) getSessionKey(sessionId string) string {
	return "session:" + sessionId
}

func (r repo) getJoinCodeKey(joinCode string) string {
	return "joincode:" + joinCode
}

func (r repo) SetSession(ctx context.Context, params *session.SetSessionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	record := session.Session{
		JoinCode:       params.JoinCode,
		Facilitator:    params.Facilitator,
		CurrentSlideId: params.CurrentSlideId,
		Phase:          params.Phase,
		CreatedAt:      params.CreatedAt,
	}

	sessionKey := r.getSessionKey(params.SessionId)
	r.hSetStruct(ctx, pipe, sessionKey, record)
	pipe.Expire(ctx, sessionKey, expireDuration)

	joinCodeKey := r.getJoinCodeKey(params.JoinCode)
	pipe.Set(ctx, joinCodeKey, params.SessionId, expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (r repo) GetSession(ctx context.Context, sessionId string) (session.Session, error) {
	sessionKey := r.getSessionKey(sessionId)

	exists, err := r.rc.Exists(ctx, sessionKey).Result()
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to check if session exists: %w", err)
	}
	if exists == 0 {
		return session.Session{}, session.ErrSessionNotFound
	}

	var record session.Session
	if err := r.rc.HGetAll(ctx, sessionKey).Scan(&record); err != nil {
		return session.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	r.rc.Expire(ctx, sessionKey, expireDuration)

	return record, nil
}

func (r repo) GetSessionIdByJoinCode(ctx context.Context, joinCode string) (string, error) {
	sessionId, err := r.rc.Get(ctx, r.getJoinCodeKey(joinCode)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", session.ErrJoinCodeNotFound
		}

		return "", fmt.Errorf("failed to get session id by join code: %w", err)
	}

	return sessionId, nil
}

func (r repo) UpdateSession(ctx context.Context, params *session.UpdateSessionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	sessionKey := r.getSessionKey(params.SessionId)

	exists, err := r.rc.Exists(ctx, sessionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check if session exists: %w", err)
	}
	if exists == 0 {
		return session.ErrSessionNotFound
	}

	fields := omitnilpointers.OmitNilPointers(map[string]any{
		"current_slide_id": params.CurrentSlideId,
		"phase":            params.Phase,
		"facilitator":      params.Facilitator,
	})
	if len(fields) == 0 {
		return nil
	}

	if err := r.rc.HSet(ctx, sessionKey, fields).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	r.rc.Expire(ctx, sessionKey, expireDuration)

	return nil
}

func (r repo) RemoveSession(ctx context.Context, sessionId string) error {
	record, err := r.GetSession(ctx, sessionId)
	if err != nil {
		return err
	}

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getSessionKey(sessionId))
	pipe.Del(ctx, r.getJoinCodeKey(record.JoinCode))
	pipe.Del(ctx, r.getTeamListKey(sessionId))
	pipe.Del(ctx, r.getDecisionListKey(sessionId))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	return nil
}
