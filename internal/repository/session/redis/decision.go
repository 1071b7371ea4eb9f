package redis

import (
	"context"
	"fmt"

	"github.com/readyornot/sync-server/internal/repository/session"
)

func (r repo) getDecisionKey(decisionId string) string {
	return "decision:" + decisionId
}

func (r repo) getDecisionListKey(sessionId string) string {
	return "session:" + sessionId + ":decisionlist"
}

func (r repo) AddDecision(ctx context.Context, params *session.AddDecisionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	decision := session.Decision{
		TeamId:      params.TeamId,
		SlideId:     params.SlideId,
		Round:       params.Round,
		Choice:      params.Choice,
		SubmittedAt: params.SubmittedAt,
	}

	decisionKey := r.getDecisionKey(params.DecisionId)
	r.hSetStruct(ctx, pipe, decisionKey, decision)
	pipe.Expire(ctx, decisionKey, expireDuration)

	decisionListKey := r.getDecisionListKey(params.SessionId)
	r.addToList(ctx, pipe, decisionListKey, params.DecisionId)
	pipe.Expire(ctx, decisionListKey, expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to add decision: %w", err)
	}

	return nil
}

func (r repo) GetDecision(ctx context.Context, decisionId string) (session.Decision, error) {
	decisionKey := r.getDecisionKey(decisionId)

	exists, err := r.rc.Exists(ctx, decisionKey).Result()
	if err != nil {
		return session.Decision{}, fmt.Errorf("failed to check if decision exists: %w", err)
	}
	if exists == 0 {
		return session.Decision{}, session.ErrDecisionNotFound
	}

	var decision session.Decision
	if err := r.rc.HGetAll(ctx, decisionKey).Scan(&decision); err != nil {
		return session.Decision{}, fmt.Errorf("failed to get decision: %w", err)
	}

	return decision, nil
}

func (r repo) GetDecisionIds(ctx context.Context, sessionId string) ([]string, error) {
	decisionIds, err := r.rc.ZRange(ctx, r.getDecisionListKey(sessionId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get decision ids: %w", err)
	}

	return decisionIds, nil
}
