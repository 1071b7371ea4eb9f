package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/readyornot/sync-server/internal/repository/session"
)

func (r repo) getTeamKey(teamId string) string {
	return "team:" + teamId
}

func (r repo) getTeamListKey(sessionId string) string {
	return "session:" + sessionId + ":teamlist"
}

func (r repo) getRoundDataKey(teamId string, round int) string {
	return "team:" + teamId + ":round:" + strconv.Itoa(round)
}

func (r repo) getRoundListKey(teamId string) string {
	return "team:" + teamId + ":rounds"
}

func (r repo) SetTeam(ctx context.Context, params *session.SetTeamParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	team := session.Team{
		Name:  params.Name,
		Color: params.Color,
	}

	teamKey := r.getTeamKey(params.TeamId)
	r.hSetStruct(ctx, pipe, teamKey, team)
	pipe.Expire(ctx, teamKey, expireDuration)

	teamListKey := r.getTeamListKey(params.SessionId)
	r.addToList(ctx, pipe, teamListKey, params.TeamId)
	pipe.Expire(ctx, teamListKey, expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set team: %w", err)
	}

	return nil
}

func (r repo) GetTeam(ctx context.Context, teamId string) (session.Team, error) {
	teamKey := r.getTeamKey(teamId)

	exists, err := r.rc.Exists(ctx, teamKey).Result()
	if err != nil {
		return session.Team{}, fmt.Errorf("failed to check if team exists: %w", err)
	}
	if exists == 0 {
		return session.Team{}, session.ErrTeamNotFound
	}

	var team session.Team
	if err := r.rc.HGetAll(ctx, teamKey).Scan(&team); err != nil {
		return session.Team{}, fmt.Errorf("failed to get team: %w", err)
	}

	r.rc.Expire(ctx, teamKey, expireDuration)

	return team, nil
}

func (r repo) GetTeamIds(ctx context.Context, sessionId string) ([]string, error) {
	teamIds, err := r.rc.ZRange(ctx, r.getTeamListKey(sessionId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get team ids: %w", err)
	}

	return teamIds, nil
}

func (r repo) RemoveTeam(ctx context.Context, params *session.RemoveTeamParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, r.getTeamKey(params.TeamId))
	pipe.ZRem(ctx, r.getTeamListKey(params.SessionId), params.TeamId)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove team: %w", err)
	}

	return nil
}

func (r repo) SetRoundData(ctx context.Context, params *session.SetRoundDataParams) error {
	r.logger.DebugContext(ctx, "called", "team_id", params.TeamId, "round", params.Round)
	if len(params.KPIs) == 0 {
		return nil
	}

	pipe := r.rc.TxPipeline()

	fields := make(map[string]any, len(params.KPIs))
	for name, value := range params.KPIs {
		fields[name] = value
	}

	roundDataKey := r.getRoundDataKey(params.TeamId, params.Round)
	pipe.HSet(ctx, roundDataKey, fields)
	pipe.Expire(ctx, roundDataKey, expireDuration)

	roundListKey := r.getRoundListKey(params.TeamId)
	pipe.ZAddNX(ctx, roundListKey, zMember(params.Round))
	pipe.Expire(ctx, roundListKey, expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set round data: %w", err)
	}

	return nil
}

func (r repo) GetRoundData(ctx context.Context, teamId string, round int) (map[string]float64, error) {
	fields, err := r.rc.HGetAll(ctx, r.getRoundDataKey(teamId, round)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get round data: %w", err)
	}

	kpis := make(map[string]float64, len(fields))
	for name, value := range fields {
		kpis[name] = fieldToFloat64(value)
	}

	return kpis, nil
}

func (r repo) GetRounds(ctx context.Context, teamId string) ([]int, error) {
	members, err := r.rc.ZRange(ctx, r.getRoundListKey(teamId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rounds: %w", err)
	}

	rounds := make([]int, 0, len(members))
	for _, member := range members {
		round, err := strconv.Atoi(member)
		if err != nil {
			continue
		}
		rounds = append(rounds, round)
	}

	return rounds, nil
}
