package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/repository/session"
)

type AddTeamParams struct {
	SessionId string
	Name      string
	Color     string
}

type AddTeamResponse struct {
	Team domain.Team
}

func (s service) AddTeam(ctx context.Context, params *AddTeamParams) (AddTeamResponse, error) {
	if _, err := s.GetSession(ctx, params.SessionId); err != nil {
		return AddTeamResponse{}, err
	}

	teamId := uuid.NewString()
	if err := s.sessionRepo.SetTeam(ctx, &session.SetTeamParams{
		TeamId:    teamId,
		SessionId: params.SessionId,
		Name:      params.Name,
		Color:     params.Color,
	}); err != nil {
		return AddTeamResponse{}, err
	}

	s.logger.InfoContext(ctx, "team added", "session_id", params.SessionId, "team_id", teamId)

	return AddTeamResponse{
		Team: domain.Team{
			Id:        teamId,
			SessionId: params.SessionId,
			Name:      params.Name,
			Color:     params.Color,
		},
	}, nil
}

func (s service) GetTeams(ctx context.Context, sessionId string) ([]domain.Team, error) {
	teamIds, err := s.sessionRepo.GetTeamIds(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	teams := make([]domain.Team, 0, len(teamIds))
	for _, teamId := range teamIds {
		team, err := s.sessionRepo.GetTeam(ctx, teamId)
		if err != nil {
			if errors.Is(err, session.ErrTeamNotFound) {
				continue
			}

			return nil, err
		}

		teams = append(teams, domain.Team{
			Id:        teamId,
			SessionId: sessionId,
			Name:      team.Name,
			Color:     team.Color,
		})
	}

	return teams, nil
}

type RemoveTeamParams struct {
	SessionId string
	TeamId    string
}

func (s service) RemoveTeam(ctx context.Context, params *RemoveTeamParams) error {
	if err := s.sessionRepo.RemoveTeam(ctx, &session.RemoveTeamParams{
		TeamId:    params.TeamId,
		SessionId: params.SessionId,
	}); err != nil {
		return err
	}

	s.connRepo.RemoveByTeamId(params.TeamId)

	return nil
}

type SaveRoundDataParams struct {
	SessionId string
	TeamId    string
	Round     int
	KPIs      map[string]float64
}

func (s service) SaveRoundData(ctx context.Context, params *SaveRoundDataParams) error {
	if _, err := s.sessionRepo.GetTeam(ctx, params.TeamId); err != nil {
		if errors.Is(err, session.ErrTeamNotFound) {
			return ErrTeamNotFound
		}

		return err
	}

	return s.sessionRepo.SetRoundData(ctx, &session.SetRoundDataParams{
		TeamId: params.TeamId,
		Round:  params.Round,
		KPIs:   params.KPIs,
	})
}

// GetTeamDataSnapshot assembles the full standings payload that rides along
// with slide updates.
func (s service) GetTeamDataSnapshot(ctx context.Context, sessionId string) (domain.TeamDataSnapshot, error) {
	teams, err := s.GetTeams(ctx, sessionId)
	if err != nil {
		return domain.TeamDataSnapshot{}, err
	}

	rounds := make([]domain.TeamRoundData, 0)
	for _, team := range teams {
		roundNums, err := s.sessionRepo.GetRounds(ctx, team.Id)
		if err != nil {
			return domain.TeamDataSnapshot{}, err
		}

		for _, round := range roundNums {
			kpis, err := s.sessionRepo.GetRoundData(ctx, team.Id, round)
			if err != nil {
				return domain.TeamDataSnapshot{}, err
			}

			rounds = append(rounds, domain.TeamRoundData{
				TeamId: team.Id,
				Round:  round,
				KPIs:   kpis,
			})
		}
	}

	decisions, err := s.GetDecisions(ctx, sessionId)
	if err != nil {
		return domain.TeamDataSnapshot{}, err
	}

	return domain.TeamDataSnapshot{
		Teams:     teams,
		Rounds:    rounds,
		Decisions: decisions,
	}, nil
}
