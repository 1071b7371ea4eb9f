package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/repository/session"
)

type SubmitDecisionParams struct {
	SessionId string
	TeamId    string
	SlideId   int
	Round     int
	Choice    string
}

type SubmitDecisionResponse struct {
	Decision domain.Decision
}

func (s service) SubmitDecision(ctx context.Context, params *SubmitDecisionParams) (SubmitDecisionResponse, error) {
	if _, err := s.sessionRepo.GetTeam(ctx, params.TeamId); err != nil {
		if errors.Is(err, session.ErrTeamNotFound) {
			return SubmitDecisionResponse{}, ErrTeamNotFound
		}

		return SubmitDecisionResponse{}, err
	}

	decisionId := uuid.NewString()
	submittedAt := time.Now().Unix()

	if err := s.sessionRepo.AddDecision(ctx, &session.AddDecisionParams{
		DecisionId:  decisionId,
		SessionId:   params.SessionId,
		TeamId:      params.TeamId,
		SlideId:     params.SlideId,
		Round:       params.Round,
		Choice:      params.Choice,
		SubmittedAt: submittedAt,
	}); err != nil {
		return SubmitDecisionResponse{}, err
	}

	s.logger.InfoContext(ctx, "decision submitted",
		"session_id", params.SessionId,
		"team_id", params.TeamId,
		"slide_id", params.SlideId,
	)

	return SubmitDecisionResponse{
		Decision: domain.Decision{
			Id:          decisionId,
			SessionId:   params.SessionId,
			TeamId:      params.TeamId,
			SlideId:     params.SlideId,
			Round:       params.Round,
			Choice:      params.Choice,
			SubmittedAt: submittedAt,
		},
	}, nil
}

func (s service) GetDecisions(ctx context.Context, sessionId string) ([]domain.Decision, error) {
	decisionIds, err := s.sessionRepo.GetDecisionIds(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	decisions := make([]domain.Decision, 0, len(decisionIds))
	for _, decisionId := range decisionIds {
		decision, err := s.sessionRepo.GetDecision(ctx, decisionId)
		if err != nil {
			if errors.Is(err, session.ErrDecisionNotFound) {
				continue
			}

			return nil, err
		}

		decisions = append(decisions, domain.Decision{
			Id:          decisionId,
			SessionId:   sessionId,
			TeamId:      decision.TeamId,
			SlideId:     decision.SlideId,
			Round:       decision.Round,
			Choice:      decision.Choice,
			SubmittedAt: decision.SubmittedAt,
		})
	}

	return decisions, nil
}
