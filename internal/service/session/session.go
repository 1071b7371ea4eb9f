package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/repository/session"
)

type CreateSessionParams struct {
	Facilitator string
}

type CreateSessionResponse struct {
	Session domain.Session
}

func (s service) CreateSession(ctx context.Context, params *CreateSessionParams) (CreateSessionResponse, error) {
	sessionId := uuid.NewString()
	joinCode := s.generator.GenerateRandomString(s.joinCodeLen)
	createdAt := time.Now().Unix()

	if err := s.sessionRepo.SetSession(ctx, &session.SetSessionParams{
		SessionId:      sessionId,
		JoinCode:       joinCode,
		Facilitator:    params.Facilitator,
		CurrentSlideId: 0,
		Phase:          string(domain.PhaseBriefing),
		CreatedAt:      createdAt,
	}); err != nil {
		return CreateSessionResponse{}, err
	}

	s.logger.InfoContext(ctx, "session created", "session_id", sessionId, "join_code", joinCode)

	return CreateSessionResponse{
		Session: domain.Session{
			Id:             sessionId,
			JoinCode:       joinCode,
			Facilitator:    params.Facilitator,
			CurrentSlideId: 0,
			Phase:          domain.PhaseBriefing,
			CreatedAt:      createdAt,
		},
	}, nil
}

func (s service) GetSession(ctx context.Context, sessionId string) (domain.Session, error) {
	sess, err := s.sessionRepo.GetSession(ctx, sessionId)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return domain.Session{}, ErrSessionNotFound
		}

		return domain.Session{}, err
	}

	return domain.Session{
		Id:             sessionId,
		JoinCode:       sess.JoinCode,
		Facilitator:    sess.Facilitator,
		CurrentSlideId: sess.CurrentSlideId,
		Phase:          domain.Phase(sess.Phase),
		CreatedAt:      sess.CreatedAt,
	}, nil
}

func (s service) GetSessionByJoinCode(ctx context.Context, joinCode string) (domain.Session, error) {
	sessionId, err := s.sessionRepo.GetSessionIdByJoinCode(ctx, joinCode)
	if err != nil {
		if errors.Is(err, session.ErrJoinCodeNotFound) {
			return domain.Session{}, ErrJoinCodeNotFound
		}

		return domain.Session{}, err
	}

	return s.GetSession(ctx, sessionId)
}

type UpdateSessionParams struct {
	SessionId      string
	CurrentSlideId *int
	Phase          *domain.Phase
}

func (s service) UpdateSession(ctx context.Context, params *UpdateSessionParams) error {
	var phase *string
	if params.Phase != nil {
		p := string(*params.Phase)
		phase = &p
	}

	if err := s.sessionRepo.UpdateSession(ctx, &session.UpdateSessionParams{
		SessionId:      params.SessionId,
		CurrentSlideId: params.CurrentSlideId,
		Phase:          phase,
	}); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}

		return err
	}

	return nil
}

func (s service) EndSession(ctx context.Context, sessionId string) error {
	s.logger.InfoContext(ctx, "session ended", "session_id", sessionId)

	teamIds, err := s.sessionRepo.GetTeamIds(ctx, sessionId)
	if err != nil {
		return err
	}

	for _, teamId := range teamIds {
		s.connRepo.RemoveByTeamId(teamId)
	}

	return s.sessionRepo.RemoveSession(ctx, sessionId)
}
