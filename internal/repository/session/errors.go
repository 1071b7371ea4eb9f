package session

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrTeamNotFound     = errors.New("team not found")
	ErrJoinCodeNotFound = errors.New("join code not found")
	ErrDecisionNotFound = errors.New("decision not found")
)
