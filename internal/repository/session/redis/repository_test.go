package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readyornot/sync-server/internal/repository/session"
)

func newTestRepo(t *testing.T) *repo {
	t.Helper()
	s := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedSession(t *testing.T, r *repo, sessionId, joinCode string) {
	t.Helper()
	require.NoError(t, r.SetSession(context.Background(), &session.SetSessionParams{
		SessionId:      sessionId,
		JoinCode:       joinCode,
		Facilitator:    "alex",
		CurrentSlideId: 0,
		Phase:          "briefing",
		CreatedAt:      1700000000,
	}))
}

func TestSessionRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	seedSession(t, r, "s1", "ABC123")

	got, err := r.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", got.JoinCode)
	assert.Equal(t, "alex", got.Facilitator)
	assert.Equal(t, 0, got.CurrentSlideId)
	assert.Equal(t, "briefing", got.Phase)
	assert.Equal(t, int64(1700000000), got.CreatedAt)
}

func TestGetSessionNotFound(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestJoinCodeLookup(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	seedSession(t, r, "s1", "ABC123")

	sessionId, err := r.GetSessionIdByJoinCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "s1", sessionId)

	_, err = r.GetSessionIdByJoinCode(ctx, "NOPE")
	assert.ErrorIs(t, err, session.ErrJoinCodeNotFound)
}

func TestUpdateSessionPatchesOnlyGivenFields(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	seedSession(t, r, "s1", "ABC123")

	slideId := 5
	phase := "interactive"
	require.NoError(t, r.UpdateSession(ctx, &session.UpdateSessionParams{
		SessionId:      "s1",
		CurrentSlideId: &slideId,
		Phase:          &phase,
	}))

	got, err := r.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentSlideId)
	assert.Equal(t, "interactive", got.Phase)
	assert.Equal(t, "alex", got.Facilitator, "untouched fields must survive the patch")

	err = r.UpdateSession(ctx, &session.UpdateSessionParams{SessionId: "missing", Phase: &phase})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRemoveSessionDropsEverything(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	seedSession(t, r, "s1", "ABC123")
	require.NoError(t, r.SetTeam(ctx, &session.SetTeamParams{
		TeamId:    "t1",
		SessionId: "s1",
		Name:      "Team Red",
		Color:     "#ff0000",
	}))

	require.NoError(t, r.RemoveSession(ctx, "s1"))

	_, err := r.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = r.GetSessionIdByJoinCode(ctx, "ABC123")
	assert.ErrorIs(t, err, session.ErrJoinCodeNotFound)

	teamIds, err := r.GetTeamIds(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, teamIds)
}

func TestTeamListKeepsInsertionOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	for _, teamId := range []string{"t1", "t2", "t3"} {
		require.NoError(t, r.SetTeam(ctx, &session.SetTeamParams{
			TeamId:    teamId,
			SessionId: "s1",
			Name:      "Team " + teamId,
			Color:     "#fff",
		}))
	}

	teamIds, err := r.GetTeamIds(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, teamIds)

	require.NoError(t, r.RemoveTeam(ctx, &session.RemoveTeamParams{TeamId: "t2", SessionId: "s1"}))

	teamIds, err = r.GetTeamIds(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, teamIds)

	_, err = r.GetTeam(ctx, "t2")
	assert.ErrorIs(t, err, session.ErrTeamNotFound)
}

func TestRoundDataRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetRoundData(ctx, &session.SetRoundDataParams{
		TeamId: "t1",
		Round:  1,
		KPIs:   map[string]float64{"revenue": 120.5, "morale": 0.8},
	}))
	require.NoError(t, r.SetRoundData(ctx, &session.SetRoundDataParams{
		TeamId: "t1",
		Round:  2,
		KPIs:   map[string]float64{"revenue": 131},
	}))

	rounds, err := r.GetRounds(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rounds)

	kpis, err := r.GetRoundData(ctx, "t1", 1)
	require.NoError(t, err)
	assert.Equal(t, 120.5, kpis["revenue"])
	assert.Equal(t, 0.8, kpis["morale"])

	// re-recording a round overwrites its fields, not the round list
	require.NoError(t, r.SetRoundData(ctx, &session.SetRoundDataParams{
		TeamId: "t1",
		Round:  1,
		KPIs:   map[string]float64{"revenue": 125},
	}))
	rounds, err = r.GetRounds(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rounds)
}

func TestDecisionRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.AddDecision(ctx, &session.AddDecisionParams{
		DecisionId:  "d1",
		SessionId:   "s1",
		TeamId:      "t1",
		SlideId:     4,
		Round:       1,
		Choice:      "invest",
		SubmittedAt: 1700000100,
	}))
	require.NoError(t, r.AddDecision(ctx, &session.AddDecisionParams{
		DecisionId:  "d2",
		SessionId:   "s1",
		TeamId:      "t2",
		SlideId:     4,
		Round:       1,
		Choice:      "hold",
		SubmittedAt: 1700000110,
	}))

	decisionIds, err := r.GetDecisionIds(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, decisionIds)

	got, err := r.GetDecision(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TeamId)
	assert.Equal(t, 4, got.SlideId)
	assert.Equal(t, "invest", got.Choice)
	assert.Equal(t, int64(1700000100), got.SubmittedAt)

	_, err = r.GetDecision(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrDecisionNotFound)
}
