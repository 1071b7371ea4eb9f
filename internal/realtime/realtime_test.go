package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/repository/connection"
)

func newTestPublisher(t *testing.T) *Publisher {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewPublisher(rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTeamEventRoundTrip(t *testing.T) {
	p := newTestPublisher(t)
	ctx := context.Background()

	events := make(chan domain.TeamEvent, 4)
	stop := p.Subscribe(ctx, "s1", func(event domain.TeamEvent) {
		events <- event
	})
	defer stop()

	// the subscription needs a moment to register with the broker
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.SendDecisionTime(ctx, "s1", DecisionTimePayload{
		SlideId:         4,
		Round:           1,
		DurationSeconds: 300,
		TimerEndTime:    1700000300000,
	}))

	select {
	case event := <-events:
		assert.Equal(t, EventDecisionTime, event.Name)
		assert.Equal(t, "s1", event.SessionId)
		assert.NotZero(t, event.Timestamp)

		var payload DecisionTimePayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Equal(t, 4, payload.SlideId)
		assert.Equal(t, 300, payload.DurationSeconds)
		assert.Equal(t, int64(1700000300000), payload.TimerEndTime)
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestEventsAreScopedToSession(t *testing.T) {
	p := newTestPublisher(t)
	ctx := context.Background()

	events := make(chan domain.TeamEvent, 4)
	stop := p.Subscribe(ctx, "s1", func(event domain.TeamEvent) {
		events <- event
	})
	defer stop()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.SendDecisionReset(ctx, "s2"))
	require.NoError(t, p.SendSessionEnded(ctx, "s1"))

	select {
	case event := <-events:
		assert.Equal(t, EventSessionEnded, event.Name, "only own-session events may arrive")
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}

	select {
	case event := <-events:
		t.Fatalf("unexpected extra event: %s", event.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopEndsDelivery(t *testing.T) {
	p := newTestPublisher(t)
	ctx := context.Background()

	events := make(chan domain.TeamEvent, 4)
	stop := p.Subscribe(ctx, "s1", func(event domain.TeamEvent) {
		events <- event
	})

	time.Sleep(50 * time.Millisecond)
	stop()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.SendDecisionReset(ctx, "s1"))

	select {
	case <-events:
		t.Fatal("event delivered after stop")
	case <-time.After(100 * time.Millisecond):
	}
}

type captureConn struct {
	events chan domain.TeamEvent
}

func newCaptureConn() *captureConn {
	return &captureConn{events: make(chan domain.TeamEvent, 4)}
}

func (c *captureConn) WriteJSON(v any) error {
	if event, ok := v.(domain.TeamEvent); ok {
		c.events <- event
	}
	return nil
}

func (c *captureConn) Close() error { return nil }

type staticConnProvider struct {
	conns []connection.Conn
}

func (p *staticConnProvider) GetConnsBySessionId(_ context.Context, _ string) ([]connection.Conn, error) {
	return p.conns, nil
}

func TestRelayFansOutToEveryConn(t *testing.T) {
	p := newTestPublisher(t)
	ctx := context.Background()

	first := newCaptureConn()
	second := newCaptureConn()
	provider := &staticConnProvider{conns: []connection.Conn{first, second}}

	relay := NewRelay(p, provider, slog.New(slog.NewTextHandler(io.Discard, nil)))
	stop := relay.Start(ctx, "s1")
	defer stop()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.SendDecisionReset(ctx, "s1"))

	for _, conn := range []*captureConn{first, second} {
		select {
		case event := <-conn.events:
			assert.Equal(t, EventDecisionReset, event.Name)
			assert.Equal(t, "s1", event.SessionId)
		case <-time.After(2 * time.Second):
			t.Fatal("event never relayed to a connected device")
		}
	}
}
