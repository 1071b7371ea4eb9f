package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readyornot/sync-server/internal/domain"
)

// Publisher pushes team events through redis pub/sub so every server
// instance relays them to its own connected devices.
type Publisher struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewPublisher(rc *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{rc: rc, logger: logger}
}

func teamChannel(sessionId string) string {
	return "readyornot:session:" + sessionId + ":team"
}

const (
	EventDecisionTime  = "decision_time"
	EventDecisionReset = "decision_reset"
	EventSessionEnded  = "session_ended"
)

func (p *Publisher) SendTeamEvent(ctx context.Context, sessionId, name string, payload any) error {
	event := domain.TeamEvent{
		Name:      name,
		SessionId: sessionId,
		Timestamp: time.Now().UnixMilli(),
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		event.Payload = raw
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal team event: %w", err)
	}

	if err := p.rc.Publish(ctx, teamChannel(sessionId), raw).Err(); err != nil {
		return fmt.Errorf("failed to publish team event: %w", err)
	}

	p.logger.DebugContext(ctx, "team event published", "session_id", sessionId, "event", name)

	return nil
}

type DecisionTimePayload struct {
	SlideId         int   `json:"slide_id"`
	Round           int   `json:"round"`
	DurationSeconds int   `json:"duration_seconds"`
	TimerEndTime    int64 `json:"timer_end_time"`
}

// SendDecisionTime tells team devices an interactive slide is live and how
// long they have to submit.
func (p *Publisher) SendDecisionTime(ctx context.Context, sessionId string, payload DecisionTimePayload) error {
	return p.SendTeamEvent(ctx, sessionId, EventDecisionTime, payload)
}

func (p *Publisher) SendDecisionReset(ctx context.Context, sessionId string) error {
	return p.SendTeamEvent(ctx, sessionId, EventDecisionReset, nil)
}

func (p *Publisher) SendSessionEnded(ctx context.Context, sessionId string) error {
	return p.SendTeamEvent(ctx, sessionId, EventSessionEnded, nil)
}

// Subscribe delivers each team event for the session to onEvent until the
// returned stop func is called or ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, sessionId string, onEvent func(domain.TeamEvent)) func() {
	sub := p.rc.Subscribe(ctx, teamChannel(sessionId))

	go func() {
		for msg := range sub.Channel() {
			var event domain.TeamEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.logger.WarnContext(ctx, "failed to unmarshal team event", "error", err)
				continue
			}

			onEvent(event)
		}
	}()

	return func() {
		sub.Close()
	}
}
