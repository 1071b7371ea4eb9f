package syncer

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/pkg/broadcast"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(t *testing.T, role Role) (*Monitor, *broadcast.Channel, *clockwork.FakeClock) {
	t.Helper()
	channels := broadcast.NewRegistry(testLogger())
	ch := channels.GetOrCreate(sessionChannelName("session-1"))
	clock := clockwork.NewFakeClock()
	m := NewMonitor("session-1", role, ch, clock, DefaultMonitorConfig(), testLogger())
	t.Cleanup(m.Destroy)

	return m, ch, clock
}

func statusMessage(status string, role Role, sentAt int64) json.RawMessage {
	raw, _ := json.Marshal(domain.StatusMessage{
		Type:      domain.MessageTypeStatus,
		SessionId: "session-1",
		Status:    status,
		Role:      string(role),
		SentAt:    sentAt,
		Timestamp: sentAt,
	})
	return raw
}

func TestProbeMarksConnecting(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	require.Equal(t, StatusDisconnected, m.State().Status)

	m.ForceHealthCheck()
	assert.Equal(t, StatusConnecting, m.State().Status)
	assert.Equal(t, "awaiting reply", m.State().Reason)
}

func TestPongConnectsAndMeasuresLatency(t *testing.T) {
	m, _, clock := newTestMonitor(t, RoleHost)

	m.ForceHealthCheck()
	sentAt := clock.Now().UnixMilli()

	clock.Advance(40 * time.Millisecond)
	m.handleMessage(statusMessage(domain.StatusPong, RoleHost, sentAt))

	state := m.State()
	assert.Equal(t, StatusConnected, state.Status)
	assert.Equal(t, 40*time.Millisecond, state.Latency)
}

func TestPongForOtherRoleIgnored(t *testing.T) {
	m, _, clock := newTestMonitor(t, RoleHost)

	m.ForceHealthCheck()
	m.handleMessage(statusMessage(domain.StatusPong, RolePresentation, clock.Now().UnixMilli()))

	assert.Equal(t, StatusConnecting, m.State().Status, "a pong answering someone else's probe must not connect us")
}

func TestUnansweredProbeDisconnectsOnce(t *testing.T) {
	m, _, clock := newTestMonitor(t, RoleHost)

	var mu sync.Mutex
	unresponsive := 0
	unsubscribe := m.Subscribe(func(s ConnectionState) {
		if s.Reason == "peer unresponsive" {
			mu.Lock()
			unresponsive++
			mu.Unlock()
		}
	})
	defer unsubscribe()

	m.ForceHealthCheck()
	clock.Advance(DefaultMonitorConfig().ReplyTimeout)

	require.Eventually(t, func() bool {
		return m.State().Status == StatusDisconnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "peer unresponsive", m.State().Reason)

	// the timeout fired once; further silence without a new probe adds nothing
	clock.Advance(DefaultMonitorConfig().ReplyTimeout)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, unresponsive)
	mu.Unlock()
}

func TestPeerProbeGetsEchoedPong(t *testing.T) {
	m, ch, clock := newTestMonitor(t, RolePresentation)

	published := make(chan domain.StatusMessage, 8)
	defer ch.Subscribe(func(raw json.RawMessage) {
		var msg domain.StatusMessage
		if json.Unmarshal(raw, &msg) == nil {
			published <- msg
		}
	})()

	sentAt := clock.Now().UnixMilli() - 25
	m.handleMessage(statusMessage(domain.StatusPing, RoleHost, sentAt))

	select {
	case pong := <-published:
		assert.Equal(t, domain.StatusPong, pong.Status)
		assert.Equal(t, string(RoleHost), pong.Role, "pong must echo the prober's role")
		assert.Equal(t, sentAt, pong.SentAt, "pong must echo the probe's send time")
	case <-time.After(time.Second):
		t.Fatal("no pong published")
	}
}

func TestOwnProbeNotAnswered(t *testing.T) {
	m, ch, clock := newTestMonitor(t, RoleHost)

	published := make(chan domain.StatusMessage, 8)
	defer ch.Subscribe(func(raw json.RawMessage) {
		var msg domain.StatusMessage
		if json.Unmarshal(raw, &msg) == nil && msg.Status == domain.StatusPong {
			published <- msg
		}
	})()

	m.handleMessage(statusMessage(domain.StatusPing, RoleHost, clock.Now().UnixMilli()))

	select {
	case <-published:
		t.Fatal("monitor answered its own probe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPeerReadyConnects(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	m.handleMessage(statusMessage(domain.StatusReady, RolePresentation, 0))
	assert.Equal(t, StatusConnected, m.State().Status)
}

func TestPeerDisconnectDowngrades(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	m.handleMessage(statusMessage(domain.StatusReady, RolePresentation, 0))
	require.Equal(t, StatusConnected, m.State().Status)

	m.handleMessage(statusMessage(domain.StatusDisconnect, RolePresentation, 0))
	state := m.State()
	assert.Equal(t, StatusDisconnected, state.Status)
	assert.Equal(t, "peer disconnected", state.Reason)
}

func TestSessionEndedIsTerminal(t *testing.T) {
	m, _, _ := newTestMonitor(t, RolePresentation)

	m.handleMessage(statusMessage(domain.StatusSessionEnded, RoleHost, 0))
	state := m.State()
	require.Equal(t, StatusDisconnected, state.Status)
	assert.Equal(t, "session ended", state.Reason)

	// nothing revives a terminated monitor
	m.ForceHealthCheck()
	assert.Equal(t, StatusDisconnected, m.State().Status)
	m.ForceReconnect()
	assert.Equal(t, StatusDisconnected, m.State().Status)
	m.handleMessage(statusMessage(domain.StatusReady, RoleHost, 0))
	assert.Equal(t, StatusDisconnected, m.State().Status)
}

func TestOtherSessionDiscarded(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	raw, _ := json.Marshal(domain.StatusMessage{
		Type:      domain.MessageTypeStatus,
		SessionId: "session-2",
		Status:    domain.StatusReady,
		Role:      string(RolePresentation),
	})
	m.handleMessage(raw)

	assert.Equal(t, StatusDisconnected, m.State().Status)
}

func TestForceReconnectRestartsProbing(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	m.handleMessage(statusMessage(domain.StatusReady, RolePresentation, 0))
	require.Equal(t, StatusConnected, m.State().Status)

	m.ForceReconnect()
	assert.Equal(t, StatusConnecting, m.State().Status, "reconnect must probe immediately")
}

func TestForceDisconnectCarriesReason(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	m.ForceDisconnect("display window closed")
	state := m.State()
	assert.Equal(t, StatusDisconnected, state.Status)
	assert.Equal(t, "display window closed", state.Reason)
}

func TestSubscribeImmediateInvoke(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	var got *ConnectionState
	unsubscribe := m.Subscribe(func(s ConnectionState) {
		if got == nil {
			got = &s
		}
	})
	defer unsubscribe()

	require.NotNil(t, got, "subscriber must be invoked with the cached state")
	assert.Equal(t, StatusDisconnected, got.Status)
}

func TestDestroySilencesCallbacks(t *testing.T) {
	m, _, _ := newTestMonitor(t, RoleHost)

	var mu sync.Mutex
	calls := 0
	m.Subscribe(func(ConnectionState) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	m.Destroy()
	m.Destroy()

	m.handleMessage(statusMessage(domain.StatusReady, RolePresentation, 0))
	m.ForceHealthCheck()

	mu.Lock()
	assert.Equal(t, 1, calls, "only the immediate invocation may have fired")
	mu.Unlock()
}
