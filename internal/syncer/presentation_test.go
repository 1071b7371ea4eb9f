package syncer

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readyornot/sync-server/internal/domain"
	"github.com/readyornot/sync-server/internal/video"
	"github.com/readyornot/sync-server/pkg/broadcast"
)

type receiverFixture struct {
	receiver *Receiver
	element  *video.MemoryElement
	ch       *broadcast.Channel
	clock    *clockwork.FakeClock

	mu        sync.Mutex
	slides    []domain.Slide
	snapshots []*domain.TeamDataSnapshot
	scrolls   []float64
	resets    int
	closes    int
	joinInfo  []*domain.JoinInfo
	errs      []error
}

func newReceiverFixture(t *testing.T) *receiverFixture {
	t.Helper()
	channels := broadcast.NewRegistry(testLogger())
	f := &receiverFixture{
		element: video.NewMemoryElement(),
		ch:      channels.GetOrCreate(sessionChannelName("session-1")),
		clock:   clockwork.NewFakeClock(),
	}

	hooks := ReceiverHooks{
		OnSlide: func(slide domain.Slide, snapshot *domain.TeamDataSnapshot) {
			f.mu.Lock()
			f.slides = append(f.slides, slide)
			f.snapshots = append(f.snapshots, snapshot)
			f.mu.Unlock()
		},
		OnJoinInfo: func(info *domain.JoinInfo) {
			f.mu.Lock()
			f.joinInfo = append(f.joinInfo, info)
			f.mu.Unlock()
		},
		OnScroll: func(scrollTop float64) {
			f.mu.Lock()
			f.scrolls = append(f.scrolls, scrollTop)
			f.mu.Unlock()
		},
		OnDecisionReset: func() {
			f.mu.Lock()
			f.resets++
			f.mu.Unlock()
		},
		OnClose: func() {
			f.mu.Lock()
			f.closes++
			f.mu.Unlock()
		},
		OnError: func(err error) {
			f.mu.Lock()
			f.errs = append(f.errs, err)
			f.mu.Unlock()
		},
	}

	f.receiver = NewReceiver("session-1", channels, f.element, f.clock, DefaultReceiverConfig(), hooks, testLogger())
	t.Cleanup(f.receiver.Destroy)

	return f
}

func (f *receiverFixture) command(action domain.CommandAction, data domain.CommandData, ts int64) {
	raw, _ := json.Marshal(domain.Command{
		Type:      domain.MessageTypeCommand,
		SessionId: "session-1",
		CommandId: "cmd-1",
		Action:    action,
		Data:      data,
		Timestamp: ts,
	})
	f.receiver.handleMessage(raw)
}

func (f *receiverFixture) slideUpdate(slide domain.Slide, ts int64) {
	f.slideUpdateWithData(slide, nil, ts)
}

func (f *receiverFixture) slideUpdateWithData(slide domain.Slide, teamData *domain.TeamDataSnapshot, ts int64) {
	raw, _ := json.Marshal(domain.SlideUpdate{
		Type:      domain.MessageTypeSlideUpdate,
		SessionId: "session-1",
		Slide:     slide,
		TeamData:  teamData,
		Timestamp: ts,
	})
	f.receiver.handleMessage(raw)
}

func ptr(v float64) *float64 { return &v }

func TestReceiverAnnouncesReadyOnConstruction(t *testing.T) {
	channels := broadcast.NewRegistry(testLogger())
	ch := channels.GetOrCreate(sessionChannelName("session-1"))

	messages, unsubscribe := collectMessages(t, ch)
	defer unsubscribe()

	r := NewReceiver("session-1", channels, video.NewMemoryElement(), clockwork.NewFakeClock(), DefaultReceiverConfig(), ReceiverHooks{}, testLogger())
	defer r.Destroy()

	msg := waitFor(t, messages, func(m domain.StatusMessage) bool {
		return m.Type == domain.MessageTypeStatus && m.Status == domain.StatusReady
	})
	assert.Equal(t, string(RolePresentation), msg.Role)
}

func TestSlideUpdateLoadsSourceAndFiresHook(t *testing.T) {
	f := newReceiverFixture(t)

	f.slideUpdate(domain.Slide{Id: 7, Kind: domain.SlideKindVideo, MediaURL: "https://cdn.example.com/r1.mp4"}, 100)

	assert.Equal(t, "https://cdn.example.com/r1.mp4", f.element.Source())
	f.mu.Lock()
	require.Len(t, f.slides, 1)
	assert.Equal(t, 7, f.slides[0].Id)
	f.mu.Unlock()
}

func TestSlideUpdateCarriesTeamSnapshot(t *testing.T) {
	f := newReceiverFixture(t)

	snapshot := &domain.TeamDataSnapshot{
		Teams: []domain.Team{
			{Id: "team-1", SessionId: "session-1", Name: "Alpha", Color: "#ff5533"},
			{Id: "team-2", SessionId: "session-1", Name: "Bravo", Color: "#3355ff"},
		},
		Rounds: []domain.TeamRoundData{
			{TeamId: "team-1", Round: 1, KPIs: map[string]float64{"revenue": 1200.5, "morale": 0.8}},
			{TeamId: "team-2", Round: 1, KPIs: map[string]float64{"revenue": 980, "morale": 0.95}},
		},
		Decisions: []domain.Decision{
			{Id: "dec-1", SessionId: "session-1", TeamId: "team-1", SlideId: 9, Round: 1, Choice: "expand", SubmittedAt: 1700000200000},
		},
	}

	f.slideUpdateWithData(domain.Slide{Id: 9, Kind: domain.SlideKindDecision, Round: 1}, snapshot, 100)

	f.mu.Lock()
	require.Len(t, f.snapshots, 1)
	require.NotNil(t, f.snapshots[0])
	assert.Equal(t, snapshot.Teams, f.snapshots[0].Teams)
	assert.Equal(t, snapshot.Rounds, f.snapshots[0].Rounds)
	assert.Equal(t, snapshot.Decisions, f.snapshots[0].Decisions)
	f.mu.Unlock()

	// a plain slide carries no snapshot
	f.slideUpdate(domain.Slide{Id: 10, Kind: domain.SlideKindContent}, 200)
	f.mu.Lock()
	require.Len(t, f.snapshots, 2)
	assert.Nil(t, f.snapshots[1])
	f.mu.Unlock()
}

func TestContentSlideLeavesSourceAlone(t *testing.T) {
	f := newReceiverFixture(t)

	f.slideUpdate(domain.Slide{Id: 7, Kind: domain.SlideKindVideo, MediaURL: "https://cdn.example.com/r1.mp4"}, 100)
	f.slideUpdate(domain.Slide{Id: 8, Kind: domain.SlideKindContent}, 200)

	assert.Equal(t, "https://cdn.example.com/r1.mp4", f.element.Source(), "a slide without media must not clear the source")
}

func TestStaleStateCommandDiscarded(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	f.command(domain.ActionPlay, domain.CommandData{}, 200)
	require.True(t, f.element.IsPlaying())

	// an older pause arrives late: the newer play wins
	f.command(domain.ActionPause, domain.CommandData{}, 150)
	assert.True(t, f.element.IsPlaying(), "stale command must not override newer state")

	f.command(domain.ActionPause, domain.CommandData{}, 250)
	assert.False(t, f.element.IsPlaying())
}

func TestNonStateCommandsDontGate(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	f.command(domain.ActionPlay, domain.CommandData{}, 200)

	// a newer scroll applies without bumping the state watermark
	f.command(domain.ActionScroll, domain.CommandData{ScrollTop: ptr(310.0)}, 300)
	f.mu.Lock()
	require.Len(t, f.scrolls, 1)
	assert.Equal(t, 310.0, f.scrolls[0])
	f.mu.Unlock()

	// so a state command older than the scroll still lands
	f.command(domain.ActionPause, domain.CommandData{}, 250)
	assert.False(t, f.element.IsPlaying())
}

func TestPlaySeeksFirstWhenDrifted(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	f.command(domain.ActionPlay, domain.CommandData{Time: ptr(10.0)}, 100)

	ops := f.element.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, video.OpSeek, ops[0].Kind, "playhead must land before playback starts")
	assert.Equal(t, 10.0, ops[0].Value)
	assert.Equal(t, video.OpPlay, ops[1].Kind)
}

func TestPlayWithinThresholdSkipsSeek(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)
	f.element.SyncReportedTime(10.2)

	f.command(domain.ActionPlay, domain.CommandData{Time: ptr(10.0)}, 100)

	ops := f.element.Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, video.OpPlay, ops[0].Kind)
}

func TestPauseReconcilesPlayhead(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	f.command(domain.ActionPause, domain.CommandData{Time: ptr(33.0)}, 100)

	ops := f.element.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, video.OpPause, ops[0].Kind)
	assert.Equal(t, video.OpSeek, ops[1].Kind)
	assert.Equal(t, 33.0, ops[1].Value)
}

func TestSeekPausesPlayingElement(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	f.command(domain.ActionPlay, domain.CommandData{}, 100)
	require.True(t, f.element.IsPlaying())

	f.command(domain.ActionSeek, domain.CommandData{Time: ptr(30.0)}, 200)

	ops := f.element.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, video.OpPlay, ops[0].Kind)
	assert.Equal(t, video.OpPause, ops[1].Kind, "seek on a playing element must pause first")
	assert.Equal(t, video.OpSeek, ops[2].Kind)
	assert.Equal(t, 30.0, ops[2].Value)
}

func TestResetVerifiesAndReapplies(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	f.command(domain.ActionReset, domain.CommandData{}, 100)
	assert.Equal(t, 0.0, f.element.CurrentTime())

	// the element silently drifts while buffering
	f.element.SyncReportedTime(4.2)

	f.clock.Advance(DefaultReceiverConfig().ResetVerifyDelay)
	require.Eventually(t, func() bool {
		return f.element.CurrentTime() == 0
	}, time.Second, 5*time.Millisecond, "verify pass must re-apply the reset")
}

func TestDriftCorrectionIsGuarded(t *testing.T) {
	cfg := DefaultReceiverConfig()
	f := newReceiverFixture(t)
	f.element.MarkReady(600)

	f.command(domain.ActionPlay, domain.CommandData{}, 100)
	require.True(t, f.element.IsPlaying())
	opsAfterPlay := len(f.element.Ops())

	// right after play the correction is suppressed even with huge drift
	f.command(domain.ActionSync, domain.CommandData{Time: ptr(50.0)}, 110)
	assert.Len(t, f.element.Ops(), opsAfterPlay, "sync must stay quiet during early playback")

	// past the suppression window the nudge lands
	f.clock.Advance(cfg.DriftSuppressAfterPlay + time.Second)
	f.command(domain.ActionSync, domain.CommandData{Time: ptr(50.0)}, 120)
	ops := f.element.Ops()
	require.Len(t, ops, opsAfterPlay+1)
	assert.Equal(t, video.OpSeek, ops[len(ops)-1].Kind)
	assert.Equal(t, 50.0, ops[len(ops)-1].Value)

	// immediately after a correction the next one is rate limited
	f.element.SyncReportedTime(10)
	f.command(domain.ActionSync, domain.CommandData{Time: ptr(80.0)}, 130)
	assert.Len(t, f.element.Ops(), opsAfterPlay+1)
}

func TestDriftWithinThresholdIgnored(t *testing.T) {
	cfg := DefaultReceiverConfig()
	f := newReceiverFixture(t)
	f.element.MarkReady(600)

	f.command(domain.ActionPlay, domain.CommandData{}, 100)
	f.clock.Advance(cfg.DriftSuppressAfterPlay + time.Second)

	f.element.SyncReportedTime(50.5)
	opsBefore := len(f.element.Ops())
	f.command(domain.ActionSync, domain.CommandData{Time: ptr(50.0)}, 110)
	assert.Len(t, f.element.Ops(), opsBefore, "drift below the threshold must not seek")
}

func TestVolumeCommand(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	muted := true
	f.command(domain.ActionVolume, domain.CommandData{Volume: ptr(0.4), Muted: &muted}, 100)

	assert.Equal(t, 0.4, f.element.Volume())
	assert.True(t, f.element.Muted())
}

func TestVideoStatusPollAnnouncesState(t *testing.T) {
	f := newReceiverFixture(t)
	messages, unsubscribe := collectMessages(t, f.ch)
	defer unsubscribe()

	f.element.MarkReady(180)
	f.command(domain.ActionPlay, domain.CommandData{}, 100)
	f.element.SyncReportedTime(12)

	f.command(domain.ActionVideoStatusPoll, domain.CommandData{}, 50)

	msg := waitFor(t, messages, func(m domain.StatusMessage) bool {
		return m.Status == domain.StatusPong && m.Video != nil
	})
	assert.True(t, msg.Video.IsPlaying)
	assert.Equal(t, 12.0, msg.Video.CurrentTime)
	assert.Equal(t, 180.0, msg.Video.Duration)
	assert.True(t, msg.Video.IsReady)
}

func TestAutoplayRejectionIsTolerated(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.RequireGesture(true)
	f.element.MarkReady(120)

	f.command(domain.ActionPlay, domain.CommandData{}, 100)
	assert.False(t, f.element.IsPlaying())
	f.mu.Lock()
	assert.Empty(t, f.errs, "a blocked autoplay is not a media failure")
	f.mu.Unlock()
}

func TestDecisionResetAndCloseHooks(t *testing.T) {
	f := newReceiverFixture(t)

	f.command(domain.ActionDecisionReset, domain.CommandData{}, 100)
	f.command(domain.ActionClosePresentation, domain.CommandData{}, 110)

	f.mu.Lock()
	assert.Equal(t, 1, f.resets)
	assert.Equal(t, 1, f.closes)
	f.mu.Unlock()
}

func TestJoinInfoHooks(t *testing.T) {
	f := newReceiverFixture(t)

	raw, _ := json.Marshal(domain.JoinInfo{
		Type:      domain.MessageTypeJoinInfo,
		SessionId: "session-1",
		URL:       "https://join.example.com/ABC123",
		QRDataURL: "data:image/png;base64,xyz",
	})
	f.receiver.handleMessage(raw)

	closeRaw, _ := json.Marshal(domain.JoinInfo{
		Type:      domain.MessageTypeJoinInfoClose,
		SessionId: "session-1",
	})
	f.receiver.handleMessage(closeRaw)

	f.mu.Lock()
	require.Len(t, f.joinInfo, 2)
	require.NotNil(t, f.joinInfo[0])
	assert.Equal(t, "https://join.example.com/ABC123", f.joinInfo[0].URL)
	assert.Nil(t, f.joinInfo[1], "close is delivered as a nil join info")
	f.mu.Unlock()
}

func TestOtherSessionMessagesIgnored(t *testing.T) {
	f := newReceiverFixture(t)
	f.element.MarkReady(120)

	raw, _ := json.Marshal(domain.Command{
		Type:      domain.MessageTypeCommand,
		SessionId: "session-2",
		Action:    domain.ActionPlay,
		Timestamp: 100,
	})
	f.receiver.handleMessage(raw)

	assert.False(t, f.element.IsPlaying())
}

func TestDestroyAnnouncesDisconnect(t *testing.T) {
	f := newReceiverFixture(t)
	messages, unsubscribe := collectMessages(t, f.ch)
	defer unsubscribe()

	f.receiver.Destroy()
	f.receiver.Destroy()

	msg := waitFor(t, messages, func(m domain.StatusMessage) bool {
		return m.Status == domain.StatusDisconnect
	})
	assert.Equal(t, string(RolePresentation), msg.Role)

	// nothing applies after destruction
	f.command(domain.ActionPlay, domain.CommandData{}, 500)
	assert.False(t, f.element.IsPlaying())
}
