package video

import "sync"

// Op is one applied element operation. The display endpoint forwards ops to
// the remote rendering surface; tests assert on their order.
type Op struct {
	Kind  string
	Value float64
	Flag  bool
	Str   string
}

const (
	OpPlay   = "play"
	OpPause  = "pause"
	OpSeek   = "seek"
	OpVolume = "volume"
	OpMuted  = "muted"
	OpSource = "source"
)

// MemoryElement is a MediaElement with no real playback surface. It mirrors
// the state of a remote element: readiness, ended and error signals are fed
// in from outside (the display client's reports, or a test script).
type MemoryElement struct {
	mu             sync.Mutex
	events         Events
	currentTime    float64
	duration       float64
	volume         float64
	muted          bool
	playing        bool
	ready          bool
	source         string
	requireGesture bool
	gestureSeen    bool
	ops            []Op
	onOp           func(Op)
}

func NewMemoryElement() *MemoryElement {
	return &MemoryElement{volume: 1}
}

func (m *MemoryElement) Bind(events Events) {
	m.mu.Lock()
	m.events = events
	m.mu.Unlock()
}

// SetOnOp registers a hook invoked for every applied operation.
func (m *MemoryElement) SetOnOp(fn func(Op)) {
	m.mu.Lock()
	m.onOp = fn
	m.mu.Unlock()
}

// record either appends to the history or hands the op to the hook, never
// both: with a hook consuming the stream, an unbounded history would grow for
// the whole life of a session.
func (m *MemoryElement) record(op Op) func() {
	fn := m.onOp
	if fn == nil {
		m.ops = append(m.ops, op)
		return func() {}
	}
	return func() { fn(op) }
}

func (m *MemoryElement) Play() error {
	m.mu.Lock()
	if m.requireGesture && !m.gestureSeen {
		m.mu.Unlock()
		return ErrAutoplayBlocked
	}
	m.playing = true
	notify := m.record(Op{Kind: OpPlay})
	m.mu.Unlock()

	notify()
	return nil
}

func (m *MemoryElement) Pause() {
	m.mu.Lock()
	m.playing = false
	notify := m.record(Op{Kind: OpPause})
	m.mu.Unlock()

	notify()
}

func (m *MemoryElement) SetCurrentTime(seconds float64) {
	m.mu.Lock()
	m.currentTime = seconds
	notify := m.record(Op{Kind: OpSeek, Value: seconds})
	m.mu.Unlock()

	notify()
}

func (m *MemoryElement) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *MemoryElement) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *MemoryElement) SetVolume(volume float64) {
	m.mu.Lock()
	m.volume = volume
	notify := m.record(Op{Kind: OpVolume, Value: volume})
	m.mu.Unlock()

	notify()
}

func (m *MemoryElement) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *MemoryElement) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	notify := m.record(Op{Kind: OpMuted, Flag: muted})
	m.mu.Unlock()

	notify()
}

func (m *MemoryElement) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *MemoryElement) SetSource(url string) {
	m.mu.Lock()
	m.source = url
	m.ready = false
	m.playing = false
	m.currentTime = 0
	notify := m.record(Op{Kind: OpSource, Str: url})
	m.mu.Unlock()

	notify()
}

func (m *MemoryElement) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *MemoryElement) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Ops returns a copy of the applied-operation history. Only ops applied while
// no hook was registered are kept.
func (m *MemoryElement) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]Op, len(m.ops))
	copy(ops, m.ops)
	return ops
}

// RequireGesture makes subsequent Play calls fail with ErrAutoplayBlocked
// until UserGesture is called, mirroring browser autoplay policy.
func (m *MemoryElement) RequireGesture(required bool) {
	m.mu.Lock()
	m.requireGesture = required
	m.mu.Unlock()
}

func (m *MemoryElement) UserGesture() {
	m.mu.Lock()
	m.gestureSeen = true
	m.mu.Unlock()
}

// MarkReady simulates the element finishing buffering for the current source.
func (m *MemoryElement) MarkReady(duration float64) {
	m.mu.Lock()
	m.ready = true
	m.duration = duration
	events := m.events
	m.mu.Unlock()

	if events != nil {
		events.OnReady()
	}
}

// FireEnded reports playback reaching the end of the source.
func (m *MemoryElement) FireEnded() {
	m.mu.Lock()
	m.playing = false
	events := m.events
	m.mu.Unlock()

	if events != nil {
		events.OnEnded()
	}
}

// FireError reports a decode or source failure.
func (m *MemoryElement) FireError(err error) {
	m.mu.Lock()
	events := m.events
	m.mu.Unlock()

	if events != nil {
		events.OnError(err)
	}
}

// SyncReportedTime overwrites the mirrored playhead from a remote progress
// report. No operation is recorded, so the report does not echo back.
func (m *MemoryElement) SyncReportedTime(seconds float64) {
	m.mu.Lock()
	m.currentTime = seconds
	m.mu.Unlock()
}

// AdvanceTime moves the playhead forward while playing. Used to simulate
// wall-clock playback progress.
func (m *MemoryElement) AdvanceTime(seconds float64) {
	m.mu.Lock()
	if m.playing {
		m.currentTime += seconds
	}
	m.mu.Unlock()
}
