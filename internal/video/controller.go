package video

import (
	"errors"
	"log/slog"
	"sync"
)

// State is a point-in-time snapshot of one element's playback state.
type State struct {
	IsPlaying   bool
	CurrentTime float64
	Duration    float64
	Volume      float64
	IsMuted     bool
	IsReady     bool
}

// Controller wraps one media element. Control operations are no-ops until
// the element reports enough buffered data, except that a pending seek target
// is cached and applied once ready.
type Controller struct {
	el     MediaElement
	logger *slog.Logger

	mu           sync.Mutex
	isReady      bool
	isPlaying    bool
	pendingSeek  *float64
	endedEmitted bool

	onReady func()
	onEnded func()
	onError func(error)
}

func NewController(el MediaElement, logger *slog.Logger) *Controller {
	c := &Controller{
		el:     el,
		logger: logger,
	}
	el.Bind(c)

	return c
}

func (c *Controller) SetOnReady(fn func())      { c.mu.Lock(); c.onReady = fn; c.mu.Unlock() }
func (c *Controller) SetOnEnded(fn func())      { c.mu.Lock(); c.onEnded = fn; c.mu.Unlock() }
func (c *Controller) SetOnError(fn func(error)) { c.mu.Lock(); c.onError = fn; c.mu.Unlock() }

// Play starts playback. Autoplay rejection is returned as ErrAutoplayBlocked
// and is not reported through the error callback; any other element error is.
func (c *Controller) Play() error {
	c.mu.Lock()
	if !c.isReady {
		c.mu.Unlock()
		c.logger.Debug("play ignored, element not ready")
		return nil
	}
	c.endedEmitted = false
	c.mu.Unlock()

	if err := c.el.Play(); err != nil {
		if errors.Is(err, ErrAutoplayBlocked) {
			c.logger.Info("playback blocked, waiting for user gesture")
			return err
		}

		c.notifyError(err)
		return err
	}

	c.mu.Lock()
	c.isPlaying = true
	c.mu.Unlock()

	return nil
}

func (c *Controller) Pause() {
	c.el.Pause()

	c.mu.Lock()
	c.isPlaying = false
	c.mu.Unlock()
}

// Seek moves the playhead to an absolute position. Before the element is
// ready the target is cached and applied on the ready signal.
func (c *Controller) Seek(seconds float64) {
	c.mu.Lock()
	if !c.isReady {
		c.pendingSeek = &seconds
		c.mu.Unlock()
		c.logger.Debug("element not ready, seek cached", "target", seconds)
		return
	}
	c.mu.Unlock()

	c.el.SetCurrentTime(seconds)
}

func (c *Controller) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	c.el.SetVolume(volume)
}

func (c *Controller) SetMuted(muted bool) {
	c.el.SetMuted(muted)
}

// SetSource swaps the media source. A matching URL is a no-op so re-rendering
// the same slide never tears down a buffered element.
func (c *Controller) SetSource(url string) {
	if url == c.el.Source() {
		c.logger.Debug("source unchanged, reload skipped", "url", url)
		return
	}

	c.mu.Lock()
	c.isReady = false
	c.isPlaying = false
	c.pendingSeek = nil
	c.endedEmitted = false
	c.mu.Unlock()

	c.el.SetSource(url)
}

func (c *Controller) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isReady
}

func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPlaying
}

func (c *Controller) CurrentTime() float64 {
	return c.el.CurrentTime()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		IsPlaying:   c.isPlaying,
		CurrentTime: c.el.CurrentTime(),
		Duration:    c.el.Duration(),
		Volume:      c.el.Volume(),
		IsMuted:     c.el.Muted(),
		IsReady:     c.isReady,
	}
}

// OnReady implements Events.
func (c *Controller) OnReady() {
	c.mu.Lock()
	c.isReady = true
	pending := c.pendingSeek
	c.pendingSeek = nil
	cb := c.onReady
	c.mu.Unlock()

	if pending != nil {
		c.logger.Debug("applying cached seek", "target", *pending)
		c.el.SetCurrentTime(*pending)
	}

	if cb != nil {
		cb()
	}
}

// OnEnded implements Events. The ended callback fires at most once per
// playback; rebuffering near the end of the source must not repeat it.
func (c *Controller) OnEnded() {
	c.mu.Lock()
	if c.endedEmitted {
		c.mu.Unlock()
		c.logger.Debug("duplicate ended event ignored")
		return
	}
	c.endedEmitted = true
	c.isPlaying = false
	cb := c.onEnded
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// OnError implements Events.
func (c *Controller) OnError(err error) {
	c.notifyError(err)
}

func (c *Controller) notifyError(err error) {
	c.mu.Lock()
	cb := c.onError
	c.mu.Unlock()

	c.logger.Warn("media error", "error", err)
	if cb != nil {
		cb(err)
	}
}
