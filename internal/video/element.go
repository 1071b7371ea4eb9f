package video

import "errors"

// ErrAutoplayBlocked marks a play rejection that only a user gesture can
// lift. It is retryable and must not be surfaced as a media failure.
var ErrAutoplayBlocked = errors.New("autoplay blocked, user gesture required")

// Events is what a media element reports back to its controller.
type Events interface {
	OnReady()
	OnEnded()
	OnError(err error)
}

// MediaElement abstracts the playback surface a controller drives. Exactly
// one controller owns an element; elements are never shared.
type MediaElement interface {
	Play() error
	Pause()
	SetCurrentTime(seconds float64)
	CurrentTime() float64
	Duration() float64
	SetVolume(volume float64)
	Volume() float64
	SetMuted(muted bool)
	Muted() bool
	SetSource(url string)
	Source() string
	Bind(events Events)
}
