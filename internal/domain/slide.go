package domain

type SlideKind string

const (
	SlideKindContent  SlideKind = "content"
	SlideKindVideo    SlideKind = "video"
	SlideKindDecision SlideKind = "decision"
	SlideKindPoll     SlideKind = "poll"
)

// Phase is the game-flow phase the facilitator is currently driving.
type Phase string

const (
	PhaseBriefing    Phase = "briefing"
	PhaseInteractive Phase = "interactive"
	PhaseDebrief     Phase = "debrief"
	PhaseResults     Phase = "results"
)

type Slide struct {
	Id                      int       `json:"id"`
	Kind                    SlideKind `json:"kind"`
	Title                   string    `json:"title"`
	MediaURL                string    `json:"media_url,omitempty"`
	Round                   int       `json:"round"`
	DecisionDurationSeconds int       `json:"decision_duration_seconds,omitempty"`
}

// IsInteractive reports whether the slide opens a timed decision window for
// team devices.
func (s Slide) IsInteractive() bool {
	return s.Kind == SlideKindDecision || s.Kind == SlideKindPoll
}
