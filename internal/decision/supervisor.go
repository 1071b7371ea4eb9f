package decision

import (
	"log/slog"

	"github.com/readyornot/sync-server/internal/domain"
)

// Supervisor applies the auto-activation policy: it observes the current
// slide and game-flow phase and drives the manager accordingly, but never
// creates a window implicitly from any other signal.
type Supervisor struct {
	manager *Manager
	logger  *slog.Logger
}

func NewSupervisor(manager *Manager, logger *slog.Logger) *Supervisor {
	return &Supervisor{manager: manager, logger: logger}
}

// Evaluate reconciles the manager with the current slide and phase. It is
// idempotent: re-evaluating the same qualifying condition leaves the running
// window untouched.
func (s *Supervisor) Evaluate(slide domain.Slide, phase domain.Phase) {
	qualifies := slide.IsInteractive() && phase == domain.PhaseInteractive

	switch {
	case qualifies && !s.manager.IsActive():
		duration := slide.DecisionDurationSeconds
		if duration <= 0 {
			duration = DefaultDurationSeconds
		}
		s.logger.Debug("interactive slide active, opening decision window",
			"slide_id", slide.Id,
			"duration_seconds", duration,
		)
		s.manager.Start(duration)
	case !qualifies && s.manager.IsActive():
		s.logger.Debug("slide no longer interactive, closing decision window", "slide_id", slide.Id)
		s.manager.Stop()
	}
}
