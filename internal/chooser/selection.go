package chooser

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// Forever requests a behavior with no execution limit.
const Forever = -1

// Selection runs one explicitly requested behavior a fixed number of times,
// then goes idle. It backs debug and scripted "execute behavior" requests.
type Selection struct {
	name      string
	logger    *zap.Logger
	container *behavior.Container

	requested behavior.Behavior
	remaining int
}

// NewSelection returns an idle selection chooser over container.
func NewSelection(name string, container *behavior.Container, logger *zap.Logger) *Selection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selection{name: name, container: container, logger: logger, requested: behavior.None}
}

// Name implements Chooser.Name.
func (s *Selection) Name() string { return s.name }

// Behaviors implements Chooser.Behaviors.
func (s *Selection) Behaviors() []behavior.Behavior {
	if s.container == nil {
		return nil
	}
	return s.container.All()
}

// Request selects id for times activations (Forever for no limit). A request
// replaces any previous one.
func (s *Selection) Request(id behavior.ID, times int) error {
	if s.container == nil {
		return fmt.Errorf("chooser %s: no behaviors", s.name)
	}
	b, ok := s.container.Get(id)
	if !ok {
		return fmt.Errorf("chooser %s: unknown behavior %s", s.name, id)
	}
	if times == 0 || times < Forever {
		return fmt.Errorf("chooser %s: invalid execution count %d", s.name, times)
	}
	s.requested = b
	s.remaining = times
	s.logger.Info("behavior requested",
		zap.String("chooser", s.name),
		zap.String("behavior", string(id)),
		zap.Int("times", times),
	)
	return nil
}

// Clear drops the current request.
func (s *Selection) Clear() {
	s.requested = behavior.None
	s.remaining = 0
}

// Remaining returns how many activations are left (Forever for unlimited).
func (s *Selection) Remaining() int { return s.remaining }

// ChooseNext keeps the requested behavior while it runs and starts a new
// activation while the budget lasts.
func (s *Selection) ChooseNext(ctx *behavior.Context, current behavior.Behavior) behavior.Behavior {
	if behavior.IsNone(s.requested) {
		return behavior.None
	}
	if behavior.IDOf(current) == s.requested.ID() {
		return s.requested
	}
	if s.remaining == 0 {
		return behavior.None
	}
	if !s.requested.IsRunnable(ctx) {
		return behavior.None
	}
	if s.remaining > 0 {
		s.remaining--
	}
	return s.requested
}

// OnActivated implements Chooser.OnActivated.
func (s *Selection) OnActivated(*behavior.Context) {}

// OnDeactivated clears any pending request.
func (s *Selection) OnDeactivated(*behavior.Context) { s.Clear() }
