package chooser

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// Chooser picks the behavior that should run next.
type Chooser interface {
	Name() string
	Behaviors() []behavior.Behavior
	// ChooseNext never returns nil; it returns behavior.None when nothing
	// should run.
	ChooseNext(ctx *behavior.Context, current behavior.Behavior) behavior.Behavior
	OnActivated(ctx *behavior.Context)
	OnDeactivated(ctx *behavior.Context)
}

// ScoreModifier adjusts a behavior's score before selection.
type ScoreModifier func(ctx *behavior.Context, b behavior.Behavior) float64

// Option customizes a Simple chooser.
type Option func(*Simple)

// WithLogger sets the chooser logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Simple) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScoreModifier installs a per-behavior score delta.
func WithScoreModifier(fn ScoreModifier) Option {
	return func(s *Simple) {
		s.modifier = fn
	}
}

// Simple keeps a registered, grouped set of behaviors with enabled/disabled
// state and picks the highest scoring runnable one.
type Simple struct {
	name     string
	logger   *zap.Logger
	modifier ScoreModifier

	behaviors  []behavior.Behavior
	ids        map[behavior.ID]struct{}
	directives []Directive
	overrides  []Directive
	enabled    map[behavior.ID]bool
	bonus      ScoreCurve
}

// NewSimple returns an empty chooser.
func NewSimple(name string, opts ...Option) *Simple {
	s := &Simple{
		name:    name,
		logger:  zap.NewNop(),
		ids:     map[behavior.ID]struct{}{},
		enabled: map[behavior.ID]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// baseScorer is implemented by behaviors with a configured score.
type baseScorer interface {
	BaseScore() float64
}

// NewSimpleFromConfig registers the behaviors listed in cfg, taken from the
// container, and applies the config's directives and bonus curve.
func NewSimpleFromConfig(name string, cfg Config, container *behavior.Container, opts ...Option) (*Simple, error) {
	if container == nil {
		return nil, fmt.Errorf("chooser %s: behavior container is required", name)
	}
	s := NewSimple(name, opts...)
	for _, id := range cfg.Behaviors {
		b, ok := container.Get(id)
		if !ok {
			return nil, fmt.Errorf("chooser %s: unknown behavior %s", name, id)
		}
		if err := s.TryAddBehavior(b); err != nil {
			return nil, err
		}
		if scored, ok := b.(baseScorer); ok && scored.BaseScore() <= 0 {
			s.logger.Warn("behavior score is not positive, chooser will never pick it",
				zap.String("chooser", name),
				zap.String("behavior", string(id)),
				zap.Float64("score", scored.BaseScore()),
			)
		}
	}
	if err := s.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Name implements Chooser.Name.
func (s *Simple) Name() string { return s.name }

// Behaviors returns the registered behaviors in registration order.
func (s *Simple) Behaviors() []behavior.Behavior {
	return append([]behavior.Behavior(nil), s.behaviors...)
}

// TryAddBehavior registers b. A behavior with the same id already present is
// a configuration error and leaves the chooser untouched.
func (s *Simple) TryAddBehavior(b behavior.Behavior) error {
	if behavior.IsNone(b) {
		return fmt.Errorf("chooser %s: cannot add the none behavior", s.name)
	}
	if _, exists := s.ids[b.ID()]; exists {
		s.logger.Error("duplicate behavior in chooser",
			zap.String("chooser", s.name),
			zap.String("behavior", string(b.ID())),
		)
		return fmt.Errorf("chooser %s: %w: %s", s.name, behavior.ErrDuplicateID, b.ID())
	}
	s.ids[b.ID()] = struct{}{}
	s.behaviors = append(s.behaviors, b)
	s.resolve()
	return nil
}

// ApplyConfig replaces the configured directives and bonus curve. Runtime
// overrides set through SetBehaviorEnabled/SetGroupEnabled are discarded.
func (s *Simple) ApplyConfig(cfg Config) error {
	curve, err := NewScoreCurve(cfg.ScoreBonusForCurrentBehavior)
	if err != nil {
		return fmt.Errorf("chooser %s: %w", s.name, err)
	}
	s.bonus = curve
	s.directives = cfg.Directives()
	s.overrides = nil
	s.resolve()
	return nil
}

// SetBehaviorEnabled overrides a single behavior. Unknown ids are an error.
func (s *Simple) SetBehaviorEnabled(id behavior.ID, enable bool) error {
	if _, ok := s.ids[id]; !ok {
		return fmt.Errorf("chooser %s: unknown behavior %s", s.name, id)
	}
	s.overrides = append(s.overrides, Directive{Scope: ScopeBehavior, Name: string(id), Enable: enable})
	s.resolve()
	return nil
}

// SetGroupEnabled overrides every behavior in group.
func (s *Simple) SetGroupEnabled(group string, enable bool) {
	s.overrides = append(s.overrides, Directive{Scope: ScopeGroup, Name: group, Enable: enable})
	s.resolve()
}

// IsEnabled reports the resolved state of a behavior.
func (s *Simple) IsEnabled(id behavior.ID) bool {
	return s.enabled[id]
}

// EnabledSet returns a copy of the resolved enabled map.
func (s *Simple) EnabledSet() map[behavior.ID]bool {
	out := make(map[behavior.ID]bool, len(s.enabled))
	for id, on := range s.enabled {
		out[id] = on
	}
	return out
}

func (s *Simple) resolve() {
	all := make([]Directive, 0, len(s.directives)+len(s.overrides))
	all = append(all, s.directives...)
	all = append(all, s.overrides...)
	s.enabled = Resolve(s.behaviors, all)
}

// Candidate is the scoring breakdown for one behavior.
type Candidate struct {
	ID       behavior.ID
	Enabled  bool
	Runnable bool
	Current  bool
	Score    float64
	Modifier float64
	Bonus    float64
}

// Total is the effective score used for selection.
func (c Candidate) Total() float64 {
	return c.Score + c.Modifier + c.Bonus
}

// Eligible reports whether the candidate may be selected.
func (c Candidate) Eligible() bool {
	return c.Enabled && (c.Runnable || c.Current)
}

// Candidates scores every registered behavior in registration order. Disabled
// and non-runnable behaviors are reported but not scored.
func (s *Simple) Candidates(ctx *behavior.Context, current behavior.Behavior) []Candidate {
	out := make([]Candidate, 0, len(s.behaviors))
	currentID := behavior.IDOf(current)
	for _, b := range s.behaviors {
		c := Candidate{ID: b.ID(), Enabled: s.enabled[b.ID()], Current: b.ID() == currentID}
		if !c.Enabled {
			out = append(out, c)
			continue
		}
		// the running behavior already passed its runnability check
		if !c.Current {
			c.Runnable = b.IsRunnable(ctx)
			if !c.Runnable {
				out = append(out, c)
				continue
			}
		} else {
			c.Runnable = true
		}
		c.Score = b.Score(ctx)
		if s.modifier != nil {
			c.Modifier = s.modifier(ctx, b)
		}
		if c.Current {
			c.Bonus = s.bonus.At(ctx.ActiveFor)
		}
		out = append(out, c)
	}
	return out
}

// ChooseNext returns the eligible behavior with the strictly highest positive
// effective score. Ties keep the earlier registered behavior.
func (s *Simple) ChooseNext(ctx *behavior.Context, current behavior.Behavior) behavior.Behavior {
	best := behavior.None
	bestScore := 0.0
	for i, c := range s.Candidates(ctx, current) {
		if !c.Eligible() {
			continue
		}
		if total := c.Total(); total > bestScore {
			best = s.behaviors[i]
			bestScore = total
		}
	}
	return best
}

// OnActivated implements Chooser.OnActivated.
func (s *Simple) OnActivated(*behavior.Context) {}

// OnDeactivated implements Chooser.OnDeactivated.
func (s *Simple) OnDeactivated(*behavior.Context) {}
