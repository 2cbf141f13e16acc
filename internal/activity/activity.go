// Package activity groups choosers into coarse robot modes (freeplay,
// selection) with enter/exit hooks.
package activity

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/chooser"
)

// Activity is what the system manager asks for the desired behavior each tick.
type Activity interface {
	ID() string
	OnEnter(ctx *behavior.Context)
	OnExit(ctx *behavior.Context)
	DesiredBehavior(ctx *behavior.Context, current behavior.Behavior) behavior.Behavior
}

// GroupToggles flips chooser groups when an activity is entered or left.
type GroupToggles struct {
	EnableGroups  []string `json:"enableGroups,omitempty" yaml:"enableGroups,omitempty"`
	DisableGroups []string `json:"disableGroups,omitempty" yaml:"disableGroups,omitempty"`
}

func (g GroupToggles) empty() bool {
	return len(g.EnableGroups) == 0 && len(g.DisableGroups) == 0
}

// groupSetter is implemented by choosers that support group overrides.
type groupSetter interface {
	SetGroupEnabled(group string, enable bool)
}

// ChooserActivity delegates selection to a chooser.
type ChooserActivity struct {
	id      string
	chooser chooser.Chooser
	onEnter GroupToggles
	onExit  GroupToggles
	logger  *zap.Logger
}

// Option customizes a ChooserActivity.
type Option func(*ChooserActivity)

// WithEnterToggles sets the groups flipped when the activity starts.
func WithEnterToggles(t GroupToggles) Option {
	return func(a *ChooserActivity) { a.onEnter = t }
}

// WithExitToggles sets the groups flipped when the activity ends.
func WithExitToggles(t GroupToggles) Option {
	return func(a *ChooserActivity) { a.onExit = t }
}

// WithLogger sets the activity logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *ChooserActivity) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewChooserActivity wraps c as an activity.
func NewChooserActivity(id string, c chooser.Chooser, opts ...Option) (*ChooserActivity, error) {
	if id == "" {
		return nil, fmt.Errorf("activity: id is required")
	}
	if c == nil {
		return nil, fmt.Errorf("activity %s: chooser is required", id)
	}
	a := &ChooserActivity{id: id, chooser: c, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// ID implements Activity.ID.
func (a *ChooserActivity) ID() string { return a.id }

// Chooser exposes the wrapped chooser.
func (a *ChooserActivity) Chooser() chooser.Chooser { return a.chooser }

// OnEnter applies the enter toggles and notifies the chooser.
func (a *ChooserActivity) OnEnter(ctx *behavior.Context) {
	a.apply(a.onEnter)
	a.chooser.OnActivated(ctx)
}

// OnExit notifies the chooser and applies the exit toggles.
func (a *ChooserActivity) OnExit(ctx *behavior.Context) {
	a.chooser.OnDeactivated(ctx)
	a.apply(a.onExit)
}

// DesiredBehavior implements Activity.DesiredBehavior.
func (a *ChooserActivity) DesiredBehavior(ctx *behavior.Context, current behavior.Behavior) behavior.Behavior {
	next := a.chooser.ChooseNext(ctx, current)
	if next == nil {
		return behavior.None
	}
	return next
}

func (a *ChooserActivity) apply(t GroupToggles) {
	if t.empty() {
		return
	}
	setter, ok := a.chooser.(groupSetter)
	if !ok {
		a.logger.Warn("activity group toggles ignored, chooser has no groups",
			zap.String("activity", a.id),
			zap.String("chooser", a.chooser.Name()),
		)
		return
	}
	for _, g := range t.DisableGroups {
		setter.SetGroupEnabled(g, false)
	}
	for _, g := range t.EnableGroups {
		setter.SetGroupEnabled(g, true)
	}
}
