package behaviors

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// ClassPlayAnimation plays an animation trigger.
const ClassPlayAnimation behavior.Class = "PlayAnimation"

// PlayAnimation starts a play_animation action directly on the action runner
// and completes when it has played loops times.
type PlayAnimation struct {
	behavior.Base
	trigger string
	loops   int

	played   int
	attempt  int
	tag      action.Tag
	inFlight bool
	result   *action.Result
}

// NewPlayAnimation builds a PlayAnimation. Params: trigger (required), loops.
func NewPlayAnimation(def behavior.Definition) (behavior.Behavior, error) {
	base, err := behavior.NewBase(def)
	if err != nil {
		return nil, err
	}
	trigger := def.Params.String("trigger", "")
	if trigger == "" {
		return nil, fmt.Errorf("behaviors: %s: trigger is required", def.ID)
	}
	loops := def.Params.Int("loops", 1)
	if loops < 1 {
		return nil, errRange(def.ID, "loops")
	}
	return &PlayAnimation{Base: base, trigger: trigger, loops: loops}, nil
}

// Init implements behavior.Behavior.
func (p *PlayAnimation) Init(ctx *behavior.Context) error {
	if ctx.Actions == nil {
		return fmt.Errorf("behaviors: %s: no action runner", p.ID())
	}
	p.played = 0
	if err := p.start(ctx); err != nil {
		return err
	}
	p.Activate(ctx)
	return nil
}

func (p *PlayAnimation) start(ctx *behavior.Context) error {
	p.attempt++
	attempt := p.attempt
	p.result = nil
	p.inFlight = true
	req := action.Request{Type: action.TypePlayAnimation, Trigger: p.trigger}
	tag, err := ctx.Actions.Start(req, func(_ action.Tag, res action.Result) {
		if attempt != p.attempt || !p.inFlight {
			return
		}
		p.inFlight = false
		p.result = &res
	})
	if err != nil {
		p.inFlight = false
		return fmt.Errorf("behaviors: %s: start animation: %w", p.ID(), err)
	}
	p.tag = tag
	return nil
}

// Update implements behavior.Behavior.
func (p *PlayAnimation) Update(ctx *behavior.Context) behavior.Status {
	if p.result == nil {
		return behavior.StatusRunning
	}
	if *p.result != action.ResultSuccess {
		ctx.Log().Warn("animation failed",
			zap.String("behavior", string(p.ID())),
			zap.String("trigger", p.trigger),
			zap.Stringer("result", *p.result),
		)
		return behavior.StatusFailure
	}
	p.played++
	if p.played >= p.loops {
		return behavior.StatusComplete
	}
	if err := p.start(ctx); err != nil {
		ctx.Log().Warn("animation restart failed", zap.String("behavior", string(p.ID())), zap.Error(err))
		return behavior.StatusFailure
	}
	return behavior.StatusRunning
}

// Stop implements behavior.Behavior.
func (p *PlayAnimation) Stop(ctx *behavior.Context) {
	if !p.Deactivate(ctx) {
		return
	}
	if p.inFlight && ctx.Actions != nil {
		ctx.Actions.Cancel(p.tag)
	}
	p.inFlight = false
}
