package behaviors

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/helper"
	"github.com/kingrea/robot-behaviors/internal/world"
)

// ClassHelperSequence runs a list of helpers one after another.
const ClassHelperSequence behavior.Class = "HelperSequence"

// Step names one helper delegated by a HelperSequence.
type Step struct {
	Helper  string
	Object  world.ObjectID
	Upright bool
	Trigger string
}

// Helper kinds understood by steps.
const (
	HelperDriveTo   = "drive_to"
	HelperPickup    = "pickup"
	HelperPlace     = "place"
	HelperRoll      = "roll"
	HelperSearch    = "search"
	HelperAnimation = "animation"
)

func parseSteps(id behavior.ID, params behavior.Params) ([]Step, error) {
	raw, err := params.Maps("steps")
	if err != nil {
		return nil, fmt.Errorf("behaviors: %s: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("behaviors: %s: at least one step is required", id)
	}
	steps := make([]Step, 0, len(raw))
	for i, m := range raw {
		p := behavior.Params(m)
		step := Step{
			Helper:  strings.ToLower(p.String("helper", "")),
			Object:  world.ObjectID(p.Int("object", 0)),
			Upright: p.Bool("upright", false),
			Trigger: p.String("trigger", ""),
		}
		switch step.Helper {
		case HelperDriveTo, HelperPickup, HelperPlace, HelperRoll, HelperSearch:
			if step.Object == world.InvalidObject {
				return nil, fmt.Errorf("behaviors: %s: step %d: object is required", id, i)
			}
		case HelperAnimation:
			if step.Trigger == "" {
				return nil, fmt.Errorf("behaviors: %s: step %d: trigger is required", id, i)
			}
		default:
			return nil, fmt.Errorf("behaviors: %s: step %d: unknown helper %q", id, i, step.Helper)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (s Step) build(f *helper.Factory) helper.Helper {
	switch s.Helper {
	case HelperDriveTo:
		return f.DriveTo(s.Object)
	case HelperPickup:
		return f.PickupBlock(s.Object)
	case HelperPlace:
		return f.PlaceBlock(s.Object)
	case HelperRoll:
		return f.RollBlock(s.Object, s.Upright)
	case HelperSearch:
		return f.SearchForBlock(s.Object)
	default:
		return f.Action("Animation", action.Request{Type: action.TypePlayAnimation, Trigger: s.Trigger})
	}
}

// HelperSequence delegates its steps to the helper component in order. The
// outcome of each stack is read back on the next Update, which either
// delegates the next step, retries the failed one, or finishes.
type HelperSequence struct {
	behavior.Base
	steps   []Step
	retries int
	factory *helper.Factory

	next     int
	failures int
	outcome  *helper.Outcome
	status   behavior.Status
}

// NewHelperSequence builds a HelperSequence. Params: steps, retries.
func NewHelperSequence(def behavior.Definition) (behavior.Behavior, error) {
	base, err := behavior.NewBase(def)
	if err != nil {
		return nil, err
	}
	steps, err := parseSteps(def.ID, def.Params)
	if err != nil {
		return nil, err
	}
	retries := def.Params.Int("retries", 0)
	if retries < 0 {
		return nil, errRange(def.ID, "retries")
	}
	return &HelperSequence{
		Base:    base,
		steps:   steps,
		retries: retries,
		factory: helper.NewFactory(string(def.ID), helper.WithRetries(retries)),
	}, nil
}

// Steps returns the configured steps.
func (s *HelperSequence) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// Init implements behavior.Behavior.
func (s *HelperSequence) Init(ctx *behavior.Context) error {
	if ctx.Helpers == nil {
		return fmt.Errorf("behaviors: %s: no helper component", s.ID())
	}
	if ctx.Helpers.IsActive() {
		return fmt.Errorf("behaviors: %s: %w", s.ID(), helper.ErrStackExists)
	}
	s.Activate(ctx)
	s.next = 0
	s.failures = 0
	s.outcome = nil
	s.status = behavior.StatusRunning
	s.delegate(ctx)
	return nil
}

func (s *HelperSequence) delegate(ctx *behavior.Context) {
	step := s.steps[s.next]
	h := step.build(s.factory)
	err := s.Delegate(ctx, h,
		func() { s.settle(helper.OutcomeSuccess) },
		func() { s.settle(helper.OutcomeFailure) },
	)
	if err != nil {
		ctx.Log().Error("behavior could not delegate helper",
			zap.String("behavior", string(s.ID())),
			zap.String("helper", h.Name()),
			zap.Error(err),
		)
		s.status = behavior.StatusFailure
	}
}

func (s *HelperSequence) settle(o helper.Outcome) {
	s.outcome = &o
}

// Update implements behavior.Behavior.
func (s *HelperSequence) Update(ctx *behavior.Context) behavior.Status {
	if s.status != behavior.StatusRunning || s.outcome == nil {
		return s.status
	}
	outcome := *s.outcome
	s.outcome = nil
	switch outcome {
	case helper.OutcomeSuccess:
		s.next++
		if s.next >= len(s.steps) {
			s.status = behavior.StatusComplete
			return s.status
		}
	default:
		s.failures++
		if s.failures > s.retries {
			ctx.Log().Info("helper sequence gave up",
				zap.String("behavior", string(s.ID())),
				zap.Int("step", s.next),
				zap.Int("failures", s.failures),
			)
			s.status = behavior.StatusFailure
			return s.status
		}
	}
	s.delegate(ctx)
	return s.status
}

// Stop implements behavior.Behavior.
func (s *HelperSequence) Stop(ctx *behavior.Context) {
	if !s.Deactivate(ctx) {
		return
	}
	s.outcome = nil
}
