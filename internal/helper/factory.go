package helper

import (
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/world"
)

const defaultRetries = 1

// Factory builds helpers bound to a calling behavior.
type Factory struct {
	behaviorID string
	retries    int
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithRetries sets how many times action helpers retry after a retryable
// result and how many times composite helpers re-plan after a failed step.
func WithRetries(n int) FactoryOption {
	return func(f *Factory) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// NewFactory returns a helper factory for the given behavior.
func NewFactory(behaviorID string, opts ...FactoryOption) *Factory {
	f := &Factory{behaviorID: behaviorID, retries: defaultRetries}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func (f *Factory) name(kind string, target world.ObjectID) string {
	if target == world.InvalidObject {
		return fmt.Sprintf("%s.%s", f.behaviorID, kind)
	}
	return fmt.Sprintf("%s.%s(%d)", f.behaviorID, kind, target)
}

// Action runs a single action to completion.
func (f *Factory) Action(name string, req action.Request) Helper {
	return &actionHelper{name: fmt.Sprintf("%s.%s", f.behaviorID, name), req: req, retries: f.retries}
}

// DriveTo drives next to target.
func (f *Factory) DriveTo(target world.ObjectID) Helper {
	return &actionHelper{
		name:    f.name("DriveTo", target),
		req:     action.Request{Type: action.TypeDriveTo, Object: target},
		retries: f.retries,
	}
}

// PickupBlock drives to target and picks it up. It re-plans when the target
// moves while the robot is still approaching.
func (f *Factory) PickupBlock(target world.ObjectID) Helper {
	return &sequenceHelper{
		name:    f.name("PickupBlock", target),
		target:  target,
		retries: f.retries,
		steps: []func() Helper{
			func() Helper { return f.DriveTo(target) },
			func() Helper {
				return f.Action("Pickup", action.Request{Type: action.TypePickup, Object: target})
			},
		},
		cancelWhen: targetMoved,
	}
}

// PlaceBlock drives to target and places the carried object on it.
func (f *Factory) PlaceBlock(target world.ObjectID) Helper {
	return &sequenceHelper{
		name:    f.name("PlaceBlock", target),
		target:  target,
		retries: f.retries,
		steps: []func() Helper{
			func() Helper { return f.DriveTo(target) },
			func() Helper {
				return f.Action("Place", action.Request{Type: action.TypePlace, Object: target})
			},
		},
	}
}

// RollBlock drives to target and rolls it. With upright set, a block that is
// already upright completes immediately.
func (f *Factory) RollBlock(target world.ObjectID, upright bool) Helper {
	h := &sequenceHelper{
		name:    f.name("RollBlock", target),
		target:  target,
		retries: f.retries,
		steps: []func() Helper{
			func() Helper { return f.DriveTo(target) },
			func() Helper {
				return f.Action("Roll", action.Request{Type: action.TypeRoll, Object: target, Upright: upright})
			},
		},
		cancelWhen: targetMoved,
	}
	if upright {
		h.satisfied = func(ctx *Context) bool {
			obj, ok := ctx.World.Object(target)
			return ok && obj.Upright
		}
	}
	return h
}

// SearchForBlock looks around until target is known to the world.
func (f *Factory) SearchForBlock(target world.ObjectID) Helper {
	known := func(ctx *Context) bool {
		if ctx.World == nil {
			return false
		}
		_, ok := ctx.World.Object(target)
		return ok
	}
	return &sequenceHelper{
		name:    f.name("SearchForBlock", target),
		target:  target,
		retries: f.retries,
		steps: []func() Helper{
			func() Helper {
				return f.Action("Search", action.Request{Type: action.TypeSearch, Object: target})
			},
		},
		satisfied:   known,
		mustSatisfy: true,
		cancelWhen: func(ctx *Context, _ *sequenceHelper) bool {
			return known(ctx)
		},
	}
}

// Tree wraps a go-behaviortree node. Success maps to Complete, Failure or a
// tick error to Failure.
func (f *Factory) Tree(name string, node bt.Node) Helper {
	return &treeHelper{name: fmt.Sprintf("%s.%s", f.behaviorID, name), node: node}
}

type actionHelper struct {
	name    string
	req     action.Request
	retries int

	attempt  int
	tag      action.Tag
	inFlight bool
	result   *action.Result
}

func (h *actionHelper) Name() string { return h.name }

func (h *actionHelper) Init(ctx *Context) Status {
	h.attempt = 0
	return h.start(ctx)
}

func (h *actionHelper) start(ctx *Context) Status {
	if ctx.Actions == nil {
		ctx.Logger.Error("helper has no action runner", zap.String("helper", h.name))
		return StatusFailure
	}
	h.attempt++
	h.result = nil
	h.inFlight = true
	attempt := h.attempt
	tag, err := ctx.Actions.Start(h.req, func(_ action.Tag, res action.Result) {
		if attempt != h.attempt || !h.inFlight {
			return
		}
		h.inFlight = false
		h.result = &res
	})
	if err != nil {
		h.inFlight = false
		ctx.Logger.Warn("helper action failed to start",
			zap.String("helper", h.name),
			zap.Stringer("request", h.req),
			zap.Error(err),
		)
		return StatusFailure
	}
	h.tag = tag
	return StatusRunning
}

func (h *actionHelper) UpdateWhileActive(ctx *Context) Status {
	if h.result == nil {
		return StatusRunning
	}
	switch *h.result {
	case action.ResultSuccess:
		return StatusComplete
	case action.ResultRetry:
		if h.attempt <= h.retries {
			ctx.Logger.Debug("helper retrying action",
				zap.String("helper", h.name),
				zap.Int("attempt", h.attempt),
			)
			return h.start(ctx)
		}
	}
	return StatusFailure
}

func (h *actionHelper) ShouldCancelDelegates(*Context) bool { return false }

func (h *actionHelper) Stop(ctx *Context, _ bool) {
	if h.inFlight && ctx.Actions != nil {
		ctx.Actions.Cancel(h.tag)
	}
	h.inFlight = false
}

// sequenceHelper delegates its steps one after another. A failed step restarts
// the sequence from the first step until the retry budget is spent.
type sequenceHelper struct {
	name    string
	target  world.ObjectID
	steps   []func() Helper
	retries int

	next     int
	failures int
	status   Status
	revision uint64
	replan   bool

	satisfied func(*Context) bool
	// mustSatisfy fails the sequence when every step ran but satisfied still
	// reports false.
	mustSatisfy bool
	cancelWhen  func(*Context, *sequenceHelper) bool
}

func (h *sequenceHelper) Name() string { return h.name }

func (h *sequenceHelper) Init(ctx *Context) Status {
	h.next = 0
	h.failures = 0
	h.status = StatusRunning
	return h.advance(ctx)
}

func (h *sequenceHelper) advance(ctx *Context) Status {
	if h.satisfied != nil && h.satisfied(ctx) {
		h.status = StatusComplete
		return h.status
	}
	if h.next >= len(h.steps) {
		h.status = StatusComplete
		if h.mustSatisfy {
			h.status = StatusFailure
		}
		return h.status
	}
	h.remember(ctx)
	step := h.steps[h.next]()
	err := ctx.Delegate(step,
		func(c *Context) {
			h.next++
			h.advance(c)
		},
		func(c *Context) {
			h.failures++
			if h.failures > h.retries {
				h.status = StatusFailure
				return
			}
			c.Logger.Debug("helper step failed, re-planning",
				zap.String("helper", h.name),
				zap.Int("failures", h.failures),
			)
			h.next = 0
			h.advance(c)
		},
	)
	if err != nil {
		ctx.Logger.Error("helper could not delegate", zap.String("helper", h.name), zap.Error(err))
		h.status = StatusFailure
	}
	return h.status
}

func (h *sequenceHelper) remember(ctx *Context) {
	if ctx.World == nil || h.target == world.InvalidObject {
		return
	}
	if obj, ok := ctx.World.Object(h.target); ok {
		h.revision = obj.PoseRevision
	}
}

func (h *sequenceHelper) UpdateWhileActive(ctx *Context) Status {
	if h.replan {
		h.replan = false
		h.next = 0
		return h.advance(ctx)
	}
	return h.status
}

func (h *sequenceHelper) ShouldCancelDelegates(ctx *Context) bool {
	if h.cancelWhen == nil || !h.cancelWhen(ctx, h) {
		return false
	}
	h.replan = true
	return true
}

func (h *sequenceHelper) Stop(*Context, bool) {
	h.replan = false
}

func targetMoved(ctx *Context, h *sequenceHelper) bool {
	if ctx.World == nil {
		return false
	}
	obj, ok := ctx.World.Object(h.target)
	if !ok {
		return false
	}
	return obj.PoseRevision != h.revision
}

type treeHelper struct {
	name string
	node bt.Node
}

func (h *treeHelper) Name() string { return h.name }

func (h *treeHelper) Init(*Context) Status {
	if h.node == nil {
		return StatusFailure
	}
	return StatusRunning
}

func (h *treeHelper) UpdateWhileActive(ctx *Context) Status {
	status, err := h.node.Tick()
	if err != nil {
		ctx.Logger.Warn("behavior tree tick failed", zap.String("helper", h.name), zap.Error(err))
		return StatusFailure
	}
	switch status {
	case bt.Running:
		return StatusRunning
	case bt.Success:
		return StatusComplete
	default:
		return StatusFailure
	}
}

func (h *treeHelper) ShouldCancelDelegates(*Context) bool { return false }

func (h *treeHelper) Stop(*Context, bool) {}
