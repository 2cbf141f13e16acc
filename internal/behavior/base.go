package behavior

import (
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/helper"
)

// Base provides common plumbing for behaviors: identity, groups, the declared
// base score and preconditions, activation bookkeeping, and the helper stack
// delegated on the behavior's behalf.
type Base struct {
	id            ID
	class         Class
	groups        []string
	score         float64
	preconditions []Precondition

	active      bool
	activatedAt time.Time
	handle      helper.Handle
}

// NewBase seeds the plumbing from a definition.
func NewBase(def Definition) (Base, error) {
	n := def.Normalized()
	if err := n.Validate(); err != nil {
		return Base{}, err
	}
	pre, err := ParsePreconditions(n.Requires)
	if err != nil {
		return Base{}, err
	}
	return Base{
		id:            n.ID,
		class:         n.Class,
		groups:        n.Groups,
		score:         n.Score,
		preconditions: pre,
	}, nil
}

// ID implements Behavior.ID.
func (b *Base) ID() ID { return b.id }

// Class implements Behavior.Class.
func (b *Base) Class() Class { return b.class }

// Groups implements Behavior.Groups.
func (b *Base) Groups() []string {
	return append([]string(nil), b.groups...)
}

// Preconditions returns the declared requirements.
func (b *Base) Preconditions() []Precondition {
	return append([]Precondition(nil), b.preconditions...)
}

// IsRunnable checks every declared precondition.
func (b *Base) IsRunnable(ctx *Context) bool {
	for _, p := range b.preconditions {
		if !p.Satisfied(ctx.World) {
			return false
		}
	}
	return true
}

// Score returns the configured base score.
func (b *Base) Score(*Context) float64 { return b.score }

// BaseScore returns the configured score before any context adjustments.
func (b *Base) BaseScore() float64 { return b.score }

// Activate records the start of an activation. Concrete Init methods call it
// once their own setup succeeded.
func (b *Base) Activate(ctx *Context) {
	b.active = true
	b.activatedAt = ctx.Now
	b.handle = helper.InvalidHandle
}

// Active reports whether the behavior is between a successful Init and Stop.
func (b *Base) Active() bool { return b.active }

// ActivatedAt returns when the current activation began.
func (b *Base) ActivatedAt() time.Time { return b.activatedAt }

// Deactivate ends the activation and stops any helper stack delegated by it
// without firing its callbacks. It reports whether the behavior was active, so
// concrete Stop methods can return early on repeated or premature calls.
func (b *Base) Deactivate(ctx *Context) bool {
	b.StopHelpers(ctx)
	if !b.active {
		return false
	}
	b.active = false
	return true
}

// Delegate hands control to a helper stack. onSuccess/onFailure fire on a
// later helper tick once the stack drains.
func (b *Base) Delegate(ctx *Context, h helper.Helper, onSuccess, onFailure func()) error {
	if ctx.Helpers == nil {
		ctx.Log().Error("behavior has no helper component", zap.String("behavior", string(b.id)))
		return helper.ErrDelegateOutsideTick
	}
	handle, err := ctx.Helpers.Delegate(ctx.HelperEnv(), string(b.id), h, onSuccess, onFailure)
	if err != nil {
		return err
	}
	if ctx.Helpers.Bottom() == handle {
		b.handle = handle
	}
	return nil
}

// Delegating reports whether a helper stack started by this behavior is
// still running.
func (b *Base) Delegating(ctx *Context) bool {
	return b.handle != helper.InvalidHandle && ctx.Helpers != nil && ctx.Helpers.Bottom() == b.handle
}

// StopHelpers cancels the behavior's helper stack, if it is still running.
func (b *Base) StopHelpers(ctx *Context) {
	if b.handle == helper.InvalidHandle {
		return
	}
	if ctx != nil && ctx.Helpers != nil {
		ctx.Helpers.StopWithoutCallback(ctx.HelperEnv(), b.handle)
	}
	b.handle = helper.InvalidHandle
}
