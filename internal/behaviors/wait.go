package behaviors

import (
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// ClassWait idles for a fixed time.
const ClassWait behavior.Class = "Wait"

// Wait does nothing for duration, then completes. A zero duration waits
// until something else is chosen.
type Wait struct {
	behavior.Base
	duration time.Duration
}

// NewWait builds a Wait from its definition. Params: duration.
func NewWait(def behavior.Definition) (behavior.Behavior, error) {
	base, err := behavior.NewBase(def)
	if err != nil {
		return nil, err
	}
	d, err := def.Params.Duration("duration", 0)
	if err != nil {
		return nil, err
	}
	if d < 0 {
		return nil, errRange(def.ID, "duration")
	}
	return &Wait{Base: base, duration: d}, nil
}

// Init implements behavior.Behavior.
func (w *Wait) Init(ctx *behavior.Context) error {
	w.Activate(ctx)
	ctx.Log().Debug("waiting", zap.String("behavior", string(w.ID())), zap.Duration("duration", w.duration))
	return nil
}

// Update implements behavior.Behavior.
func (w *Wait) Update(ctx *behavior.Context) behavior.Status {
	if w.duration > 0 && ctx.Now.Sub(w.ActivatedAt()) >= w.duration {
		return behavior.StatusComplete
	}
	return behavior.StatusRunning
}

// Stop implements behavior.Behavior.
func (w *Wait) Stop(ctx *behavior.Context) {
	w.Deactivate(ctx)
}
