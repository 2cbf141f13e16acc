package behavior

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/helper"
	"github.com/kingrea/robot-behaviors/internal/world"
)

// ID identifies a behavior instance for the lifetime of the process.
type ID string

// Class tags the concrete behavior variant an instance was built from.
type Class string

// Status is returned from Update every tick.
type Status int

const (
	StatusRunning Status = iota
	StatusComplete
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Context is the per-tick view handed to behaviors and choosers.
type Context struct {
	World   world.State
	Actions action.Runner
	Helpers *helper.Component
	Logger  *zap.Logger
	Tick    uint64
	Now     time.Time
	// ActiveFor is how long the current behavior has been running.
	ActiveFor time.Duration
}

// HelperEnv converts the context into the helper component's tick input.
func (ctx *Context) HelperEnv() helper.Env {
	return helper.Env{World: ctx.World, Actions: ctx.Actions, Tick: ctx.Tick}
}

// Log returns the context logger or a no-op logger.
func (ctx *Context) Log() *zap.Logger {
	if ctx == nil || ctx.Logger == nil {
		return zap.NewNop()
	}
	return ctx.Logger
}

// Behavior is implemented by every selectable unit of robot conduct. A
// behavior is built once and may be Init'd and stopped many times.
type Behavior interface {
	ID() ID
	Class() Class
	Groups() []string
	// IsRunnable must not have side effects.
	IsRunnable(ctx *Context) bool
	Score(ctx *Context) float64
	// Init prepares a new activation. On error the caller must treat the
	// behavior as never started.
	Init(ctx *Context) error
	Update(ctx *Context) Status
	// Stop ends the activation. It must be safe to call when Init never
	// succeeded.
	Stop(ctx *Context)
}

// NoneID is the id of the sentinel returned when nothing should run.
const NoneID ID = "NoneBehavior"

type none struct{}

// None is the sentinel "no behavior". It is never runnable.
var None Behavior = none{}

func (none) ID() ID                   { return NoneID }
func (none) Class() Class             { return "None" }
func (none) Groups() []string         { return nil }
func (none) IsRunnable(*Context) bool { return false }
func (none) Score(*Context) float64   { return 0 }
func (none) Init(*Context) error      { return fmt.Errorf("behavior: none cannot be initialized") }
func (none) Update(*Context) Status   { return StatusComplete }
func (none) Stop(*Context)            {}

// IsNone reports whether b is nil or the None sentinel.
func IsNone(b Behavior) bool {
	return b == nil || b.ID() == NoneID
}

// IDOf returns the id of b, mapping nil to NoneID.
func IDOf(b Behavior) ID {
	if b == nil {
		return NoneID
	}
	return b.ID()
}

// ClassOf returns the class of b, mapping nil to the None class.
func ClassOf(b Behavior) Class {
	if b == nil {
		return None.Class()
	}
	return b.Class()
}
