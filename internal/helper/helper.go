package helper

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/world"
)

// Status is reported by a helper every time it is ticked.
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

// Outcome is delivered to a paused helper once its delegate leaves the stack.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

func outcomeFor(s Status) Outcome {
	if s == StatusComplete {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Handle addresses a helper instance held in the component arena. Handles are
// never reused within one component.
type Handle uint64

// InvalidHandle is returned when a delegation is refused.
const InvalidHandle Handle = 0

// Helper is a stateful sub-task run on behalf of a behavior. Only the helper on
// top of the stack is ticked; the others are paused until their delegate
// finishes or until they reclaim control through ShouldCancelDelegates.
type Helper interface {
	Name() string
	// Init is called once when the helper is pushed. Returning Complete or
	// Failure ends the helper without calling UpdateWhileActive.
	Init(ctx *Context) Status
	UpdateWhileActive(ctx *Context) Status
	// ShouldCancelDelegates is polled while the helper is paused. Returning true
	// stops every helper above it and makes it active again.
	ShouldCancelDelegates(ctx *Context) bool
	// Stop is called exactly once when the helper leaves the stack. isActive
	// reports whether it was the top of the stack at that moment.
	Stop(ctx *Context, isActive bool)
}

// Env carries the collaborators for one tick.
type Env struct {
	World   world.State
	Actions action.Runner
	Tick    uint64
}

var (
	// ErrStackExists is returned when a behavior delegates while a helper stack
	// is already running.
	ErrStackExists = errors.New("helper: stack already exists")
	// ErrDelegateOutsideTick is returned when Context.Delegate is used outside
	// Init, UpdateWhileActive or a delegate continuation.
	ErrDelegateOutsideTick = errors.New("helper: delegate requested outside of an active tick")
	// ErrDelegatePending is returned when a helper requests a second delegate in
	// the same tick.
	ErrDelegatePending = errors.New("helper: delegate already requested this tick")
)

// Context is handed to every Helper callback.
type Context struct {
	World   world.State
	Actions action.Runner
	Logger  *zap.Logger
	Tick    uint64

	frame *frame
}

// Delegate pushes child above the calling helper once the current callback
// returns. onSuccess/onFailure run on the caller the next time it becomes the
// top of the stack, before its UpdateWhileActive.
func (ctx *Context) Delegate(child Helper, onSuccess, onFailure func(*Context)) error {
	if child == nil {
		return fmt.Errorf("helper: delegate is nil")
	}
	if ctx == nil || ctx.frame == nil || ctx.frame.stopping {
		return ErrDelegateOutsideTick
	}
	if ctx.frame.request != nil {
		return ErrDelegatePending
	}
	ctx.frame.request = &delegateRequest{helper: child, onSuccess: onSuccess, onFailure: onFailure}
	return nil
}

type delegateRequest struct {
	helper    Helper
	onSuccess func(*Context)
	onFailure func(*Context)
}

type frame struct {
	handle      Handle
	helper      Helper
	initialized bool
	stopping    bool
	status      Status
	request     *delegateRequest
	// pending holds the outcome of this helper's delegate until it is
	// delivered through the continuations below.
	pending   *Outcome
	onSuccess func(*Context)
	onFailure func(*Context)
}
