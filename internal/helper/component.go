package helper

import (
	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/world"
)

const defaultMaxTicksPerUpdate = 32

// Component runs the helper stack for exactly one delegating behavior at a
// time. Helpers live in an arena keyed by Handle; the stack is an ordered list
// of handles, bottom first.
type Component struct {
	logger   *zap.Logger
	maxTicks int

	arena map[Handle]*frame
	stack []Handle
	next  Handle

	owner     string
	onSuccess func()
	onFailure func()

	origin      world.OriginID
	originKnown bool
}

// Option customizes a Component.
type Option func(*Component)

// WithLogger sets the component logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Component) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxTicksPerUpdate bounds how many helper ticks a single Update may run
// when helpers finish in zero time.
func WithMaxTicksPerUpdate(n int) Option {
	return func(c *Component) {
		if n > 0 {
			c.maxTicks = n
		}
	}
}

// NewComponent returns an empty helper component.
func NewComponent(opts ...Option) *Component {
	c := &Component{
		logger:   zap.NewNop(),
		maxTicks: defaultMaxTicksPerUpdate,
		arena:    map[Handle]*frame{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Delegate starts a new helper stack with h as its only entry and ticks it
// once. Exactly one of onSuccess/onFailure runs when the stack drains, unless
// the stack is stopped through StopWithoutCallback.
func (c *Component) Delegate(env Env, owner string, h Helper, onSuccess, onFailure func()) (Handle, error) {
	if h == nil {
		c.logger.Error("helper delegate is nil", zap.String("owner", owner))
		return InvalidHandle, ErrDelegateOutsideTick
	}
	if len(c.stack) > 0 {
		c.logger.Error("helper stack already exists",
			zap.String("owner", owner),
			zap.String("existing_owner", c.owner),
			zap.String("helper", h.Name()),
			zap.Strings("stack", c.Names()),
		)
		return InvalidHandle, ErrStackExists
	}
	c.onSuccess, c.onFailure = nil, nil
	c.owner = owner
	c.onSuccess = onSuccess
	c.onFailure = onFailure
	handle := c.push(h)
	if env.World != nil {
		c.origin = env.World.Origin()
		c.originKnown = true
	}
	c.logger.Debug("helper stack started", zap.String("owner", owner), zap.String("helper", h.Name()))
	c.tickActive(env)
	return handle, nil
}

// StopWithoutCallback clears the whole stack when handle is its bottom entry.
// The registered behavior callbacks are discarded.
func (c *Component) StopWithoutCallback(env Env, handle Handle) bool {
	if len(c.stack) == 0 || c.stack[0] != handle {
		return false
	}
	c.logger.Debug("helper stack stopped without callback",
		zap.String("owner", c.owner),
		zap.Strings("stack", c.Names()),
	)
	c.clearFromTop(env, 0)
	c.onSuccess, c.onFailure = nil, nil
	c.owner = ""
	return true
}

// Clear drops any running stack without invoking callbacks.
func (c *Component) Clear(env Env) {
	if len(c.stack) == 0 {
		return
	}
	c.StopWithoutCallback(env, c.stack[0])
}

// Update runs one external tick: first the paused helpers may reclaim
// control, then the active helper is ticked until it reports Running or the
// stack drains.
func (c *Component) Update(env Env) {
	if len(c.stack) == 0 {
		return
	}
	for i := 0; i < len(c.stack)-1; i++ {
		f := c.arena[c.stack[i]]
		cancel := f.helper.ShouldCancelDelegates(c.contextFor(env, f))
		// paused helpers may not push delegates
		f.request = nil
		if !cancel {
			continue
		}
		c.logger.Debug("paused helper cancelled its delegates",
			zap.String("helper", f.helper.Name()),
			zap.Int("position", i),
			zap.Int("depth", len(c.stack)),
		)
		c.clearFromTop(env, i+1)
		f.pending = nil
		f.onSuccess, f.onFailure = nil, nil
		break
	}
	c.tickActive(env)
}

// Depth returns the number of helpers on the stack.
func (c *Component) Depth() int {
	return len(c.stack)
}

// IsActive reports whether a stack is running.
func (c *Component) IsActive() bool {
	return len(c.stack) > 0
}

// Owner returns the id of the behavior that delegated the running stack.
func (c *Component) Owner() string {
	return c.owner
}

// Names lists helper names from bottom to top.
func (c *Component) Names() []string {
	if len(c.stack) == 0 {
		return nil
	}
	names := make([]string, len(c.stack))
	for i, handle := range c.stack {
		names[i] = c.arena[handle].helper.Name()
	}
	return names
}

// Top returns the handle of the active helper, or InvalidHandle.
func (c *Component) Top() Handle {
	if len(c.stack) == 0 {
		return InvalidHandle
	}
	return c.stack[len(c.stack)-1]
}

// Bottom returns the handle at the base of the stack, or InvalidHandle.
func (c *Component) Bottom() Handle {
	if len(c.stack) == 0 {
		return InvalidHandle
	}
	return c.stack[0]
}

func (c *Component) tickActive(env Env) {
	if len(c.stack) == 0 {
		return
	}
	originChanged := c.checkOrigin(env)
	for ticks := 0; len(c.stack) > 0; ticks++ {
		if ticks >= c.maxTicks {
			c.logger.Warn("helper tick budget exhausted",
				zap.Int("budget", c.maxTicks),
				zap.Strings("stack", c.Names()),
			)
			return
		}
		top := c.arena[c.stack[len(c.stack)-1]]
		if originChanged && len(c.stack) > 1 {
			c.logger.Info("world origin changed, failing helper out",
				zap.String("helper", top.helper.Name()),
			)
			c.popTop(env)
			c.setPending(OutcomeFailure)
			continue
		}
		originChanged = false
		status := c.step(env, top)
		if req := top.request; req != nil {
			top.request = nil
			if status == StatusRunning {
				top.onSuccess = req.onSuccess
				top.onFailure = req.onFailure
				c.push(req.helper)
				continue
			}
			c.logger.Warn("helper finished and requested a delegate, delegate dropped",
				zap.String("helper", top.helper.Name()),
				zap.String("delegate", req.helper.Name()),
			)
		}
		if status == StatusRunning {
			return
		}
		c.popTop(env)
		if len(c.stack) == 0 {
			c.finish(status)
			return
		}
		c.setPending(outcomeFor(status))
	}
}

// step runs Init on first use, delivers any pending delegate outcome, and then
// calls UpdateWhileActive unless the continuation already requested a new
// delegate.
func (c *Component) step(env Env, f *frame) Status {
	ctx := c.contextFor(env, f)
	if !f.initialized {
		f.initialized = true
		f.status = f.helper.Init(ctx)
		return f.status
	}
	if f.pending != nil {
		outcome := *f.pending
		onSuccess, onFailure := f.onSuccess, f.onFailure
		f.pending = nil
		f.onSuccess, f.onFailure = nil, nil
		switch outcome {
		case OutcomeSuccess:
			if onSuccess != nil {
				onSuccess(ctx)
			}
		default:
			if onFailure != nil {
				onFailure(ctx)
			}
		}
		if f.request != nil {
			f.status = StatusRunning
			return f.status
		}
	}
	f.status = f.helper.UpdateWhileActive(ctx)
	return f.status
}

func (c *Component) finish(status Status) {
	onSuccess, onFailure := c.onSuccess, c.onFailure
	owner := c.owner
	c.onSuccess, c.onFailure = nil, nil
	c.owner = ""
	c.logger.Debug("helper stack drained", zap.String("owner", owner), zap.Stringer("status", status))
	if status == StatusComplete {
		if onSuccess != nil {
			onSuccess()
		}
		return
	}
	if onFailure != nil {
		onFailure()
	}
}

func (c *Component) setPending(outcome Outcome) {
	if len(c.stack) == 0 {
		return
	}
	f := c.arena[c.stack[len(c.stack)-1]]
	f.pending = &outcome
}

func (c *Component) push(h Helper) Handle {
	c.next++
	handle := c.next
	c.arena[handle] = &frame{handle: handle, helper: h}
	c.stack = append(c.stack, handle)
	return handle
}

func (c *Component) popTop(env Env) {
	last := len(c.stack) - 1
	c.stopFrame(env, c.stack[last], true)
	c.stack = c.stack[:last]
}

// clearFromTop stops every helper at index >= keep, top first, and truncates
// the stack to its first keep entries.
func (c *Component) clearFromTop(env Env, keep int) {
	if keep < 0 {
		keep = 0
	}
	top := len(c.stack) - 1
	for i := top; i >= keep; i-- {
		c.stopFrame(env, c.stack[i], i == top)
	}
	if keep < len(c.stack) {
		c.stack = c.stack[:keep]
	}
}

func (c *Component) stopFrame(env Env, handle Handle, isActive bool) {
	f, ok := c.arena[handle]
	if !ok {
		return
	}
	f.stopping = true
	f.request = nil
	f.helper.Stop(c.contextFor(env, f), isActive)
	delete(c.arena, handle)
}

func (c *Component) checkOrigin(env Env) bool {
	if env.World == nil {
		return false
	}
	current := env.World.Origin()
	if !c.originKnown {
		c.origin = current
		c.originKnown = true
		return false
	}
	changed := current != c.origin
	c.origin = current
	return changed
}

func (c *Component) contextFor(env Env, f *frame) *Context {
	return &Context{
		World:   env.World,
		Actions: env.Actions,
		Tick:    env.Tick,
		Logger:  c.logger,
		frame:   f,
	}
}
