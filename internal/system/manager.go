package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/activity"
	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/chooser"
	"github.com/kingrea/robot-behaviors/internal/helper"
	"github.com/kingrea/robot-behaviors/internal/telemetry"
	"github.com/kingrea/robot-behaviors/internal/world"
)

var (
	// ErrUnknownActivity is returned when an activity id is not registered.
	ErrUnknownActivity = errors.New("system: unknown activity")
	// ErrNoSelectionActivity is returned by ExecuteBehavior when no activity
	// wraps a selection chooser.
	ErrNoSelectionActivity = errors.New("system: no selection activity")
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSink routes telemetry events to sink.
func WithSink(sink telemetry.Sink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithMetrics records Prometheus metrics for every tick and event.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithHelpers supplies the helper component shared with behaviors.
func WithHelpers(c *helper.Component) Option {
	return func(m *Manager) {
		if c != nil {
			m.helpers = c
		}
	}
}

// WithWorld sets the world state behaviors query.
func WithWorld(w world.State) Option {
	return func(m *Manager) { m.world = w }
}

// WithActions sets the action runner behaviors and helpers start actions on.
func WithActions(r action.Runner) Option {
	return func(m *Manager) { m.actions = r }
}

// WithDefaultActivity picks the activity entered on construction. The first
// activity is used otherwise.
func WithDefaultActivity(id string) Option {
	return func(m *Manager) { m.defaultActivity = id }
}

// RunningInfo is the single current-behavior slot. It is replaced wholesale
// on every switch.
type RunningInfo struct {
	Behavior behavior.Behavior
	Since    time.Time
	Tick     uint64
}

// Manager is the per-tick driver that owns the current behavior.
type Manager struct {
	mu sync.Mutex

	logger  *zap.Logger
	clock   func() time.Time
	sink    telemetry.Sink
	metrics *telemetry.Metrics
	helpers *helper.Component
	world   world.State
	actions action.Runner

	activities      map[string]activity.Activity
	order           []string
	defaultActivity string
	active          activity.Activity

	enabled bool
	tick    uint64
	running RunningInfo
}

// New builds a manager over activities and enters the default one.
func New(activities []activity.Activity, opts ...Option) (*Manager, error) {
	m := &Manager{
		logger:     zap.NewNop(),
		clock:      time.Now,
		sink:       telemetry.Discard,
		activities: map[string]activity.Activity{},
		enabled:    true,
		running:    RunningInfo{Behavior: behavior.None},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.helpers == nil {
		m.helpers = helper.NewComponent(helper.WithLogger(m.logger.Named("helpers")))
	}
	for _, a := range activities {
		if a == nil {
			continue
		}
		id := a.ID()
		if _, exists := m.activities[id]; exists {
			return nil, fmt.Errorf("system: duplicate activity %s", id)
		}
		m.activities[id] = a
		m.order = append(m.order, id)
	}
	if len(m.order) == 0 {
		return nil, fmt.Errorf("system: at least one activity is required")
	}
	start := m.defaultActivity
	if start == "" {
		start = m.order[0]
	}
	if err := m.ActivateActivity(start); err != nil {
		return nil, err
	}
	return m, nil
}

// Update runs one tick. Behavior and helper failures are logged and absorbed;
// the only error returned is the context's.
func (m *Manager) Update(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tick++
	bctx := m.context()
	m.helpers.Update(bctx.HelperEnv())

	if m.enabled && m.active != nil {
		current := m.running.Behavior
		if !behavior.IsNone(current) {
			bctx.ActiveFor = bctx.Now.Sub(m.running.Since)
		}
		desired := m.active.DesiredBehavior(bctx, current)
		if behavior.IDOf(desired) != behavior.IDOf(current) {
			m.switchTo(bctx, desired)
		}
	}

	if current := m.running.Behavior; !behavior.IsNone(current) {
		bctx.ActiveFor = bctx.Now.Sub(m.running.Since)
		status := current.Update(bctx)
		if status != behavior.StatusRunning {
			m.finished(bctx, current, status)
		}
	}

	m.metrics.ObserveTick(m.helpers.Depth())
	return nil
}

// Current returns the running behavior, or behavior.None when idle.
func (m *Manager) Current() behavior.Behavior {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running.Behavior
}

// RunningInfo returns a copy of the current-behavior slot.
func (m *Manager) RunningInfo() RunningInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Tick returns how many ticks have been processed.
func (m *Manager) Tick() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// Helpers exposes the helper component.
func (m *Manager) Helpers() *helper.Component { return m.helpers }

// Enabled reports whether behavior selection is on.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// SetEnabled turns behavior selection on or off. Disabling stops the current
// behavior and leaves the manager idle.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled == enabled {
		return
	}
	m.enabled = enabled
	m.logger.Info("behavior system enabled changed", zap.Bool("enabled", enabled))
	if !enabled {
		m.switchTo(m.context(), behavior.None)
	}
}

// Activities lists activity ids in registration order.
func (m *Manager) Activities() []string {
	return append([]string(nil), m.order...)
}

// ActiveActivity returns the id of the active activity.
func (m *Manager) ActiveActivity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.ID()
}

// ActivateActivity exits the active activity, stops the current behavior and
// enters id. Activating the already active activity is a no-op.
func (m *Manager) ActivateActivity(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activate(id)
}

func (m *Manager) activate(id string) error {
	next, ok := m.activities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActivity, id)
	}
	if m.active != nil && m.active.ID() == id {
		return nil
	}
	bctx := m.context()
	m.switchTo(bctx, behavior.None)
	prev := ""
	if m.active != nil {
		prev = m.active.ID()
		m.active.OnExit(bctx)
	}
	m.active = next
	next.OnEnter(bctx)
	m.logger.Info("activity changed", zap.String("from", prev), zap.String("to", id))
	event := telemetry.NewEvent(telemetry.KindActivity, m.tick, bctx.Now)
	event.Activity = id
	event.Detail = prev
	m.publish(event)
	return nil
}

// ExecuteBehavior switches to the activity wrapping a selection chooser and
// requests id for times activations (chooser.Forever for no limit).
func (m *Manager) ExecuteBehavior(id behavior.ID, times int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, actID := range m.order {
		wrapper, ok := m.activities[actID].(interface{ Chooser() chooser.Chooser })
		if !ok {
			continue
		}
		sel, ok := wrapper.Chooser().(*chooser.Selection)
		if !ok {
			continue
		}
		if err := m.activate(actID); err != nil {
			return err
		}
		return sel.Request(id, times)
	}
	return ErrNoSelectionActivity
}

// Reconfigure runs fn between ticks so choosers can be changed from other
// goroutines without racing selection.
func (m *Manager) Reconfigure(fn func(ctx *behavior.Context)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.context())
}

// switchTo stops the current behavior before touching next, then commits
// next only if its Init succeeds.
func (m *Manager) switchTo(bctx *behavior.Context, next behavior.Behavior) {
	old := m.running.Behavior
	if !behavior.IsNone(old) {
		old.Stop(bctx)
		m.releaseHelpers(bctx, old)
	}
	m.running = RunningInfo{Behavior: behavior.None}

	committed := behavior.None
	if !behavior.IsNone(next) {
		if !next.IsRunnable(bctx) {
			m.logger.Error("switching to behavior that is not runnable",
				zap.String("behavior", string(next.ID())),
				zap.Uint64("tick", m.tick),
			)
		}
		bctx.ActiveFor = 0
		if err := next.Init(bctx); err != nil {
			m.logger.Error("behavior init failed",
				zap.String("behavior", string(next.ID())),
				zap.Uint64("tick", m.tick),
				zap.Error(err),
			)
			m.releaseHelpers(bctx, next)
			event := telemetry.NewEvent(telemetry.KindInitFailure, m.tick, bctx.Now)
			event.Behavior = next.ID()
			event.Detail = err.Error()
			m.publish(event)
		} else {
			committed = next
			m.running = RunningInfo{Behavior: next, Since: bctx.Now, Tick: m.tick}
		}
	}

	if behavior.IDOf(old) == behavior.IDOf(committed) {
		return
	}
	m.logger.Info("behavior transition",
		zap.String("from", string(behavior.IDOf(old))),
		zap.String("to", string(behavior.IDOf(committed))),
		zap.Uint64("tick", m.tick),
	)
	event := telemetry.NewEvent(telemetry.KindTransition, m.tick, bctx.Now)
	event.Transition = &telemetry.Transition{
		OldID:    behavior.IDOf(old),
		NewID:    behavior.IDOf(committed),
		OldClass: behavior.ClassOf(old),
		NewClass: behavior.ClassOf(committed),
	}
	m.publish(event)
}

func (m *Manager) finished(bctx *behavior.Context, b behavior.Behavior, status behavior.Status) {
	fields := []zap.Field{
		zap.String("behavior", string(b.ID())),
		zap.Stringer("status", status),
		zap.Duration("active_for", bctx.ActiveFor),
	}
	if status == behavior.StatusFailure {
		m.logger.Warn("behavior failed", fields...)
	} else {
		m.logger.Info("behavior complete", fields...)
	}
	event := telemetry.NewEvent(telemetry.KindResult, m.tick, bctx.Now)
	event.Behavior = b.ID()
	event.Status = status
	m.publish(event)
	m.switchTo(bctx, behavior.None)
}

// releaseHelpers clears a helper stack still owned by b after it stopped.
func (m *Manager) releaseHelpers(bctx *behavior.Context, b behavior.Behavior) {
	if m.helpers.IsActive() && m.helpers.Owner() == string(b.ID()) {
		m.logger.Warn("behavior left helpers running, clearing stack",
			zap.String("behavior", string(b.ID())),
			zap.Strings("helpers", m.helpers.Names()),
		)
		m.helpers.Clear(bctx.HelperEnv())
	}
}

func (m *Manager) context() *behavior.Context {
	return &behavior.Context{
		World:   m.world,
		Actions: m.actions,
		Helpers: m.helpers,
		Logger:  m.logger,
		Tick:    m.tick,
		Now:     m.clock(),
	}
}

func (m *Manager) publish(event telemetry.Event) {
	m.sink.Publish(event)
	m.metrics.Publish(event)
}
