// Package engine assembles a robot behavior config into a running system
// manager: it resolves behavior definitions, builds one chooser per activity
// and keeps chooser directives in sync with config reloads.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/action"
	"github.com/kingrea/robot-behaviors/internal/activity"
	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/behaviors"
	"github.com/kingrea/robot-behaviors/internal/chooser"
	"github.com/kingrea/robot-behaviors/internal/config"
	"github.com/kingrea/robot-behaviors/internal/system"
	"github.com/kingrea/robot-behaviors/internal/telemetry"
	"github.com/kingrea/robot-behaviors/internal/world"
)

// Option customizes Build.
type Option func(*options)

type options struct {
	logger          *zap.Logger
	registry        *behavior.Registry
	sink            telemetry.Sink
	metrics         *telemetry.Metrics
	world           world.State
	actions         action.Runner
	clock           func() time.Time
	defaultActivity string
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegistry replaces the built-in behavior class registry.
func WithRegistry(reg *behavior.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithSink sets the telemetry sink.
func WithSink(sink telemetry.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRobot wires the world view and action runner.
func WithRobot(w world.State, r action.Runner) Option {
	return func(o *options) {
		o.world = w
		o.actions = r
	}
}

// WithClock sets the manager clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithDefaultActivity overrides the config's startup activity.
func WithDefaultActivity(id string) Option {
	return func(o *options) { o.defaultActivity = id }
}

// Engine owns the manager and the choosers built from config.
type Engine struct {
	manager   *system.Manager
	container *behavior.Container
	simple    map[string]*chooser.Simple
	logger    *zap.Logger
}

// Build resolves rc into a manager. rc is expected to already carry any
// plugin definitions.
func Build(rc config.RobotConfig, opts ...Option) (*Engine, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.registry == nil {
		o.registry = behaviors.NewRegistry()
	}
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	container, err := behavior.BuildContainer(o.registry, rc.Behaviors)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{container: container, simple: map[string]*chooser.Simple{}, logger: o.logger}
	activities := make([]activity.Activity, 0, len(rc.Activities))
	for _, ac := range rc.Activities {
		c, err := e.buildChooser(ac)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		a, err := activity.NewChooserActivity(ac.ID, c,
			activity.WithEnterToggles(ac.OnEnter),
			activity.WithExitToggles(ac.OnExit),
			activity.WithLogger(o.logger.Named("activity")),
		)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		activities = append(activities, a)
	}

	start := o.defaultActivity
	if start == "" {
		start = rc.DefaultActivity
	}
	managerOpts := []system.Option{
		system.WithLogger(o.logger.Named("manager")),
		system.WithWorld(o.world),
		system.WithActions(o.actions),
		system.WithDefaultActivity(start),
		system.WithMetrics(o.metrics),
	}
	if o.sink != nil {
		managerOpts = append(managerOpts, system.WithSink(o.sink))
	}
	if o.clock != nil {
		managerOpts = append(managerOpts, system.WithClock(o.clock))
	}
	m, err := system.New(activities, managerOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.manager = m
	o.logger.Info("behavior engine ready",
		zap.Int("behaviors", container.Len()),
		zap.Strings("activities", m.Activities()),
		zap.String("activity", m.ActiveActivity()),
	)
	return e, nil
}

func (e *Engine) buildChooser(ac config.ActivityConfig) (chooser.Chooser, error) {
	logger := e.logger.Named("chooser")
	switch ac.Kind() {
	case config.ChooserSelection:
		return chooser.NewSelection(ac.ID, e.container, logger), nil
	default:
		s, err := chooser.NewSimpleFromConfig(ac.ID, ac.Chooser, e.container, chooser.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		e.simple[ac.ID] = s
		return s, nil
	}
}

// Manager returns the system manager.
func (e *Engine) Manager() *system.Manager { return e.manager }

// Container returns every resolved behavior.
func (e *Engine) Container() *behavior.Container { return e.container }

// EnabledSets reports the enabled map of every simple chooser by activity id.
func (e *Engine) EnabledSets() map[string]map[behavior.ID]bool {
	out := make(map[string]map[behavior.ID]bool, len(e.simple))
	e.manager.Reconfigure(func(*behavior.Context) {
		for id, s := range e.simple {
			out[id] = s.EnabledSet()
		}
	})
	return out
}

// Apply re-applies chooser directives and bonus curves from rc between ticks.
// Behavior definitions and the chooser behavior lists are fixed at Build;
// changes to them are logged and need a restart.
func (e *Engine) Apply(rc config.RobotConfig) error {
	var errs []error
	e.manager.Reconfigure(func(*behavior.Context) {
		for _, ac := range rc.Activities {
			s, ok := e.simple[ac.ID]
			if !ok {
				continue
			}
			if !sameIDs(s.Behaviors(), ac.Chooser.Behaviors) {
				e.logger.Warn("chooser behavior list changed, restart to apply",
					zap.String("activity", ac.ID))
			}
			if err := s.ApplyConfig(ac.Chooser); err != nil {
				errs = append(errs, fmt.Errorf("activity %s: %w", ac.ID, err))
			}
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("engine: apply config: %w", errs[0])
	}
	e.logger.Info("chooser config applied", zap.Int("activities", len(rc.Activities)))
	return nil
}

// Run ticks the manager every interval until ctx is done or maxTicks ticks
// have run (0 for no limit). before runs ahead of each tick, typically to
// advance a simulated robot.
func (e *Engine) Run(ctx context.Context, interval time.Duration, maxTicks uint64, before func()) error {
	if interval <= 0 {
		return fmt.Errorf("engine: tick interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var ran uint64
	for maxTicks == 0 || ran < maxTicks {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if before != nil {
			before()
		}
		if err := e.manager.Update(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		ran++
	}
	return nil
}

func sameIDs(have []behavior.Behavior, want []behavior.ID) bool {
	if len(have) != len(want) {
		return false
	}
	for i, b := range have {
		if b.ID() != want[i] {
			return false
		}
	}
	return true
}
