package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/config"
	"github.com/kingrea/robot-behaviors/internal/engine"
	"github.com/kingrea/robot-behaviors/internal/logging"
	"github.com/kingrea/robot-behaviors/internal/sim"
	"github.com/kingrea/robot-behaviors/internal/system"
	"github.com/kingrea/robot-behaviors/internal/telemetry"
	"github.com/kingrea/robot-behaviors/internal/world"
	"github.com/kingrea/robot-behaviors/plugins"
)

const snapshotEvery = 50

// project is the loaded .behaviors/ folder.
type project struct {
	cfg    *config.Config
	logger *logging.Logger
}

func openProject(flags *rootFlags) (*project, error) {
	dir := flags.project
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitProjectDir(abs); err != nil {
		return nil, fmt.Errorf("init %s: %w", config.ProjectDirName, err)
	}
	cfg, err := config.NewConfig(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	var logOpts []logging.Option
	if flags.verbose {
		logOpts = append(logOpts, logging.WithStderr())
	}
	logger, err := logging.New(abs, cfg.Project.LogLevel, logOpts...)
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, logger: logger}, nil
}

func (p *project) close() {
	_ = p.logger.Close()
}

// robotConfig loads the behavior config and merges plugin definitions.
func (p *project) robotConfig() (config.RobotConfig, []plugins.DefinitionFile, error) {
	rc, err := config.LoadRobotConfig(p.cfg.BehaviorConfigPath())
	if err != nil {
		return config.RobotConfig{}, nil, err
	}
	merged, files, err := plugins.LoadAndApply(rc, p.cfg.PluginDir())
	if err != nil {
		return config.RobotConfig{}, nil, fmt.Errorf("load plugins: %w", err)
	}
	for _, file := range files {
		p.logger.Info("plugin loaded",
			zap.String("plugin", file.Definition.ID),
			zap.String("path", file.Path),
			zap.Int("behaviors", len(file.Definition.Behaviors)),
		)
	}
	return merged, files, nil
}

// startActivity returns the configured startup activity when rc declares it.
func (p *project) startActivity(rc config.RobotConfig) string {
	id := p.cfg.Project.DefaultActivity
	if _, ok := rc.Activity(id); ok {
		return id
	}
	if id != "" {
		p.logger.Warn("startup activity not declared, using behavior config default",
			zap.String("activity", id), zap.String("fallback", rc.DefaultActivity))
	}
	return ""
}

// daemon is a running behavior system against the simulated robot.
type daemon struct {
	project *project
	robot   *sim.Robot
	engine  *engine.Engine
	router  *telemetry.Router
	metrics *telemetry.Metrics
	gather  prometheus.Gatherer
	repo    *system.Repository
	watcher *config.Watcher
}

func newDaemon(p *project) (*daemon, error) {
	rc, _, err := p.robotConfig()
	if err != nil {
		return nil, err
	}
	logger := p.logger.Logger

	robot := sim.New(sim.WithLogger(logger.Named("sim")))
	robot.AddObject(world.Object{ID: 1, Upright: true})

	reg := prometheus.NewRegistry()
	metrics := telemetry.MustNewMetrics(reg)
	router := telemetry.NewRouter(telemetry.RouterWithLogger(logger.Named("telemetry")))
	eventLog := telemetry.SinkFunc(func(e telemetry.Event) {
		logger.Debug("telemetry", zap.String("kind", string(e.Kind)), zap.Uint64("tick", e.Tick),
			zap.String("behavior", string(e.Behavior)), zap.String("detail", e.Detail))
	})

	e, err := engine.Build(rc,
		engine.WithLogger(logger),
		engine.WithRobot(robot, robot),
		engine.WithMetrics(metrics),
		engine.WithSink(telemetry.Fanout{router, metrics, eventLog}),
		engine.WithDefaultActivity(p.startActivity(rc)),
	)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		project: p,
		robot:   robot,
		engine:  e,
		router:  router,
		metrics: metrics,
		gather:  reg,
		repo:    system.NewRepository(p.cfg.StateDir()),
	}
	watcher, err := config.NewWatcher(p.cfg.BehaviorConfigPath(), d.reload,
		config.WithWatchLogger(logger.Named("watcher")))
	if err != nil {
		return nil, err
	}
	d.watcher = watcher
	return d, nil
}

// reload merges plugins into a changed behavior config and applies it.
func (d *daemon) reload(rc config.RobotConfig) {
	logger := d.project.logger.Logger
	merged, _, err := plugins.LoadAndApply(rc, d.project.cfg.PluginDir())
	if err != nil {
		logger.Warn("reload skipped, plugins failed to load", zap.Error(err))
		return
	}
	if err := d.engine.Apply(merged); err != nil {
		logger.Warn("reload rejected", zap.Error(err))
	}
}

// run ticks the manager until ctx is done or ticks ticks have run.
func (d *daemon) run(ctx context.Context, ticks uint64, metricsAddr string) error {
	logger := d.project.logger.Logger
	if err := d.watcher.Start(ctx); err != nil {
		return err
	}
	defer d.watcher.Stop()

	if addr := strings.TrimSpace(metricsAddr); addr != "" {
		stop := d.serveMetrics(addr)
		defer stop()
	}

	m := d.engine.Manager()
	interval := d.project.cfg.Project.TickInterval
	logger.Info("behavior daemon started",
		zap.Duration("tick_interval", interval),
		zap.Uint64("ticks", ticks),
		zap.String("activity", m.ActiveActivity()),
	)
	err := d.engine.Run(ctx, interval, ticks, func() {
		m.Reconfigure(func(*behavior.Context) { d.robot.Step() })
		if tick := m.Tick(); tick > 0 && tick%snapshotEvery == 0 {
			d.saveSnapshot()
		}
	})
	d.saveSnapshot()
	logger.Info("behavior daemon stopped", zap.Uint64("tick", m.Tick()), zap.Uint64("dropped_events", d.router.Dropped()))
	return err
}

func (d *daemon) saveSnapshot() {
	if err := d.repo.Save(d.engine.Manager().Snapshot()); err != nil {
		d.project.logger.Warn("save snapshot failed", zap.Error(err))
	}
}

func (d *daemon) serveMetrics(addr string) func() {
	logger := d.project.logger.Logger
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.gather, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
