// internal/config/config.go
//
// This package handles configuration and the .behaviors directory structure.
// Every project that runs the behavior daemon gets a .behaviors/ folder in its
// root holding the project config, logs, snapshots and plugins.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in each project
	ProjectDirName = ".behaviors"

	defaultTickInterval   = 100 * time.Millisecond
	defaultActivity       = "freeplay"
	defaultLogLevel       = "info"
	defaultBehaviorConfig = "robot.json"
	defaultPluginDir      = "plugins"
)

const defaultProjectConfigYAML = `# behavior daemon project configuration
version: 1

# How often the behavior system manager ticks.
tick_interval: 100ms

# Activity entered on startup. Must match an id in the behavior config.
default_activity: freeplay

# debug, info, warn or error.
log_level: info

# Address for the Prometheus /metrics endpoint. Empty disables it.
metrics_addr: ""

# Robot behavior configuration (behaviors and activities), relative to .behaviors/.
behavior_config: robot.json

# Directory holding *.yaml and *.go behavior definition plugins, relative to .behaviors/.
plugin_dir: plugins
`

const defaultRobotConfigJSON = `{
  "defaultActivity": "freeplay",
  "behaviors": [
    {"id": "LookAround", "class": "Tree", "groups": ["Idle"], "score": 0.2,
     "params": {"mode": "sequence", "steps": [{"action": "turn_in_place"}, {"action": "play_animation", "trigger": "look"}]}},
    {"id": "FetchCube", "class": "HelperSequence", "groups": ["Cubes"], "score": 0.6,
     "requires": ["object:1", "connected"],
     "params": {"steps": [{"helper": "pickup", "object": 1}, {"helper": "place", "object": 1}], "retries": 1}},
    {"id": "Celebrate", "class": "PlayAnimation", "groups": ["Fun"], "score": 0.1,
     "params": {"trigger": "cheer"}},
    {"id": "Rest", "class": "Wait", "score": 0.05, "params": {"duration": "3s"}}
  ],
  "activities": [
    {"id": "freeplay", "chooser": {
      "behaviors": ["LookAround", "FetchCube", "Celebrate", "Rest"],
      "scoreBonusForCurrentBehavior": [{"x": 0, "y": 0.3}, {"x": 10, "y": 0}]
    }},
    {"id": "selection", "type": "selection"}
  ]
}
`

// ProjectConfig models .behaviors/config.yaml.
type ProjectConfig struct {
	Version         int           `yaml:"version"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	DefaultActivity string        `yaml:"default_activity"`
	LogLevel        string        `yaml:"log_level"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	BehaviorConfig  string        `yaml:"behavior_config"`
	PluginDir       string        `yaml:"plugin_dir"`
}

// Config holds the runtime configuration for the daemon.
type Config struct {
	// ProjectDir is the directory the daemon was started from
	ProjectDir string

	// StateRoot is ProjectDir/.behaviors
	StateRoot string

	Project ProjectConfig
}

// InitProjectDir creates the .behaviors directory structure in the given
// project directory and seeds default config files when missing.
//
// Structure created:
// .behaviors/
// ├── config.yaml
// ├── robot.json    <- behaviors and activities
// ├── logs/
// ├── state/        <- manager snapshots
// └── plugins/      <- extra behavior definitions
func InitProjectDir(projectDir string) error {
	root := filepath.Join(projectDir, ProjectDirName)

	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
		filepath.Join(root, defaultPluginDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}

	if err := ensureFile(filepath.Join(root, "config.yaml"), defaultProjectConfigYAML); err != nil {
		return err
	}
	return ensureFile(filepath.Join(root, defaultBehaviorConfig), defaultRobotConfigJSON)
}

// NewConfig creates a new Config populated from .behaviors/config.yaml. A
// missing file yields the defaults.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateRoot:  filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateRoot, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateRoot, "logs")
}

// StateDir returns the path to the snapshot directory
func (c *Config) StateDir() string {
	return filepath.Join(c.StateRoot, "state")
}

// BehaviorConfigPath returns the resolved robot behavior config path.
func (c *Config) BehaviorConfigPath() string {
	return resolvePath(c.StateRoot, c.Project.BehaviorConfig)
}

// PluginDir returns the resolved plugin directory.
func (c *Config) PluginDir() string {
	return resolvePath(c.StateRoot, c.Project.PluginDir)
}

// SetDefaultActivity updates the startup activity and persists it.
func (c *Config) SetDefaultActivity(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: activity id is required")
	}
	c.Project.DefaultActivity = id
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.StateRoot, 0o755); err != nil {
		return fmt.Errorf("config: ensure project dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:         1,
		TickInterval:    defaultTickInterval,
		DefaultActivity: defaultActivity,
		LogLevel:        defaultLogLevel,
		BehaviorConfig:  defaultBehaviorConfig,
		PluginDir:       defaultPluginDir,
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.TickInterval == 0 {
		pc.TickInterval = defaultTickInterval
	}
	if strings.TrimSpace(pc.LogLevel) == "" {
		pc.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(pc.BehaviorConfig) == "" {
		pc.BehaviorConfig = defaultBehaviorConfig
	}
	if strings.TrimSpace(pc.PluginDir) == "" {
		pc.PluginDir = defaultPluginDir
	}
}

func (pc *ProjectConfig) normalize() {
	pc.DefaultActivity = strings.TrimSpace(pc.DefaultActivity)
	pc.LogLevel = strings.ToLower(strings.TrimSpace(pc.LogLevel))
	pc.MetricsAddr = strings.TrimSpace(pc.MetricsAddr)
	pc.BehaviorConfig = strings.TrimSpace(pc.BehaviorConfig)
	pc.PluginDir = strings.TrimSpace(pc.PluginDir)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.TickInterval < 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	switch pc.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureFile(path, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}
