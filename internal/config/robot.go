package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/robot-behaviors/internal/activity"
	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/chooser"
)

// Activity chooser kinds.
const (
	ChooserSimple    = "simple"
	ChooserSelection = "selection"
)

// ActivityConfig declares one activity and the chooser it wraps.
type ActivityConfig struct {
	ID      string                `json:"id" yaml:"id"`
	Type    string                `json:"type,omitempty" yaml:"type,omitempty"`
	Chooser chooser.Config        `json:"chooser,omitempty" yaml:"chooser,omitempty"`
	OnEnter activity.GroupToggles `json:"onEnter,omitempty" yaml:"onEnter,omitempty"`
	OnExit  activity.GroupToggles `json:"onExit,omitempty" yaml:"onExit,omitempty"`
}

// Kind returns the chooser kind, defaulting to simple.
func (a ActivityConfig) Kind() string {
	if t := strings.ToLower(strings.TrimSpace(a.Type)); t != "" {
		return t
	}
	return ChooserSimple
}

// RobotConfig is the robot behavior configuration: every behavior instance
// and the activities that choose between them.
type RobotConfig struct {
	DefaultActivity string                `json:"defaultActivity,omitempty" yaml:"defaultActivity,omitempty"`
	Behaviors       []behavior.Definition `json:"behaviors" yaml:"behaviors"`
	Activities      []ActivityConfig      `json:"activities" yaml:"activities"`
}

// LoadRobotConfig reads and validates the behavior config at path. JSON and
// YAML are both accepted.
func LoadRobotConfig(path string) (RobotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RobotConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	rc, err := ParseRobotConfig(data)
	if err != nil {
		return RobotConfig{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return rc, nil
}

// ParseRobotConfig decodes and validates a behavior config document.
func ParseRobotConfig(data []byte) (RobotConfig, error) {
	var rc RobotConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return RobotConfig{}, fmt.Errorf("parse behavior config: %w", err)
	}
	rc.normalize()
	if err := rc.Validate(); err != nil {
		return RobotConfig{}, err
	}
	return rc, nil
}

// Activity returns the activity config with the given id.
func (rc RobotConfig) Activity(id string) (ActivityConfig, bool) {
	for _, a := range rc.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return ActivityConfig{}, false
}

// Validate checks definitions and activities for structural errors. Chooser
// behavior references are checked once plugin definitions are merged in.
func (rc RobotConfig) Validate() error {
	seen := make(map[behavior.ID]bool, len(rc.Behaviors))
	for i, def := range rc.Behaviors {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("behaviors[%d]: %w", i, err)
		}
		id := def.Normalized().ID
		if seen[id] {
			return fmt.Errorf("behaviors[%d]: %w: %s", i, behavior.ErrDuplicateID, id)
		}
		seen[id] = true
	}
	if len(rc.Activities) == 0 {
		return fmt.Errorf("at least one activity is required")
	}
	ids := make(map[string]bool, len(rc.Activities))
	for i, a := range rc.Activities {
		if a.ID == "" {
			return fmt.Errorf("activities[%d]: id is required", i)
		}
		if ids[a.ID] {
			return fmt.Errorf("activities[%d]: duplicate id %s", i, a.ID)
		}
		ids[a.ID] = true
		switch a.Kind() {
		case ChooserSimple, ChooserSelection:
		default:
			return fmt.Errorf("activities[%d]: unknown chooser type %q", i, a.Type)
		}
		if _, err := chooser.NewScoreCurve(a.Chooser.ScoreBonusForCurrentBehavior); err != nil {
			return fmt.Errorf("activities[%d]: %w", i, err)
		}
	}
	if rc.DefaultActivity != "" && !ids[rc.DefaultActivity] {
		return fmt.Errorf("default activity %s is not declared", rc.DefaultActivity)
	}
	return nil
}

func (rc *RobotConfig) normalize() {
	rc.DefaultActivity = strings.TrimSpace(rc.DefaultActivity)
	for i := range rc.Activities {
		rc.Activities[i].ID = strings.TrimSpace(rc.Activities[i].ID)
	}
}
