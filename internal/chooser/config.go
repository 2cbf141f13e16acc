package chooser

import (
	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// Scope says whether a directive names a group or a single behavior.
type Scope string

const (
	ScopeGroup    Scope = "group"
	ScopeBehavior Scope = "behavior"
)

// Directive enables or disables one group or behavior. Directives are applied
// in order and the last one naming a behavior (directly or through one of its
// groups) wins.
type Directive struct {
	Scope  Scope
	Name   string
	Enable bool
}

// Config is the chooser section of the robot configuration.
type Config struct {
	// Behaviors lists the ids this chooser manages, in selection order.
	Behaviors         []behavior.ID `json:"behaviors,omitempty" yaml:"behaviors,omitempty"`
	DisabledGroups    []string      `json:"disabledGroups,omitempty" yaml:"disabledGroups,omitempty"`
	EnabledGroups     []string      `json:"enabledGroups,omitempty" yaml:"enabledGroups,omitempty"`
	DisabledBehaviors []string      `json:"disabledBehaviors,omitempty" yaml:"disabledBehaviors,omitempty"`
	EnabledBehaviors  []string      `json:"enabledBehaviors,omitempty" yaml:"enabledBehaviors,omitempty"`
	// ScoreBonusForCurrentBehavior maps seconds-running to a score bonus for
	// the behavior that is already running.
	ScoreBonusForCurrentBehavior []CurvePoint `json:"scoreBonusForCurrentBehavior,omitempty" yaml:"scoreBonusForCurrentBehavior,omitempty"`
}

// Directives flattens the four lists in their fixed application order:
// disabled groups, enabled groups, disabled behaviors, enabled behaviors.
func (c Config) Directives() []Directive {
	out := make([]Directive, 0, len(c.DisabledGroups)+len(c.EnabledGroups)+len(c.DisabledBehaviors)+len(c.EnabledBehaviors))
	for _, g := range c.DisabledGroups {
		out = append(out, Directive{Scope: ScopeGroup, Name: g, Enable: false})
	}
	for _, g := range c.EnabledGroups {
		out = append(out, Directive{Scope: ScopeGroup, Name: g, Enable: true})
	}
	for _, b := range c.DisabledBehaviors {
		out = append(out, Directive{Scope: ScopeBehavior, Name: b, Enable: false})
	}
	for _, b := range c.EnabledBehaviors {
		out = append(out, Directive{Scope: ScopeBehavior, Name: b, Enable: true})
	}
	return out
}

// Resolve folds directives over behaviors. Every behavior starts enabled.
func Resolve(behaviors []behavior.Behavior, directives []Directive) map[behavior.ID]bool {
	enabled := make(map[behavior.ID]bool, len(behaviors))
	for _, b := range behaviors {
		enabled[b.ID()] = true
	}
	for _, d := range directives {
		switch d.Scope {
		case ScopeGroup:
			for _, b := range behaviors {
				if inGroup(b, d.Name) {
					enabled[b.ID()] = d.Enable
				}
			}
		case ScopeBehavior:
			if _, ok := enabled[behavior.ID(d.Name)]; ok {
				enabled[behavior.ID(d.Name)] = d.Enable
			}
		}
	}
	return enabled
}

func inGroup(b behavior.Behavior, group string) bool {
	for _, g := range b.Groups() {
		if g == group {
			return true
		}
	}
	return false
}
