package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// PluginDefinition describes a bundle of behavior instances loaded from a
// plugin file.
//
// The struct mirrors the on-disk schema under .behaviors/plugins/*.yaml. Each
// behavior is added to the robot container and appended to the chooser of
// every listed activity.
type PluginDefinition struct {
	ID          string                `json:"id" yaml:"id"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string                `json:"version" yaml:"version"`
	Behaviors   []behavior.Definition `json:"behaviors" yaml:"behaviors"`
	Activities  []string              `json:"activities,omitempty" yaml:"activities,omitempty"`
}

// Normalized returns a trimmed, copy-on-write variant of the definition.
func (def PluginDefinition) Normalized() PluginDefinition {
	clone := PluginDefinition{
		ID:          strings.TrimSpace(def.ID),
		Description: strings.TrimSpace(def.Description),
		Version:     strings.TrimSpace(def.Version),
	}
	if len(def.Behaviors) > 0 {
		clone.Behaviors = make([]behavior.Definition, len(def.Behaviors))
		for i, b := range def.Behaviors {
			clone.Behaviors[i] = b.Normalized()
		}
	}
	for _, a := range def.Activities {
		if trimmed := strings.TrimSpace(a); trimmed != "" {
			clone.Activities = append(clone.Activities, trimmed)
		}
	}
	return clone
}

// Validate ensures the plugin declares at least one well-formed behavior.
func (def PluginDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("plugin %s: version is required", normalized.ID)
	}
	if len(normalized.Behaviors) == 0 {
		return fmt.Errorf("plugin %s: at least one behavior is required", normalized.ID)
	}
	seen := make(map[behavior.ID]struct{}, len(normalized.Behaviors))
	for idx, b := range normalized.Behaviors {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("plugin %s: behaviors[%d]: %w", normalized.ID, idx, err)
		}
		if _, exists := seen[b.ID]; exists {
			return fmt.Errorf("plugin %s: behaviors[%d]: duplicate id %s", normalized.ID, idx, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

// BehaviorIDs lists the ids declared by the plugin in order.
func (def PluginDefinition) BehaviorIDs() []behavior.ID {
	ids := make([]behavior.ID, 0, len(def.Behaviors))
	for _, b := range def.Behaviors {
		ids = append(ids, b.ID)
	}
	return ids
}
