package plugins

import (
	"fmt"

	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/config"
)

// LoadAll discovers YAML and Go plugin definitions in dir. Plugin ids must be
// unique across both kinds.
func LoadAll(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	defs := append(yamlDefs, goDefs...)
	seen := make(map[string]string, len(defs))
	for _, file := range defs {
		if existing, ok := seen[file.Definition.ID]; ok {
			return nil, fmt.Errorf("plugin: duplicate plugin id %s (%s and %s)", file.Definition.ID, existing, file.Path)
		}
		seen[file.Definition.ID] = file.Path
	}
	return defs, nil
}

// Apply returns a copy of rc with every plugin behavior appended to the
// behavior list and to the chooser of each activity the plugin names.
// Selection activities see every behavior already, so naming one is allowed
// but has no effect.
func Apply(rc config.RobotConfig, files []DefinitionFile) (config.RobotConfig, error) {
	out := rc
	out.Behaviors = append([]behavior.Definition(nil), rc.Behaviors...)
	out.Activities = make([]config.ActivityConfig, len(rc.Activities))
	for i, a := range rc.Activities {
		a.Chooser.Behaviors = append([]behavior.ID(nil), a.Chooser.Behaviors...)
		out.Activities[i] = a
	}

	owner := make(map[behavior.ID]string, len(out.Behaviors))
	for _, def := range out.Behaviors {
		owner[def.Normalized().ID] = "behavior config"
	}
	index := make(map[string]int, len(out.Activities))
	for i, a := range out.Activities {
		index[a.ID] = i
	}

	for _, file := range files {
		def := file.Definition
		for _, b := range def.Behaviors {
			if existing, ok := owner[b.ID]; ok {
				return config.RobotConfig{}, fmt.Errorf("plugin %s (%s): %w: %s already declared by %s",
					def.ID, file.Path, behavior.ErrDuplicateID, b.ID, existing)
			}
			owner[b.ID] = file.Path
			out.Behaviors = append(out.Behaviors, b)
		}
		for _, activityID := range def.Activities {
			i, ok := index[activityID]
			if !ok {
				return config.RobotConfig{}, fmt.Errorf("plugin %s (%s): unknown activity %s", def.ID, file.Path, activityID)
			}
			if out.Activities[i].Kind() != config.ChooserSimple {
				continue
			}
			out.Activities[i].Chooser.Behaviors = append(out.Activities[i].Chooser.Behaviors, def.BehaviorIDs()...)
		}
	}
	return out, nil
}

// LoadAndApply is LoadAll followed by Apply.
func LoadAndApply(rc config.RobotConfig, dir string) (config.RobotConfig, []DefinitionFile, error) {
	files, err := LoadAll(dir)
	if err != nil {
		return config.RobotConfig{}, nil, err
	}
	merged, err := Apply(rc, files)
	if err != nil {
		return config.RobotConfig{}, nil, err
	}
	return merged, files, nil
}
