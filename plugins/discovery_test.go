package plugins

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/chooser"
	"github.com/kingrea/robot-behaviors/internal/config"
)

func baseConfig() config.RobotConfig {
	return config.RobotConfig{
		Behaviors: []behavior.Definition{{ID: "Rest", Class: "Wait"}},
		Activities: []config.ActivityConfig{
			{ID: "freeplay", Chooser: chooser.Config{Behaviors: []behavior.ID{"Rest"}}},
			{ID: "selection", Type: config.ChooserSelection},
		},
	}
}

func TestLoadAndApplyMergesPlugins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "celebrations.yaml"), []byte(sampleDefinition), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "spin.go"), []byte(goPluginSource), 0o644); err != nil {
		t.Fatal(err)
	}
	base := baseConfig()
	merged, files, err := LoadAndApply(base, dir)
	if err != nil {
		t.Fatalf("LoadAndApply: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 plugin files, got %d", len(files))
	}
	if len(merged.Behaviors) != 3 {
		t.Fatalf("expected 3 behaviors, got %d", len(merged.Behaviors))
	}
	freeplay, _ := merged.Activity("freeplay")
	if got := freeplay.Chooser.Behaviors; len(got) != 2 || got[1] != "Dance" {
		t.Fatalf("expected Dance appended to freeplay, got %v", got)
	}
	original, _ := base.Activity("freeplay")
	if len(original.Chooser.Behaviors) != 1 || len(base.Behaviors) != 1 {
		t.Fatalf("Apply must not modify its input")
	}
}

func TestApplyRejectsConflicts(t *testing.T) {
	clash := DefinitionFile{Path: "clash.yaml", Definition: PluginDefinition{
		ID: "clash", Version: "1", Behaviors: []behavior.Definition{{ID: "Rest", Class: "Wait"}},
	}}
	if _, err := Apply(baseConfig(), []DefinitionFile{clash}); !errors.Is(err, behavior.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	stray := DefinitionFile{Path: "stray.yaml", Definition: PluginDefinition{
		ID: "stray", Version: "1", Behaviors: []behavior.Definition{{ID: "Hop", Class: "Wait"}},
		Activities: []string{"missing"},
	}}
	if _, err := Apply(baseConfig(), []DefinitionFile{stray}); err == nil {
		t.Fatalf("expected unknown activity to fail")
	}
}

func TestApplySkipsSelectionActivities(t *testing.T) {
	file := DefinitionFile{Path: "p.yaml", Definition: PluginDefinition{
		ID: "p", Version: "1", Behaviors: []behavior.Definition{{ID: "Hop", Class: "Wait"}},
		Activities: []string{"selection"},
	}}
	merged, err := Apply(baseConfig(), []DefinitionFile{file})
	if err != nil {
		t.Fatal(err)
	}
	selection, _ := merged.Activity("selection")
	if len(selection.Chooser.Behaviors) != 0 {
		t.Fatalf("selection chooser should not list behaviors, got %v", selection.Chooser.Behaviors)
	}
}

func TestLoadAllRejectsDuplicatePluginIDs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sampleDefinition), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := LoadAll(dir); err == nil {
		t.Fatalf("expected duplicate plugin ids to fail")
	}
}
