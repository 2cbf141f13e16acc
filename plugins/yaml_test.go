package plugins

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDefinition = `id: celebrations
version: 1.0.0
description: Extra animations for freeplay
behaviors:
  - id: Dance
    class: PlayAnimation
    groups: [Fun]
    score: 0.3
    params:
      trigger: dance
      loops: 2
activities: [freeplay]
`

func TestParseDefinitionYAML(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.ID != "celebrations" || len(def.Behaviors) != 1 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	dance := def.Behaviors[0]
	if dance.Params.Int("loops", 0) != 2 || dance.Params.String("trigger", "") != "dance" {
		t.Fatalf("unexpected params: %+v", dance.Params)
	}
}

func TestParseDefinitionYAMLErrors(t *testing.T) {
	if _, err := ParseDefinitionYAML([]byte("")); err == nil {
		t.Fatalf("expected empty payload to fail validation")
	}
	if _, err := ParseDefinitionYAML([]byte("id: [")); err == nil {
		t.Fatalf("expected malformed yaml to fail")
	}
}

func TestLoadDefinitionDir(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "plugin.yaml")
	if err := os.WriteFile(path, []byte(sampleDefinition), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	defs, err := LoadDefinitionDir(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Path != path {
		t.Fatalf("expected path %s, got %s", path, defs[0].Path)
	}
}

func TestLoadDefinitionDirMissing(t *testing.T) {
	defs, err := LoadDefinitionDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if defs != nil {
		t.Fatalf("expected nil slice for missing dir, got %v", defs)
	}
}
