package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFile pairs a parsed plugin definition with its source. Go plugins
// that return several definitions use "<path>#<n>".
type DefinitionFile struct {
	Definition PluginDefinition
	Path       string
}

// ParseDefinitionYAML decodes and validates a single plugin definition payload.
func ParseDefinitionYAML(data []byte) (PluginDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return PluginDefinition{}, fmt.Errorf("plugin: definition payload is empty")
	}
	var def PluginDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return PluginDefinition{}, fmt.Errorf("plugin: decode definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return PluginDefinition{}, err
	}
	return def.Normalized(), nil
}

// LoadDefinitionFile reads one YAML plugin from disk.
func LoadDefinitionFile(path string) (DefinitionFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return DefinitionFile{}, fmt.Errorf("plugin: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	def, err := ParseDefinitionYAML(data)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return DefinitionFile{Definition: def, Path: filepath.Clean(path)}, nil
}

// LoadDefinitionDir parses every *.yaml / *.yml file in dir, sorted by path.
// A missing directory means no plugins.
func LoadDefinitionDir(dir string) ([]DefinitionFile, error) {
	names, err := pluginFiles(dir, isYAMLFile)
	if err != nil {
		return nil, err
	}
	var defs []DefinitionFile
	for _, path := range names {
		def, err := LoadDefinitionFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// pluginFiles lists regular files in dir accepted by match, sorted.
func pluginFiles(dir string, match func(string) bool) ([]string, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		out = append(out, filepath.Join(trimmed, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

func isGoFile(name string) bool {
	return filepath.Ext(name) == ".go" && !strings.HasSuffix(name, "_test.go")
}
