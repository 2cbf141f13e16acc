package behavior

import (
	"fmt"
	"strings"
	"time"
)

// Params holds behavior-specific tunables. Unknown keys are kept as-is; each
// behavior class reads the keys it understands.
type Params map[string]any

// Definition declares one behavior instance in the robot configuration.
type Definition struct {
	ID       ID       `json:"id" yaml:"id"`
	Class    Class    `json:"class" yaml:"class"`
	Groups   []string `json:"groups,omitempty" yaml:"groups,omitempty"`
	Score    float64  `json:"score,omitempty" yaml:"score,omitempty"`
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Params   Params   `json:"params,omitempty" yaml:"params,omitempty"`
}

// Normalized returns a trimmed copy of the definition.
func (d Definition) Normalized() Definition {
	clone := Definition{
		ID:    ID(strings.TrimSpace(string(d.ID))),
		Class: Class(strings.TrimSpace(string(d.Class))),
		Score: d.Score,
	}
	for _, g := range d.Groups {
		if trimmed := strings.TrimSpace(g); trimmed != "" {
			clone.Groups = append(clone.Groups, trimmed)
		}
	}
	for _, r := range d.Requires {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			clone.Requires = append(clone.Requires, trimmed)
		}
	}
	if len(d.Params) > 0 {
		clone.Params = make(Params, len(d.Params))
		for key, value := range d.Params {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				clone.Params[trimmed] = value
			}
		}
	}
	return clone
}

// Validate ensures the definition is well-formed.
func (d Definition) Validate() error {
	n := d.Normalized()
	if n.ID == "" {
		return fmt.Errorf("behavior: id is required")
	}
	if n.ID == NoneID {
		return fmt.Errorf("behavior: id %s is reserved", NoneID)
	}
	if n.Class == "" {
		return fmt.Errorf("behavior: class is required for %s", n.ID)
	}
	if _, err := ParsePreconditions(n.Requires); err != nil {
		return fmt.Errorf("behavior %s: %w", n.ID, err)
	}
	return nil
}

// String returns the string value for key or def.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return def
}

// Int returns an integer value for key or def. JSON numbers arrive as float64.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns a float value for key or def.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Bool returns a boolean value for key or def.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Duration reads a Go duration string ("1.5s") or a number of seconds.
func (p Params) Duration(key string, def time.Duration) (time.Duration, error) {
	switch v := p[key].(type) {
	case nil:
		return def, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("behavior: param %s: %w", key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("behavior: param %s has unsupported type %T", key, v)
	}
}

// Maps returns a list of objects stored under key.
func (p Params) Maps(key string) ([]map[string]any, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("behavior: param %s must be a list", key)
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := asObject(item)
		if !ok {
			return nil, fmt.Errorf("behavior: param %s[%d] must be an object", key, i)
		}
		out = append(out, m)
	}
	return out, nil
}

// asObject accepts the map shapes decoders produce. yaml.v3 decodes nested
// mappings inside Params as Params.
func asObject(item any) (map[string]any, bool) {
	switch v := item.(type) {
	case Params:
		return map[string]any(v), true
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
