package behavior

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kingrea/robot-behaviors/internal/world"
)

// Precondition is one of a closed set of runnability requirements declared in
// a behavior definition.
type Precondition interface {
	Satisfied(w world.State) bool
	String() string
	precondition()
}

// RequireObject needs every listed object to be known to the world.
type RequireObject struct {
	IDs []world.ObjectID
}

func (p RequireObject) Satisfied(w world.State) bool {
	if w == nil {
		return false
	}
	for _, id := range p.IDs {
		if _, ok := w.Object(id); !ok {
			return false
		}
	}
	return true
}

func (p RequireObject) String() string {
	parts := make([]string, len(p.IDs))
	for i, id := range p.IDs {
		parts[i] = strconv.Itoa(int(id))
	}
	return "object:" + strings.Join(parts, ",")
}

func (RequireObject) precondition() {}

// RequireIdle needs the robot to be neither moving nor carrying anything.
type RequireIdle struct{}

func (RequireIdle) Satisfied(w world.State) bool {
	return w != nil && w.IsIdle() && w.CarriedObject() == world.InvalidObject
}

func (RequireIdle) String() string { return "idle" }
func (RequireIdle) precondition()  {}

// RequireConnected needs the cube radio link to be up.
type RequireConnected struct{}

func (RequireConnected) Satisfied(w world.State) bool {
	return w != nil && w.IsCubeConnected()
}

func (RequireConnected) String() string { return "connected" }
func (RequireConnected) precondition()  {}

// ParsePrecondition decodes a `requires` token: "idle", "connected" or
// "object:<id>[,<id>...]".
func ParsePrecondition(token string) (Precondition, error) {
	trimmed := strings.TrimSpace(token)
	switch {
	case trimmed == "idle":
		return RequireIdle{}, nil
	case trimmed == "connected":
		return RequireConnected{}, nil
	case strings.HasPrefix(trimmed, "object:"):
		raw := strings.Split(strings.TrimPrefix(trimmed, "object:"), ",")
		ids := make([]world.ObjectID, 0, len(raw))
		for _, part := range raw {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("behavior: invalid object id %q in %q", part, token)
			}
			ids = append(ids, world.ObjectID(n))
		}
		return RequireObject{IDs: ids}, nil
	default:
		return nil, fmt.Errorf("behavior: unknown precondition %q", token)
	}
}

// ParsePreconditions decodes every token, failing on the first bad one.
func ParsePreconditions(tokens []string) ([]Precondition, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	out := make([]Precondition, 0, len(tokens))
	for _, token := range tokens {
		p, err := ParsePrecondition(token)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
