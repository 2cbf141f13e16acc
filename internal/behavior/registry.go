package behavior

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateID is returned when a behavior id is registered twice.
var ErrDuplicateID = errors.New("behavior: duplicate id")

// Factory constructs a behavior from its definition.
type Factory func(Definition) (Behavior, error)

// Registry maintains known behavior classes.
type Registry struct {
	mu        sync.RWMutex
	factories map[Class]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[Class]Factory{}}
}

// Register installs a class factory. Returns an error if the class already exists.
func (r *Registry) Register(class Class, factory Factory) error {
	if class == "" {
		return fmt.Errorf("behavior: class is required")
	}
	if factory == nil {
		return fmt.Errorf("behavior: factory is required for %s", class)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[class]; exists {
		return fmt.Errorf("behavior: class %s already registered", class)
	}
	r.factories[class] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(class Class, factory Factory) {
	if err := r.Register(class, factory); err != nil {
		panic(err)
	}
}

// Resolve builds a behavior from a definition.
func (r *Registry) Resolve(def Definition) (Behavior, error) {
	n := def.Normalized()
	if err := n.Validate(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	factory, ok := r.factories[n.Class]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("behavior: unknown class %s for %s", n.Class, n.ID)
	}
	b, err := factory(n)
	if err != nil {
		return nil, fmt.Errorf("behavior %s: %w", n.ID, err)
	}
	if b == nil {
		return nil, fmt.Errorf("behavior %s: factory returned nil", n.ID)
	}
	if b.ID() != n.ID {
		return nil, fmt.Errorf("behavior %s: factory produced id %s", n.ID, b.ID())
	}
	return b, nil
}

// Classes returns a sorted list of registered classes.
func (r *Registry) Classes() []Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	classes := make([]Class, 0, len(r.factories))
	for class := range r.factories {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Container owns every behavior instance for the life of the process, in
// registration order.
type Container struct {
	order []Behavior
	byID  map[ID]Behavior
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{byID: map[ID]Behavior{}}
}

// TryAdd registers b. A duplicate id fails without touching the container.
func (c *Container) TryAdd(b Behavior) error {
	if IsNone(b) {
		return fmt.Errorf("behavior: cannot add the none behavior")
	}
	if _, exists := c.byID[b.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, b.ID())
	}
	c.byID[b.ID()] = b
	c.order = append(c.order, b)
	return nil
}

// Get looks up a behavior by id.
func (c *Container) Get(id ID) (Behavior, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// All returns behaviors in registration order.
func (c *Container) All() []Behavior {
	return append([]Behavior(nil), c.order...)
}

// Len returns the number of behaviors.
func (c *Container) Len() int { return len(c.order) }

// BuildContainer resolves every definition through the registry. The first
// failing definition aborts the build.
func BuildContainer(reg *Registry, defs []Definition) (*Container, error) {
	if reg == nil {
		return nil, fmt.Errorf("behavior: registry is required")
	}
	c := NewContainer()
	for _, def := range defs {
		b, err := reg.Resolve(def)
		if err != nil {
			return nil, err
		}
		if err := c.TryAdd(b); err != nil {
			return nil, err
		}
	}
	return c, nil
}
